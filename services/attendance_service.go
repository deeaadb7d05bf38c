package services

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"moim/feed"
	"moim/models"
	"moim/utils"
)

// AttendanceService records daily check-ins and derives the stats views.
type AttendanceService struct {
	db     *gorm.DB
	feed   feed.Publisher
	logger *log.Logger
}

func NewAttendanceService(db *gorm.DB, publisher feed.Publisher, logger *log.Logger) *AttendanceService {
	return &AttendanceService{db: db, feed: publisher, logger: logger}
}

// RequireMember verifies the caller's active membership without loading any
// attendance data. Controllers use it on cache-served paths.
func (s *AttendanceService) RequireMember(userID, studyID uint) error {
	_, err := activeMember(s.db, studyID, userID)
	return err
}

// CheckIn records today's attendance for the caller. The second check-in of
// the day returns ErrAlreadyCheckedIn; the insert races on the unique
// (study, user, date) index so concurrent requests cannot both win.
func (s *AttendanceService) CheckIn(ctx context.Context, userID, studyID uint, comment string) (*models.Attendance, error) {
	if _, err := activeMember(s.db, studyID, userID); err != nil {
		return nil, err
	}

	attendance := models.Attendance{
		StudyID:   studyID,
		UserID:    userID,
		Date:      utils.TodayString(),
		Comment:   comment,
		IsPresent: true,
	}
	result := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&attendance)
	if result.Error != nil {
		return nil, transient(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrAlreadyCheckedIn
	}

	if err := s.feed.Publish(ctx, feed.Event{
		Type:    feed.EventCheckIn,
		StudyID: studyID,
		UserID:  userID,
		Date:    attendance.Date,
	}); err != nil {
		// The check-in is durable, only the live notification was lost
		s.logger.Printf("feed publish failed for study %d: %v", studyID, err)
	}

	return &attendance, nil
}

// TodayAttendance lists who has checked in today, newest first, with the
// caller's own state marked.
func (s *AttendanceService) TodayAttendance(userID, studyID uint) ([]models.AttendanceEntry, bool, error) {
	if _, err := activeMember(s.db, studyID, userID); err != nil {
		return nil, false, err
	}

	var entries []models.AttendanceEntry
	err := s.db.Table("attendances").
		Select("attendances.id, attendances.study_id, attendances.user_id, attendances.date, attendances.comment, attendances.created_at, users.name AS user_name, users.avatar_url AS user_avatar").
		Joins("JOIN users ON users.id = attendances.user_id").
		Where("attendances.study_id = ? AND attendances.date = ? AND attendances.is_present = ?", studyID, utils.TodayString(), true).
		Order("attendances.created_at DESC").
		Scan(&entries).Error
	if err != nil {
		return nil, false, transient(err)
	}

	checkedIn := false
	for _, e := range entries {
		if e.UserID == userID {
			checkedIn = true
			break
		}
	}
	return entries, checkedIn, nil
}

// UserStats computes a member's attendance summary for one study. Streaks
// count consecutive present days walking back from today; a missing today
// does not break the current streak until tomorrow.
func (s *AttendanceService) UserStats(callerID, studyID, targetID uint) (*models.AttendanceStats, error) {
	if _, err := activeMember(s.db, studyID, callerID); err != nil {
		return nil, err
	}

	member, err := activeMember(s.db, studyID, targetID)
	if err != nil {
		if errors.Is(err, ErrForbidden) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var dates []string
	err = s.db.Model(&models.Attendance{}).
		Where("study_id = ? AND user_id = ? AND is_present = ?", studyID, targetID, true).
		Order("date ASC").
		Pluck("date", &dates).Error
	if err != nil {
		return nil, transient(err)
	}

	stats := &models.AttendanceStats{
		UserID:       targetID,
		AttendedDays: len(dates),
	}

	// Total days run from the join date through today, inclusive
	joined := member.JoinedAt.UTC().Truncate(24 * time.Hour)
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if !joined.After(today) {
		stats.TotalDays = int(today.Sub(joined).Hours()/24) + 1
	}
	if stats.TotalDays > 0 {
		stats.AttendanceRate = roundRate(float64(stats.AttendedDays) / float64(stats.TotalDays) * 100)
	}

	attended := make(map[string]bool, len(dates))
	for _, d := range dates {
		attended[d] = true
	}

	// Current streak anchors on today, or on yesterday when today is
	// still open
	anchor := utils.TodayString()
	if !attended[anchor] {
		anchor = utils.AddDays(anchor, -1)
	}
	for attended[anchor] {
		stats.CurrentStreak++
		anchor = utils.AddDays(anchor, -1)
	}

	run := 0
	prev := ""
	for _, d := range dates {
		if prev != "" && d == utils.AddDays(prev, 1) {
			run++
		} else {
			run = 1
		}
		if run > stats.LongestStreak {
			stats.LongestStreak = run
		}
		prev = d
	}

	err = s.db.Where("study_id = ? AND user_id = ? AND is_present = ?", studyID, targetID, true).
		Order("date DESC").
		Limit(10).
		Find(&stats.RecentAttendances).Error
	if err != nil {
		return nil, transient(err)
	}

	return stats, nil
}

// StudyStats aggregates per-member stats plus the most recent check-ins.
func (s *AttendanceService) StudyStats(userID, studyID uint) (*models.StudyAttendanceStats, error) {
	if _, err := activeMember(s.db, studyID, userID); err != nil {
		return nil, err
	}

	var members []models.StudyMember
	err := s.db.Where("study_id = ? AND is_active = ?", studyID, true).Find(&members).Error
	if err != nil {
		return nil, transient(err)
	}

	stats := &models.StudyAttendanceStats{StudyID: studyID}
	for _, m := range members {
		memberStats, err := s.UserStats(userID, studyID, m.UserID)
		if err != nil {
			return nil, err
		}
		stats.MemberStats = append(stats.MemberStats, *memberStats)
	}

	err = s.db.Table("attendances").
		Select("attendances.id, attendances.study_id, attendances.user_id, attendances.date, attendances.comment, attendances.created_at, users.name AS user_name, users.avatar_url AS user_avatar").
		Joins("JOIN users ON users.id = attendances.user_id").
		Where("attendances.study_id = ? AND attendances.is_present = ?", studyID, true).
		Order("attendances.created_at DESC").
		Limit(20).
		Scan(&stats.RecentAttendances).Error
	if err != nil {
		return nil, transient(err)
	}

	return stats, nil
}

// MonthlyAttendance builds the calendar view for one member and month.
// Every day of the month appears exactly once regardless of attendance.
func (s *AttendanceService) MonthlyAttendance(callerID, studyID, targetID uint, year, month int) (*models.MonthlyAttendance, error) {
	if _, err := activeMember(s.db, studyID, callerID); err != nil {
		return nil, err
	}
	if month < 1 || month > 12 {
		return nil, ErrNotFound
	}

	first := utils.DateOfDay(year, month, 1)
	last := utils.DateOfDay(year, month, utils.DaysInMonth(year, month))

	var rows []models.Attendance
	err := s.db.Where("study_id = ? AND user_id = ? AND date BETWEEN ? AND ?", studyID, targetID, first, last).
		Find(&rows).Error
	if err != nil {
		return nil, transient(err)
	}

	byDate := make(map[string]models.Attendance, len(rows))
	for _, r := range rows {
		byDate[r.Date] = r
	}

	result := &models.MonthlyAttendance{
		Year:  year,
		Month: month,
	}
	attendedDays := 0
	for day := 1; day <= utils.DaysInMonth(year, month); day++ {
		date := utils.DateOfDay(year, month, day)
		entry := models.CalendarDay{Date: date}
		if r, ok := byDate[date]; ok && r.IsPresent {
			entry.IsPresent = true
			entry.Comment = r.Comment
			attendedDays++
		}
		result.DailyRecords = append(result.DailyRecords, entry)
	}
	result.AttendedDays = attendedDays
	result.TotalDays = len(result.DailyRecords)
	if result.TotalDays > 0 {
		result.AttendanceRate = roundRate(float64(attendedDays) / float64(result.TotalDays) * 100)
	}

	return result, nil
}

// Heatmap returns one cell per day over the trailing year. Attendance is
// binary, so cells carry level 0 or 4.
func (s *AttendanceService) Heatmap(callerID, studyID, targetID uint) ([]models.HeatmapDay, error) {
	if _, err := activeMember(s.db, studyID, callerID); err != nil {
		return nil, err
	}

	today := utils.TodayString()
	start := utils.AddDays(today, -364)

	var dates []string
	err := s.db.Model(&models.Attendance{}).
		Where("study_id = ? AND user_id = ? AND is_present = ? AND date BETWEEN ? AND ?", studyID, targetID, true, start, today).
		Pluck("date", &dates).Error
	if err != nil {
		return nil, transient(err)
	}

	attended := make(map[string]bool, len(dates))
	for _, d := range dates {
		attended[d] = true
	}

	cells := make([]models.HeatmapDay, 0, 365)
	for d := start; d <= today; d = utils.AddDays(d, 1) {
		cell := models.HeatmapDay{Date: d}
		if attended[d] {
			cell.Count = 1
			cell.Level = 4
		}
		cells = append(cells, cell)
	}
	return cells, nil
}

func roundRate(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
