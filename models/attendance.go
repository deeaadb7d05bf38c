package models

import "gorm.io/gorm"

// Attendance represents a single daily check-in.
// The composite unique index enforces at most one row per (study, user, date);
// the insert path relies on it to stay race-safe.
type Attendance struct {
	gorm.Model
	StudyID uint   `gorm:"not null;index;index:idx_attendance_day,unique" json:"study_id"`
	UserID  uint   `gorm:"not null;index;index:idx_attendance_day,unique" json:"user_id"`
	Date    string `gorm:"size:10;not null;index:idx_attendance_day,unique" json:"date"` // YYYY-MM-DD

	Comment   string `json:"comment"`
	IsPresent bool   `gorm:"default:true" json:"is_present"`

	// Relations
	Study Study `json:"-"`
	User  User  `json:"-"`
}

// AttendanceEntry is an attendance row joined with the attendee's display fields
type AttendanceEntry struct {
	Attendance
	UserName   string  `json:"user_name"`
	UserAvatar *string `json:"user_avatar,omitempty"`
}

// AttendanceStats summarizes a member's check-in history within a study
type AttendanceStats struct {
	UserID         uint    `json:"user_id"`
	TotalDays      int     `json:"total_days"`
	AttendedDays   int     `json:"attended_days"`
	AttendanceRate float64 `json:"attendance_rate"` // percent, rounded to 2 decimals
	CurrentStreak  int     `json:"current_streak"`
	LongestStreak  int     `json:"longest_streak"`

	// The member's 10 most recent check-ins, most recent first
	RecentAttendances []Attendance `json:"recent_attendances"`
}

// StudyAttendanceStats pairs per-member stats with the most recent rows
type StudyAttendanceStats struct {
	StudyID           uint              `json:"study_id"`
	MemberStats       []AttendanceStats `json:"member_stats"`
	RecentAttendances []AttendanceEntry `json:"recent_attendances"`
}

// CalendarDay is one day of a monthly attendance calendar
type CalendarDay struct {
	Date      string `json:"date"`
	IsPresent bool   `json:"is_present"`
	Comment   string `json:"comment,omitempty"`
}

// MonthlyAttendance is the dense day-by-day view of one calendar month
type MonthlyAttendance struct {
	Year           int           `json:"year"`
	Month          int           `json:"month"`
	TotalDays      int           `json:"total_days"`
	AttendedDays   int           `json:"attended_days"`
	AttendanceRate float64       `json:"attendance_rate"`
	DailyRecords   []CalendarDay `json:"daily_records"`
}

// HeatmapDay is one cell of the trailing-year attendance heatmap.
// Level is 0 or 4: attended days render at full intensity, the
// intermediate levels are reserved.
type HeatmapDay struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
	Level int    `json:"level"`
}
