package worker

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"moim/models"
	"moim/utils"
)

// ReminderWorker mails members who have not checked in by evening. One
// reminder per member per study per day.
type ReminderWorker struct {
	DB     *gorm.DB
	Mailer *utils.Mailer
	Logger *log.Logger

	// remindAfterHour is the UTC hour after which reminders go out
	remindAfterHour int
	lastRunDate     string
}

func NewReminderWorker(db *gorm.DB, mailer *utils.Mailer, logger *log.Logger) *ReminderWorker {
	return &ReminderWorker{
		DB:              db,
		Mailer:          mailer,
		Logger:          logger,
		remindAfterHour: 18,
	}
}

func (rw *ReminderWorker) Start(ctx context.Context) {
	// Initial delay to let the server start up
	time.Sleep(10 * time.Second)

	rw.Logger.Println("Reminder worker started")

	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			rw.Logger.Println("Reminder worker shutting down...")
			return
		case <-ticker.C:
			rw.runOnce()
		}
	}
}

func (rw *ReminderWorker) runOnce() {
	if !rw.Mailer.Configured() {
		return
	}

	now := time.Now().UTC()
	today := utils.TodayString()
	if now.Hour() < rw.remindAfterHour || rw.lastRunDate == today {
		return
	}

	var studies []models.Study
	if err := rw.DB.Where("is_active = ?", true).Find(&studies).Error; err != nil {
		rw.Logger.Printf("Error fetching active studies: %v", err)
		return
	}

	for _, study := range studies {
		if err := rw.remindStudy(study, today); err != nil {
			rw.Logger.Printf("Error sending reminders for study %d: %v", study.ID, err)
		}
	}

	rw.lastRunDate = today
}

// remindStudy mails every active member of one study who has no attendance
// row for today.
func (rw *ReminderWorker) remindStudy(study models.Study, today string) error {
	var pending []models.User
	err := rw.DB.Table("users").
		Select("users.*").
		Joins("JOIN study_members ON study_members.user_id = users.id").
		Where("study_members.study_id = ? AND study_members.is_active = ?", study.ID, true).
		Where("users.is_active = ?", true).
		Where("users.id NOT IN (?)", rw.DB.Table("attendances").
			Select("user_id").
			Where("study_id = ? AND date = ?", study.ID, today)).
		Find(&pending).Error
	if err != nil {
		return err
	}

	for _, user := range pending {
		if err := rw.Mailer.SendCheckInReminder(user.Email, user.Name, study.Name); err != nil {
			rw.Logger.Printf("Reminder to %s failed: %v", user.Email, err)
			continue
		}
	}

	if len(pending) > 0 {
		rw.Logger.Printf("Sent %d check-in reminders for study %d", len(pending), study.ID)
	}
	return nil
}
