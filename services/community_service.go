package services

import (
	"context"
	"errors"
	"log"

	"gorm.io/gorm"

	"moim/feed"
	"moim/models"
	"moim/utils"
)

// CommunityService owns comments and announcements. Comments are gated on
// same-day attendance; announcements are owner only.
type CommunityService struct {
	db     *gorm.DB
	feed   feed.Publisher
	logger *log.Logger
}

func NewCommunityService(db *gorm.DB, publisher feed.Publisher, logger *log.Logger) *CommunityService {
	return &CommunityService{db: db, feed: publisher, logger: logger}
}

// hasCheckedIn reports whether the user has a present attendance row for the
// given day in the study.
func (s *CommunityService) hasCheckedIn(studyID, userID uint, date string) (bool, error) {
	var count int64
	err := s.db.Model(&models.Attendance{}).
		Where("study_id = ? AND user_id = ? AND date = ? AND is_present = ?", studyID, userID, date, true).
		Count(&count).Error
	if err != nil {
		return false, transient(err)
	}
	return count > 0, nil
}

// RequireMember verifies the caller's active membership. Controllers use it
// on cache-served paths.
func (s *CommunityService) RequireMember(userID, studyID uint) error {
	_, err := activeMember(s.db, studyID, userID)
	return err
}

// AddComment posts a comment on the given day's thread. The author must have
// a present attendance row for that exact day; the gate re-checks at write
// time, never trusting the client.
func (s *CommunityService) AddComment(ctx context.Context, userID, studyID uint, date, content string) (*models.Comment, error) {
	if _, err := activeMember(s.db, studyID, userID); err != nil {
		return nil, err
	}
	if !utils.IsValidDate(date) {
		return nil, ErrNotFound
	}

	ok, err := s.hasCheckedIn(studyID, userID, date)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAttendanceRequired
	}

	comment := models.Comment{
		StudyID: studyID,
		UserID:  userID,
		Content: content,
		Date:    date,
	}
	if err := s.db.Create(&comment).Error; err != nil {
		return nil, transient(err)
	}

	if err := s.feed.Publish(ctx, feed.Event{
		Type:    feed.EventCommentAdded,
		StudyID: studyID,
		UserID:  userID,
		Date:    date,
		Payload: map[string]interface{}{"comment_id": comment.ID},
	}); err != nil {
		s.logger.Printf("feed publish failed for study %d: %v", studyID, err)
	}

	return &comment, nil
}

// CommentRows loads one day's comments, oldest first, without any
// caller-specific flags. The caller's membership must already be verified.
func (s *CommunityService) CommentRows(studyID uint, date string) ([]models.CommentView, error) {
	var views []models.CommentView
	err := s.db.Table("comments").
		Select("comments.*, users.name AS author_name, users.avatar_url AS author_avatar").
		Joins("JOIN users ON users.id = comments.user_id").
		Where("comments.study_id = ? AND comments.date = ? AND comments.deleted_at IS NULL", studyID, date).
		Order("comments.created_at ASC").
		Scan(&views).Error
	if err != nil {
		return nil, transient(err)
	}
	return views, nil
}

// BuildThread decorates shared comment rows with the caller's flags.
// CanComment reflects a present attendance row for the requested day, past
// days included.
func (s *CommunityService) BuildThread(userID, studyID uint, date string, views []models.CommentView) (*models.DailyComments, error) {
	for i := range views {
		own := views[i].UserID == userID
		views[i].CanEdit = own
		views[i].CanDelete = own
	}

	canComment, err := s.hasCheckedIn(studyID, userID, date)
	if err != nil {
		return nil, err
	}

	return &models.DailyComments{
		Date:       date,
		Comments:   views,
		TotalCount: len(views),
		CanComment: canComment,
	}, nil
}

// DailyComments returns the thread for one day, oldest first.
func (s *CommunityService) DailyComments(userID, studyID uint, date string) (*models.DailyComments, error) {
	if _, err := activeMember(s.db, studyID, userID); err != nil {
		return nil, err
	}
	if !utils.IsValidDate(date) {
		return nil, ErrNotFound
	}

	views, err := s.CommentRows(studyID, date)
	if err != nil {
		return nil, err
	}
	return s.BuildThread(userID, studyID, date, views)
}

// UpdateComment edits the caller's own comment. The ownership condition sits
// in the WHERE clause, so editing someone else's comment affects zero rows
// and surfaces as ErrForbidden.
func (s *CommunityService) UpdateComment(userID, studyID, commentID uint, content string) error {
	if _, err := activeMember(s.db, studyID, userID); err != nil {
		return err
	}

	result := s.db.Model(&models.Comment{}).
		Where("id = ? AND study_id = ? AND user_id = ?", commentID, studyID, userID).
		Update("content", content)
	if result.Error != nil {
		return transient(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrForbidden
	}
	return nil
}

// DeleteComment removes the caller's own comment.
func (s *CommunityService) DeleteComment(ctx context.Context, userID, studyID, commentID uint) error {
	if _, err := activeMember(s.db, studyID, userID); err != nil {
		return err
	}

	result := s.db.Where("id = ? AND study_id = ? AND user_id = ?", commentID, studyID, userID).
		Delete(&models.Comment{})
	if result.Error != nil {
		return transient(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrForbidden
	}

	if err := s.feed.Publish(ctx, feed.Event{
		Type:    feed.EventCommentDeleted,
		StudyID: studyID,
		UserID:  userID,
		Payload: map[string]interface{}{"comment_id": commentID},
	}); err != nil {
		s.logger.Printf("feed publish failed for study %d: %v", studyID, err)
	}
	return nil
}

// CreateAnnouncement posts an owner notice to the study.
func (s *CommunityService) CreateAnnouncement(ctx context.Context, userID, studyID uint, title, content string, pinned bool) (*models.Announcement, error) {
	if _, err := requireRole(s.db, studyID, userID, models.RoleOwner); err != nil {
		return nil, err
	}

	announcement := models.Announcement{
		StudyID:  studyID,
		AuthorID: userID,
		Title:    title,
		Content:  content,
		IsPinned: pinned,
	}
	if err := s.db.Create(&announcement).Error; err != nil {
		return nil, transient(err)
	}

	if err := s.feed.Publish(ctx, feed.Event{
		Type:    feed.EventAnnouncement,
		StudyID: studyID,
		UserID:  userID,
		Payload: map[string]interface{}{"announcement_id": announcement.ID, "title": title},
	}); err != nil {
		s.logger.Printf("feed publish failed for study %d: %v", studyID, err)
	}

	return &announcement, nil
}

// AnnouncementRows loads the study's notices, pinned first, then newest
// first, without caller-specific flags. The caller's membership must already
// be verified.
func (s *CommunityService) AnnouncementRows(studyID uint) ([]models.AnnouncementView, error) {
	var views []models.AnnouncementView
	err := s.db.Table("announcements").
		Select("announcements.*, users.name AS author_name, users.avatar_url AS author_avatar").
		Joins("JOIN users ON users.id = announcements.author_id").
		Where("announcements.study_id = ? AND announcements.deleted_at IS NULL", studyID).
		Order("announcements.is_pinned DESC, announcements.created_at DESC").
		Scan(&views).Error
	if err != nil {
		return nil, transient(err)
	}
	return views, nil
}

// BuildAnnouncementList decorates shared announcement rows with the caller's
// edit rights.
func (s *CommunityService) BuildAnnouncementList(userID, studyID uint, views []models.AnnouncementView) (*models.AnnouncementList, error) {
	isOwner := false
	if _, err := requireRole(s.db, studyID, userID, models.RoleOwner); err == nil {
		isOwner = true
	} else if !errors.Is(err, ErrForbidden) {
		return nil, err
	}

	pinned := 0
	for i := range views {
		views[i].CanEdit = isOwner
		views[i].CanDelete = isOwner
		if views[i].IsPinned {
			pinned++
		}
	}

	return &models.AnnouncementList{
		Announcements: views,
		TotalCount:    len(views),
		PinnedCount:   pinned,
	}, nil
}

// Announcements lists the study's notices for one member.
func (s *CommunityService) Announcements(userID, studyID uint) (*models.AnnouncementList, error) {
	if _, err := activeMember(s.db, studyID, userID); err != nil {
		return nil, err
	}

	views, err := s.AnnouncementRows(studyID)
	if err != nil {
		return nil, err
	}
	return s.BuildAnnouncementList(userID, studyID, views)
}

// UpdateAnnouncement edits a notice. Owner only, like every announcement
// mutation.
func (s *CommunityService) UpdateAnnouncement(userID, studyID, announcementID uint, title, content string) error {
	if _, err := requireRole(s.db, studyID, userID, models.RoleOwner); err != nil {
		return err
	}

	result := s.db.Model(&models.Announcement{}).
		Where("id = ? AND study_id = ?", announcementID, studyID).
		Updates(map[string]interface{}{"title": title, "content": content})
	if result.Error != nil {
		return transient(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAnnouncementPin pins or unpins a notice.
func (s *CommunityService) SetAnnouncementPin(ctx context.Context, userID, studyID, announcementID uint, pinned bool) error {
	if _, err := requireRole(s.db, studyID, userID, models.RoleOwner); err != nil {
		return err
	}

	result := s.db.Model(&models.Announcement{}).
		Where("id = ? AND study_id = ?", announcementID, studyID).
		Update("is_pinned", pinned)
	if result.Error != nil {
		return transient(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	if err := s.feed.Publish(ctx, feed.Event{
		Type:    feed.EventAnnouncementPin,
		StudyID: studyID,
		UserID:  userID,
		Payload: map[string]interface{}{"announcement_id": announcementID, "pinned": pinned},
	}); err != nil {
		s.logger.Printf("feed publish failed for study %d: %v", studyID, err)
	}
	return nil
}

// DeleteAnnouncement removes a notice. Owner only.
func (s *CommunityService) DeleteAnnouncement(userID, studyID, announcementID uint) error {
	if _, err := requireRole(s.db, studyID, userID, models.RoleOwner); err != nil {
		return err
	}

	result := s.db.Where("id = ? AND study_id = ?", announcementID, studyID).
		Delete(&models.Announcement{})
	if result.Error != nil {
		return transient(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
