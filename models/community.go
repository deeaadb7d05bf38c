package models

import "gorm.io/gorm"

// Comment is a daily remark, writable only on days the author checked in
type Comment struct {
	gorm.Model
	StudyID uint   `gorm:"not null;index" json:"study_id"`
	UserID  uint   `gorm:"not null;index" json:"user_id"`
	Content string `gorm:"type:text;not null" json:"content"`
	Date    string `gorm:"size:10;not null;index" json:"date"` // YYYY-MM-DD

	// Relations
	Study Study `json:"-"`
	User  User  `json:"-"`
}

// CommentView is a comment enriched with author display fields and the
// caller's permissions on it
type CommentView struct {
	Comment
	AuthorName   string  `json:"author_name"`
	AuthorAvatar *string `json:"author_avatar,omitempty"`
	CanEdit      bool    `json:"can_edit"`
	CanDelete    bool    `json:"can_delete"`
}

// DailyComments is the comment thread for one study day
type DailyComments struct {
	Date       string        `json:"date"`
	Comments   []CommentView `json:"comments"`
	TotalCount int           `json:"total_count"`
	CanComment bool          `json:"can_comment"`
}

// Announcement is an owner-authored notice, optionally pinned above the rest
type Announcement struct {
	gorm.Model
	StudyID  uint   `gorm:"not null;index" json:"study_id"`
	AuthorID uint   `gorm:"not null;index" json:"author_id"`
	Title    string `gorm:"not null" json:"title"`
	Content  string `gorm:"type:text" json:"content"`
	IsPinned bool   `gorm:"default:false" json:"is_pinned"`

	// Relations
	Study  Study `json:"-"`
	Author User  `gorm:"foreignKey:AuthorID" json:"-"`
}

// AnnouncementView is an announcement enriched with author display fields
type AnnouncementView struct {
	Announcement
	AuthorName   string  `json:"author_name"`
	AuthorAvatar *string `json:"author_avatar,omitempty"`
	CanEdit      bool    `json:"can_edit"`
	CanDelete    bool    `json:"can_delete"`
}

// AnnouncementList is the pinned-first listing for a study
type AnnouncementList struct {
	Announcements []AnnouncementView `json:"announcements"`
	TotalCount    int                `json:"total_count"`
	PinnedCount   int                `json:"pinned_count"`
}
