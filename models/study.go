package models

import (
	"time"

	"gorm.io/gorm"
)

// Member roles within a study
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Study represents a study group that members check into daily
type Study struct {
	gorm.Model
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	OwnerID     uint   `gorm:"not null;index" json:"owner_id"`

	// Join code: 6 uppercase alphanumeric characters, unique among active studies
	Code string `gorm:"size:6;uniqueIndex;not null" json:"code"`

	ImageURL   *string `json:"image_url,omitempty"`
	MaxMembers int     `gorm:"default:0" json:"max_members"` // 0 = unlimited
	IsActive   bool    `gorm:"default:true" json:"is_active"`

	// Relations
	Members       []StudyMember  `gorm:"foreignKey:StudyID" json:"members,omitempty"`
	Attendances   []Attendance   `gorm:"foreignKey:StudyID" json:"attendances,omitempty"`
	Announcements []Announcement `gorm:"foreignKey:StudyID" json:"announcements,omitempty"`
}

// StudyMember represents a user's membership in a study.
// One row per (study, user); leaving flips IsActive instead of deleting,
// and re-joining reactivates the same row.
type StudyMember struct {
	gorm.Model
	StudyID uint `gorm:"not null;index;index:idx_study_member,unique" json:"study_id"`
	UserID  uint `gorm:"not null;index;index:idx_study_member,unique" json:"user_id"`

	Role     string    `gorm:"default:'member'" json:"role"` // owner, admin, member
	JoinedAt time.Time `gorm:"not null" json:"joined_at"`
	IsActive bool      `gorm:"default:true" json:"is_active"`

	// Relations
	Study Study `json:"-"`
	User  User  `json:"-"`
}

// StudyWithMembers is a Study enriched with its member list and the caller's role
type StudyWithMembers struct {
	Study
	MemberList  []MemberInfo `json:"members"`
	MemberCount int          `json:"member_count"`
	MyRole      string       `json:"my_role,omitempty"`
}

// MemberInfo is a membership row joined with the member's display fields
type MemberInfo struct {
	UserID    uint      `json:"user_id"`
	Name      string    `json:"name"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	Role      string    `json:"role"`
	JoinedAt  time.Time `json:"joined_at"`
}
