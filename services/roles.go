package services

import (
	"errors"

	"gorm.io/gorm"

	"moim/models"
)

// activeMember returns the caller's active membership in a study, or
// ErrForbidden when there is none.
func activeMember(db *gorm.DB, studyID, userID uint) (*models.StudyMember, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	var member models.StudyMember
	err := db.Where("study_id = ? AND user_id = ? AND is_active = ?", studyID, userID, true).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrForbidden
		}
		return nil, transient(err)
	}
	return &member, nil
}

// requireRole is the single capability check used by every role-gated
// operation: it loads the caller's active membership and verifies the role
// is one of those allowed.
func requireRole(db *gorm.DB, studyID, userID uint, roles ...string) (*models.StudyMember, error) {
	member, err := activeMember(db, studyID, userID)
	if err != nil {
		return nil, err
	}
	for _, role := range roles {
		if member.Role == role {
			return member, nil
		}
	}
	return nil, ErrForbidden
}
