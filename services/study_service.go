package services

import (
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"moim/models"
	"moim/utils"
)

// codeGenerationAttempts bounds the retry loop when a freshly generated join
// code collides with an existing one.
const codeGenerationAttempts = 10

type CreateStudyInput struct {
	Name        string
	Description string
	MaxMembers  int
	ImageURL    *string
}

type UpdateStudyInput struct {
	Name        *string
	Description *string
	MaxMembers  *int
	ImageURL    *string
}

// StudyService owns the study and membership lifecycle rules.
type StudyService struct {
	db           *gorm.DB
	logger       *log.Logger
	generateCode func() (string, error)
}

func NewStudyService(db *gorm.DB, logger *log.Logger) *StudyService {
	return &StudyService{
		db:           db,
		logger:       logger,
		generateCode: utils.GenerateStudyCode,
	}
}

// uniqueCode generates a join code not used by any existing study. Codes of
// soft-deleted studies stay reserved because the column is globally unique.
func (s *StudyService) uniqueCode(tx *gorm.DB) (string, error) {
	for attempt := 0; attempt < codeGenerationAttempts; attempt++ {
		code, err := s.generateCode()
		if err != nil {
			return "", transient(err)
		}
		var count int64
		if err := tx.Model(&models.Study{}).Where("code = ?", code).Count(&count).Error; err != nil {
			return "", transient(err)
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", ErrCodeGenerationExhausted
}

// CreateStudy inserts the study and the owner's membership in one
// transaction, so a failed membership write cannot leave an ownerless study.
func (s *StudyService) CreateStudy(userID uint, input CreateStudyInput) (*models.Study, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}

	var study models.Study
	err := s.db.Transaction(func(tx *gorm.DB) error {
		code, err := s.uniqueCode(tx)
		if err != nil {
			return err
		}

		study = models.Study{
			Name:        input.Name,
			Description: input.Description,
			OwnerID:     userID,
			Code:        code,
			ImageURL:    input.ImageURL,
			MaxMembers:  input.MaxMembers,
			IsActive:    true,
		}
		if err := tx.Create(&study).Error; err != nil {
			return transient(err)
		}

		owner := models.StudyMember{
			StudyID:  study.ID,
			UserID:   userID,
			Role:     models.RoleOwner,
			JoinedAt: time.Now().UTC(),
			IsActive: true,
		}
		if err := tx.Create(&owner).Error; err != nil {
			return transient(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Printf("study %d created by user %d (code %s)", study.ID, userID, study.Code)
	return &study, nil
}

// JoinStudy adds the caller to the study behind the given join code.
func (s *StudyService) JoinStudy(userID uint, code string) (*models.Study, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}

	var study models.Study
	err := s.db.Where("code = ? AND is_active = ?", code, true).First(&study).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, transient(err)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var member models.StudyMember
		found := true
		if err := tx.Where("study_id = ? AND user_id = ?", study.ID, userID).First(&member).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return transient(err)
			}
			found = false
		}
		if found && member.IsActive {
			return ErrAlreadyMember
		}

		if study.MaxMembers > 0 {
			var active int64
			if err := tx.Model(&models.StudyMember{}).
				Where("study_id = ? AND is_active = ?", study.ID, true).
				Count(&active).Error; err != nil {
				return transient(err)
			}
			if active >= int64(study.MaxMembers) {
				return ErrStudyFull
			}
		}

		if found {
			// Returning member: reactivate the original row
			return tx.Model(&member).Updates(map[string]interface{}{
				"is_active": true,
				"role":      models.RoleMember,
				"joined_at": time.Now().UTC(),
			}).Error
		}

		return tx.Create(&models.StudyMember{
			StudyID:  study.ID,
			UserID:   userID,
			Role:     models.RoleMember,
			JoinedAt: time.Now().UTC(),
			IsActive: true,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Printf("user %d joined study %d", userID, study.ID)
	return &study, nil
}

// LeaveStudy deactivates the caller's membership. The owner cannot leave;
// they must delete the study or transfer it first.
func (s *StudyService) LeaveStudy(userID, studyID uint) error {
	member, err := activeMember(s.db, studyID, userID)
	if err != nil {
		return err
	}
	if member.Role == models.RoleOwner {
		return ErrOwnerCannotLeave
	}
	if err := s.db.Model(member).Update("is_active", false).Error; err != nil {
		return transient(err)
	}
	return nil
}

// MyStudies lists the active studies the caller belongs to, each with its
// member roster and the caller's role.
func (s *StudyService) MyStudies(userID uint) ([]models.StudyWithMembers, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}

	var memberships []models.StudyMember
	err := s.db.Where("user_id = ? AND is_active = ?", userID, true).Find(&memberships).Error
	if err != nil {
		return nil, transient(err)
	}

	studies := make([]models.StudyWithMembers, 0, len(memberships))
	for _, m := range memberships {
		var study models.Study
		err := s.db.Where("id = ? AND is_active = ?", m.StudyID, true).First(&study).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue // study was deleted, membership row is stale
			}
			return nil, transient(err)
		}
		roster, err := s.memberRoster(study.ID)
		if err != nil {
			return nil, err
		}
		studies = append(studies, models.StudyWithMembers{
			Study:       study,
			MemberList:  roster,
			MemberCount: len(roster),
			MyRole:      m.Role,
		})
	}
	return studies, nil
}

// StudyByID returns one active study with its roster and the caller's role
// (empty when the caller is not a member).
func (s *StudyService) StudyByID(userID, studyID uint) (*models.StudyWithMembers, error) {
	var study models.Study
	err := s.db.Where("id = ? AND is_active = ?", studyID, true).First(&study).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, transient(err)
	}

	roster, err := s.memberRoster(studyID)
	if err != nil {
		return nil, err
	}

	myRole := ""
	for _, m := range roster {
		if m.UserID == userID {
			myRole = m.Role
		}
	}

	return &models.StudyWithMembers{
		Study:       study,
		MemberList:  roster,
		MemberCount: len(roster),
		MyRole:      myRole,
	}, nil
}

func (s *StudyService) memberRoster(studyID uint) ([]models.MemberInfo, error) {
	var roster []models.MemberInfo
	err := s.db.Table("study_members").
		Select("study_members.user_id, users.name, users.avatar_url, study_members.role, study_members.joined_at").
		Joins("JOIN users ON users.id = study_members.user_id").
		Where("study_members.study_id = ? AND study_members.is_active = ?", studyID, true).
		Order("study_members.joined_at ASC").
		Scan(&roster).Error
	if err != nil {
		return nil, transient(err)
	}
	return roster, nil
}

// UpdateStudy applies the provided fields. Owner only.
func (s *StudyService) UpdateStudy(userID, studyID uint, input UpdateStudyInput) (*models.Study, error) {
	if _, err := requireRole(s.db, studyID, userID, models.RoleOwner); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.MaxMembers != nil {
		updates["max_members"] = *input.MaxMembers
	}
	if input.ImageURL != nil {
		updates["image_url"] = *input.ImageURL
	}

	var study models.Study
	if err := s.db.First(&study, studyID).Error; err != nil {
		return nil, transient(err)
	}
	if len(updates) > 0 {
		if err := s.db.Model(&study).Updates(updates).Error; err != nil {
			return nil, transient(err)
		}
	}
	return &study, nil
}

// DeleteStudy soft-deletes the study by flipping is_active. Owner only.
func (s *StudyService) DeleteStudy(userID, studyID uint) error {
	if _, err := requireRole(s.db, studyID, userID, models.RoleOwner); err != nil {
		return err
	}
	if err := s.db.Model(&models.Study{}).Where("id = ?", studyID).
		Update("is_active", false).Error; err != nil {
		return transient(err)
	}
	s.logger.Printf("study %d deactivated by user %d", studyID, userID)
	return nil
}

// RegenerateCode replaces the study's join code. The old code stops working
// immediately. Owner only.
func (s *StudyService) RegenerateCode(userID, studyID uint) (string, error) {
	if _, err := requireRole(s.db, studyID, userID, models.RoleOwner); err != nil {
		return "", err
	}

	var code string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		code, err = s.uniqueCode(tx)
		if err != nil {
			return err
		}
		return tx.Model(&models.Study{}).Where("id = ?", studyID).Update("code", code).Error
	})
	if err != nil {
		return "", err
	}
	return code, nil
}
