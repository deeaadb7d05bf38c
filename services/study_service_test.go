package services

import (
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moim/models"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

func TestCreateStudy(t *testing.T) {
	db := newTestDB(t)
	owner := newUser(t, db, "owner")
	svc := NewStudyService(db, discardLogger())

	study, err := svc.CreateStudy(owner.ID, CreateStudyInput{
		Name:        "Morning Algorithms",
		Description: "daily problem solving",
		MaxMembers:  4,
	})
	require.NoError(t, err)
	assert.Regexp(t, codePattern, study.Code)
	assert.Equal(t, owner.ID, study.OwnerID)
	assert.True(t, study.IsActive)

	// The owner membership row must exist in the same moment
	var member models.StudyMember
	require.NoError(t, db.Where("study_id = ? AND user_id = ?", study.ID, owner.ID).First(&member).Error)
	assert.Equal(t, models.RoleOwner, member.Role)
	assert.True(t, member.IsActive)
}

func TestCreateStudyUnauthenticated(t *testing.T) {
	db := newTestDB(t)
	svc := NewStudyService(db, discardLogger())

	_, err := svc.CreateStudy(0, CreateStudyInput{Name: "ghost"})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestCreateStudyCodeCollision(t *testing.T) {
	db := newTestDB(t)
	owner := newUser(t, db, "owner")
	svc := NewStudyService(db, discardLogger())

	first, err := svc.CreateStudy(owner.ID, CreateStudyInput{Name: "first"})
	require.NoError(t, err)

	// A generator that always collides must exhaust its retries
	svc.generateCode = func() (string, error) { return first.Code, nil }
	_, err = svc.CreateStudy(owner.ID, CreateStudyInput{Name: "second"})
	assert.ErrorIs(t, err, ErrCodeGenerationExhausted)
}

func TestJoinStudy(t *testing.T) {
	db := newTestDB(t)
	owner := newUser(t, db, "owner")
	joiner := newUser(t, db, "joiner")
	study := newStudy(t, db, owner.ID, "study")
	svc := NewStudyService(db, discardLogger())

	joined, err := svc.JoinStudy(joiner.ID, study.Code)
	require.NoError(t, err)
	assert.Equal(t, study.ID, joined.ID)

	// Joining twice is a conflict
	_, err = svc.JoinStudy(joiner.ID, study.Code)
	assert.ErrorIs(t, err, ErrAlreadyMember)
}

func TestJoinStudyInvalidCode(t *testing.T) {
	db := newTestDB(t)
	joiner := newUser(t, db, "joiner")
	svc := NewStudyService(db, discardLogger())

	_, err := svc.JoinStudy(joiner.ID, "ZZZZZZ")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestJoinStudyFull(t *testing.T) {
	db := newTestDB(t)
	owner := newUser(t, db, "owner")
	svc := NewStudyService(db, discardLogger())

	study, err := svc.CreateStudy(owner.ID, CreateStudyInput{Name: "tiny", MaxMembers: 2})
	require.NoError(t, err)

	second := newUser(t, db, "second")
	_, err = svc.JoinStudy(second.ID, study.Code)
	require.NoError(t, err)

	third := newUser(t, db, "third")
	_, err = svc.JoinStudy(third.ID, study.Code)
	assert.ErrorIs(t, err, ErrStudyFull)
}

func TestRejoinReactivatesMembership(t *testing.T) {
	db := newTestDB(t)
	owner := newUser(t, db, "owner")
	member := newUser(t, db, "member")
	study := newStudy(t, db, owner.ID, "study")
	svc := NewStudyService(db, discardLogger())

	_, err := svc.JoinStudy(member.ID, study.Code)
	require.NoError(t, err)
	require.NoError(t, svc.LeaveStudy(member.ID, study.ID))

	_, err = svc.JoinStudy(member.ID, study.Code)
	require.NoError(t, err)

	// One row per (study, user), reactivated rather than duplicated
	var count int64
	require.NoError(t, db.Model(&models.StudyMember{}).
		Where("study_id = ? AND user_id = ?", study.ID, member.ID).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestLeaveStudyOwner(t *testing.T) {
	db := newTestDB(t)
	owner := newUser(t, db, "owner")
	study := newStudy(t, db, owner.ID, "study")
	svc := NewStudyService(db, discardLogger())

	err := svc.LeaveStudy(owner.ID, study.ID)
	assert.ErrorIs(t, err, ErrOwnerCannotLeave)
}

func TestLeaveStudyNonMember(t *testing.T) {
	db := newTestDB(t)
	owner := newUser(t, db, "owner")
	stranger := newUser(t, db, "stranger")
	study := newStudy(t, db, owner.ID, "study")
	svc := NewStudyService(db, discardLogger())

	err := svc.LeaveStudy(stranger.ID, study.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestMyStudies(t *testing.T) {
	db := newTestDB(t)
	owner := newUser(t, db, "owner")
	member := newUser(t, db, "member")
	first := newStudy(t, db, owner.ID, "first")
	newStudy(t, db, owner.ID, "second")
	svc := NewStudyService(db, discardLogger())

	joinStudy(t, db, member.ID, first.Code)

	mine, err := svc.MyStudies(member.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, first.ID, mine[0].ID)
	assert.Equal(t, models.RoleMember, mine[0].MyRole)
	assert.Equal(t, 2, mine[0].MemberCount)
}

func TestUpdateStudyOwnerOnly(t *testing.T) {
	db := newTestDB(t)
	owner := newUser(t, db, "owner")
	member := newUser(t, db, "member")
	study := newStudy(t, db, owner.ID, "study")
	svc := NewStudyService(db, discardLogger())
	joinStudy(t, db, member.ID, study.Code)

	name := "renamed"
	_, err := svc.UpdateStudy(member.ID, study.ID, UpdateStudyInput{Name: &name})
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := svc.UpdateStudy(owner.ID, study.ID, UpdateStudyInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
}

func TestDeleteStudyHidesIt(t *testing.T) {
	db := newTestDB(t)
	owner := newUser(t, db, "owner")
	study := newStudy(t, db, owner.ID, "study")
	svc := NewStudyService(db, discardLogger())

	require.NoError(t, svc.DeleteStudy(owner.ID, study.ID))

	_, err := svc.StudyByID(owner.ID, study.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// The join code dies with the study
	joiner := newUser(t, db, "late")
	_, err = svc.JoinStudy(joiner.ID, study.Code)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestRegenerateCode(t *testing.T) {
	db := newTestDB(t)
	owner := newUser(t, db, "owner")
	member := newUser(t, db, "member")
	study := newStudy(t, db, owner.ID, "study")
	svc := NewStudyService(db, discardLogger())
	joinStudy(t, db, member.ID, study.Code)

	_, err := svc.RegenerateCode(member.ID, study.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	code, err := svc.RegenerateCode(owner.ID, study.ID)
	require.NoError(t, err)
	assert.Regexp(t, codePattern, code)
	assert.NotEqual(t, study.Code, code)

	// The old code stops working immediately
	late := newUser(t, db, "late")
	_, err = svc.JoinStudy(late.ID, study.Code)
	assert.True(t, errors.Is(err, ErrInvalidCode))

	_, err = svc.JoinStudy(late.ID, code)
	require.NoError(t, err)
}
