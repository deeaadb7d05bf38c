package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moim/feed"
	"moim/models"
	"moim/utils"
)

func TestAddCommentRequiresCheckIn(t *testing.T) {
	db := newTestDB(t)
	owner := newUser(t, db, "owner")
	study := newStudy(t, db, owner.ID, "study")
	svc := NewCommunityService(db, feed.NopFeed{}, discardLogger())

	_, err := svc.AddComment(context.Background(), owner.ID, study.ID, utils.TodayString(), "hello")
	assert.ErrorIs(t, err, ErrAttendanceRequired)

	attendance := NewAttendanceService(db, feed.NopFeed{}, discardLogger())
	_, err = attendance.CheckIn(context.Background(), owner.ID, study.ID, "")
	require.NoError(t, err)

	comment, err := svc.AddComment(context.Background(), owner.ID, study.ID, utils.TodayString(), "hello")
	require.NoError(t, err)
	assert.Equal(t, utils.TodayString(), comment.Date)
	assert.Equal(t, "hello", comment.Content)
}

func TestAddCommentNonMember(t *testing.T) {
	db := newTestDB(t)
	owner := newUser(t, db, "owner")
	stranger := newUser(t, db, "stranger")
	study := newStudy(t, db, owner.ID, "study")
	svc := NewCommunityService(db, feed.NopFeed{}, discardLogger())

	_, err := svc.AddComment(context.Background(), stranger.ID, study.ID, utils.TodayString(), "hi")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDailyComments(t *testing.T) {
	db := newTestDB(t)
	owner := newUser(t, db, "owner")
	member := newUser(t, db, "member")
	study := newStudy(t, db, owner.ID, "study")
	joinStudy(t, db, member.ID, study.Code)

	attendance := NewAttendanceService(db, feed.NopFeed{}, discardLogger())
	svc := NewCommunityService(db, feed.NopFeed{}, discardLogger())

	_, err := attendance.CheckIn(context.Background(), owner.ID, study.ID, "")
	require.NoError(t, err)
	_, err = svc.AddComment(context.Background(), owner.ID, study.ID, utils.TodayString(), "first")
	require.NoError(t, err)
	_, err = svc.AddComment(context.Background(), owner.ID, study.ID, utils.TodayString(), "second")
	require.NoError(t, err)

	today := utils.TodayString()

	// The author sees edit rights on their own comments and can post again
	thread, err := svc.DailyComments(owner.ID, study.ID, today)
	require.NoError(t, err)
	require.Equal(t, 2, thread.TotalCount)
	assert.Equal(t, "first", thread.Comments[0].Content)
	assert.True(t, thread.Comments[0].CanEdit)
	assert.True(t, thread.CanComment)

	// A member who has not checked in reads but cannot write
	thread, err = svc.DailyComments(member.ID, study.ID, today)
	require.NoError(t, err)
	assert.False(t, thread.CanComment)
	assert.False(t, thread.Comments[0].CanEdit)

	// A day without a check-in stays read-only
	thread, err = svc.DailyComments(owner.ID, study.ID, utils.AddDays(today, -1))
	require.NoError(t, err)
	assert.Empty(t, thread.Comments)
	assert.False(t, thread.CanComment)
}

func TestCommentOnPastDay(t *testing.T) {
	db := newTestDB(t)
	owner := newUser(t, db, "owner")
	study := newStudy(t, db, owner.ID, "study")
	svc := NewCommunityService(db, feed.NopFeed{}, discardLogger())

	yesterday := utils.AddDays(utils.TodayString(), -1)
	require.NoError(t, db.Create(&models.Attendance{
		StudyID:   study.ID,
		UserID:    owner.ID,
		Date:      yesterday,
		IsPresent: true,
	}).Error)

	// The attendance gate follows the requested day, not today
	comment, err := svc.AddComment(context.Background(), owner.ID, study.ID, yesterday, "late note")
	require.NoError(t, err)
	assert.Equal(t, yesterday, comment.Date)

	thread, err := svc.DailyComments(owner.ID, study.ID, yesterday)
	require.NoError(t, err)
	require.Equal(t, 1, thread.TotalCount)
	assert.True(t, thread.CanComment)

	// No check-in on the day before that, so writing there is refused
	dayBefore := utils.AddDays(yesterday, -1)
	_, err = svc.AddComment(context.Background(), owner.ID, study.ID, dayBefore, "too far back")
	assert.ErrorIs(t, err, ErrAttendanceRequired)

	_, err = svc.AddComment(context.Background(), owner.ID, study.ID, "not-a-date", "bad")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateCommentOwnership(t *testing.T) {
	db := newTestDB(t)
	owner := newUser(t, db, "owner")
	member := newUser(t, db, "member")
	study := newStudy(t, db, owner.ID, "study")
	joinStudy(t, db, member.ID, study.Code)

	attendance := NewAttendanceService(db, feed.NopFeed{}, discardLogger())
	svc := NewCommunityService(db, feed.NopFeed{}, discardLogger())

	_, err := attendance.CheckIn(context.Background(), owner.ID, study.ID, "")
	require.NoError(t, err)
	comment, err := svc.AddComment(context.Background(), owner.ID, study.ID, utils.TodayString(), "mine")
	require.NoError(t, err)

	// Editing someone else's comment matches zero rows
	err = svc.UpdateComment(member.ID, study.ID, comment.ID, "hijacked")
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, svc.UpdateComment(owner.ID, study.ID, comment.ID, "edited"))

	thread, err := svc.DailyComments(owner.ID, study.ID, utils.TodayString())
	require.NoError(t, err)
	assert.Equal(t, "edited", thread.Comments[0].Content)
}

func TestDeleteCommentOwnership(t *testing.T) {
	db := newTestDB(t)
	owner := newUser(t, db, "owner")
	member := newUser(t, db, "member")
	study := newStudy(t, db, owner.ID, "study")
	joinStudy(t, db, member.ID, study.Code)

	attendance := NewAttendanceService(db, feed.NopFeed{}, discardLogger())
	svc := NewCommunityService(db, feed.NopFeed{}, discardLogger())

	_, err := attendance.CheckIn(context.Background(), owner.ID, study.ID, "")
	require.NoError(t, err)
	comment, err := svc.AddComment(context.Background(), owner.ID, study.ID, utils.TodayString(), "mine")
	require.NoError(t, err)

	err = svc.DeleteComment(context.Background(), member.ID, study.ID, comment.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, svc.DeleteComment(context.Background(), owner.ID, study.ID, comment.ID))

	thread, err := svc.DailyComments(owner.ID, study.ID, utils.TodayString())
	require.NoError(t, err)
	assert.Empty(t, thread.Comments)
}

func TestAnnouncementsOwnerOnly(t *testing.T) {
	db := newTestDB(t)
	owner := newUser(t, db, "owner")
	member := newUser(t, db, "member")
	study := newStudy(t, db, owner.ID, "study")
	joinStudy(t, db, member.ID, study.Code)
	svc := NewCommunityService(db, feed.NopFeed{}, discardLogger())

	_, err := svc.CreateAnnouncement(context.Background(), member.ID, study.ID, "nope", "", false)
	assert.ErrorIs(t, err, ErrForbidden)

	announcement, err := svc.CreateAnnouncement(context.Background(), owner.ID, study.ID, "welcome", "rules inside", false)
	require.NoError(t, err)

	err = svc.UpdateAnnouncement(member.ID, study.ID, announcement.ID, "hijack", "")
	assert.ErrorIs(t, err, ErrForbidden)
	err = svc.SetAnnouncementPin(context.Background(), member.ID, study.ID, announcement.ID, true)
	assert.ErrorIs(t, err, ErrForbidden)
	err = svc.DeleteAnnouncement(member.ID, study.ID, announcement.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	// Members can still read, with no edit rights surfaced
	list, err := svc.Announcements(member.ID, study.ID)
	require.NoError(t, err)
	require.Equal(t, 1, list.TotalCount)
	assert.False(t, list.Announcements[0].CanEdit)

	list, err = svc.Announcements(owner.ID, study.ID)
	require.NoError(t, err)
	assert.True(t, list.Announcements[0].CanEdit)
}

func TestAnnouncementsPinnedFirst(t *testing.T) {
	db := newTestDB(t)
	owner := newUser(t, db, "owner")
	study := newStudy(t, db, owner.ID, "study")
	svc := NewCommunityService(db, feed.NopFeed{}, discardLogger())

	older, err := svc.CreateAnnouncement(context.Background(), owner.ID, study.ID, "older", "", false)
	require.NoError(t, err)
	_, err = svc.CreateAnnouncement(context.Background(), owner.ID, study.ID, "newer", "", false)
	require.NoError(t, err)

	require.NoError(t, svc.SetAnnouncementPin(context.Background(), owner.ID, study.ID, older.ID, true))

	list, err := svc.Announcements(owner.ID, study.ID)
	require.NoError(t, err)
	require.Equal(t, 2, list.TotalCount)
	assert.Equal(t, 1, list.PinnedCount)
	// Pinned floats above the fresher notice
	assert.Equal(t, "older", list.Announcements[0].Title)
	assert.True(t, list.Announcements[0].IsPinned)
	assert.Equal(t, "newer", list.Announcements[1].Title)

	// Unpinning restores newest-first ordering
	require.NoError(t, svc.SetAnnouncementPin(context.Background(), owner.ID, study.ID, older.ID, false))
	list, err = svc.Announcements(owner.ID, study.ID)
	require.NoError(t, err)
	assert.Equal(t, "newer", list.Announcements[0].Title)
	assert.Equal(t, 0, list.PinnedCount)
}

func TestAnnouncementMissing(t *testing.T) {
	db := newTestDB(t)
	owner := newUser(t, db, "owner")
	study := newStudy(t, db, owner.ID, "study")
	svc := NewCommunityService(db, feed.NopFeed{}, discardLogger())

	err := svc.UpdateAnnouncement(owner.ID, study.ID, 999, "ghost", "")
	assert.ErrorIs(t, err, ErrNotFound)
	err = svc.DeleteAnnouncement(owner.ID, study.ID, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}
