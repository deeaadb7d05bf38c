package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetSet(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))
	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestMemoryExpiry(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryDeletePrefix(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, DailyCommentsKey(7, "2026-01-01"), []byte("a"), 0))
	require.NoError(t, store.Set(ctx, DailyCommentsKey(7, "2026-01-02"), []byte("b"), 0))
	require.NoError(t, store.Set(ctx, DailyCommentsKey(8, "2026-01-01"), []byte("c"), 0))

	require.NoError(t, store.DeletePrefix(ctx, DailyCommentsKey(7, "")))

	_, err := store.Get(ctx, DailyCommentsKey(7, "2026-01-01"))
	assert.ErrorIs(t, err, ErrMiss)
	_, err = store.Get(ctx, DailyCommentsKey(7, "2026-01-02"))
	assert.ErrorIs(t, err, ErrMiss)

	// Other studies keep their entries
	got, err := store.Get(ctx, DailyCommentsKey(8, "2026-01-01"))
	require.NoError(t, err)
	assert.Equal(t, []byte("c"), got)
}

func TestMemoryValueIsolation(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	original := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", original, 0))
	original[0] = 'x'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	// Mutating a returned slice must not poison the stored copy
	got[0] = 'y'
	again, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestJSONRoundTrip(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	type payload struct {
		StudyID uint   `json:"study_id"`
		Date    string `json:"date"`
	}

	in := payload{StudyID: 3, Date: "2026-09-01"}
	require.NoError(t, SetJSON(ctx, store, TodayAttendanceKey(3), in, time.Minute))

	var out payload
	require.NoError(t, GetJSON(ctx, store, TodayAttendanceKey(3), &out))
	assert.Equal(t, in, out)
}

func TestSessionsClear(t *testing.T) {
	store := NewMemory()
	sessions := NewSessions(store)
	ctx := context.Background()

	session := &Session{
		SessionID:    "abc-123",
		UserID:       42,
		Email:        "member@example.com",
		Name:         "Member",
		TokenVersion: 1,
	}
	require.NoError(t, sessions.Save(ctx, session))
	require.NoError(t, SetJSON(ctx, store, UserStudiesKey(42), []int{1, 2}, time.Minute))

	loaded, err := sessions.Load(ctx, "abc-123")
	require.NoError(t, err)
	assert.Equal(t, session, loaded)

	// Sign-out clears the session and every identity-scoped view
	require.NoError(t, sessions.Clear(ctx, "abc-123", 42))

	_, err = sessions.Load(ctx, "abc-123")
	assert.ErrorIs(t, err, ErrMiss)
	_, err = store.Get(ctx, UserStudiesKey(42))
	assert.ErrorIs(t, err, ErrMiss)
}
