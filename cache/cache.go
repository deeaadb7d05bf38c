package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// QueryTTL bounds cached query results. Mutations delete the affected keys
// eagerly; the TTL only cleans up after missed invalidations.
const QueryTTL = 60 * time.Second

// Store is the minimal cache surface the app needs. Redis backs it in
// production; Memory backs it in tests and single-node deployments.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
	Flush(ctx context.Context) error
}

// Key builders. Every cached value lives under one of these namespaces so
// invalidation can target exactly the affected slice.

func SessionKey(sessionID string) string {
	return "session:" + sessionID
}

func UserStudiesKey(userID uint) string {
	return fmt.Sprintf("user-studies:%d", userID)
}

func TodayAttendanceKey(studyID uint) string {
	return fmt.Sprintf("today-attendance:%d", studyID)
}

func DailyCommentsKey(studyID uint, date string) string {
	return fmt.Sprintf("daily-comments:%d:%s", studyID, date)
}

func AnnouncementsKey(studyID uint) string {
	return fmt.Sprintf("announcements:%d", studyID)
}

func StudyStatsKey(studyID uint) string {
	return fmt.Sprintf("study-stats:%d", studyID)
}

// GetJSON loads and unmarshals a cached value into out.
func GetJSON(ctx context.Context, store Store, key string, out interface{}) error {
	data, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// SetJSON marshals value and stores it under key.
func SetJSON(ctx context.Context, store Store, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, data, ttl)
}
