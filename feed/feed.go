package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Event kinds pushed on a study's change feed.
const (
	EventCheckIn          = "check_in"
	EventCommentAdded     = "comment_added"
	EventCommentDeleted   = "comment_deleted"
	EventAnnouncement     = "announcement"
	EventAnnouncementPin  = "announcement_pin"
	EventMemberJoined     = "member_joined"
	EventMemberLeft       = "member_left"
)

// Event is one change-feed entry delivered to study subscribers.
type Event struct {
	Type    string      `json:"type"`
	StudyID uint        `json:"study_id"`
	UserID  uint        `json:"user_id,omitempty"`
	Date    string      `json:"date,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
	At      time.Time   `json:"at"`
}

// Publisher fans events out to everyone watching a study.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Topic returns the pub/sub channel name for a study.
func Topic(studyID uint) string {
	return fmt.Sprintf("study:%d", studyID)
}

// RedisFeed publishes study events on redis pub/sub so every server
// instance can relay them to its own websocket clients.
type RedisFeed struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewRedisFeed(client *redis.Client, logger *logrus.Logger) *RedisFeed {
	return &RedisFeed{client: client, logger: logger}
}

func (f *RedisFeed) Publish(ctx context.Context, event Event) error {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal feed event: %w", err)
	}
	if err := f.client.Publish(ctx, Topic(event.StudyID), data).Err(); err != nil {
		f.logger.WithError(err).WithField("study_id", event.StudyID).Warn("Failed to publish feed event")
		return err
	}
	return nil
}

// Subscribe opens a subscription for one study. Callers must call the
// returned cancel function when the consumer goes away.
func (f *RedisFeed) Subscribe(ctx context.Context, studyID uint) (<-chan Event, func()) {
	sub := f.client.Subscribe(ctx, Topic(studyID))
	out := make(chan Event, 16)

	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				f.logger.WithError(err).Warn("Dropping malformed feed event")
				continue
			}
			select {
			case out <- event:
			default:
				// Slow consumer, drop rather than block the pump
			}
		}
	}()

	return out, func() { _ = sub.Close() }
}

// NopFeed discards events. Used in tests and when redis is not configured.
type NopFeed struct{}

func (NopFeed) Publish(context.Context, Event) error { return nil }
