package cache

import (
	"context"
	"time"
)

// SessionTTL bounds how long a cached identity survives without a refresh.
// Shorter than the refresh-token lifetime on purpose: a stale session record
// falls back to the database, it never outlives a revocation for long.
const SessionTTL = 15 * time.Minute

// Session is the cached identity snapshot consulted on every guarded
// request before falling back to the database.
type Session struct {
	SessionID    string `json:"session_id"`
	UserID       uint   `json:"user_id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	TokenVersion int    `json:"token_version"`
}

// Sessions stores and invalidates cached identities.
type Sessions struct {
	store Store
}

func NewSessions(store Store) *Sessions {
	return &Sessions{store: store}
}

func (s *Sessions) Load(ctx context.Context, sessionID string) (*Session, error) {
	var session Session
	if err := GetJSON(ctx, s.store, SessionKey(sessionID), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Sessions) Save(ctx context.Context, session *Session) error {
	return SetJSON(ctx, s.store, SessionKey(session.SessionID), session, SessionTTL)
}

// Clear removes the session and every identity-scoped cached view. Runs
// synchronously on sign-out so a following request as a different user can
// never read the previous user's data.
func (s *Sessions) Clear(ctx context.Context, sessionID string, userID uint) error {
	return s.store.Delete(ctx, SessionKey(sessionID), UserStudiesKey(userID))
}

// ClearUser removes every session-independent cached view for one user.
// Used when the account itself changes (password change, deactivation).
func (s *Sessions) ClearUser(ctx context.Context, userID uint) error {
	return s.store.Delete(ctx, UserStudiesKey(userID))
}
