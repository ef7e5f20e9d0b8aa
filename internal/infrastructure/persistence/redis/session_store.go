package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/edupredict/student-insight/internal/domain/identity"
	"github.com/edupredict/student-insight/internal/domain/shared"
)

// SessionStore implements identity.SessionStore. Each session lives under its
// own key and expires together with the session.
type SessionStore struct {
	cache *Cache
	now   func() time.Time
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(cache *Cache) *SessionStore {
	return &SessionStore{cache: cache, now: time.Now}
}

// sessionRecord is the stored form; the role is kept by name.
type sessionRecord struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	Email       string            `json:"email"`
	Name        string            `json:"name"`
	Role        identity.RoleName `json:"role"`
	Institution string            `json:"institution"`
	StartedAt   time.Time         `json:"started_at"`
	ExpiresAt   time.Time         `json:"expires_at"`
}

// Save implements identity.SessionStore.
func (s *SessionStore) Save(ctx context.Context, sess *identity.Session) error {
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return shared.ErrSessionExpired
	}

	rec := sessionRecord{
		ID:          sess.ID,
		UserID:      sess.UserID,
		Email:       sess.Email,
		Name:        sess.Name,
		Role:        sess.Role.Name(),
		Institution: sess.Institution,
		StartedAt:   sess.StartedAt,
		ExpiresAt:   sess.ExpiresAt,
	}
	if err := s.cache.Set(ctx, SessionKey(sess.ID), rec, ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Load implements identity.SessionStore.
func (s *SessionStore) Load(ctx context.Context, id string) (*identity.Session, error) {
	var rec sessionRecord
	if err := s.cache.Get(ctx, SessionKey(id), &rec); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, shared.ErrSessionExpired
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	role, err := identity.ParseRole(string(rec.Role))
	if err != nil {
		return nil, err
	}

	sess := &identity.Session{
		ID:          rec.ID,
		UserID:      rec.UserID,
		Email:       rec.Email,
		Name:        rec.Name,
		Role:        role,
		Institution: rec.Institution,
		StartedAt:   rec.StartedAt,
		ExpiresAt:   rec.ExpiresAt,
	}
	if sess.Expired(s.now()) {
		return nil, shared.ErrSessionExpired
	}
	return sess, nil
}

// Revoke implements identity.SessionStore. Revoking an unknown session is not an error.
func (s *SessionStore) Revoke(ctx context.Context, id string) error {
	if _, err := s.cache.Delete(ctx, SessionKey(id)); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}
