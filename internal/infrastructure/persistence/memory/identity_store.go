package memory

import (
	"context"
	"sync"
	"time"

	"github.com/edupredict/student-insight/internal/domain/identity"
	"github.com/edupredict/student-insight/internal/domain/shared"
)

// ProfileStore keeps profiles and credentials in memory.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]*identity.Profile    // by user id
	creds    map[string]*identity.Credential // by normalized email
}

// NewProfileStore creates an empty profile store.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		profiles: make(map[string]*identity.Profile),
		creds:    make(map[string]*identity.Credential),
	}
}

// GetProfile implements identity.ProfileStore.
func (s *ProfileStore) GetProfile(_ context.Context, userID string) (*identity.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, shared.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

// GetProfileByEmail implements identity.ProfileStore.
func (s *ProfileStore) GetProfileByEmail(ctx context.Context, email string) (*identity.Profile, error) {
	s.mu.RLock()
	cred, ok := s.creds[identity.NormalizeEmail(email)]
	s.mu.RUnlock()
	if !ok {
		return nil, shared.ErrProfileNotFound
	}
	return s.GetProfile(ctx, cred.UserID)
}

// CreateProfile implements identity.ProfileStore.
func (s *ProfileStore) CreateProfile(_ context.Context, profile *identity.Profile, cred identity.Credential) error {
	email := identity.NormalizeEmail(profile.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.creds[email]; taken {
		return shared.ErrEmailTaken
	}

	p := *profile
	p.Email = email
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	s.profiles[p.UserID] = &p

	c := cred
	c.Email = email
	c.UserID = p.UserID
	s.creds[email] = &c
	return nil
}

// GetCredential implements identity.ProfileStore.
func (s *ProfileStore) GetCredential(_ context.Context, email string) (*identity.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.creds[identity.NormalizeEmail(email)]
	if !ok {
		return nil, shared.ErrProfileNotFound
	}
	cp := *c
	return &cp, nil
}

// TouchLastLogin implements identity.ProfileStore.
func (s *ProfileStore) TouchLastLogin(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return shared.ErrProfileNotFound
	}
	p.LastLogin = at
	return nil
}

// SessionStore keeps live sessions in memory.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*identity.Session
	now      func() time.Time
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*identity.Session),
		now:      time.Now,
	}
}

// Save implements identity.SessionStore.
func (s *SessionStore) Save(_ context.Context, sess *identity.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

// Load implements identity.SessionStore. Expired sessions are dropped.
func (s *SessionStore) Load(_ context.Context, id string) (*identity.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, shared.ErrSessionExpired
	}
	if sess.Expired(s.now()) {
		delete(s.sessions, id)
		return nil, shared.ErrSessionExpired
	}
	cp := *sess
	return &cp, nil
}

// Revoke implements identity.SessionStore.
func (s *SessionStore) Revoke(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// PurgeExpired drops every expired session and returns how many went.
func (s *SessionStore) PurgeExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	purged := 0
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, id)
			purged++
		}
	}
	return purged, nil
}

// Len returns the number of stored sessions, expired ones included.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
