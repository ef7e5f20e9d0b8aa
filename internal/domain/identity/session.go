package identity

import (
	"context"
	"strings"
	"time"

	"github.com/edupredict/student-insight/internal/domain/shared"
	"github.com/edupredict/student-insight/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE
// ══════════════════════════════════════════════════════════════════════════════

// Profile is the stored user document keyed by the identity provider's user id.
type Profile struct {
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Role        RoleName  `json:"role"`
	Institution string    `json:"institution"`
	CreatedAt   time.Time `json:"createdAt"`
	LastLogin   time.Time `json:"lastLogin,omitempty"`
}

// Credential is the stored password hash for a user.
type Credential struct {
	UserID       string
	Email        string
	PasswordHash []byte
}

// ProfileStore reads and writes profiles.
type ProfileStore interface {
	// GetProfile returns the profile for a user id.
	// Returns shared.ErrProfileNotFound if there is none.
	GetProfile(ctx context.Context, userID string) (*Profile, error)

	// GetProfileByEmail looks a profile up by normalized email.
	GetProfileByEmail(ctx context.Context, email string) (*Profile, error)

	// CreateProfile stores a profile together with its credential.
	// Returns shared.ErrEmailTaken if the email is registered.
	CreateProfile(ctx context.Context, profile *Profile, cred Credential) error

	// GetCredential returns the credential stored for an email.
	GetCredential(ctx context.Context, email string) (*Credential, error)

	// TouchLastLogin sets the last login time of a user.
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION
// ══════════════════════════════════════════════════════════════════════════════

// Session is built exactly once per sign-in from a single profile fetch. The
// role never changes for the lifetime of a session.
type Session struct {
	ID          string
	UserID      string
	Email       string
	Name        string
	Role        Role
	Institution string
	StartedAt   time.Time
	ExpiresAt   time.Time
}

// NewSession builds a session from a profile. Every field is required; a
// profile missing its name, email or role is rejected instead of defaulted.
// An empty institution becomes "Unknown".
func NewSession(id string, p *Profile, startedAt time.Time, ttl time.Duration) (*Session, error) {
	if p == nil || p.UserID == "" || p.Email == "" || strings.TrimSpace(p.Name) == "" {
		return nil, shared.ErrIncompleteProfile
	}

	role, err := ParseRole(string(p.Role))
	if err != nil {
		return nil, err
	}

	institution := p.Institution
	if institution == "" {
		institution = "Unknown"
	}

	return &Session{
		ID:          id,
		UserID:      p.UserID,
		Email:       NormalizeEmail(p.Email),
		Name:        strings.TrimSpace(p.Name),
		Role:        role,
		Institution: institution,
		StartedAt:   startedAt,
		ExpiresAt:   startedAt.Add(ttl),
	}, nil
}

// FirstName returns the first word of the user's name.
func (s *Session) FirstName() string {
	return student.FirstName(s.Name)
}

// Expired reports whether the session is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// IsStudent reports whether the session belongs to a student.
func (s *Session) IsStudent() bool {
	_, ok := s.Role.(Student)
	return ok
}

// Require returns shared.ErrRoleNotPermitted unless the role passes allow.
func (s *Session) Require(allow func(Role) bool) error {
	if s == nil {
		return shared.ErrSessionExpired
	}
	if !allow(s.Role) {
		return shared.ErrRoleNotPermitted
	}
	return nil
}

// FindOwnRecord returns the roster record matching this session's identity,
// or nil if none matches.
func (s *Session) FindOwnRecord(roster []student.Record) *student.Record {
	for i := range roster {
		if roster[i].MatchesIdentity(s.Email, s.Name) {
			return &roster[i]
		}
	}
	return nil
}

// SessionStore keeps live sessions so they can be revoked before expiry.
type SessionStore interface {
	Save(ctx context.Context, s *Session) error
	Load(ctx context.Context, id string) (*Session, error)
	Revoke(ctx context.Context, id string) error
}
