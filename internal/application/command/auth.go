package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/edupredict/student-insight/internal/domain/identity"
	"github.com/edupredict/student-insight/internal/domain/shared"
	authn "github.com/edupredict/student-insight/internal/infrastructure/identity"
)

// DefaultSessionTTL is how long a session lives without sign-out.
const DefaultSessionTTL = 12 * time.Hour

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(password string) ([]byte, error)
	Compare(hash []byte, password string) error
}

// TokenIssuer signs and verifies session tokens.
type TokenIssuer interface {
	Issue(sess *identity.Session) (string, error)
	Verify(token string) (authn.TokenClaims, error)
}

// AuthResult is returned by sign-in and sign-up.
type AuthResult struct {
	Token   string            `json:"token"`
	Session *identity.Session `json:"-"`
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// SignInCommand authenticates with email and password.
type SignInCommand struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignUpCommand registers a new account.
type SignUpCommand struct {
	Name            string `json:"name" validate:"required,max=120"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
	Role            string `json:"role" validate:"required,oneof=admin teacher student"`
	Institution     string `json:"institution" validate:"max=120"`
}

// Validate validates the command. A confirmation mismatch is reported as
// shared.ErrPasswordMismatch before any field rule.
func (c *SignUpCommand) Validate() error {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = identity.NormalizeEmail(c.Email)
	c.Role = strings.ToLower(strings.TrimSpace(c.Role))
	c.Institution = strings.TrimSpace(c.Institution)

	if c.Password != c.ConfirmPassword {
		return shared.ErrPasswordMismatch
	}
	return validateStruct("sign_up", *c)
}

// ─────────────────────────────────────────────────────────────────────────────
// Handler
// ─────────────────────────────────────────────────────────────────────────────

// AuthConfig holds AuthHandler dependencies.
type AuthConfig struct {
	Profiles  identity.ProfileStore
	Sessions  identity.SessionStore
	Hasher    PasswordHasher
	Tokens    TokenIssuer
	Publisher shared.EventPublisher
	TTL       time.Duration
	Logger    *slog.Logger
}

// AuthHandler signs users in and out and resolves sessions from tokens.
type AuthHandler struct {
	profiles identity.ProfileStore
	sessions identity.SessionStore
	hasher   PasswordHasher
	tokens   TokenIssuer
	ttl      time.Duration
	now      func() time.Time
	events   eventSink
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(cfg AuthConfig) *AuthHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	logger = logger.With("component", "auth")
	return &AuthHandler{
		profiles: cfg.Profiles,
		sessions: cfg.Sessions,
		hasher:   cfg.Hasher,
		tokens:   cfg.Tokens,
		ttl:      ttl,
		now:      time.Now,
		events:   newEventSink(cfg.Publisher, logger),
		logger:   logger,
	}
}

// SignIn checks the password and starts a session. A failed sign-in with a
// built-in demo email and password creates that account and tries again.
func (h *AuthHandler) SignIn(ctx context.Context, cmd SignInCommand) (*AuthResult, error) {
	cmd.Email = identity.NormalizeEmail(cmd.Email)
	if err := validateStruct("sign_in", cmd); err != nil {
		return nil, err
	}

	demo := false
	userID, err := h.checkPassword(ctx, cmd.Email, cmd.Password)
	if err != nil {
		acc, ok := identity.LookupDemoAccount(cmd.Email, cmd.Password)
		if !ok || !isCredentialFailure(err) {
			h.logger.Info("sign-in rejected", "email", cmd.Email, "error", err)
			return nil, err
		}
		if userID, err = h.createDemoAccount(ctx, acc); err != nil {
			return nil, err
		}
		demo = true
	}

	return h.startSession(ctx, userID, shared.EventUserSignedIn, demo)
}

// SignUp creates an account and signs it in.
func (h *AuthHandler) SignUp(ctx context.Context, cmd SignUpCommand) (*AuthResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	hash, err := h.hasher.Hash(cmd.Password)
	if err != nil {
		return nil, fmt.Errorf("sign_up: %w", err)
	}

	profile := &identity.Profile{
		UserID:      uuid.NewString(),
		Name:        cmd.Name,
		Email:       cmd.Email,
		Role:        identity.RoleName(cmd.Role),
		Institution: cmd.Institution,
		CreatedAt:   h.now(),
	}
	cred := identity.Credential{UserID: profile.UserID, Email: cmd.Email, PasswordHash: hash}
	if err := h.profiles.CreateProfile(ctx, profile, cred); err != nil {
		return nil, fmt.Errorf("sign_up: %w", err)
	}

	h.logger.Info("account created", "user_id", profile.UserID, "role", profile.Role)
	return h.startSession(ctx, profile.UserID, shared.EventUserSignedUp, false)
}

// SignOut revokes the session behind token. An invalid token is treated as
// already signed out.
func (h *AuthHandler) SignOut(ctx context.Context, token string) error {
	claims, err := h.tokens.Verify(token)
	if err != nil {
		return nil
	}
	if err := h.sessions.Revoke(ctx, claims.SessionID); err != nil {
		return fmt.Errorf("sign_out: %w", err)
	}

	h.logger.Info("signed out", "user_id", claims.UserID)
	h.events.publish(shared.NewSessionEvent(shared.EventUserSignedOut, claims.UserID, "", string(claims.Role), false))
	return nil
}

// CurrentSession resolves a token to its live session.
func (h *AuthHandler) CurrentSession(ctx context.Context, token string) (*identity.Session, error) {
	if token == "" {
		return nil, shared.ErrSessionExpired
	}
	claims, err := h.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	sess, err := h.sessions.Load(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != claims.UserID || sess.Expired(h.now()) {
		return nil, shared.ErrSessionExpired
	}
	return sess, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Internals
// ─────────────────────────────────────────────────────────────────────────────

func (h *AuthHandler) checkPassword(ctx context.Context, email, password string) (string, error) {
	cred, err := h.profiles.GetCredential(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrProfileNotFound) {
			return "", shared.ErrInvalidCredentials
		}
		return "", fmt.Errorf("sign_in: %w", err)
	}
	if err := h.hasher.Compare(cred.PasswordHash, password); err != nil {
		return "", err
	}
	return cred.UserID, nil
}

func (h *AuthHandler) createDemoAccount(ctx context.Context, acc identity.DemoAccount) (string, error) {
	hash, err := h.hasher.Hash(acc.Password)
	if err != nil {
		return "", fmt.Errorf("sign_in: %w", err)
	}

	profile := acc.Profile(uuid.NewString())
	profile.CreatedAt = h.now()
	cred := identity.Credential{UserID: profile.UserID, Email: acc.Email, PasswordHash: hash}

	if err := h.profiles.CreateProfile(ctx, profile, cred); err != nil {
		if errors.Is(err, shared.ErrEmailTaken) {
			// the demo email exists with another password
			return "", shared.ErrInvalidCredentials
		}
		return "", fmt.Errorf("sign_in: %w", err)
	}

	h.logger.Info("demo account created", "email", acc.Email, "role", acc.Role)
	return profile.UserID, nil
}

// startSession builds the session from a single profile fetch, stores it and
// issues its token.
func (h *AuthHandler) startSession(ctx context.Context, userID string, event shared.EventType, demo bool) (*AuthResult, error) {
	profile, err := h.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	now := h.now()
	sess, err := identity.NewSession(uuid.NewString(), profile, now, h.ttl)
	if err != nil {
		return nil, err
	}

	if err := h.profiles.TouchLastLogin(ctx, userID, now); err != nil {
		h.logger.Warn("failed to update last login", "user_id", userID, "error", err)
	}
	if err := h.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	token, err := h.tokens.Issue(sess)
	if err != nil {
		return nil, err
	}

	h.logger.Info("session started", "user_id", sess.UserID, "role", sess.Role.Name(), "demo", demo)
	h.events.publish(shared.NewSessionEvent(event, sess.UserID, sess.Email, string(sess.Role.Name()), demo))

	return &AuthResult{Token: token, Session: sess}, nil
}

func isCredentialFailure(err error) bool {
	return errors.Is(err, shared.ErrInvalidCredentials)
}
