// Package identity holds the credential and token primitives behind sign-in:
// bcrypt password hashing and HS256 session tokens.
package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	domain "github.com/edupredict/student-insight/internal/domain/identity"
	"github.com/edupredict/student-insight/internal/domain/shared"
)

// minSecretBytes is the shortest accepted HS256 signing secret.
const minSecretBytes = 32

// ══════════════════════════════════════════════════════════════════════════════
// TOKENS
// ══════════════════════════════════════════════════════════════════════════════

// TokenClaims is what a session token proves.
type TokenClaims struct {
	SessionID string
	UserID    string
	Role      domain.RoleName
	ExpiresAt time.Time
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Role domain.RoleName `json:"role"`
}

// TokenIssuer signs and verifies session tokens. The token id is the session
// id, so revoking the stored session invalidates the token.
type TokenIssuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenIssuer creates an HS256 issuer.
func NewTokenIssuer(secret, issuer string) (*TokenIssuer, error) {
	if len(secret) < minSecretBytes {
		return nil, fmt.Errorf("token secret must be at least %d bytes", minSecretBytes)
	}
	return &TokenIssuer{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// Issue signs a token for sess.
func (t *TokenIssuer) Issue(sess *domain.Session) (string, error) {
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			Subject:   sess.UserID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(sess.StartedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
		Role: sess.Role.Name(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of a token and returns its claims.
// Every failure maps to shared.ErrSessionExpired.
func (t *TokenIssuer) Verify(token string) (TokenClaims, error) {
	var parsed sessionClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return TokenClaims{}, mapJWTError(err)
	}
	if parsed.ID == "" || parsed.Subject == "" {
		return TokenClaims{}, shared.ErrSessionExpired
	}

	return TokenClaims{
		SessionID: parsed.ID,
		UserID:    parsed.Subject,
		Role:      parsed.Role,
		ExpiresAt: parsed.ExpiresAt.Time,
	}, nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: token expired", shared.ErrSessionExpired)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: bad signature", shared.ErrSessionExpired)
	}
	return fmt.Errorf("%w: %v", shared.ErrSessionExpired, err)
}
