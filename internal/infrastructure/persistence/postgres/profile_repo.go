package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edupredict/student-insight/internal/domain/identity"
	"github.com/edupredict/student-insight/internal/domain/shared"
)

// ProfileRepository implements identity.ProfileStore on the users table.
type ProfileRepository struct {
	conn *Connection
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(conn *Connection) *ProfileRepository {
	return &ProfileRepository{conn: conn}
}

const profileColumns = `id, name, email, role, institution, created_at, last_login`

// GetProfile implements identity.ProfileStore.
func (r *ProfileRepository) GetProfile(ctx context.Context, userID string) (*identity.Profile, error) {
	row := r.conn.QueryRow(ctx, "SELECT "+profileColumns+" FROM users WHERE id = $1", userID)
	return r.scan(row)
}

// GetProfileByEmail implements identity.ProfileStore.
func (r *ProfileRepository) GetProfileByEmail(ctx context.Context, email string) (*identity.Profile, error) {
	row := r.conn.QueryRow(ctx, "SELECT "+profileColumns+" FROM users WHERE email = $1", identity.NormalizeEmail(email))
	return r.scan(row)
}

// CreateProfile implements identity.ProfileStore.
func (r *ProfileRepository) CreateProfile(ctx context.Context, p *identity.Profile, cred identity.Credential) error {
	query := `
		INSERT INTO users (id, name, email, role, institution, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.conn.Exec(ctx, query,
		p.UserID,
		p.Name,
		identity.NormalizeEmail(p.Email),
		string(p.Role),
		p.Institution,
		cred.PasswordHash,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrEmailTaken
		}
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// GetCredential implements identity.ProfileStore.
func (r *ProfileRepository) GetCredential(ctx context.Context, email string) (*identity.Credential, error) {
	var cred identity.Credential
	err := r.conn.QueryRow(ctx,
		"SELECT id, email, password_hash FROM users WHERE email = $1",
		identity.NormalizeEmail(email),
	).Scan(&cred.UserID, &cred.Email, &cred.PasswordHash)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProfileNotFound
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return &cred, nil
}

// TouchLastLogin implements identity.ProfileStore.
func (r *ProfileRepository) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	tag, err := r.conn.Exec(ctx, "UPDATE users SET last_login = $1 WHERE id = $2", at, userID)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrProfileNotFound
	}
	return nil
}

func (r *ProfileRepository) scan(row pgx.Row) (*identity.Profile, error) {
	var (
		p         identity.Profile
		role      string
		lastLogin *time.Time
	)

	err := row.Scan(&p.UserID, &p.Name, &p.Email, &role, &p.Institution, &p.CreatedAt, &lastLogin)
	if err != nil {
		if IsNoRows(err) || IsInvalidText(err) {
			return nil, shared.ErrProfileNotFound
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}

	p.Role = identity.RoleName(role)
	if lastLogin != nil {
		p.LastLogin = *lastLogin
	}
	return &p, nil
}
