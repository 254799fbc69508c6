// ABOUTME: Store methods for users and refresh tokens.
// ABOUTME: Backs registration, login, and the refresh-token rotation flow.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/delegator-ch/delegator/internal/access"
)

// User is a full user row. IsStaff bypasses all access checks; IsPremium
// gates organisation creation at the API layer.
type User struct {
	ID           int64
	Email        string
	DisplayName  string
	PasswordHash string
	IsStaff      bool
	IsPremium    bool
	TokenVersion int
	CreatedAt    time.Time
}

const userColumns = "id, email, display_name, password_hash, is_staff, is_premium, token_version, created_at"

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash,
		&u.IsStaff, &u.IsPremium, &u.TokenVersion, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new user row. Returns the created user.
func (s *Store) CreateUser(ctx context.Context, email, displayName, passwordHash string) (*User, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO users (email, display_name, password_hash)
		 VALUES ($1, $2, $3) RETURNING `+userColumns,
		email, displayName, passwordHash)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetUserByEmail returns the user with the given email, or (nil, nil).
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = $1", email))
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// GetUserByID returns the user with the given id, or (nil, nil).
func (s *Store) GetUserByID(ctx context.Context, id int64) (*User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// SetPremium flips the premium flag (external billing precondition for
// creating organisations).
func (s *Store) SetPremium(ctx context.Context, id int64, premium bool) error {
	if _, err := s.pool.Exec(ctx,
		"UPDATE users SET is_premium = $2 WHERE id = $1", id, premium); err != nil {
		return fmt.Errorf("set premium: %w", err)
	}
	return nil
}

// SetStaff flips the staff flag.
func (s *Store) SetStaff(ctx context.Context, id int64, staff bool) error {
	if _, err := s.pool.Exec(ctx,
		"UPDATE users SET is_staff = $2 WHERE id = $1", id, staff); err != nil {
		return fmt.Errorf("set staff: %w", err)
	}
	return nil
}

// IncrementTokenVersion invalidates every outstanding token for the user
// (logout-all). Returns the new version.
func (s *Store) IncrementTokenVersion(ctx context.Context, id int64) (int, error) {
	var version int
	err := s.pool.QueryRow(ctx,
		"UPDATE users SET token_version = token_version + 1 WHERE id = $1 RETURNING token_version",
		id).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("increment token version: %w", err)
	}
	return version, nil
}

// RefreshToken is a persisted refresh-token record, keyed by JTI.
type RefreshToken struct {
	JTI          uuid.UUID
	UserID       int64
	TokenVersion int
	ExpiresAt    time.Time
}

// CreateRefreshToken persists a refresh token's JTI for later rotation.
func (s *Store) CreateRefreshToken(ctx context.Context, jti uuid.UUID, userID int64, tokenVersion int, expiresAt time.Time) error {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO refresh_tokens (jti, user_id, token_version, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		jti, userID, tokenVersion, expiresAt); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// ConsumeRefreshToken deletes the token with the given JTI and returns it.
// (nil, nil) means the token was never issued or was already rotated.
func (s *Store) ConsumeRefreshToken(ctx context.Context, jti uuid.UUID) (*RefreshToken, error) {
	var t RefreshToken
	err := s.pool.QueryRow(ctx,
		`DELETE FROM refresh_tokens WHERE jti = $1
		 RETURNING jti, user_id, token_version, expires_at`,
		jti).Scan(&t.JTI, &t.UserID, &t.TokenVersion, &t.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("consume refresh token: %w", err)
	}
	return &t, nil
}

// PurgeExpiredRefreshTokens deletes refresh tokens past their expiry.
// Returns the number of rows removed.
func (s *Store) PurgeExpiredRefreshTokens(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM refresh_tokens WHERE expires_at < now()")
	if err != nil {
		return 0, fmt.Errorf("purge refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UserByID implements access.Store: the resolver only needs the flags.
func (s *Store) UserByID(ctx context.Context, id int64) (*access.User, error) {
	var u access.User
	err := s.pool.QueryRow(ctx,
		"SELECT id, is_staff, is_premium FROM users WHERE id = $1", id).
		Scan(&u.ID, &u.IsStaff, &u.IsPremium)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user by id: %w", err)
	}
	return &u, nil
}
