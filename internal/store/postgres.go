package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"waypoint/api/internal/util"
)

var ErrNotFound = errors.New("not found")

// --- users ---

func (s *Store) CreateUser(ctx context.Context, email, name, passwordHash, role string) (*User, error) {
	u := &User{
		ID:           util.NewID("usr"),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		Role:         role,
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.Role,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, role, email_verified, created_at, updated_at
		FROM users WHERE email = $1`, email))
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, role, email_verified, created_at, updated_at
		FROM users WHERE id = $1`, id))
}

func (s *Store) scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role,
		&u.EmailVerified, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`,
		userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET verification_token = $2, verification_expires_at = $3, updated_at = now()
		WHERE id = $1`, userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("set verification token: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// VerifyEmailToken marks the account verified and consumes the token. An
// unknown or expired token reads as ErrNotFound.
func (s *Store) VerifyEmailToken(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET email_verified = TRUE, verification_token = NULL,
		    verification_expires_at = NULL, updated_at = now()
		WHERE verification_token = $1 AND verification_expires_at > now()`, token)
	if err != nil {
		return fmt.Errorf("verify email token: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// --- password resets ---

func (s *Store) CreatePasswordReset(ctx context.Context, token, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token, user_id, expires_at) VALUES ($1, $2, $3)`,
		token, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

func (s *Store) GetPasswordReset(ctx context.Context, token string) (*PasswordReset, error) {
	var r PasswordReset
	err := s.db.QueryRowContext(ctx, `
		SELECT token, user_id, expires_at, used_at FROM password_resets WHERE token = $1`,
		token,
	).Scan(&r.Token, &r.UserID, &r.ExpiresAt, &r.UsedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get password reset: %w", err)
	}
	return &r, nil
}

func (s *Store) MarkPasswordResetUsed(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE password_resets SET used_at = now() WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("mark password reset used: %w", err)
	}
	return nil
}

// --- refresh sessions ---

func (s *Store) CreateRefreshSession(ctx context.Context, token, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token, user_id, expires_at) VALUES ($1, $2, $3)`,
		token, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("create refresh session: %w", err)
	}
	return nil
}

func (s *Store) GetRefreshSession(ctx context.Context, token string) (*RefreshSession, error) {
	var r RefreshSession
	err := s.db.QueryRowContext(ctx, `
		SELECT token, user_id, expires_at, created_at FROM refresh_sessions WHERE token = $1`,
		token,
	).Scan(&r.Token, &r.UserID, &r.ExpiresAt, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get refresh session: %w", err)
	}
	return &r, nil
}

func (s *Store) DeleteRefreshSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM refresh_sessions WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("delete refresh session: %w", err)
	}
	return nil
}

func (s *Store) DeleteUserSessions(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM refresh_sessions WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}
