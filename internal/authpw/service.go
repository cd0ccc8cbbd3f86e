// Package authpw handles password credentials: signup, signin, and resets.
package authpw

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"waypoint/api/internal/store"
	"waypoint/api/internal/util"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrResetInvalid       = errors.New("reset token invalid or expired")
	ErrVerifyInvalid      = errors.New("verification token invalid or expired")
)

// UserStore is the slice of the persistence layer this package needs.
type UserStore interface {
	CreateUser(ctx context.Context, email, name, passwordHash, role string) (*store.User, error)
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)
	UpdateUserPassword(ctx context.Context, userID, passwordHash string) error
	CreatePasswordReset(ctx context.Context, token, userID string, expiresAt time.Time) error
	GetPasswordReset(ctx context.Context, token string) (*store.PasswordReset, error)
	MarkPasswordResetUsed(ctx context.Context, token string) error
	SetVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error
	VerifyEmailToken(ctx context.Context, token string) error
}

type Service struct {
	users UserStore
}

func New(users UserStore) *Service {
	return &Service{users: users}
}

func (s *Service) Signup(ctx context.Context, email, name, password string) (*store.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email", ErrInvalidCredentials)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password too short", ErrInvalidCredentials)
	}
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return s.users.CreateUser(ctx, email, name, string(hash), "member")
}

func (s *Service) Signin(ctx context.Context, email, password string) (*store.User, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// StartVerification issues a fresh 24h verification token for the account.
// Re-issuing replaces any previous token.
func (s *Service) StartVerification(ctx context.Context, userID string) (string, error) {
	token := util.NewID("vrf")
	if err := s.users.SetVerificationToken(ctx, userID, token, time.Now().Add(24*time.Hour)); err != nil {
		return "", err
	}
	return token, nil
}

func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return ErrVerifyInvalid
	}
	err := s.users.VerifyEmailToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return ErrVerifyInvalid
	}
	return err
}

// StartReset issues a reset token for the address. An unknown address
// returns an empty token and no error so callers cannot probe accounts.
func (s *Service) StartReset(ctx context.Context, email string) (string, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	token := util.NewID("rst")
	if err := s.users.CreatePasswordReset(ctx, token, user.ID, time.Now().Add(time.Hour)); err != nil {
		return "", err
	}
	return token, nil
}

func (s *Service) CompleteReset(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < 8 {
		return fmt.Errorf("%w: password too short", ErrInvalidCredentials)
	}
	reset, err := s.users.GetPasswordReset(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return ErrResetInvalid
	}
	if err != nil {
		return err
	}
	if reset.UsedAt != nil || time.Now().After(reset.ExpiresAt) {
		return ErrResetInvalid
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdateUserPassword(ctx, reset.UserID, string(hash)); err != nil {
		return err
	}
	return s.users.MarkPasswordResetUsed(ctx, token)
}
