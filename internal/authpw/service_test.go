package authpw

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"waypoint/api/internal/store"
)

type verifyEntry struct {
	userID    string
	expiresAt time.Time
}

type fakeUsers struct {
	byEmail      map[string]*store.User
	resets       map[string]*store.PasswordReset
	verifyTokens map[string]verifyEntry
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		byEmail:      make(map[string]*store.User),
		resets:       make(map[string]*store.PasswordReset),
		verifyTokens: make(map[string]verifyEntry),
	}
}

func (f *fakeUsers) CreateUser(ctx context.Context, email, name, passwordHash, role string) (*store.User, error) {
	u := &store.User{ID: "usr-" + email, Email: email, Name: name, PasswordHash: passwordHash, Role: role}
	f.byEmail[email] = u
	return u, nil
}

func (f *fakeUsers) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeUsers) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	for _, u := range f.byEmail {
		if u.ID == userID {
			u.PasswordHash = passwordHash
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeUsers) CreatePasswordReset(ctx context.Context, token, userID string, expiresAt time.Time) error {
	f.resets[token] = &store.PasswordReset{Token: token, UserID: userID, ExpiresAt: expiresAt}
	return nil
}

func (f *fakeUsers) GetPasswordReset(ctx context.Context, token string) (*store.PasswordReset, error) {
	if r, ok := f.resets[token]; ok {
		return r, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeUsers) MarkPasswordResetUsed(ctx context.Context, token string) error {
	now := time.Now()
	f.resets[token].UsedAt = &now
	return nil
}

func (f *fakeUsers) SetVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	for _, u := range f.byEmail {
		if u.ID == userID {
			f.verifyTokens[token] = verifyEntry{userID: userID, expiresAt: expiresAt}
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeUsers) VerifyEmailToken(ctx context.Context, token string) error {
	entry, ok := f.verifyTokens[token]
	if !ok || time.Now().After(entry.expiresAt) {
		return store.ErrNotFound
	}
	delete(f.verifyTokens, token)
	for _, u := range f.byEmail {
		if u.ID == entry.userID {
			u.EmailVerified = true
		}
	}
	return nil
}

func TestSignupAndSignin(t *testing.T) {
	svc := New(newFakeUsers())
	ctx := context.Background()

	user, err := svc.Signup(ctx, "Jae@Example.com", "Jae", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if user.Email != "jae@example.com" {
		t.Errorf("email not normalized: %q", user.Email)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("hunter2hunter2")) != nil {
		t.Error("stored hash does not match password")
	}

	if _, err := svc.Signin(ctx, "jae@example.com", "hunter2hunter2"); err != nil {
		t.Errorf("Signin with correct password: %v", err)
	}
	if _, err := svc.Signin(ctx, "jae@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v", err)
	}
	if _, err := svc.Signin(ctx, "nobody@example.com", "hunter2hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user: got %v", err)
	}
}

func TestSignupRejectsDuplicateAndWeak(t *testing.T) {
	svc := New(newFakeUsers())
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "jae@example.com", "Jae", "hunter2hunter2"); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if _, err := svc.Signup(ctx, "jae@example.com", "Jae", "hunter2hunter2"); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate email: got %v", err)
	}
	if _, err := svc.Signup(ctx, "sol@example.com", "Sol", "short"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("short password: got %v", err)
	}
	if _, err := svc.Signup(ctx, "not-an-email", "X", "hunter2hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("bad email: got %v", err)
	}
}

func TestPasswordReset(t *testing.T) {
	users := newFakeUsers()
	svc := New(users)
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "jae@example.com", "Jae", "hunter2hunter2"); err != nil {
		t.Fatalf("Signup: %v", err)
	}

	token, err := svc.StartReset(ctx, "jae@example.com")
	if err != nil || token == "" {
		t.Fatalf("StartReset: token=%q err=%v", token, err)
	}

	// Unknown address leaks nothing.
	if token2, err := svc.StartReset(ctx, "nobody@example.com"); err != nil || token2 != "" {
		t.Errorf("unknown address: token=%q err=%v", token2, err)
	}

	if err := svc.CompleteReset(ctx, token, "newpassword1"); err != nil {
		t.Fatalf("CompleteReset: %v", err)
	}
	if _, err := svc.Signin(ctx, "jae@example.com", "newpassword1"); err != nil {
		t.Errorf("Signin after reset: %v", err)
	}

	// Token is single-use.
	if err := svc.CompleteReset(ctx, token, "anotherpass1"); !errors.Is(err, ErrResetInvalid) {
		t.Errorf("reused token: got %v", err)
	}
}

func TestEmailVerification(t *testing.T) {
	users := newFakeUsers()
	svc := New(users)
	ctx := context.Background()

	user, err := svc.Signup(ctx, "jae@example.com", "Jae", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}

	token, err := svc.StartVerification(ctx, user.ID)
	if err != nil || token == "" {
		t.Fatalf("StartVerification: token=%q err=%v", token, err)
	}

	if err := svc.VerifyEmail(ctx, "vrf_bogus"); !errors.Is(err, ErrVerifyInvalid) {
		t.Errorf("bogus token: got %v", err)
	}
	if err := svc.VerifyEmail(ctx, token); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	if !user.EmailVerified {
		t.Error("user not marked verified")
	}

	// Token is consumed on use.
	if err := svc.VerifyEmail(ctx, token); !errors.Is(err, ErrVerifyInvalid) {
		t.Errorf("reused token: got %v", err)
	}
}

func TestCompleteResetExpired(t *testing.T) {
	users := newFakeUsers()
	svc := New(users)
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "jae@example.com", "Jae", "hunter2hunter2"); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	token, _ := svc.StartReset(ctx, "jae@example.com")
	users.resets[token].ExpiresAt = time.Now().Add(-time.Minute)

	if err := svc.CompleteReset(ctx, token, "newpassword1"); !errors.Is(err, ErrResetInvalid) {
		t.Errorf("expired token: got %v", err)
	}
}
