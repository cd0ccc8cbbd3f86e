package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewWithClient(client), mr
}

func TestRevokeAndCheck(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	revoked, err := store.IsRevoked(ctx, "tok-1")
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if revoked {
		t.Error("unknown token reported revoked")
	}

	if err := store.Revoke(ctx, "tok-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	revoked, err = store.IsRevoked(ctx, "tok-1")
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if !revoked {
		t.Error("revoked token not reported")
	}
}

func TestRevokeExpiredTokenIsNoop(t *testing.T) {
	store, mr := testStore(t)
	ctx := context.Background()

	if err := store.Revoke(ctx, "tok-old", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if mr.Exists(revokedKey("tok-old")) {
		t.Error("expired token should not be stored")
	}
}

func TestRevocationExpires(t *testing.T) {
	store, mr := testStore(t)
	ctx := context.Background()

	if err := store.Revoke(ctx, "tok-2", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	revoked, err := store.IsRevoked(ctx, "tok-2")
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if revoked {
		t.Error("revocation should lapse with the token expiry")
	}
}
