package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"waypoint/api/internal/credit"
)

// These tests exercise the charge transaction against a real Postgres; the
// at-most-once guarantee lives in the credit_charges primary key and cannot
// be proven with a fake. Set TEST_DATABASE_URL to run them.

func openTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := Open(ctx, databaseURL)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(ctx, "../../db/migrations"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedProject(t *testing.T, db *Store, credits int) string {
	t.Helper()
	ctx := context.Background()
	email := fmt.Sprintf("it-%d@test.dev", time.Now().UnixNano())
	user, err := db.CreateUser(ctx, email, "Integration", "x", "member")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	project, err := db.CreateProject(ctx, user.ID, "charge-test", "", credits)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	t.Cleanup(func() { _ = db.DeleteProject(context.Background(), project.ID) })
	return project.ID
}

func TestChargeStepAtMostOnceUnderConcurrency(t *testing.T) {
	db := openTestStore(t)
	projectID := seedProject(t, db, 30)
	ctx := context.Background()

	const callers = 8
	var wg sync.WaitGroup
	charged := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := db.ChargeStep(ctx, projectID, 1, 3)
			if err != nil {
				t.Errorf("charge: %v", err)
				return
			}
			charged <- ok
		}()
	}
	wg.Wait()
	close(charged)

	wins := 0
	for ok := range charged {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("charges performed = %d, want exactly 1", wins)
	}

	balance, err := db.CreditBalance(ctx, projectID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 27 {
		t.Errorf("balance = %d, want 27", balance)
	}
}

func TestChargeStepInsufficientBalanceLeavesNoRow(t *testing.T) {
	db := openTestStore(t)
	projectID := seedProject(t, db, 2)
	ctx := context.Background()

	_, err := db.ChargeStep(ctx, projectID, 1, 3)
	if !errors.Is(err, credit.ErrInsufficientCredit) {
		t.Fatalf("expected insufficient credit, got %v", err)
	}

	charges, err := db.ListCharges(ctx, projectID)
	if err != nil {
		t.Fatalf("list charges: %v", err)
	}
	if len(charges) != 0 {
		t.Errorf("failed charge left %d rows", len(charges))
	}
	balance, _ := db.CreditBalance(ctx, projectID)
	if balance != 2 {
		t.Errorf("balance = %d, want untouched 2", balance)
	}
}
