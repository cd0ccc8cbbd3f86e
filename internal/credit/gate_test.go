package credit

import (
	"context"
	"sync"
	"testing"
)

// memLedger emulates the storage-layer contract: a uniqueness constraint on
// the charge key serializing concurrent attempts.
type memLedger struct {
	mu      sync.Mutex
	balance int
	charged map[string]bool
}

func newMemLedger(balance int) *memLedger {
	return &memLedger{balance: balance, charged: make(map[string]bool)}
}

func (l *memLedger) ChargeStep(ctx context.Context, projectID string, stepNumber, cost int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := projectID + ":" + string(rune('0'+stepNumber))
	if l.charged[key] {
		return false, nil
	}
	if l.balance < cost {
		return false, ErrInsufficientCredit
	}
	l.balance -= cost
	l.charged[key] = true
	return true, nil
}

func TestChargeOnceSequential(t *testing.T) {
	ledger := newMemLedger(10)
	gate := NewGate(ledger, 3)
	ctx := context.Background()

	first, err := gate.ChargeOnce(ctx, "proj-1", 8)
	if err != nil {
		t.Fatalf("first ChargeOnce failed: %v", err)
	}
	if !first.Charged {
		t.Error("first call should charge")
	}
	if ledger.balance != 7 {
		t.Errorf("balance = %d, want 7", ledger.balance)
	}

	second, err := gate.ChargeOnce(ctx, "proj-1", 8)
	if err != nil {
		t.Fatalf("second ChargeOnce failed: %v", err)
	}
	if second.Charged {
		t.Error("second call must not charge again")
	}
	if ledger.balance != 7 {
		t.Errorf("balance decremented twice: %d", ledger.balance)
	}
}

func TestChargeOnceConcurrent(t *testing.T) {
	ledger := newMemLedger(100)
	gate := NewGate(ledger, 3)
	ctx := context.Background()

	const callers = 16
	results := make(chan Result, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := gate.ChargeOnce(ctx, "proj-race", 2)
			if err != nil {
				t.Errorf("ChargeOnce failed: %v", err)
				return
			}
			results <- res
		}()
	}
	wg.Wait()
	close(results)

	charges := 0
	for res := range results {
		if res.Charged {
			charges++
		}
	}
	if charges != 1 {
		t.Errorf("exactly one caller must charge, got %d", charges)
	}
	if ledger.balance != 97 {
		t.Errorf("balance = %d, want 97", ledger.balance)
	}
}

func TestChargeOnceInsufficient(t *testing.T) {
	ledger := newMemLedger(1)
	gate := NewGate(ledger, 3)

	_, err := gate.ChargeOnce(context.Background(), "proj-poor", 1)
	if err != ErrInsufficientCredit {
		t.Fatalf("expected ErrInsufficientCredit, got %v", err)
	}
	if len(ledger.charged) != 0 {
		t.Error("no charge record may exist after a failed charge")
	}
	if ledger.balance != 1 {
		t.Errorf("balance mutated on failed charge: %d", ledger.balance)
	}
}

func TestChargeOnceValidation(t *testing.T) {
	gate := NewGate(newMemLedger(10), 3)
	if _, err := gate.ChargeOnce(context.Background(), "", 1); err == nil {
		t.Error("expected error for empty project id")
	}
	if _, err := gate.ChargeOnce(context.Background(), "proj", 0); err == nil {
		t.Error("expected error for step 0")
	}
}
