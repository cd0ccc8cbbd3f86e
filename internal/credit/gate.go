// Package credit implements the one-time metered charge applied to each
// (project, step) key. The gate itself holds no state: serialization of
// concurrent charge attempts happens in the ledger, which must guarantee
// at most one successful charge per key (Postgres enforces this with the
// credit_charges primary key inside a single transaction). Callers are
// independent client sessions, so an in-process lock would not be enough.
package credit

import (
	"context"
	"errors"
	"fmt"
)

// ErrInsufficientCredit is returned when the project balance cannot cover
// the step cost. No charge record is created in that case and the caller
// must abort the whole save.
var ErrInsufficientCredit = errors.New("insufficient credit")

// Ledger is the storage-layer contract. ChargeStep must atomically create
// the charge record and decrement the balance, returning (false, nil) when
// a record for the key already exists, and ErrInsufficientCredit (with no
// record created) when the balance is too low.
type Ledger interface {
	ChargeStep(ctx context.Context, projectID string, stepNumber, cost int) (bool, error)
}

// Result reports whether this call performed the charge. Charged is false
// both when the key was already charged and when a concurrent caller won
// the race; either way the balance was decremented exactly once, ever.
type Result struct {
	Charged bool `json:"charged"`
}

type Gate struct {
	ledger Ledger
	cost   int
}

func NewGate(ledger Ledger, stepCost int) *Gate {
	if stepCost < 0 {
		stepCost = 0
	}
	return &Gate{ledger: ledger, cost: stepCost}
}

// Cost returns the configured per-step charge.
func (g *Gate) Cost() int {
	return g.cost
}

// ChargeOnce charges the (project, step) key if it has never been charged.
func (g *Gate) ChargeOnce(ctx context.Context, projectID string, stepNumber int) (Result, error) {
	if projectID == "" || stepNumber <= 0 {
		return Result{}, fmt.Errorf("charge requires project and step")
	}
	charged, err := g.ledger.ChargeStep(ctx, projectID, stepNumber, g.cost)
	if err != nil {
		return Result{}, err
	}
	return Result{Charged: charged}, nil
}
