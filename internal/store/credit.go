package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"waypoint/api/internal/credit"
)

// ChargeStep charges a project once for a step, inside one transaction. The
// primary key on credit_charges serializes concurrent attempts: the insert
// either claims the charge or hits ON CONFLICT DO NOTHING, in which case the
// step was already paid for and no balance changes. A claimed charge that
// cannot be covered rolls the whole transaction back.
func (s *Store) ChargeStep(ctx context.Context, projectID string, stepNumber, cost int) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin charge: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO credit_charges (project_id, step_number, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id, step_number) DO NOTHING`,
		projectID, stepNumber, cost)
	if err != nil {
		return false, fmt.Errorf("insert charge: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE projects SET credit_balance = credit_balance - $2, updated_at = now()
		WHERE id = $1 AND credit_balance >= $2`,
		projectID, cost)
	if err != nil {
		return false, fmt.Errorf("debit balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, credit.ErrInsufficientCredit
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit charge: %w", err)
	}
	return true, nil
}

func (s *Store) CreditBalance(ctx context.Context, projectID string) (int, error) {
	var balance int
	err := s.db.QueryRowContext(ctx,
		`SELECT credit_balance FROM projects WHERE id = $1`, projectID,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("credit balance: %w", err)
	}
	return balance, nil
}

func (s *Store) ListCharges(ctx context.Context, projectID string) ([]*CreditCharge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT project_id, step_number, amount, charged_at
		FROM credit_charges WHERE project_id = $1
		ORDER BY step_number`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list charges: %w", err)
	}
	defer rows.Close()

	var out []*CreditCharge
	for rows.Next() {
		var c CreditCharge
		if err := rows.Scan(&c.ProjectID, &c.StepNumber, &c.Amount, &c.ChargedAt); err != nil {
			return nil, fmt.Errorf("scan charge: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}
