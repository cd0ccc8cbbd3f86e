package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

func (s *Store) GetStepDocument(ctx context.Context, projectID string, stepNumber int) (*StepDocument, error) {
	var (
		doc StepDocument
		raw []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT project_id, step_number, step_data, updated_by, updated_at
		FROM project_steps WHERE project_id = $1 AND step_number = $2`,
		projectID, stepNumber,
	).Scan(&doc.ProjectID, &doc.StepNumber, &raw, &doc.UpdatedBy, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get step document: %w", err)
	}
	if err := decodeEnvelope(raw, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *Store) ListStepDocuments(ctx context.Context, projectID string) ([]*StepDocument, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT project_id, step_number, step_data, updated_by, updated_at
		FROM project_steps WHERE project_id = $1
		ORDER BY step_number`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list step documents: %w", err)
	}
	defer rows.Close()

	var out []*StepDocument
	for rows.Next() {
		var (
			doc StepDocument
			raw []byte
		)
		if err := rows.Scan(&doc.ProjectID, &doc.StepNumber, &raw,
			&doc.UpdatedBy, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan step document: %w", err)
		}
		if err := decodeEnvelope(raw, &doc); err != nil {
			return nil, err
		}
		out = append(out, &doc)
	}
	return out, rows.Err()
}

// UpsertStepDocument replaces the step_data envelope whole. Concurrent saves
// serialize on the row; the last writer wins.
func (s *Store) UpsertStepDocument(ctx context.Context, doc *StepDocument) error {
	raw, err := json.Marshal(stepEnvelope{
		Payload:     doc.Payload,
		IsSubmitted: doc.IsSubmitted,
		Progress:    doc.Progress,
	})
	if err != nil {
		return fmt.Errorf("encode step envelope: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO project_steps (project_id, step_number, step_data, updated_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (project_id, step_number)
		DO UPDATE SET step_data = EXCLUDED.step_data,
		              updated_by = EXCLUDED.updated_by,
		              updated_at = now()
		RETURNING updated_at`,
		doc.ProjectID, doc.StepNumber, raw, doc.UpdatedBy,
	).Scan(&doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert step document: %w", err)
	}
	return nil
}

// SetStepSubmitted flips the submission flag inside the envelope without
// touching the payload.
func (s *Store) SetStepSubmitted(ctx context.Context, projectID string, stepNumber int, submitted bool, updatedBy string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE project_steps
		SET step_data = jsonb_set(step_data, '{isSubmitted}', to_jsonb($3::boolean)),
		    updated_by = $4,
		    updated_at = now()
		WHERE project_id = $1 AND step_number = $2`,
		projectID, stepNumber, submitted, updatedBy)
	if err != nil {
		return fmt.Errorf("set step submitted: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func decodeEnvelope(raw []byte, doc *StepDocument) error {
	var env stepEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode step envelope: %w", err)
	}
	doc.Payload = env.Payload
	doc.IsSubmitted = env.IsSubmitted
	doc.Progress = env.Progress
	return nil
}
