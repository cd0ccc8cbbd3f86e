package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across projects and project_steps using
// plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('simple', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultProject {
		projWhere := "p.fts @@ " + tsQuery
		if q.FilterProjectID != "" {
			projWhere += fmt.Sprintf(" AND p.id = $%d", argN)
			args = append(args, q.FilterProjectID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'project'::text AS type, p.id, p.name AS title,
				ts_headline('simple', coalesce(p.description, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				p.id AS project_id, 0 AS step_number,
				ts_rank(p.fts, %s) AS rank
			FROM projects p
			WHERE %s`, tsQuery, tsQuery, projWhere))
	}

	if q.FilterType == "" || q.FilterType == ResultStep {
		stepWhere := "to_tsvector('simple', s.step_data->>'payload') @@ " + tsQuery
		if q.FilterProjectID != "" {
			stepWhere += fmt.Sprintf(" AND s.project_id = $%d", argN)
			args = append(args, q.FilterProjectID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'step'::text AS type,
				s.project_id || ':' || s.step_number AS id,
				'Step ' || s.step_number AS title,
				ts_headline('simple', coalesce(s.step_data->>'payload', ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				s.project_id, s.step_number,
				ts_rank(to_tsvector('simple', s.step_data->>'payload'), %s) AS rank
			FROM project_steps s
			WHERE %s`, tsQuery, tsQuery, stepWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, project_id, step_number
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.ProjectID, &r.StepNumber); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]ProjectRecord, []StepRecord, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, name, description, owner_id FROM projects`)
	if err != nil {
		return nil, nil, fmt.Errorf("load projects: %w", err)
	}
	defer rows.Close()

	var projects []ProjectRecord
	for rows.Next() {
		var r ProjectRecord
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.OwnerID); err != nil {
			return nil, nil, fmt.Errorf("scan project record: %w", err)
		}
		projects = append(projects, r)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	stepRows, err := p.db.QueryContext(ctx, `
		SELECT project_id, step_number, coalesce(step_data->>'payload', '')
		FROM project_steps`)
	if err != nil {
		return nil, nil, fmt.Errorf("load steps: %w", err)
	}
	defer stepRows.Close()

	var steps []StepRecord
	for stepRows.Next() {
		var r StepRecord
		if err := stepRows.Scan(&r.ProjectID, &r.StepNumber, &r.Content); err != nil {
			return nil, nil, fmt.Errorf("scan step record: %w", err)
		}
		r.ID = fmt.Sprintf("%s:%d", r.ProjectID, r.StepNumber)
		r.StepName = fmt.Sprintf("Step %d", r.StepNumber)
		steps = append(steps, r)
	}
	return projects, steps, stepRows.Err()
}
