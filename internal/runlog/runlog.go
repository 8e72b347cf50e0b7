// Package runlog journals pipeline runs in the analysis_runs table so
// operators can see what ran, over which scope, and how it ended.
package runlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/PlayersCouncil/game-analytics/internal/db"
	"github.com/PlayersCouncil/game-analytics/internal/model"
)

// Entry represents a row in analysis_runs.
type Entry struct {
	ID          uuid.UUID      `json:"id"`
	Job         string         `json:"job"`
	Scope       string         `json:"scope"`
	Status      string         `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	RowsWritten int64          `json:"rows_written"`
	Error       string         `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Result holds the outcome of a run, passed to Complete().
type Result struct {
	RowsWritten int64          `json:"rows_written"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// RunLog provides read/write access to the analysis_runs table.
type RunLog struct {
	pool db.Pool
}

// New creates a RunLog backed by the given connection pool.
func New(pool db.Pool) *RunLog {
	return &RunLog{pool: pool}
}

// Start records the beginning of a run and returns its id.
func (r *RunLog) Start(ctx context.Context, job string, scope model.Scope) (uuid.UUID, error) {
	id := uuid.New()
	if _, err := r.pool.Exec(ctx,
		`INSERT INTO analysis_runs (id, job, scope, status, started_at)
		 VALUES ($1, $2, $3, 'running', now())`,
		id, job, scope.String(),
	); err != nil {
		return uuid.Nil, eris.Wrapf(err, "runlog: start %s for %s", job, scope)
	}
	return id, nil
}

// Complete marks a run as successfully completed.
func (r *RunLog) Complete(ctx context.Context, runID uuid.UUID, result *Result) error {
	var metaJSON []byte
	if result != nil && result.Metadata != nil {
		var err error
		metaJSON, err = json.Marshal(result.Metadata)
		if err != nil {
			return eris.Wrap(err, "runlog: marshal metadata")
		}
	}

	rowsWritten := int64(0)
	if result != nil {
		rowsWritten = result.RowsWritten
	}

	if _, err := r.pool.Exec(ctx,
		`UPDATE analysis_runs
		 SET status = 'complete', completed_at = now(), rows_written = $1, metadata = $2
		 WHERE id = $3`,
		rowsWritten, metaJSON, runID,
	); err != nil {
		return eris.Wrapf(err, "runlog: complete run %s", runID)
	}
	return nil
}

// Fail marks a run as failed with an error message.
func (r *RunLog) Fail(ctx context.Context, runID uuid.UUID, errMsg string) error {
	if _, err := r.pool.Exec(ctx,
		`UPDATE analysis_runs
		 SET status = 'failed', completed_at = now(), error = $1
		 WHERE id = $2`,
		errMsg, runID,
	); err != nil {
		return eris.Wrapf(err, "runlog: fail run %s", runID)
	}
	return nil
}

// LastSuccess returns when the given job last completed for a scope, nil if
// it never has.
func (r *RunLog) LastSuccess(ctx context.Context, job string, scope model.Scope) (*time.Time, error) {
	var t time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT started_at FROM analysis_runs
		 WHERE job = $1 AND scope = $2 AND status = 'complete'
		 ORDER BY started_at DESC LIMIT 1`,
		job, scope.String(),
	).Scan(&t)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "runlog: last success of %s for %s", job, scope)
	}
	return &t, nil
}

// ListAll returns every run, most recent first.
func (r *RunLog) ListAll(ctx context.Context) ([]Entry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, job, scope, status, started_at, completed_at, rows_written, error, metadata
		 FROM analysis_runs ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: list all")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var errStr *string
		var metaJSON []byte
		if err := rows.Scan(&e.ID, &e.Job, &e.Scope, &e.Status, &e.StartedAt, &e.CompletedAt, &e.RowsWritten, &errStr, &metaJSON); err != nil {
			return nil, eris.Wrap(err, "runlog: scan entry")
		}
		if errStr != nil {
			e.Error = *errStr
		}
		if metaJSON != nil {
			_ = json.Unmarshal(metaJSON, &e.Metadata)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
