package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// GenerationLogRepo stores per-combination batch outcomes.
type GenerationLogRepo struct {
	db *sqlx.DB
}

// Append writes one log row.
func (r *GenerationLogRepo) Append(ctx context.Context, l GenerationLog) error {
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO content_generation_logs
		(run_id, curriculum_id, requested, accepted, rejected, status, error, started_at, finished_at)
		VALUES (:run_id, :curriculum_id, :requested, :accepted, :rejected, :status, :error, :started_at, :finished_at)`, l)
	if err != nil {
		return fmt.Errorf("append generation log: %w", err)
	}
	return nil
}

// ForRun returns the log rows of one batch run in insertion order.
func (r *GenerationLogRepo) ForRun(ctx context.Context, runID string) ([]GenerationLog, error) {
	var out []GenerationLog
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`SELECT id, run_id, curriculum_id, requested, accepted,
		rejected, status, error, started_at, finished_at
		FROM content_generation_logs WHERE run_id = ? ORDER BY id`), runID)
	if err != nil {
		return nil, fmt.Errorf("generation logs of %s: %w", runID, err)
	}
	return out, nil
}
