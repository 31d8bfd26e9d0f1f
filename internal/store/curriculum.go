package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// CurriculumRepo manages the curriculum_structure matrix.
type CurriculumRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

const combinationColumns = `id, language_pair_id, level_id, category_id, exercise_type_id, topic_id,
	generation_status, exercises_generated, exercises_target, last_generated, priority`

// Insert adds a combination unless one with the same id exists. It reports
// whether a row was inserted.
func (r *CurriculumRepo) Insert(ctx context.Context, c Combination) (bool, error) {
	if c.GenerationStatus == "" {
		c.GenerationStatus = StatusPending
	}
	res, err := r.db.NamedExecContext(ctx, `INSERT INTO curriculum_structure
		(id, language_pair_id, level_id, category_id, exercise_type_id, topic_id,
		 generation_status, exercises_generated, exercises_target, priority)
		VALUES (:id, :language_pair_id, :level_id, :category_id, :exercise_type_id, :topic_id,
		 :generation_status, :exercises_generated, :exercises_target, :priority)
		ON CONFLICT (id) DO NOTHING`, c)
	if err != nil {
		return false, fmt.Errorf("insert combination %s: %w", c.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert combination %s: %w", c.ID, err)
	}
	return n > 0, nil
}

// Get returns the combination with the given id, or nil if none.
func (r *CurriculumRepo) Get(ctx context.Context, id string) (*Combination, error) {
	var c Combination
	err := r.db.GetContext(ctx, &c, r.db.Rebind(`SELECT `+combinationColumns+` FROM curriculum_structure WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get combination %s: %w", id, err)
	}
	return &c, nil
}

// Pending returns up to limit pending combinations, highest priority first
// and then by id.
func (r *CurriculumRepo) Pending(ctx context.Context, limit int) ([]Combination, error) {
	var out []Combination
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`SELECT `+combinationColumns+`
		FROM curriculum_structure WHERE generation_status = ?
		ORDER BY priority DESC, id ASC LIMIT ?`), StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("pending combinations: %w", err)
	}
	return out, nil
}

// SetStatus changes the generation status of a combination.
func (r *CurriculumRepo) SetStatus(ctx context.Context, id, status string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE curriculum_structure SET generation_status = ? WHERE id = ?`), status, id)
	if err != nil {
		return fmt.Errorf("set status of %s: %w", id, err)
	}
	return nil
}

// Finish records the outcome of a generation pass over one combination.
func (r *CurriculumRepo) Finish(ctx context.Context, id, status string, generated int) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE curriculum_structure
		SET generation_status = ?, exercises_generated = exercises_generated + ?, last_generated = ?
		WHERE id = ?`), status, generated, r.now(), id)
	if err != nil {
		return fmt.Errorf("finish %s: %w", id, err)
	}
	return nil
}

// ResetInProgress returns combinations stuck in progress (from an aborted
// run) to pending.
func (r *CurriculumRepo) ResetInProgress(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE curriculum_structure SET generation_status = ? WHERE generation_status = ?`),
		StatusPending, StatusInProgress)
	if err != nil {
		return 0, fmt.Errorf("reset in-progress: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset in-progress: %w", err)
	}
	return int(n), nil
}

// Statistics summarizes the matrix by status.
func (r *CurriculumRepo) Statistics(ctx context.Context) (*CurriculumStats, error) {
	var s CurriculumStats
	err := r.db.GetContext(ctx, &s, r.db.Rebind(`SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN generation_status = ? THEN 1 ELSE 0 END), 0) AS pending,
			COALESCE(SUM(CASE WHEN generation_status = ? THEN 1 ELSE 0 END), 0) AS in_progress,
			COALESCE(SUM(CASE WHEN generation_status = ? THEN 1 ELSE 0 END), 0) AS completed,
			COALESCE(SUM(CASE WHEN generation_status = ? THEN 1 ELSE 0 END), 0) AS failed,
			COALESCE(SUM(exercises_generated), 0) AS exercises_generated
		FROM curriculum_structure`), StatusPending, StatusInProgress, StatusCompleted, StatusFailed)
	if err != nil {
		return nil, fmt.Errorf("curriculum statistics: %w", err)
	}
	if s.Total > 0 {
		s.CompletionRate = float64(s.Completed) / float64(s.Total) * 100
	}
	return &s, nil
}
