package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/lingoloop/lingoloop/internal/placement"
)

// ProgressRepo records answered exercises.
type ProgressRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

// RecordProgress stores one placement answer.
func (r *ProgressRepo) RecordProgress(ctx context.Context, rec placement.ProgressRecord) error {
	return r.Record(ctx, rec, "")
}

// Record stores one answer with an optional error classification.
func (r *ProgressRepo) Record(ctx context.Context, rec placement.ProgressRecord, errorType string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO user_progress
		(user_id, exercise_id, is_correct, user_answer, response_time_ms, attempts, error_type, created_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)`),
		rec.UserID, rec.ExerciseID, rec.IsCorrect, rec.RawAnswer, max(rec.ResponseTimeMs, 0), errorType, r.now())
	if err != nil {
		return fmt.Errorf("record progress: %w", err)
	}
	return nil
}

// Stats aggregates all answers of a user.
func (r *ProgressRepo) Stats(ctx context.Context, userID int64) (*UserStats, error) {
	var s UserStats
	err := r.db.GetContext(ctx, &s, r.db.Rebind(`SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN is_correct THEN 1 ELSE 0 END), 0) AS correct,
			COALESCE(CAST(AVG(response_time_ms) AS INTEGER), 0) AS avg_response_ms
		FROM user_progress WHERE user_id = ?`), userID)
	if err != nil {
		return nil, fmt.Errorf("user stats %d: %w", userID, err)
	}
	if s.TotalAnswers > 0 {
		s.Accuracy = float64(s.Correct) / float64(s.TotalAnswers) * 100
	}
	return &s, nil
}

// RecentExerciseIDs returns the ids of the user's last n answered exercises,
// newest first.
func (r *ProgressRepo) RecentExerciseIDs(ctx context.Context, userID int64, n int) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, r.db.Rebind(`SELECT exercise_id FROM user_progress
		WHERE user_id = ? ORDER BY id DESC LIMIT ?`), userID, n)
	if err != nil {
		return nil, fmt.Errorf("recent exercises %d: %w", userID, err)
	}
	return ids, nil
}
