package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// GeneratedRepo stores accepted LLM exercise variations.
type GeneratedRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

// Create inserts g and sets its ID and CreatedAt.
func (r *GeneratedRepo) Create(ctx context.Context, g *GeneratedExercise) error {
	g.CreatedAt = r.now()
	err := r.db.QueryRowxContext(ctx, r.db.Rebind(`INSERT INTO generated_exercises
		(curriculum_id, variation, theory, exercise_introduction, exercise_input, expected_output,
		 judge_score, judge_result, judge_feedback, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		g.CurriculumID, g.Variation, g.Theory, g.ExerciseIntroduction, g.ExerciseInput, g.ExpectedOutput,
		g.JudgeScore, g.JudgeResult, g.JudgeFeedback, g.CreatedAt).Scan(&g.ID)
	if err != nil {
		return fmt.Errorf("create generated exercise: %w", err)
	}
	return nil
}

// ForCombination returns the stored variations of one combination.
func (r *GeneratedRepo) ForCombination(ctx context.Context, curriculumID string) ([]GeneratedExercise, error) {
	var out []GeneratedExercise
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`SELECT id, curriculum_id, variation, theory,
		exercise_introduction, exercise_input, expected_output, judge_score, judge_result, judge_feedback, created_at
		FROM generated_exercises WHERE curriculum_id = ? ORDER BY variation`), curriculumID)
	if err != nil {
		return nil, fmt.Errorf("generated exercises of %s: %w", curriculumID, err)
	}
	return out, nil
}
