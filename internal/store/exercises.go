package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/lingoloop/lingoloop/internal/placement"
)

// ExerciseRepo reads and writes practice exercises.
type ExerciseRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

const exerciseColumns = `id, question, correct_answer, options, difficulty, exercise_type,
	source_lang, target_lang, topic, explanation, is_active, created_at`

// exerciseRow mirrors the table; options are stored as a JSON array.
type exerciseRow struct {
	Exercise
	OptionsJSON string `db:"options"`
}

func (row exerciseRow) toExercise() (Exercise, error) {
	ex := row.Exercise
	if row.OptionsJSON != "" {
		if err := json.Unmarshal([]byte(row.OptionsJSON), &ex.Options); err != nil {
			return Exercise{}, fmt.Errorf("decode options of exercise %d: %w", row.ID, err)
		}
	}
	return ex, nil
}

// Create inserts an exercise and sets its ID and CreatedAt.
func (r *ExerciseRepo) Create(ctx context.Context, ex *Exercise) error {
	opts := ex.Options
	if opts == nil {
		opts = []string{}
	}
	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}

	ex.CreatedAt = r.now()
	err = r.db.QueryRowxContext(ctx, r.db.Rebind(`INSERT INTO exercises
		(question, correct_answer, options, difficulty, exercise_type, source_lang, target_lang, topic, explanation, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, TRUE, ?) RETURNING id`),
		ex.Question, ex.CorrectAnswer, string(optsJSON), ex.Difficulty, ex.ExerciseType,
		ex.SourceLang, ex.TargetLang, ex.Topic, ex.Explanation, ex.CreatedAt).Scan(&ex.ID)
	if err != nil {
		return fmt.Errorf("create exercise: %w", err)
	}
	ex.IsActive = true
	return nil
}

// Get returns the exercise with the given id, or nil if none.
func (r *ExerciseRepo) Get(ctx context.Context, id int64) (*Exercise, error) {
	var row exerciseRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT `+exerciseColumns+` FROM exercises WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get exercise %d: %w", id, err)
	}
	ex, err := row.toExercise()
	if err != nil {
		return nil, err
	}
	return &ex, nil
}

// ExerciseFilter narrows a random exercise pick.
type ExerciseFilter struct {
	SourceLang string
	TargetLang string
	Difficulty string
	Types      []string
	Exclude    []int64
	Limit      int
}

// Random returns up to f.Limit active exercises matching f in random order.
func (r *ExerciseRepo) Random(ctx context.Context, f ExerciseFilter) ([]Exercise, error) {
	var (
		where []string
		args  []any
	)
	where = append(where, "is_active = TRUE")
	if f.SourceLang != "" {
		where = append(where, "source_lang = ?")
		args = append(args, f.SourceLang)
	}
	if f.TargetLang != "" {
		where = append(where, "target_lang = ?")
		args = append(args, f.TargetLang)
	}
	if f.Difficulty != "" {
		where = append(where, "difficulty = ?")
		args = append(args, f.Difficulty)
	}
	if len(f.Types) > 0 {
		where = append(where, "exercise_type IN (?)")
		args = append(args, f.Types)
	}
	if len(f.Exclude) > 0 {
		where = append(where, "id NOT IN (?)")
		args = append(args, f.Exclude)
	}

	query := `SELECT ` + exerciseColumns + ` FROM exercises WHERE ` + strings.Join(where, " AND ") + ` ORDER BY RANDOM()`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("expand exercise query: %w", err)
	}

	var rows []exerciseRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select exercises: %w", err)
	}

	out := make([]Exercise, 0, len(rows))
	for _, row := range rows {
		ex, err := row.toExercise()
		if err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, nil
}

// FetchExercises returns placement candidates for one level.
func (r *ExerciseRepo) FetchExercises(ctx context.Context, q placement.ExerciseQuery) ([]placement.Exercise, error) {
	types := make([]string, len(q.Kinds))
	for i, k := range q.Kinds {
		types[i] = string(k)
	}

	rows, err := r.Random(ctx, ExerciseFilter{
		SourceLang: q.SourceLang,
		TargetLang: q.TargetLang,
		Difficulty: string(q.Difficulty),
		Types:      types,
		Exclude:    q.Exclude,
		Limit:      q.Count,
	})
	if err != nil {
		return nil, err
	}

	out := make([]placement.Exercise, len(rows))
	for i, ex := range rows {
		out[i] = placement.Exercise{
			ID:            ex.ID,
			Question:      ex.Question,
			CorrectAnswer: ex.CorrectAnswer,
			Options:       ex.Options,
			Kind:          placement.Kind(ex.ExerciseType),
		}
	}
	return out, nil
}

// PickForLesson returns one random exercise at the given level that is not
// in exclude, or nil when none is left.
func (r *ExerciseRepo) PickForLesson(ctx context.Context, sourceLang, targetLang, level string, exclude []int64) (*Exercise, error) {
	rows, err := r.Random(ctx, ExerciseFilter{
		SourceLang: sourceLang,
		TargetLang: targetLang,
		Difficulty: level,
		Exclude:    exclude,
		Limit:      1,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// Count returns the number of active exercises.
func (r *ExerciseRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM exercises WHERE is_active = TRUE`); err != nil {
		return 0, fmt.Errorf("count exercises: %w", err)
	}
	return n, nil
}
