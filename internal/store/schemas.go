package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SchemaRepo stores per-exercise-type content schemas.
type SchemaRepo struct {
	db *sqlx.DB
}

const schemaColumns = `id, exercise_type, field_theory_description, field_introduction_description,
	field_input_description, field_output_description, input_format, output_format, validation_rules,
	example_theory, example_introduction, example_input, example_output, is_active`

// Upsert inserts the schema or replaces the one for the same exercise type.
func (r *SchemaRepo) Upsert(ctx context.Context, s ExerciseSchema) error {
	s.IsActive = true
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO exercise_schemas
		(exercise_type, field_theory_description, field_introduction_description, field_input_description,
		 field_output_description, input_format, output_format, validation_rules,
		 example_theory, example_introduction, example_input, example_output, is_active)
		VALUES (:exercise_type, :field_theory_description, :field_introduction_description, :field_input_description,
		 :field_output_description, :input_format, :output_format, :validation_rules,
		 :example_theory, :example_introduction, :example_input, :example_output, :is_active)
		ON CONFLICT (exercise_type) DO UPDATE SET
		 field_theory_description = excluded.field_theory_description,
		 field_introduction_description = excluded.field_introduction_description,
		 field_input_description = excluded.field_input_description,
		 field_output_description = excluded.field_output_description,
		 input_format = excluded.input_format,
		 output_format = excluded.output_format,
		 validation_rules = excluded.validation_rules,
		 example_theory = excluded.example_theory,
		 example_introduction = excluded.example_introduction,
		 example_input = excluded.example_input,
		 example_output = excluded.example_output,
		 is_active = excluded.is_active`, s)
	if err != nil {
		return fmt.Errorf("upsert schema %s: %w", s.ExerciseType, err)
	}
	return nil
}

// ForType returns the active schema for an exercise type, or nil if none.
func (r *SchemaRepo) ForType(ctx context.Context, exerciseType string) (*ExerciseSchema, error) {
	var s ExerciseSchema
	err := r.db.GetContext(ctx, &s, r.db.Rebind(`SELECT `+schemaColumns+`
		FROM exercise_schemas WHERE exercise_type = ? AND is_active = TRUE`), exerciseType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("schema for %s: %w", exerciseType, err)
	}
	return &s, nil
}

// List returns all schemas ordered by exercise type.
func (r *SchemaRepo) List(ctx context.Context) ([]ExerciseSchema, error) {
	var out []ExerciseSchema
	if err := r.db.SelectContext(ctx, &out, `SELECT `+schemaColumns+` FROM exercise_schemas ORDER BY exercise_type`); err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	return out, nil
}
