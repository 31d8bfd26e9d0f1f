package curriculum

import (
	"fmt"
	"strings"

	"github.com/lingoloop/lingoloop/internal/store"
)

// Validator checks generated content before it reaches the judge.
type Validator interface {
	Name() string
	Validate(c *Content, schema *store.ExerciseSchema) *ValidationError
}

// ValidationError describes why content failed a validator.
type ValidationError struct {
	Validator string
	Message   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validator %q: %s", e.Validator, e.Message)
}

// fieldLimits bounds each field, in bytes.
var fieldLimits = []struct {
	name     string
	get      func(*Content) string
	min, max int
}{
	{"theory", func(c *Content) string { return c.Theory }, 10, 2000},
	{"exercise_introduction", func(c *Content) string { return c.ExerciseIntroduction }, 5, 500},
	{"exercise_input", func(c *Content) string { return c.ExerciseInput }, 3, 1000},
	{"expected_output", func(c *Content) string { return c.ExpectedOutput }, 1, 500},
}

// StructuralValidator checks that every field is present and within length
// limits, and that the answer is not just a copy of the exercise.
type StructuralValidator struct{}

func (v *StructuralValidator) Name() string { return "structural" }

func (v *StructuralValidator) Validate(c *Content, _ *store.ExerciseSchema) *ValidationError {
	for _, f := range fieldLimits {
		n := len(f.get(c))
		if n == 0 {
			return &ValidationError{Validator: v.Name(), Message: f.name + " is empty"}
		}
		if n < f.min {
			return &ValidationError{Validator: v.Name(), Message: fmt.Sprintf("%s is shorter than %d characters", f.name, f.min)}
		}
		if n > f.max {
			return &ValidationError{Validator: v.Name(), Message: fmt.Sprintf("%s exceeds %d characters", f.name, f.max)}
		}
	}
	if strings.EqualFold(c.ExerciseInput, c.ExpectedOutput) {
		return &ValidationError{Validator: v.Name(), Message: "expected_output repeats exercise_input"}
	}
	return nil
}
