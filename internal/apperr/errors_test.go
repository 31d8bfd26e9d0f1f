package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIsKind(t *testing.T) {
	cause := errors.New("no rows")
	err := New(ErrUserNotFound, "placement.Generate", cause)

	if !errors.Is(err, ErrUserNotFound) {
		t.Fatal("expected errors.Is to match the kind")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to match the cause")
	}
	if errors.Is(err, ErrSession) {
		t.Fatal("unexpected match on a different kind")
	}

	wrapped := fmt.Errorf("handle message: %w", err)
	if !errors.Is(wrapped, ErrUserNotFound) {
		t.Fatal("expected kind to survive wrapping")
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{&Error{Kind: ErrValidation}, "validation error"},
		{&Error{Kind: ErrValidation, Op: "import"}, "import: validation error"},
		{&Error{Kind: ErrLLM, Err: errors.New("timeout")}, "llm error: timeout"},
		{&Error{Kind: ErrLLM, Op: "judge", Err: errors.New("timeout")}, "judge: llm error: timeout"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}
