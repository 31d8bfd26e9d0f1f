// Package apperr defines the error kinds shared across LingoLoop packages.
package apperr

import (
	"errors"
	"fmt"
)

// Kind sentinels. Match with errors.Is.
var (
	ErrConfiguration     = errors.New("configuration error")
	ErrUserNotFound      = errors.New("user not found")
	ErrSession           = errors.New("session error")
	ErrValidation        = errors.New("validation error")
	ErrWhatsApp          = errors.New("whatsapp api error")
	ErrLLM               = errors.New("llm error")
	ErrContentGeneration = errors.New("content generation error")
	ErrEvaluation        = errors.New("evaluation error")
	ErrOrchestrator      = errors.New("orchestrator error")
	ErrRateLimited       = errors.New("rate limited")
)

// Error attaches a kind and the failing operation to an underlying error.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return e.Kind.Error()
}

// Is reports whether target is this error's kind.
func (e *Error) Is(target error) bool { return e.Kind == target }

func (e *Error) Unwrap() error { return e.Err }

// New returns an *Error of the given kind.
func New(kind error, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf is New with a formatted cause.
func Newf(kind error, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}
