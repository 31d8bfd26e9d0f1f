// Package session keeps per-user conversation state between webhook calls.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lingoloop/lingoloop/internal/placement"
)

// ErrNotFound is returned by Repository.Get for missing or expired sessions.
var ErrNotFound = errors.New("session not found")

// DefaultTTL is how long an idle session survives.
const DefaultTTL = 24 * time.Hour

// MaxHistory is the number of conversation entries kept per session.
const MaxHistory = 20

// State is the conversation mode a session is in.
type State string

const (
	StateIdle       State = "idle"
	StateOnboarding State = "onboarding"
	StatePlacement  State = "placement"
	StateLesson     State = "lesson"
)

// Role marks who wrote a history entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one history entry.
type Message struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Placement tracks an in-flight placement test.
type Placement struct {
	Questions []placement.Question `json:"questions"`
	Answers   []placement.Answer   `json:"answers"`
	Index     int                  `json:"index"`
	StartedAt time.Time            `json:"started_at"`

	// AskedAt is when the current question was sent, used for response times.
	AskedAt time.Time `json:"asked_at"`
}

// Current returns the question awaiting an answer, or nil when the test is done.
func (p *Placement) Current() *placement.Question {
	if p == nil || p.Index >= len(p.Questions) {
		return nil
	}
	return &p.Questions[p.Index]
}

// Done reports whether every question has been answered.
func (p *Placement) Done() bool {
	return p == nil || p.Index >= len(p.Questions)
}

// Session is the state held for one user.
type Session struct {
	ID     string `json:"id"`
	UserID int64  `json:"user_id"`

	History []Message `json:"history"`
	State   State     `json:"state"`

	Level            string `json:"level,omitempty"`
	Streak           int    `json:"streak"`
	LessonsCompleted int    `json:"lessons_completed"`

	InLesson          bool      `json:"in_lesson"`
	CurrentExerciseID int64     `json:"current_exercise_id,omitempty"`
	LessonAskedAt     time.Time `json:"lesson_asked_at"`

	Placement *Placement `json:"placement,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns an idle session for userID.
func New(userID int64, now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		State:     StateIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// InPlacement reports whether a placement test is waiting for answers.
func (s *Session) InPlacement() bool {
	return s != nil && s.State == StatePlacement && !s.Placement.Done()
}

// EndLesson clears the open lesson, if any.
func (s *Session) EndLesson() {
	s.InLesson = false
	s.CurrentExerciseID = 0
	s.LessonAskedAt = time.Time{}
	if s.State == StateLesson {
		s.State = StateIdle
	}
}

// EndPlacement drops an open placement test, if any.
func (s *Session) EndPlacement() {
	s.Placement = nil
	if s.State == StatePlacement {
		s.State = StateIdle
	}
}

// Recent returns up to n of the newest history entries, oldest first.
func (s *Session) Recent(n int) []Message {
	if n <= 0 || n >= len(s.History) {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

// Repository stores sessions keyed by user id.
type Repository interface {
	Get(ctx context.Context, userID int64) (*Session, error)
	Save(ctx context.Context, s *Session, ttl time.Duration) error
	Delete(ctx context.Context, userID int64) error

	// Cleanup removes sessions idle for longer than maxAge and returns how
	// many were removed.
	Cleanup(ctx context.Context, maxAge time.Duration) (int, error)
}
