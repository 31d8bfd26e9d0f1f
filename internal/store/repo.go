package store

import (
	"context"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit  int       // max results (0 = unlimited)
	After  int64     // id > After
	Before int64     // id < Before
	From   time.Time // timestamp >= From
	To     time.Time // timestamp <= To

	// Purpose restricts LLM events to one purpose when set.
	Purpose string
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// EventRepo provides append access to LLM request events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error
}

// User is a learner identified by their WhatsApp id.
type User struct {
	ID               int64      `db:"id"`
	WaID             string     `db:"wa_id"`
	Name             string     `db:"name"`
	Phone            string     `db:"phone"`
	NativeLang       string     `db:"native_lang"`
	TargetLang       string     `db:"target_lang"`
	Level            *string    `db:"level"`
	IsPremium        bool       `db:"is_premium"`
	IsActive         bool       `db:"is_active"`
	StreakDays       int        `db:"streak_days"`
	LessonsCompleted int        `db:"lessons_completed"`
	LastActiveAt     *time.Time `db:"last_active_at"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

// LevelOrEmpty returns the stored level or "" when unplaced.
func (u *User) LevelOrEmpty() string {
	if u.Level == nil {
		return ""
	}
	return *u.Level
}

// Exercise is a stored practice item.
type Exercise struct {
	ID            int64     `db:"id"`
	Question      string    `db:"question"`
	CorrectAnswer string    `db:"correct_answer"`
	Options       []string  `db:"-"`
	Difficulty    string    `db:"difficulty"`
	ExerciseType  string    `db:"exercise_type"`
	SourceLang    string    `db:"source_lang"`
	TargetLang    string    `db:"target_lang"`
	Topic         string    `db:"topic"`
	Explanation   string    `db:"explanation"`
	IsActive      bool      `db:"is_active"`
	CreatedAt     time.Time `db:"created_at"`
}

// UserStats aggregates a user's answer history.
type UserStats struct {
	TotalAnswers  int     `db:"total"`
	Correct       int     `db:"correct"`
	AvgResponseMs int64   `db:"avg_response_ms"`
	Accuracy      float64 `db:"-"`
}

// Generation statuses of a curriculum combination.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Combination is one cell of the curriculum matrix.
type Combination struct {
	ID                 string     `db:"id"`
	LanguagePairID     string     `db:"language_pair_id"`
	LevelID            string     `db:"level_id"`
	CategoryID         string     `db:"category_id"`
	ExerciseTypeID     string     `db:"exercise_type_id"`
	TopicID            string     `db:"topic_id"`
	GenerationStatus   string     `db:"generation_status"`
	ExercisesGenerated int        `db:"exercises_generated"`
	ExercisesTarget    int        `db:"exercises_target"`
	LastGenerated      *time.Time `db:"last_generated"`
	Priority           int        `db:"priority"`
}

// CurriculumStats summarizes generation progress across the matrix.
type CurriculumStats struct {
	Total              int     `db:"total"`
	Pending            int     `db:"pending"`
	InProgress         int     `db:"in_progress"`
	Completed          int     `db:"completed"`
	Failed             int     `db:"failed"`
	ExercisesGenerated int     `db:"exercises_generated"`
	CompletionRate     float64 `db:"-"`
}

// ExerciseSchema describes the four content fields for one exercise type.
type ExerciseSchema struct {
	ID                           int64  `db:"id" yaml:"-"`
	ExerciseType                 string `db:"exercise_type" yaml:"exercise_type"`
	FieldTheoryDescription       string `db:"field_theory_description" yaml:"theory"`
	FieldIntroductionDescription string `db:"field_introduction_description" yaml:"introduction"`
	FieldInputDescription        string `db:"field_input_description" yaml:"input"`
	FieldOutputDescription       string `db:"field_output_description" yaml:"output"`
	InputFormat                  string `db:"input_format" yaml:"input_format"`
	OutputFormat                 string `db:"output_format" yaml:"output_format"`
	ValidationRules              string `db:"validation_rules" yaml:"validation_rules"`
	ExampleTheory                string `db:"example_theory" yaml:"example_theory"`
	ExampleIntroduction          string `db:"example_introduction" yaml:"example_introduction"`
	ExampleInput                 string `db:"example_input" yaml:"example_input"`
	ExampleOutput                string `db:"example_output" yaml:"example_output"`
	IsActive                     bool   `db:"is_active" yaml:"-"`
}

// GeneratedExercise is one judged LLM variation for a combination.
type GeneratedExercise struct {
	ID                   int64     `db:"id"`
	CurriculumID         string    `db:"curriculum_id"`
	Variation            int       `db:"variation"`
	Theory               string    `db:"theory"`
	ExerciseIntroduction string    `db:"exercise_introduction"`
	ExerciseInput        string    `db:"exercise_input"`
	ExpectedOutput       string    `db:"expected_output"`
	JudgeScore           float64   `db:"judge_score"`
	JudgeResult          string    `db:"judge_result"`
	JudgeFeedback        string    `db:"judge_feedback"`
	CreatedAt            time.Time `db:"created_at"`
}

// GenerationLog records the outcome of one combination in a batch run.
type GenerationLog struct {
	ID           int64     `db:"id"`
	RunID        string    `db:"run_id"`
	CurriculumID string    `db:"curriculum_id"`
	Requested    int       `db:"requested"`
	Accepted     int       `db:"accepted"`
	Rejected     int       `db:"rejected"`
	Status       string    `db:"status"`
	Error        string    `db:"error"`
	StartedAt    time.Time `db:"started_at"`
	FinishedAt   time.Time `db:"finished_at"`
}
