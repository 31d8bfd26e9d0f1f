package placement

// Kind identifies how an exercise is answered and therefore how it is checked.
type Kind string

const (
	KindTranslation    Kind = "translation"
	KindMultipleChoice Kind = "multiple_choice"
)

// PlacementKinds are the exercise kinds eligible for placement tests.
var PlacementKinds = []Kind{KindTranslation, KindMultipleChoice}

// Exercise is a candidate item returned by an ExerciseProvider.
type Exercise struct {
	ID            int64
	Question      string
	CorrectAnswer string
	Options       []string
	Kind          Kind
}

// Question is one issued placement test item.
type Question struct {
	ExerciseID       int64    `json:"exercise_id"`
	Text             string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	Options          []string `json:"options,omitempty"`
	Difficulty       Level    `json:"difficulty"`
	Kind             Kind     `json:"exercise_kind"`
	Points           int      `json:"points"`
	TimeLimitSeconds int      `json:"time_limit_seconds"`
}

// Answer is a user's response to an issued question.
type Answer struct {
	ExerciseID     int64  `json:"exercise_id"`
	RawAnswer      string `json:"raw_answer"`
	ResponseTimeMs int64  `json:"response_time_ms"`
}

// Tally counts correct and total answers at one level.
type Tally struct {
	Correct int
	Total   int
}

// Accuracy is the percentage of correct answers, 0 when there are none.
func (t Tally) Accuracy() float64 {
	if t.Total == 0 {
		return 0
	}
	return float64(t.Correct) / float64(t.Total) * 100
}

// Result summarizes a completed placement test.
type Result struct {
	UserID                int64   `json:"user_id"`
	RecommendedLevel      Level   `json:"recommended_level"`
	ConfidenceScore       float64 `json:"confidence_score"`
	TotalQuestions        int     `json:"total_questions"`
	CorrectAnswers        int     `json:"correct_answers"`
	AccuracyPercentage    float64 `json:"accuracy_percentage"`
	AverageResponseTimeMs int64   `json:"average_response_time_ms"`
	WeakAreas             []Level `json:"weak_areas"`
	StrongAreas           []Level `json:"strong_areas"`
	TestDurationMs        int64   `json:"test_duration_ms"`

	// ProgressWriteFailures counts answers whose progress row could not be saved.
	ProgressWriteFailures int `json:"progress_write_failures,omitempty"`
}

// ProgressRecord is the persisted outcome of one answered question.
type ProgressRecord struct {
	UserID         int64
	ExerciseID     int64
	IsCorrect      bool
	RawAnswer      string
	ResponseTimeMs int64
}
