// Package diagnosis classifies wrong lesson answers so progress rows record
// why an answer missed, not just that it did.
package diagnosis

// Category labels a wrong answer. It is stored as user_progress.error_type.
type Category string

const (
	CategoryBlank     Category = "blank"
	CategoryAccent    Category = "accent"
	CategoryWordOrder Category = "word_order"
	CategorySpelling  Category = "spelling"
	CategorySpeedRush Category = "speed_rush"
	CategoryCareless  Category = "careless"
	CategoryIncorrect Category = "incorrect"
)

// Input holds what is known about one wrong answer.
type Input struct {
	Answer         string
	Expected       string
	ResponseTimeMs int64

	// Accuracy is the learner's historical accuracy (0.0–1.0) over
	// Answered previous answers.
	Accuracy float64
	Answered int
}

// Result is the output of classifying a wrong answer.
type Result struct {
	Category   Category
	Confidence float64 // 0.0–1.0
	Classifier string  // empty for the fallback
}
