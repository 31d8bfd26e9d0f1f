package diagnosis

// SpeedRushThresholdMs is the maximum response time (exclusive) for a
// wrong answer to be classified as a speed-rush.
const SpeedRushThresholdMs = 3000

// SpeedRushClassifier flags answers submitted too quickly as speed-rush errors.
type SpeedRushClassifier struct{}

func (c *SpeedRushClassifier) Name() string { return "speed-rush" }

func (c *SpeedRushClassifier) Classify(input *Input) (Category, float64) {
	if input.ResponseTimeMs > 0 && input.ResponseTimeMs < SpeedRushThresholdMs {
		return CategorySpeedRush, 0.7
	}
	return "", 0
}

const (
	// CarelessAccuracyThreshold is the minimum historical accuracy
	// (exclusive) for a wrong answer to be classified as a careless slip.
	CarelessAccuracyThreshold = 0.80

	// CarelessMinAnswers is how much history is needed before accuracy
	// is trusted.
	CarelessMinAnswers = 10
)

// CarelessClassifier flags wrong answers from high-accuracy learners as
// careless slips rather than knowledge gaps.
type CarelessClassifier struct{}

func (c *CarelessClassifier) Name() string { return "careless" }

func (c *CarelessClassifier) Classify(input *Input) (Category, float64) {
	if input.Answered >= CarelessMinAnswers && input.Accuracy > CarelessAccuracyThreshold {
		return CategoryCareless, 0.6
	}
	return "", 0
}
