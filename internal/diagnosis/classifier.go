package diagnosis

// Classifier is a rule-based error classifier.
// Returns a category and confidence (0.0–1.0), or ("", 0) if the rule doesn't apply.
type Classifier interface {
	Name() string
	Classify(input *Input) (Category, float64)
}

// DefaultClassifiers returns classifiers in priority order. Rules that look
// at the answer text come before the behavioural ones, since a near miss
// explains itself better than timing does.
func DefaultClassifiers() []Classifier {
	return []Classifier{
		&BlankClassifier{},
		&AccentClassifier{},
		&WordOrderClassifier{},
		&SpellingClassifier{},
		&SpeedRushClassifier{},
		&CarelessClassifier{},
	}
}

// Classify runs classifiers in order and returns the first match, falling
// back to CategoryIncorrect.
func Classify(classifiers []Classifier, input *Input) Result {
	for _, c := range classifiers {
		cat, conf := c.Classify(input)
		if cat != "" {
			return Result{Category: cat, Confidence: conf, Classifier: c.Name()}
		}
	}
	return Result{Category: CategoryIncorrect}
}
