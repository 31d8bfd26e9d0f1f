package diagnosis

import (
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		input      Input
		want       Category
		classifier string
	}{
		{
			name:       "blank",
			input:      Input{Answer: "  ?! ", Expected: "gato"},
			want:       CategoryBlank,
			classifier: "blank",
		},
		{
			name:       "missing tilde",
			input:      Input{Answer: "manana", Expected: "mañana"},
			want:       CategoryAccent,
			classifier: "accent",
		},
		{
			name:       "word order",
			input:      Input{Answer: "hambre tengo", Expected: "Tengo hambre."},
			want:       CategoryWordOrder,
			classifier: "word-order",
		},
		{
			name:       "one letter off",
			input:      Input{Answer: "tengo hanbre", Expected: "tengo hambre"},
			want:       CategorySpelling,
			classifier: "spelling",
		},
		{
			name:       "accent beats speed rush",
			input:      Input{Answer: "cancion", Expected: "canción", ResponseTimeMs: 500},
			want:       CategoryAccent,
			classifier: "accent",
		},
		{
			name:       "fast wrong answer",
			input:      Input{Answer: "perro", Expected: "gato", ResponseTimeMs: 1000},
			want:       CategorySpeedRush,
			classifier: "speed-rush",
		},
		{
			name:       "strong learner slip",
			input:      Input{Answer: "perro", Expected: "gato", ResponseTimeMs: 8000, Accuracy: 0.9, Answered: 20},
			want:       CategoryCareless,
			classifier: "careless",
		},
		{
			name:  "too little history",
			input: Input{Answer: "perro", Expected: "gato", ResponseTimeMs: 8000, Accuracy: 0.9, Answered: 3},
			want:  CategoryIncorrect,
		},
		{
			name:  "unknown response time",
			input: Input{Answer: "perro", Expected: "gato"},
			want:  CategoryIncorrect,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(DefaultClassifiers(), &tt.input)
			if got.Category != tt.want {
				t.Errorf("got category %q, want %q", got.Category, tt.want)
			}
			if got.Classifier != tt.classifier {
				t.Errorf("got classifier %q, want %q", got.Classifier, tt.classifier)
			}
		})
	}
}

func TestClassify_FallbackHasNoConfidence(t *testing.T) {
	got := Classify(nil, &Input{Answer: "x", Expected: "y"})
	if got.Category != CategoryIncorrect || got.Confidence != 0 {
		t.Errorf("got %+v, want incorrect with zero confidence", got)
	}
}

func TestSpeedRushClassifier_AtThreshold(t *testing.T) {
	c := &SpeedRushClassifier{}
	cat, _ := c.Classify(&Input{ResponseTimeMs: SpeedRushThresholdMs})
	if cat != "" {
		t.Errorf("got category %q at threshold, want empty", cat)
	}
}

func TestCarelessClassifier_AtThreshold(t *testing.T) {
	c := &CarelessClassifier{}
	cat, _ := c.Classify(&Input{Accuracy: CarelessAccuracyThreshold, Answered: 50})
	if cat != "" {
		t.Errorf("got category %q at threshold, want empty", cat)
	}
}

func TestSpellingClassifier_Allowance(t *testing.T) {
	tests := []struct {
		answer, expected string
		want             Category
	}{
		{"los", "las", CategorySpelling},
		{"el", "la", ""},
		{"biblioteka", "biblioteca", CategorySpelling},
		{"bibliotecario", "biblioteca", ""},
	}
	c := &SpellingClassifier{}
	for _, tt := range tests {
		cat, _ := c.Classify(&Input{Answer: tt.answer, Expected: tt.expected})
		if cat != tt.want {
			t.Errorf("Classify(%q, %q) = %q, want %q", tt.answer, tt.expected, cat, tt.want)
		}
	}
}
