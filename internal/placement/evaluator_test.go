package placement

import "testing"

func mcQuestion() *Question {
	return &Question{
		ExerciseID:    1,
		Text:          "Pick the right article",
		CorrectAnswer: "B",
		Options:       []string{"A", "B", "C", "D"},
		Difficulty:    LevelA1,
		Kind:          KindMultipleChoice,
	}
}

func translationQuestion(correct string) *Question {
	return &Question{
		ExerciseID:    2,
		Text:          "Translate",
		CorrectAnswer: correct,
		Difficulty:    LevelA2,
		Kind:          KindTranslation,
	}
}

func TestIsCorrect_Reflexive(t *testing.T) {
	questions := []*Question{
		mcQuestion(),
		translationQuestion("Yesterday I went to the market."),
		translationQuestion("¿Dónde está la estación?"),
		{CorrectAnswer: "hola", Kind: Kind("fill_blank")},
	}
	for _, q := range questions {
		if !IsCorrect(q, q.CorrectAnswer) {
			t.Errorf("IsCorrect(%q, own answer) = false, want true", q.CorrectAnswer)
		}
	}
}

func TestIsCorrect_CaseAndWhitespace(t *testing.T) {
	q := translationQuestion("Good Morning")
	for _, raw := range []string{"good morning", "  GOOD MORNING  ", "\tGood Morning\n"} {
		if !IsCorrect(q, raw) {
			t.Errorf("IsCorrect(%q) = false, want true", raw)
		}
	}
}

func TestIsCorrect_MultipleChoice(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"b", true},
		{" B ", true},
		{"A", false},
		{"d", false},
		{"E", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsCorrect(mcQuestion(), tt.raw); got != tt.want {
			t.Errorf("IsCorrect(mc, %q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestIsCorrect_MultipleChoiceNoFuzzy(t *testing.T) {
	q := &Question{
		CorrectAnswer: "the red house",
		Options:       []string{"the red house", "the blue house"},
		Kind:          KindMultipleChoice,
	}
	if IsCorrect(q, "the red house!") {
		t.Error("multiple choice answers must not be fuzzy matched")
	}
}

func TestIsCorrect_TranslationFuzzy(t *testing.T) {
	tests := []struct {
		name    string
		correct string
		raw     string
		want    bool
	}{
		{"missing article", "Yesterday I went to the market.", "yesterday i went to market", true},
		{"punctuation only", "I like coffee!", "i like coffee", true},
		{"word order", "I like coffee very much", "very much I like coffee", true},
		{"exactly eighty percent", "one two three four five", "one two three four", true},
		{"below threshold", "Yesterday I went to the market.", "i went to school", false},
		{"extra words dilute", "I eat", "I eat bread and cheese every day", false},
		{"accents kept", "Él está aquí", "él está aquí.", true},
		{"accents matter", "está", "esta", false},
		{"empty answer", "Hello", "", false},
		{"punctuation answer", "Hello", "?!", false},
		{"both punctuation only", "¡!", "?", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCorrect(translationQuestion(tt.correct), tt.raw); got != tt.want {
				t.Errorf("IsCorrect(%q vs %q) = %v, want %v", tt.raw, tt.correct, got, tt.want)
			}
		})
	}
}

func TestIsCorrect_OtherKindsExactOnly(t *testing.T) {
	q := &Question{CorrectAnswer: "I went to the market", Kind: Kind("open_response")}
	if IsCorrect(q, "I went to market") {
		t.Error("non-translation kinds must require an exact match")
	}
}
