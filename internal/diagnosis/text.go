package diagnosis

import (
	"slices"
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// BlankClassifier flags empty answers.
type BlankClassifier struct{}

func (c *BlankClassifier) Name() string { return "blank" }

func (c *BlankClassifier) Classify(input *Input) (Category, float64) {
	if clean(input.Answer) == "" {
		return CategoryBlank, 1
	}
	return "", 0
}

// AccentClassifier flags answers that only differ from the expected one in
// diacritics, e.g. "manana" for "mañana".
type AccentClassifier struct{}

func (c *AccentClassifier) Name() string { return "accent" }

func (c *AccentClassifier) Classify(input *Input) (Category, float64) {
	answer, expected := clean(input.Answer), clean(input.Expected)
	if answer != expected && foldAccents(answer) == foldAccents(expected) {
		return CategoryAccent, 0.95
	}
	return "", 0
}

// WordOrderClassifier flags answers with the right words in the wrong order.
type WordOrderClassifier struct{}

func (c *WordOrderClassifier) Name() string { return "word-order" }

func (c *WordOrderClassifier) Classify(input *Input) (Category, float64) {
	answer := strings.Fields(clean(input.Answer))
	expected := strings.Fields(clean(input.Expected))
	if len(expected) < 2 || slices.Equal(answer, expected) {
		return "", 0
	}
	slices.Sort(answer)
	slices.Sort(expected)
	if slices.Equal(answer, expected) {
		return CategoryWordOrder, 0.9
	}
	return "", 0
}

// MaxSpellingDistance caps the edit distance counted as a misspelling.
const MaxSpellingDistance = 3

// SpellingClassifier flags answers within a few edits of the expected one.
// The allowance grows with length: one edit per four characters, at least
// one and at most MaxSpellingDistance.
type SpellingClassifier struct{}

func (c *SpellingClassifier) Name() string { return "spelling" }

func (c *SpellingClassifier) Classify(input *Input) (Category, float64) {
	answer := foldAccents(clean(input.Answer))
	expected := foldAccents(clean(input.Expected))
	if answer == "" || answer == expected {
		return "", 0
	}
	allowed := min(max(len([]rune(expected))/4, 1), MaxSpellingDistance)
	if d := levenshtein.Distance(answer, expected, nil); d <= allowed {
		return CategorySpelling, 0.85
	}
	return "", 0
}

// clean lower-cases s, drops punctuation and collapses whitespace.
func clean(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return unicode.ToLower(r)
		case unicode.IsSpace(r):
			return ' '
		}
		return -1
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
