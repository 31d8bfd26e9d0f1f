package placement

import (
	"slices"
	"strings"
	"unicode"
)

// fuzzyThreshold is the minimum word overlap for a translation to pass.
const fuzzyThreshold = 0.8

// IsCorrect reports whether raw is an acceptable answer to q.
//
// Both sides are trimmed and lower-cased first; an exact match always
// passes. Multiple-choice answers that name a listed option are judged
// by that option alone. Translations fall back to a word-overlap match
// that ignores punctuation and word order.
func IsCorrect(q *Question, raw string) bool {
	answer := normalize(raw)
	correct := normalize(q.CorrectAnswer)

	if answer == correct {
		return true
	}

	switch q.Kind {
	case KindMultipleChoice:
		if slices.ContainsFunc(q.Options, func(opt string) bool { return normalize(opt) == answer }) {
			return answer == correct
		}
		return false
	case KindTranslation:
		return fuzzyMatch(answer, correct)
	default:
		return false
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// fuzzyMatch compares two normalized translations by word overlap.
func fuzzyMatch(answer, correct string) bool {
	answerClean := stripPunctuation(answer)
	correctClean := stripPunctuation(correct)

	if answerClean == correctClean {
		return true
	}

	answerWords := wordSet(answerClean)
	correctWords := wordSet(correctClean)
	if len(answerWords) == 0 || len(correctWords) == 0 {
		return false
	}

	return overlapRatio(answerWords, correctWords) >= fuzzyThreshold
}

// stripPunctuation keeps letters (accented ones included), digits and whitespace.
func stripPunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s)
}

func wordSet(s string) map[string]struct{} {
	words := strings.Fields(s)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// overlapRatio is |a ∩ b| / max(|a|, |b|).
func overlapRatio(a, b map[string]struct{}) float64 {
	shared := 0
	for w := range a {
		if _, ok := b[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(max(len(a), len(b)))
}
