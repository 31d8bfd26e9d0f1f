// Package router classifies inbound messages into conversation intents.
package router

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lingoloop/lingoloop/internal/session"
)

// Intent names the handler a message is routed to.
type Intent string

const (
	IntentOnboarding      Intent = "onboarding"
	IntentPlacementAnswer Intent = "placement_answer"
	IntentCommand         Intent = "command"
	IntentStartPlacement  Intent = "start_placement"
	IntentStartLesson     Intent = "start_lesson"
	IntentGreeting        Intent = "greeting"
	IntentMenuSelection   Intent = "menu_selection"
	IntentLessonAnswer    Intent = "lesson_answer"
	IntentChat            Intent = "chat"
)

// Commands answered directly from stored state.
const (
	CommandMenu     = "menu"
	CommandHelp     = "help"
	CommandProgress = "progress"
	CommandStreak   = "streak"
	CommandStop     = "stop"
	CommandStart    = "start"
)

var commands = map[string]Intent{
	CommandMenu:     IntentCommand,
	CommandHelp:     IntentCommand,
	CommandProgress: IntentCommand,
	CommandStreak:   IntentCommand,
	CommandStop:     IntentCommand,
	CommandStart:    IntentCommand,
	"test":          IntentStartPlacement,
	"placement":     IntentStartPlacement,
	"lesson":        IntentStartLesson,
	"practice":      IntentStartLesson,
}

var greetingWords = map[string]bool{
	"hola":   true,
	"hello":  true,
	"hi":     true,
	"hey":    true,
	"buenas": true,
}

var greetingPhrases = []string{"buenos días", "buenos dias"}

var selectionWords = []string{"option", "choose", "select", "answer"}

// Classify picks the intent for text. Earlier rules win: onboarding, an
// open placement test, commands, greetings, menu selections, an open
// lesson and finally free chat.
func Classify(text string, sess *session.Session, isNewUser bool) Intent {
	if isNewUser {
		return IntentOnboarding
	}
	if sess.InPlacement() {
		return IntentPlacementAnswer
	}

	norm := Normalize(text)
	if intent, ok := commands[norm]; ok {
		return intent
	}
	if IsGreeting(norm) {
		return IntentGreeting
	}
	if IsMenuSelection(norm) {
		return IntentMenuSelection
	}
	if sess != nil && sess.InLesson {
		return IntentLessonAnswer
	}
	return IntentChat
}

// Normalize lowercases text and trims surrounding space.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// IsGreeting reports whether normalized text opens with a greeting word or
// phrase. Words are matched whole, so "this" is not "hi".
func IsGreeting(norm string) bool {
	for _, p := range greetingPhrases {
		if strings.HasPrefix(norm, p) {
			return true
		}
	}
	for _, w := range words(norm) {
		if greetingWords[w] {
			return true
		}
	}
	return false
}

// IsMenuSelection reports whether normalized text looks like a pick from a
// numbered or lettered list.
func IsMenuSelection(norm string) bool {
	if utf8.RuneCountInString(norm) == 1 {
		r, _ := utf8.DecodeRuneInString(norm)
		return unicode.IsDigit(r) || unicode.IsLetter(r)
	}
	for _, w := range selectionWords {
		if strings.Contains(norm, w) {
			return true
		}
	}
	return false
}

func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
