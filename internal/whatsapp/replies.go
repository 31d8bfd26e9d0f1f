package whatsapp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lingoloop/lingoloop/internal/placement"
)

// Reply texts. WhatsApp renders *text* as bold.

const (
	HelpText = "🤖 *LingoLoop help*\n\n" +
		"Commands:\n" +
		"• *menu* - main menu\n" +
		"• *lesson* - practise an exercise at your level\n" +
		"• *test* - take the placement test\n" +
		"• *progress* - your stats\n" +
		"• *streak* - your daily streak\n" +
		"• *stop* - end the current lesson or test\n\n" +
		"Or just write to me and we can chat in the language you are learning. 🌟"

	MenuText = "📚 *Main menu*\n\n" +
		"1. Start a lesson\n" +
		"2. Placement test\n" +
		"3. My progress\n" +
		"4. Help\n\n" +
		"Reply with a number."

	GoodbyeText = "👋 Stopped. Great work today! Send *start* or *lesson* whenever you want to continue."

	ResumeText = "🚀 Welcome back! Send *lesson* for an exercise or *menu* to see everything I can do."

	ErrorText = "Sorry, I had trouble processing that. Can you try again? 🤔"

	NoExercisesText = "I don't have an exercise for your level right now. Please try again later. 🙏"

	NoPlacementText = "I couldn't put together a placement test right now, so we'll start you at A1. Send *lesson* to begin."
)

// WelcomeText greets a first-time user.
func WelcomeText(name string) string {
	greeting := "¡Hola! 👋"
	if name != "" {
		greeting = fmt.Sprintf("¡Hola %s! 👋", name)
	}
	return greeting + "\n\nWelcome to LingoLoop, your language tutor on WhatsApp. " +
		"Let's start with a short placement test so I can find the right level for you."
}

// ProgressText summarizes a learner's stats.
func ProgressText(streak, lessons int, level string, accuracy float64) string {
	if level == "" {
		level = "not placed yet"
	}
	return fmt.Sprintf("📊 *Your progress*\n\n"+
		"🔥 Streak: %d %s\n"+
		"📚 Lessons: %d completed\n"+
		"🎯 Level: %s\n"+
		"✅ Accuracy: %.0f%%\n\n"+
		"Keep it up! 💪", streak, plural(streak, "day", "days"), lessons, level, accuracy)
}

// StreakText reports the current streak.
func StreakText(streak int) string {
	if streak == 0 {
		return "🔥 No streak yet. Finish a lesson today to start one!"
	}
	return fmt.Sprintf("🔥 You're on a %d %s streak. Don't break it!", streak, plural(streak, "day", "days"))
}

// AlreadyPlacedText answers a placement request from a placed user.
func AlreadyPlacedText(level string) string {
	return fmt.Sprintf("You've already been placed at *%s*. Send *lesson* to keep practising.", level)
}

// SelectionText acknowledges a menu choice that maps to no action.
func SelectionText(choice string) string {
	return fmt.Sprintf("Thanks for selecting: %s 🎉\n\nSend *menu* to see the options.", choice)
}

// QuestionText renders one placement question with its position.
func QuestionText(q placement.Question, index, total int) string {
	header := fmt.Sprintf("📝 *Question %d/%d* (%s)\n\n", index+1, total, q.Difficulty)
	if q.Kind == placement.KindTranslation {
		header += "Translate:\n"
	}
	return header + ExerciseText(q.Text, q.Options)
}

// ExerciseText renders a prompt and, for multiple choice, lettered options.
func ExerciseText(prompt string, options []string) string {
	if len(options) == 0 {
		return prompt + "\n\nType your answer below. 💬"
	}
	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\n")
	for i, opt := range options {
		fmt.Fprintf(&b, "%c. %s\n", 'A'+i, opt)
	}
	b.WriteString("\nReply with the letter of your choice.")
	return b.String()
}

// ResolveOption maps a letter ("b") or number ("2") reply to the option it
// names. Any other reply is returned unchanged.
func ResolveOption(options []string, reply string) string {
	r := strings.TrimSpace(reply)
	if len(options) == 0 || r == "" {
		return reply
	}
	if n, err := strconv.Atoi(r); err == nil {
		if n >= 1 && n <= len(options) {
			return options[n-1]
		}
		return reply
	}
	if len(r) == 1 {
		c := strings.ToUpper(r)[0]
		if i := int(c - 'A'); c >= 'A' && i < len(options) {
			return options[i]
		}
	}
	return reply
}

// FeedbackText tells the learner whether their answer was right.
func FeedbackText(correct bool, answer, expected, explanation string) string {
	var b strings.Builder
	if correct {
		b.WriteString("✅ *Correct!* Well done! 🎉")
	} else {
		fmt.Fprintf(&b, "❌ *Not quite.*\n\nYour answer: %s\nCorrect answer: %s", answer, expected)
	}
	if explanation != "" {
		fmt.Fprintf(&b, "\n\n💡 %s", explanation)
	}
	b.WriteString("\n\nSend *lesson* for another one.")
	return b.String()
}

// PlacementResultText announces a finished placement test.
func PlacementResultText(res *placement.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎓 *Placement complete!*\n\nYour level: *%s*\n", res.RecommendedLevel)
	fmt.Fprintf(&b, "Score: %d/%d (%.0f%%)\n", res.CorrectAnswers, res.TotalQuestions, res.AccuracyPercentage)
	fmt.Fprintf(&b, "Confidence: %.0f%%\n", res.ConfidenceScore*100)
	if len(res.StrongAreas) > 0 {
		fmt.Fprintf(&b, "💪 Strong: %s\n", joinLevels(res.StrongAreas))
	}
	if len(res.WeakAreas) > 0 {
		fmt.Fprintf(&b, "📖 To practise: %s\n", joinLevels(res.WeakAreas))
	}
	b.WriteString("\nSend *lesson* to start learning at your level!")
	return b.String()
}

func joinLevels(levels []placement.Level) string {
	parts := make([]string, len(levels))
	for i, l := range levels {
		parts[i] = string(l)
	}
	return strings.Join(parts, ", ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// GreetingText answers a greeting when no tutor model is configured.
func GreetingText(name string) string {
	if name == "" {
		return "¡Hola! 👋 Send *lesson* to practise or *menu* to see what I can do."
	}
	return fmt.Sprintf("¡Hola %s! 👋 Send *lesson* to practise or *menu* to see what I can do.", name)
}
