package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/lingoloop/lingoloop/internal/llm"
	"github.com/lingoloop/lingoloop/internal/session"
	"github.com/lingoloop/lingoloop/internal/whatsapp"
)

const tutorSystemPrompt = `You are a friendly AI language tutor chatting on WhatsApp. Be encouraging and helpful.`

var languageNames = map[string]string{
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"it": "Italian",
	"de": "German",
	"pt": "Portuguese",
}

func languageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return code
}

func buildTutorSystemPrompt(t *turn) string {
	var b strings.Builder
	b.WriteString(tutorSystemPrompt)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "The learner speaks %s and is learning %s.\n",
		languageName(t.user.NativeLang), languageName(t.user.TargetLang))
	if t.sess.Level != "" {
		fmt.Fprintf(&b, "Their CEFR level is %s; keep your %s at that level.\n", t.sess.Level, languageName(t.user.TargetLang))
	}
	if t.user.Name != "" {
		fmt.Fprintf(&b, "Their name is %s.\n", t.user.Name)
	}
	b.WriteString(`
Rules:
- Reply in 1-4 short sentences; this is a chat, not an essay.
- Gently correct mistakes in the learner's last message, then keep the conversation going.
- Plain text only. WhatsApp supports *bold* and emoji but nothing else.`)
	return b.String()
}

// chat asks the tutor model for a reply using recent history. Without a
// model it answers with the help text.
func (e *Engine) chat(ctx context.Context, t *turn) (string, error) {
	if e.deps.LLM == nil {
		return whatsapp.HelpText, nil
	}
	ctx = llm.WithPurpose(ctx, llm.PurposeChat)

	history := t.sess.Recent(e.cfg.ChatHistory)
	messages := make([]llm.Message, 0, len(history))
	for _, m := range history {
		role := llm.RoleUser
		if m.Role == session.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: m.Content})
	}
	if len(messages) == 0 || messages[len(messages)-1].Role != llm.RoleUser {
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: t.text})
	}
	// Providers expect the conversation to open with the user.
	for len(messages) > 1 && messages[0].Role != llm.RoleUser {
		messages = messages[1:]
	}

	resp, err := e.deps.LLM.Generate(ctx, llm.Request{
		System:      buildTutorSystemPrompt(t),
		Messages:    messages,
		MaxTokens:   400,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("tutor reply: %w", err)
	}
	reply := resp.Text()
	if reply == "" {
		return whatsapp.HelpText, nil
	}
	return reply, nil
}
