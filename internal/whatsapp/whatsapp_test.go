package whatsapp

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lingoloop/lingoloop/internal/apperr"
	"github.com/lingoloop/lingoloop/internal/placement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"whatsapp:+14155550100", "+14155550100"},
		{"4155550100", "+14155550100"},
		{"34 612-345-678", "+34612345678"},
		{"+44 (20) 7946 0958", "+442079460958"},
		{"", ""},
		{"whatsapp:", ""},
	}
	for _, tt := range tests {
		if got := NormalizePhone(tt.in); got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

const metaBody = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "changes": [{
      "value": {
        "contacts": [{"wa_id": "34612345678", "profile": {"name": "Lucía"}}],
        "messages": [{
          "id": "wamid.1",
          "from": "34612345678",
          "timestamp": "1700000000",
          "type": "text",
          "text": {"body": "hola"}
        }]
      }
    }]
  }]
}`

func TestParse_Meta(t *testing.T) {
	msg, err := Parse("application/json", []byte(metaBody))
	require.NoError(t, err)
	assert.Equal(t, ProviderMeta, msg.Provider)
	assert.Equal(t, "wamid.1", msg.ID)
	assert.Equal(t, "+34612345678", msg.From)
	assert.Equal(t, "Lucía", msg.Name)
	assert.Equal(t, "hola", msg.Text)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), msg.Timestamp)
}

func TestParse_MetaButtonReply(t *testing.T) {
	body := `{"entry":[{"changes":[{"value":{"messages":[{"id":"x","from":"15551234567","type":"interactive",
		"interactive":{"type":"button_reply","button_reply":{"id":"b1","title":"Start lesson"}}}]}}]}]}`
	msg, err := Parse("application/json", []byte(body))
	require.NoError(t, err)
	assert.Equal(t, "Start lesson", msg.Text)
}

func TestParse_MetaStatusCallback(t *testing.T) {
	body := `{"entry":[{"changes":[{"value":{"statuses":[{"id":"wamid.1","status":"delivered"}]}}]}]}`
	_, err := Parse("application/json", []byte(body))
	if !errors.Is(err, ErrNoMessage) {
		t.Errorf("Parse(status) error = %v, want ErrNoMessage", err)
	}
}

func TestParse_TwilioForm(t *testing.T) {
	body := "From=whatsapp%3A%2B14155550100&To=whatsapp%3A%2B14155550199&Body=Hello+there&MessageSid=SM1&ProfileName=Sam"
	msg, err := Parse("application/x-www-form-urlencoded; charset=utf-8", []byte(body))
	require.NoError(t, err)
	assert.Equal(t, ProviderTwilio, msg.Provider)
	assert.Equal(t, "SM1", msg.ID)
	assert.Equal(t, "+14155550100", msg.From)
	assert.Equal(t, "+14155550199", msg.To)
	assert.Equal(t, "Hello there", msg.Text)
	assert.Equal(t, "Sam", msg.Name)
}

func TestParse_TwilioJSONMedia(t *testing.T) {
	body := `{"From":"whatsapp:+14155550100","To":"whatsapp:+14155550199","Body":"","MessageSid":"SM2","MediaUrl0":"https://example.com/a.ogg"}`
	msg, err := Parse("application/json", []byte(body))
	require.NoError(t, err)
	assert.Equal(t, "media", msg.Type)
	assert.Equal(t, "https://example.com/a.ogg", msg.MediaURL)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{"not json", "application/json", "{"},
		{"unknown shape", "application/json", `{"foo":"bar"}`},
		{"twilio without sender", "application/x-www-form-urlencoded", "Body=hi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.contentType, []byte(tt.body))
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("Parse() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestResolveOption(t *testing.T) {
	opts := []string{"casa", "perro", "gato"}
	tests := []struct {
		reply, want string
	}{
		{"b", "perro"},
		{" C ", "gato"},
		{"1", "casa"},
		{"4", "4"},
		{"d", "d"},
		{"perro", "perro"},
	}
	for _, tt := range tests {
		if got := ResolveOption(opts, tt.reply); got != tt.want {
			t.Errorf("ResolveOption(%q) = %q, want %q", tt.reply, got, tt.want)
		}
	}
	if got := ResolveOption(nil, "a"); got != "a" {
		t.Errorf("ResolveOption(nil, a) = %q, want a", got)
	}
}

func TestQuestionText(t *testing.T) {
	q := placement.Question{
		Text:       "Which word means 'dog'?",
		Options:    []string{"cat", "dog"},
		Difficulty: placement.LevelA1,
		Kind:       placement.KindMultipleChoice,
	}
	got := QuestionText(q, 0, 20)
	for _, want := range []string{"Question 1/20", "(A1)", "A. cat", "B. dog"} {
		if !strings.Contains(got, want) {
			t.Errorf("QuestionText() missing %q in %q", want, got)
		}
	}

	q = placement.Question{Text: "Buenos días", Difficulty: placement.LevelA2, Kind: placement.KindTranslation}
	if got := QuestionText(q, 4, 20); !strings.Contains(got, "Translate:") {
		t.Errorf("translation prompt missing instruction: %q", got)
	}
}

func TestPlacementResultText(t *testing.T) {
	res := &placement.Result{
		RecommendedLevel:   placement.LevelB1,
		ConfidenceScore:    0.85,
		TotalQuestions:     20,
		CorrectAnswers:     15,
		AccuracyPercentage: 75,
		StrongAreas:        []placement.Level{placement.LevelA1, placement.LevelA2},
		WeakAreas:          []placement.Level{placement.LevelB2},
	}
	got := PlacementResultText(res)
	for _, want := range []string{"*B1*", "15/20", "75%", "85%", "A1, A2", "B2"} {
		if !strings.Contains(got, want) {
			t.Errorf("PlacementResultText() missing %q in %q", want, got)
		}
	}
}

func TestProgressAndStreakText(t *testing.T) {
	if got := ProgressText(1, 3, "", 50); !strings.Contains(got, "1 day\n") || !strings.Contains(got, "not placed yet") {
		t.Errorf("ProgressText() = %q", got)
	}
	if got := StreakText(0); !strings.Contains(got, "No streak") {
		t.Errorf("StreakText(0) = %q", got)
	}
	if got := StreakText(5); !strings.Contains(got, "5 days") {
		t.Errorf("StreakText(5) = %q", got)
	}
}

func TestWelcomeText(t *testing.T) {
	if got := WelcomeText("Ana"); !strings.HasPrefix(got, "¡Hola Ana!") {
		t.Errorf("WelcomeText(Ana) = %q", got)
	}
	if got := WelcomeText(""); !strings.HasPrefix(got, "¡Hola! ") {
		t.Errorf("WelcomeText(\"\") = %q", got)
	}
}

func TestFeedbackText(t *testing.T) {
	got := FeedbackText(false, "gato", "perro", "Perro means dog.")
	assert.Contains(t, got, "Your answer: gato")
	assert.Contains(t, got, "Correct answer: perro")
	assert.Contains(t, got, "Perro means dog.")

	got = FeedbackText(true, "perro", "perro", "")
	assert.Contains(t, got, "Correct!")
	assert.NotContains(t, got, "💡")
}

func TestLogSender(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewLogSender(zap.New(core))
	require.NoError(t, s.Send(context.Background(), "+15550000000", "hi"))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "+15550000000", entries[0].ContextMap()["to"])
}

func TestWhatsappAddress(t *testing.T) {
	if got := whatsappAddress("4155550100"); got != "whatsapp:+14155550100" {
		t.Errorf("whatsappAddress() = %q", got)
	}
	if got := whatsappAddress("whatsapp:+1"); got != "whatsapp:+1" {
		t.Errorf("whatsappAddress() = %q", got)
	}
}
