// Package whatsapp normalizes inbound webhook payloads and sends replies.
package whatsapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lingoloop/lingoloop/internal/apperr"
)

// ErrNoMessage is returned for payloads that carry no user message, such
// as delivery status callbacks.
var ErrNoMessage = errors.New("payload has no message")

// Provider names the webhook shape a message arrived in.
type Provider string

const (
	ProviderMeta   Provider = "meta"
	ProviderTwilio Provider = "twilio"
)

// InboundMessage is a user message in provider-neutral form.
type InboundMessage struct {
	ID       string
	Provider Provider

	// From is the sender's normalized phone number and doubles as wa_id.
	From string
	To   string
	Name string

	Type     string
	Text     string
	MediaURL string

	// Timestamp is when the provider saw the message. Zero when the
	// payload does not say; receivers fill in their own clock.
	Timestamp time.Time
}

type metaPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					ID        string `json:"id"`
					From      string `json:"from"`
					To        string `json:"to"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      struct {
						Body string `json:"body"`
					} `json:"text"`
					Interactive *struct {
						ButtonReply *struct {
							Title string `json:"title"`
						} `json:"button_reply"`
						ListReply *struct {
							Title string `json:"title"`
						} `json:"list_reply"`
					} `json:"interactive"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// Parse decodes a webhook body. Meta Cloud API JSON and Twilio
// form-encoded or JSON bodies are accepted.
func Parse(contentType string, body []byte) (*InboundMessage, error) {
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, apperr.New(apperr.ErrValidation, "parse twilio form", err)
		}
		return parseTwilio(func(k string) string { return values.Get(k) })
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, apperr.New(apperr.ErrValidation, "parse webhook json", err)
	}
	if _, ok := probe["entry"]; ok {
		return parseMeta(body)
	}
	if _, ok := probe["From"]; ok {
		fields := make(map[string]string, len(probe))
		for k, raw := range probe {
			var s string
			if json.Unmarshal(raw, &s) == nil {
				fields[k] = s
			}
		}
		return parseTwilio(func(k string) string { return fields[k] })
	}
	return nil, apperr.New(apperr.ErrValidation, "parse webhook", fmt.Errorf("unknown payload shape"))
}

func parseMeta(body []byte) (*InboundMessage, error) {
	var p metaPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, apperr.New(apperr.ErrValidation, "parse meta payload", err)
	}
	if len(p.Entry) == 0 || len(p.Entry[0].Changes) == 0 {
		return nil, ErrNoMessage
	}
	value := p.Entry[0].Changes[0].Value
	if len(value.Messages) == 0 {
		return nil, ErrNoMessage
	}
	m := value.Messages[0]

	msg := &InboundMessage{
		ID:       m.ID,
		Provider: ProviderMeta,
		From:     NormalizePhone(m.From),
		To:       NormalizePhone(m.To),
		Type:     m.Type,
	}
	if msg.Type == "" {
		msg.Type = "text"
	}
	switch {
	case msg.Type == "text":
		msg.Text = m.Text.Body
	case m.Interactive != nil && m.Interactive.ButtonReply != nil:
		msg.Text = m.Interactive.ButtonReply.Title
	case m.Interactive != nil && m.Interactive.ListReply != nil:
		msg.Text = m.Interactive.ListReply.Title
	}
	if len(value.Contacts) > 0 {
		msg.Name = value.Contacts[0].Profile.Name
		if msg.From == "" {
			msg.From = NormalizePhone(value.Contacts[0].WaID)
		}
	}
	if secs, err := strconv.ParseInt(m.Timestamp, 10, 64); err == nil {
		msg.Timestamp = time.Unix(secs, 0).UTC()
	}
	if msg.From == "" {
		return nil, apperr.Newf(apperr.ErrValidation, "parse meta payload", "message %q has no sender", m.ID)
	}
	return msg, nil
}

func parseTwilio(get func(string) string) (*InboundMessage, error) {
	from := NormalizePhone(get("From"))
	if from == "" {
		return nil, apperr.Newf(apperr.ErrValidation, "parse twilio payload", "missing From")
	}
	msg := &InboundMessage{
		ID:       get("MessageSid"),
		Provider: ProviderTwilio,
		From:     from,
		To:       NormalizePhone(get("To")),
		Name:     get("ProfileName"),
		Type:     "text",
		Text:     get("Body"),
		MediaURL: get("MediaUrl0"),
	}
	if msg.Text == "" && msg.MediaURL != "" {
		msg.Type = "media"
	}
	return msg, nil
}

// NormalizePhone strips the "whatsapp:" scheme and punctuation and makes
// sure the number carries a leading "+". Bare ten digit numbers are taken
// as North American.
func NormalizePhone(phone string) string {
	phone = strings.TrimPrefix(strings.TrimSpace(phone), "whatsapp:")

	var b strings.Builder
	for _, r := range phone {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "" {
		return ""
	}
	if strings.HasPrefix(out, "+") {
		return out
	}
	if len(out) == 10 {
		return "+1" + out
	}
	return "+" + out
}
