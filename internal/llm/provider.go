// Package llm talks to the language models behind the tutor's chat replies,
// curriculum generation and exercise judging.
package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// Provider generates one completion. Implementations are safe for
// concurrent use.
type Provider interface {
	// Generate sends req and returns the model output. When req.Schema is
	// set the output is JSON that has been validated against it.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID is the model requests are sent to.
	ModelID() string
}

// Request is a single completion request.
type Request struct {
	System   string
	Messages []Message

	// Schema asks for structured output through the provider's native
	// mechanism. Nil means free text.
	Schema *Schema

	MaxTokens int

	// Temperature in [0, 1]. Zero leaves the provider default.
	Temperature float64
}

// Message is one conversation turn.
type Message struct {
	Role    Role
	Content string
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// StopReason is why the model stopped, normalized across providers.
type StopReason string

const (
	StopEnd       StopReason = "end"
	StopMaxTokens StopReason = "max_tokens"
)

// Response is a completed generation.
type Response struct {
	// Content is the validated JSON object for schema requests, and the
	// text encoded as a JSON string otherwise.
	Content    json.RawMessage
	Usage      Usage
	Model      string
	StopReason StopReason
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Text returns the response as plain text. String content is decoded;
// anything else is returned trimmed.
func (r *Response) Text() string {
	var s string
	if err := json.Unmarshal(r.Content, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(r.Content))
}

func textContent(text string) json.RawMessage {
	b, _ := json.Marshal(text)
	return b
}

// completion is the provider-neutral result of one API call.
type completion struct {
	text  string
	usage Usage
	model string
	stop  StopReason
}

// finish turns a raw completion into a Response. Structured output must
// parse and validate; a truncated structured reply is reported as
// ErrMaxTokensExceeded since retrying it unchanged cannot help.
func finish(req Request, c completion) (*Response, error) {
	if c.usage.TotalTokens == 0 {
		c.usage.TotalTokens = c.usage.InputTokens + c.usage.OutputTokens
	}
	resp := &Response{
		Content:    textContent(c.text),
		Usage:      c.usage,
		Model:      c.model,
		StopReason: c.stop,
	}
	if req.Schema == nil {
		return resp, nil
	}

	raw := json.RawMessage(strings.TrimSpace(c.text))
	if err := req.Schema.Validate(raw); err != nil {
		if c.stop == StopMaxTokens {
			return nil, &ErrMaxTokensExceeded{Content: raw}
		}
		return nil, err
	}
	resp.Content = raw
	return resp, nil
}
