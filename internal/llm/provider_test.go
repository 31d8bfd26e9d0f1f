package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/lingoloop/lingoloop/internal/apperr"
)

var verdictSchema = &Schema{
	Name: "verdict",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"result": map[string]any{"type": "string", "enum": []any{"pass", "fail"}},
			"score":  map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		},
		"required":             []any{"result", "score"},
		"additionalProperties": false,
	},
}

func TestFinish_Text(t *testing.T) {
	resp, err := finish(Request{}, completion{
		text:  "¡Hola!",
		usage: Usage{InputTokens: 3, OutputTokens: 2},
		model: "m",
		stop:  StopEnd,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text() != "¡Hola!" {
		t.Fatalf("Text() = %q", resp.Text())
	}
	if resp.Usage.TotalTokens != 5 {
		t.Fatalf("expected total 5, got %d", resp.Usage.TotalTokens)
	}
}

func TestFinish_Structured(t *testing.T) {
	resp, err := finish(Request{Schema: verdictSchema}, completion{text: ` {"result":"pass","score":0.9} `})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var v struct{ Result string }
	if err := json.Unmarshal(resp.Content, &v); err != nil || v.Result != "pass" {
		t.Fatalf("content not usable: %s (%v)", resp.Content, err)
	}
}

func TestFinish_StructuredInvalid(t *testing.T) {
	_, err := finish(Request{Schema: verdictSchema}, completion{text: `{"result":"maybe","score":2}`, stop: StopEnd})
	var invalid *ErrInvalidResponse
	if !errors.As(err, &invalid) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
	if !errors.Is(err, apperr.ErrLLM) {
		t.Fatal("expected invalid response to match apperr.ErrLLM")
	}
}

func TestFinish_StructuredTruncated(t *testing.T) {
	_, err := finish(Request{Schema: verdictSchema}, completion{text: `{"result":"pa`, stop: StopMaxTokens})
	var maxTok *ErrMaxTokensExceeded
	if !errors.As(err, &maxTok) {
		t.Fatalf("expected ErrMaxTokensExceeded, got %v", err)
	}
	if Retryable(err) {
		t.Fatal("truncated output should not be retryable")
	}
}

func TestResponseText_NonString(t *testing.T) {
	r := &Response{Content: json.RawMessage(" {\"a\":1}\n")}
	if r.Text() != `{"a":1}` {
		t.Fatalf("Text() = %q", r.Text())
	}
}

func TestFromStatus(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "7")
	err := fromStatus(http.StatusTooManyRequests, h, errors.New("slow down"))

	var limited *ErrRateLimit
	if !errors.As(err, &limited) {
		t.Fatalf("expected ErrRateLimit, got %v", err)
	}
	if limited.RetryAfter != 7*time.Second {
		t.Fatalf("expected 7s retry-after, got %s", limited.RetryAfter)
	}
	if !errors.Is(err, apperr.ErrRateLimited) || !errors.Is(err, apperr.ErrLLM) {
		t.Fatal("rate limit should match both apperr kinds")
	}

	err = fromStatus(http.StatusBadGateway, nil, errors.New("bad gateway"))
	var unavailable *ErrProviderUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if errors.Is(err, apperr.ErrRateLimited) {
		t.Fatal("5xx is not a rate limit")
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{&ErrRateLimit{}, true},
		{&ErrProviderUnavailable{}, true},
		{&ErrInvalidResponse{Err: errors.New("x")}, true},
		{errors.New("unknown"), true},
		{&ErrMaxTokensExceeded{}, false},
		{context.Canceled, false},
		{context.DeadlineExceeded, false},
	}
	for _, c := range cases {
		if got := Retryable(c.err); got != c.want {
			t.Errorf("Retryable(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestMockProvider(t *testing.T) {
	mock := NewMockProvider(
		TextResponse("first"),
		MockResponse{Content: json.RawMessage(`{"result":"pass","score":1}`), Usage: Usage{InputTokens: 4}},
		MockResponse{Err: errors.New("boom")},
	)
	ctx := context.Background()

	resp, err := mock.Generate(ctx, Request{System: "sys"})
	if err != nil || resp.Text() != "first" {
		t.Fatalf("first call: %v %v", resp, err)
	}
	resp, err = mock.Generate(ctx, Request{Schema: verdictSchema})
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if resp.Usage.InputTokens != 4 || resp.Model != "mock" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if _, err := mock.Generate(ctx, Request{}); err == nil || err.Error() != "boom" {
		t.Fatalf("expected scripted error, got %v", err)
	}

	var unavailable *ErrProviderUnavailable
	if _, err := mock.Generate(ctx, Request{}); !errors.As(err, &unavailable) {
		t.Fatalf("expected ErrProviderUnavailable when exhausted, got %v", err)
	}
	if mock.CallCount() != 4 {
		t.Fatalf("expected 4 calls, got %d", mock.CallCount())
	}
	if mock.Calls()[0].System != "sys" {
		t.Fatalf("expected recorded system prompt, got %q", mock.Calls()[0].System)
	}
}

func TestMockProvider_ValidatesStructured(t *testing.T) {
	mock := NewMockProvider(MockResponse{Content: json.RawMessage(`{"result":"pass"}`)})
	_, err := mock.Generate(context.Background(), Request{Schema: verdictSchema})
	var invalid *ErrInvalidResponse
	if !errors.As(err, &invalid) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestPurpose(t *testing.T) {
	ctx := context.Background()
	if PurposeFrom(ctx) != "unknown" {
		t.Fatalf("expected unknown, got %q", PurposeFrom(ctx))
	}
	if got := PurposeFrom(WithPurpose(ctx, PurposeJudge)); got != PurposeJudge {
		t.Fatalf("expected %q, got %q", PurposeJudge, got)
	}
}
