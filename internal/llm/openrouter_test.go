package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenRouterProvider(t *testing.T) {
	var referer, title, model string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referer = r.Header.Get("HTTP-Referer")
		title = r.Header.Get("X-Title")
		var body struct{ Model string }
		json.NewDecoder(r.Body).Decode(&body)
		model = body.Model
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatCompletion("hola", "stop"))
	}))
	t.Cleanup(srv.Close)

	p, err := NewOpenRouterProvider(OpenRouterConfig{APIKey: "sk-or-test", Model: "google/gemini-2.5-flash", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ModelID() != "google/gemini-2.5-flash" {
		t.Fatalf("model id should pass through, got %q", p.ModelID())
	}

	resp, err := p.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text() != "hola" {
		t.Fatalf("unexpected text %q", resp.Text())
	}
	if referer != openRouterReferer || title != openRouterTitle {
		t.Fatalf("attribution headers missing: %q %q", referer, title)
	}
	if model != "google/gemini-2.5-flash" {
		t.Fatalf("unexpected model sent: %q", model)
	}
}

func TestNewOpenRouterProvider_NoKey(t *testing.T) {
	if _, err := NewOpenRouterProvider(OpenRouterConfig{}); err == nil {
		t.Fatal("expected error for missing key")
	}
}
