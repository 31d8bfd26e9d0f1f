package llm

import (
	"testing"

	"google.golang.org/genai"
)

func TestGeminiSchema(t *testing.T) {
	s := geminiSchema(verdictSchema.Definition)

	if s.Type != genai.TypeObject {
		t.Fatalf("expected OBJECT, got %s", s.Type)
	}
	if len(s.Properties) != 2 || len(s.Required) != 2 {
		t.Fatalf("unexpected shape: %d properties, %d required", len(s.Properties), len(s.Required))
	}
	if got := s.PropertyOrdering; len(got) != 2 || got[0] != "result" || got[1] != "score" {
		t.Fatalf("expected sorted property ordering, got %v", got)
	}

	result := s.Properties["result"]
	if result.Type != genai.TypeString || len(result.Enum) != 2 {
		t.Fatalf("unexpected result schema %+v", result)
	}
	score := s.Properties["score"]
	if score.Type != genai.TypeNumber || score.Minimum == nil || *score.Minimum != 0 || score.Maximum == nil || *score.Maximum != 1 {
		t.Fatalf("unexpected score schema %+v", score)
	}
}

func TestGeminiSchema_Array(t *testing.T) {
	s := geminiSchema(map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string", "description": "suggestion"},
	})
	if s.Type != genai.TypeArray || s.Items == nil || s.Items.Type != genai.TypeString || s.Items.Description != "suggestion" {
		t.Fatalf("unexpected array schema %+v", s)
	}
}

func TestGeminiContents_Roles(t *testing.T) {
	got := geminiContents([]Message{
		{Role: RoleUser, Content: "hola"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "again"},
	})
	if len(got) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(got))
	}
	want := []string{genai.RoleUser, genai.RoleModel, genai.RoleUser}
	for i, c := range got {
		if c.Role != want[i] {
			t.Fatalf("content %d: expected role %q, got %q", i, want[i], c.Role)
		}
	}
	if len(got[1].Parts) != 1 || got[1].Parts[0].Text != "hello" {
		t.Fatalf("unexpected parts %+v", got[1].Parts)
	}
}
