package llm

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestSchemaValidate(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid", `{"result":"fail","score":0}`, false},
		{"not json", `result: fail`, true},
		{"missing field", `{"result":"fail"}`, true},
		{"bad enum", `{"result":"meh","score":0.5}`, true},
		{"above maximum", `{"result":"pass","score":1.5}`, true},
		{"extra field", `{"result":"pass","score":1,"note":"x"}`, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := verdictSchema.Validate(json.RawMessage(c.raw))
			if c.wantErr {
				var invalid *ErrInvalidResponse
				if !errors.As(err, &invalid) {
					t.Fatalf("expected ErrInvalidResponse, got %v", err)
				}
				if string(invalid.Content) != c.raw {
					t.Fatalf("expected offending content kept, got %s", invalid.Content)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSchemaValidate_BrokenSchema(t *testing.T) {
	s := &Schema{Name: "broken", Definition: map[string]any{"type": 12}}
	err := s.Validate(json.RawMessage(`{}`))
	if err == nil {
		t.Fatal("expected compile error")
	}
	var invalid *ErrInvalidResponse
	if errors.As(err, &invalid) {
		t.Fatal("a broken schema is not an invalid response")
	}
}
