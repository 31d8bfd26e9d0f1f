package llm

import (
	"context"
	"testing"
)

func TestConfigDetect(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want string
		ok   bool
	}{
		{"explicit", Config{Provider: ProviderGemini}, ProviderGemini, true},
		{"openai first", Config{OpenAI: OpenAIConfig{APIKey: "a"}, Anthropic: AnthropicConfig{APIKey: "b"}}, ProviderOpenAI, true},
		{"anthropic", Config{Anthropic: AnthropicConfig{APIKey: "b"}}, ProviderAnthropic, true},
		{"openrouter", Config{OpenRouter: OpenRouterConfig{APIKey: "c"}}, ProviderOpenRouter, true},
		{"none", Config{}, "", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ok := c.cfg.Detect()
			if ok != c.ok || c.cfg.Provider != c.want {
				t.Fatalf("Detect() = %v, provider %q; want %v, %q", ok, c.cfg.Provider, c.ok, c.want)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected missing OPENAI_API_KEY")
	}
	cfg.OpenAI.APIKey = "sk-test"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (Config{Provider: ProviderMock}).Validate(); err != nil {
		t.Fatalf("mock needs no key: %v", err)
	}
	if err := (Config{Provider: "llama"}).Validate(); err == nil {
		t.Fatal("expected unknown provider error")
	}
}

func TestResolveModel(t *testing.T) {
	cases := []struct{ provider, in, want string }{
		{ProviderAnthropic, "claude-haiku", "claude-haiku-4-5-20251001"},
		{ProviderGemini, "gemini-flash", "gemini-2.5-flash"},
		{ProviderOpenAI, "gpt-mini", "gpt-4o-mini"},
		{ProviderOpenAI, "gpt-4.1", "gpt-4.1"},
		{ProviderOpenRouter, "openai/gpt-4o-mini", "openai/gpt-4o-mini"},
	}
	for _, c := range cases {
		if got := ResolveModel(c.provider, c.in); got != c.want {
			t.Errorf("ResolveModel(%q, %q) = %q, want %q", c.provider, c.in, got, c.want)
		}
	}
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Provider: ProviderMock}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ModelID() != "mock" {
		t.Fatalf("expected mock model, got %q", p.ModelID())
	}

	if _, err := NewProvider(context.Background(), Config{Provider: ProviderAnthropic}, nil, nil); err == nil {
		t.Fatal("expected error for missing anthropic key")
	}
}

func TestLookupCost(t *testing.T) {
	cases := []struct {
		model string
		want  float64
	}{
		{"gpt-4o-mini", 0.15},
		{"openai/gpt-4o-mini", 0.15},
		{"claude-haiku", 1},
		{"claude-haiku-4-5-20251001", 1},
		{"gpt-4o-2024-08-06", 2.5},
	}
	for _, c := range cases {
		mc := LookupCost(c.model)
		if mc == nil {
			t.Errorf("LookupCost(%q) = nil", c.model)
			continue
		}
		if mc.InputPerMTok != c.want {
			t.Errorf("LookupCost(%q).InputPerMTok = %v, want %v", c.model, mc.InputPerMTok, c.want)
		}
	}
	if LookupCost("llama-3-70b") != nil {
		t.Error("expected nil for unknown model")
	}

	cost := ModelCost{InputPerMTok: 2, OutputPerMTok: 10}.Cost(500_000, 100_000)
	if cost != 2 {
		t.Fatalf("expected $2, got %v", cost)
	}
}
