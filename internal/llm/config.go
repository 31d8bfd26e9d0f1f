package llm

import (
	"fmt"
	"time"
)

// Provider names accepted in Config.Provider.
const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderMock       = "mock"
)

// Config selects and configures the LLM backend.
type Config struct {
	// Provider is one of the Provider* names. Empty means auto-detect
	// from whichever API key is present.
	Provider string

	OpenAI     OpenAIConfig
	Anthropic  AnthropicConfig
	Gemini     GeminiConfig
	OpenRouter OpenRouterConfig
	Retry      RetryConfig

	// Timeout bounds one Generate call including its retries.
	Timeout time.Duration

	// RateLimitPerMinute caps outgoing requests. Zero is unlimited.
	RateLimitPerMinute int
}

type OpenAIConfig struct {
	APIKey string
	Model  string
	// BaseURL points the client at an OpenAI-compatible server.
	BaseURL string
}

type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type OpenRouterConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// RetryConfig is exponential backoff for transient failures.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// Short model names accepted in config, per provider. Unlisted names are
// passed to the API unchanged.
var modelAliases = map[string]map[string]string{
	ProviderOpenAI: {
		"gpt-mini": "gpt-4o-mini",
		"gpt":      "gpt-4o",
	},
	ProviderAnthropic: {
		"claude-haiku":  "claude-haiku-4-5-20251001",
		"claude-sonnet": "claude-sonnet-4-20250514",
	},
	ProviderGemini: {
		"gemini-flash": "gemini-2.5-flash",
		"gemini-pro":   "gemini-2.5-pro",
	},
}

// ResolveModel expands a short model name for provider.
func ResolveModel(provider, name string) string {
	if id, ok := modelAliases[provider][name]; ok {
		return id
	}
	return name
}

func DefaultConfig() Config {
	return Config{
		Provider:   ProviderOpenAI,
		OpenAI:     OpenAIConfig{Model: "gpt-4o-mini"},
		Anthropic:  AnthropicConfig{Model: "claude-haiku"},
		Gemini:     GeminiConfig{Model: "gemini-flash"},
		OpenRouter: OpenRouterConfig{Model: "openai/gpt-4o-mini", BaseURL: defaultOpenRouterURL},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: time.Second,
			MaxWait:     10 * time.Second,
			Multiplier:  2,
		},
		Timeout: 60 * time.Second,
	}
}

// Detect picks a provider when none is named, trying OpenAI, Anthropic,
// Gemini and OpenRouter keys in that order. It reports whether Provider
// is set afterwards.
func (c *Config) Detect() bool {
	if c.Provider != "" {
		return true
	}
	for _, cand := range []struct {
		name string
		key  string
	}{
		{ProviderOpenAI, c.OpenAI.APIKey},
		{ProviderAnthropic, c.Anthropic.APIKey},
		{ProviderGemini, c.Gemini.APIKey},
		{ProviderOpenRouter, c.OpenRouter.APIKey},
	} {
		if cand.key != "" {
			c.Provider = cand.name
			return true
		}
	}
	return false
}

// Validate checks that the selected provider has an API key.
func (c Config) Validate() error {
	var key, env string
	switch c.Provider {
	case ProviderOpenAI:
		key, env = c.OpenAI.APIKey, "OPENAI_API_KEY"
	case ProviderAnthropic:
		key, env = c.Anthropic.APIKey, "ANTHROPIC_API_KEY"
	case ProviderGemini:
		key, env = c.Gemini.APIKey, "GEMINI_API_KEY"
	case ProviderOpenRouter:
		key, env = c.OpenRouter.APIKey, "OPENROUTER_API_KEY"
	case ProviderMock:
		return nil
	default:
		return fmt.Errorf("unknown LLM provider %q", c.Provider)
	}
	if key == "" {
		return fmt.Errorf("%s is required for the %s provider", env, c.Provider)
	}
	return nil
}
