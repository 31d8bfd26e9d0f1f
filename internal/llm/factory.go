package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lingoloop/lingoloop/internal/store"
)

// NewProvider builds the configured provider and wraps it as
// timeout(rate limit(retry(instrumentation(base)))), so every attempt is
// recorded and the timeout covers the whole call. events may be nil.
func NewProvider(ctx context.Context, cfg Config, events store.EventRepo, logger *zap.Logger) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		base Provider
		err  error
	)
	switch cfg.Provider {
	case ProviderOpenAI:
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case ProviderAnthropic:
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case ProviderGemini:
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case ProviderOpenRouter:
		base, err = NewOpenRouterProvider(cfg.OpenRouter)
	case ProviderMock:
		base = NewMockProvider()
	}
	if err != nil {
		return nil, fmt.Errorf("init %s provider: %w", cfg.Provider, err)
	}

	p := WithInstrumentation(base, cfg.Provider, events, logger)
	p = WithRetry(p, cfg.Retry)
	p = WithRateLimit(p, cfg.RateLimitPerMinute)
	return WithTimeout(p, cfg.Timeout), nil
}
