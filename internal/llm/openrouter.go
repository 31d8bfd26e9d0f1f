package llm

import (
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenRouterURL = "https://openrouter.ai/api/v1"

// Attribution headers OpenRouter shows in its usage dashboard.
const (
	openRouterReferer = "https://github.com/lingoloop/lingoloop"
	openRouterTitle   = "LingoLoop"
)

// OpenRouterProvider is the OpenAI client pointed at OpenRouter. Model IDs
// keep their "vendor/model" form.
type OpenRouterProvider struct {
	*OpenAIProvider
}

func NewOpenRouterProvider(cfg OpenRouterConfig) (*OpenRouterProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openrouter API key is required")
	}
	conf := openai.DefaultConfig(cfg.APIKey)
	conf.BaseURL = cfg.BaseURL
	if conf.BaseURL == "" {
		conf.BaseURL = defaultOpenRouterURL
	}
	conf.HTTPClient = &http.Client{Transport: attributionTransport{next: http.DefaultTransport}}
	return &OpenRouterProvider{OpenAIProvider: newOpenAIProvider(conf, cfg.Model)}, nil
}

type attributionTransport struct {
	next http.RoundTripper
}

func (t attributionTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("HTTP-Referer", openRouterReferer)
	r.Header.Set("X-Title", openRouterTitle)
	return t.next.RoundTrip(r)
}
