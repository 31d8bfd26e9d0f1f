package llm

import (
	"strings"
	"time"
)

// ModelCost is USD per million tokens.
type ModelCost struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Cost prices a single call.
func (c ModelCost) Cost(inputTokens, outputTokens int) float64 {
	return (float64(inputTokens)*c.InputPerMTok + float64(outputTokens)*c.OutputPerMTok) / 1e6
}

// LookupCost prices modelID, accepting OpenRouter "vendor/model" IDs,
// short aliases and dated snapshots of a listed model. It returns nil for
// unknown models.
func LookupCost(modelID string) *ModelCost {
	id := modelID
	if _, after, ok := strings.Cut(id, "/"); ok {
		id = after
	}
	for _, provider := range []string{ProviderOpenAI, ProviderAnthropic, ProviderGemini} {
		if full := ResolveModel(provider, id); full != id {
			id = full
			break
		}
	}
	if c, ok := modelCosts[id]; ok {
		return &c
	}
	if base, ok := stripSnapshot(id); ok {
		if c, ok := modelCosts[base]; ok {
			return &c
		}
	}
	return nil
}

// stripSnapshot drops a trailing -YYYYMMDD or -YYYY-MM-DD date.
func stripSnapshot(id string) (string, bool) {
	for _, layout := range []string{"20060102", "2006-01-02"} {
		n := len(layout)
		if len(id) > n+1 && id[len(id)-n-1] == '-' {
			if _, err := time.Parse(layout, id[len(id)-n:]); err == nil {
				return id[:len(id)-n-1], true
			}
		}
	}
	return "", false
}

var modelCosts = map[string]ModelCost{
	"claude-3-5-haiku":  {0.8, 4},
	"claude-haiku-4-5":  {1, 5},
	"claude-sonnet-4":   {3, 15},
	"claude-sonnet-4-5": {3, 15},
	"claude-opus-4-1":   {15, 75},

	"gpt-4o":       {2.5, 10},
	"gpt-4o-mini":  {0.15, 0.6},
	"gpt-4.1":      {2, 8},
	"gpt-4.1-mini": {0.4, 1.6},
	"gpt-4.1-nano": {0.1, 0.4},
	"gpt-5":        {1.25, 10},
	"gpt-5-mini":   {0.25, 2},
	"gpt-5-nano":   {0.05, 0.4},
	"o4-mini":      {1.1, 4.4},

	"gemini-2.0-flash":      {0.1, 0.4},
	"gemini-2.5-flash":      {0.3, 2.5},
	"gemini-2.5-flash-lite": {0.1, 0.4},
	"gemini-2.5-pro":        {1.25, 10},
}
