package llm

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/lingoloop/lingoloop/internal/metrics"
	"github.com/lingoloop/lingoloop/internal/store"
)

var tracer = otel.Tracer("github.com/lingoloop/lingoloop/internal/llm")

type instrumentedProvider struct {
	next     Provider
	provider string
	events   store.EventRepo
	logger   *zap.Logger
	now      func() time.Time
}

// WithInstrumentation records every call: an event row when events is
// non-nil, a span, prometheus counters and a debug log line. Failing to
// store the event never fails the call.
func WithInstrumentation(p Provider, provider string, events store.EventRepo, logger *zap.Logger) Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &instrumentedProvider{
		next:     p,
		provider: provider,
		events:   events,
		logger:   logger.Named("llm"),
		now:      time.Now,
	}
}

func (p *instrumentedProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	purpose := PurposeFrom(ctx)
	ctx, span := tracer.Start(ctx, "llm.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", p.provider),
		attribute.String("llm.model", p.next.ModelID()),
		attribute.String("llm.purpose", purpose),
		attribute.Bool("llm.structured", req.Schema != nil),
	)

	start := p.now()
	resp, err := p.next.Generate(ctx, req)
	latency := p.now().Sub(start)

	outcome := "success"
	ev := store.LLMRequestEventData{
		Provider:    p.provider,
		Model:       p.next.ModelID(),
		Purpose:     purpose,
		LatencyMs:   latency.Milliseconds(),
		Success:     err == nil,
		RequestBody: requestBody(req),
	}
	if err != nil {
		outcome = "error"
		ev.ErrorMessage = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		if resp.Model != "" {
			ev.Model = resp.Model
		}
		ev.InputTokens = resp.Usage.InputTokens
		ev.OutputTokens = resp.Usage.OutputTokens
		ev.ResponseBody = string(resp.Content)
		span.SetAttributes(
			attribute.Int("llm.input_tokens", resp.Usage.InputTokens),
			attribute.Int("llm.output_tokens", resp.Usage.OutputTokens),
		)
		metrics.LLMTokens.WithLabelValues(p.provider, "input").Add(float64(resp.Usage.InputTokens))
		metrics.LLMTokens.WithLabelValues(p.provider, "output").Add(float64(resp.Usage.OutputTokens))
	}
	metrics.LLMRequests.WithLabelValues(p.provider, purpose, outcome).Inc()
	metrics.LLMRequestDuration.WithLabelValues(p.provider, purpose).Observe(latency.Seconds())

	p.logger.Debug("llm request",
		zap.String("model", ev.Model),
		zap.String("purpose", purpose),
		zap.Duration("latency", latency),
		zap.Int("input_tokens", ev.InputTokens),
		zap.Int("output_tokens", ev.OutputTokens),
		zap.Error(err))

	if p.events != nil {
		// The caller's context may already be cancelled.
		if logErr := p.events.AppendLLMRequest(context.WithoutCancel(ctx), ev); logErr != nil {
			p.logger.Warn("failed to record llm event", zap.Error(logErr))
		}
	}
	return resp, err
}

func (p *instrumentedProvider) ModelID() string { return p.next.ModelID() }

func requestBody(req Request) string {
	body := struct {
		System    string    `json:"system,omitempty"`
		Messages  []Message `json:"messages"`
		Schema    string    `json:"schema,omitempty"`
		MaxTokens int       `json:"max_tokens,omitempty"`
	}{System: req.System, Messages: req.Messages, MaxTokens: req.MaxTokens}
	if req.Schema != nil {
		body.Schema = req.Schema.Name
	}
	b, _ := json.Marshal(body)
	return string(b)
}
