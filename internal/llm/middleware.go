package llm

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

type retryProvider struct {
	next Provider
	cfg  RetryConfig
}

// WithRetry retries transient failures with exponential backoff. A 429
// waits at least as long as its Retry-After. An invalid structured reply
// is retried once; a second bad reply is returned as is.
func WithRetry(p Provider, cfg RetryConfig) Provider {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}
	return &retryProvider{next: p, cfg: cfg}
}

func (r *retryProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	wait := r.cfg.InitialWait
	invalidSeen := false

	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		resp, err := r.next.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !Retryable(err) || attempt == r.cfg.MaxAttempts {
			break
		}

		var invalid *ErrInvalidResponse
		if errors.As(err, &invalid) {
			if invalidSeen {
				break
			}
			invalidSeen = true
		}

		delay := wait
		var limited *ErrRateLimit
		if errors.As(err, &limited) && limited.RetryAfter > delay {
			delay = limited.RetryAfter
		}
		if r.cfg.MaxWait > 0 && delay > r.cfg.MaxWait {
			delay = r.cfg.MaxWait
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
		wait = time.Duration(float64(wait) * r.cfg.Multiplier)
	}
	return nil, lastErr
}

func (r *retryProvider) ModelID() string { return r.next.ModelID() }

type timeoutProvider struct {
	next    Provider
	timeout time.Duration
}

// WithTimeout bounds each Generate call. A non-positive timeout returns p
// unchanged.
func WithTimeout(p Provider, timeout time.Duration) Provider {
	if timeout <= 0 {
		return p
	}
	return &timeoutProvider{next: p, timeout: timeout}
}

func (t *timeoutProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Generate(ctx, req)
}

func (t *timeoutProvider) ModelID() string { return t.next.ModelID() }

type rateLimitedProvider struct {
	next    Provider
	limiter *rate.Limiter
}

// WithRateLimit spaces requests to at most perMinute, allowing a burst of
// a tenth of that. Zero or less returns p unchanged.
func WithRateLimit(p Provider, perMinute int) Provider {
	if perMinute <= 0 {
		return p
	}
	burst := max(perMinute/10, 1)
	return &rateLimitedProvider{
		next:    p,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst),
	}
}

func (r *rateLimitedProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, &ErrRateLimit{Err: err}
	}
	return r.next.Generate(ctx, req)
}

func (r *rateLimitedProvider) ModelID() string { return r.next.ModelID() }
