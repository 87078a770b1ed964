package provider

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/cellarworks/tasting-cli/internal/prompt"
	"github.com/cellarworks/tasting-cli/internal/resilience"
)

// Policy bounds how hard a backend is driven.
type Policy struct {
	// MaxAttempts bounds retries of rate-limit and network failures,
	// including the first try. Default: 4.
	MaxAttempts int

	// BaseDelay seeds the exponential backoff. Default: 1s.
	BaseDelay time.Duration

	// RequestsPerSecond throttles outbound calls. 0 disables throttling.
	RequestsPerSecond float64
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 4
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	return p
}

// governed wraps a Provider with rate limiting and the retry policy:
// auth failures are fatal, rate-limit and network failures back off within
// the attempt budget, and a timeout is retried exactly once.
type governed struct {
	inner   Provider
	policy  Policy
	limiter *rate.Limiter
}

// WithPolicy applies retry and rate-limit policy around a backend.
func WithPolicy(inner Provider, policy Policy) Provider {
	policy = policy.withDefaults()
	g := &governed{inner: inner, policy: policy}
	if policy.RequestsPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(policy.RequestsPerSecond), 1)
	}
	return g
}

func (g *governed) Name() string  { return g.inner.Name() }
func (g *governed) Model() string { return g.inner.Model() }

func (g *governed) Submit(ctx context.Context, pr prompt.Prompt) (*RawResponse, error) {
	timeouts := 0
	cfg := resilience.Config{
		MaxAttempts: g.policy.MaxAttempts,
		BaseDelay:   g.policy.BaseDelay,
		ShouldRetry: func(err error) bool {
			var authErr *AuthError
			if errors.As(err, &authErr) {
				return false
			}
			var timeoutErr *TimeoutError
			if errors.As(err, &timeoutErr) {
				timeouts++
				return timeouts <= 1
			}
			var rateErr *RateLimitError
			var netErr *NetworkError
			return errors.As(err, &rateErr) || errors.As(err, &netErr)
		},
		OnRetry: resilience.Logger(g.inner.Name(), "submit"),
	}

	return resilience.Do(ctx, cfg, func(ctx context.Context) (*RawResponse, error) {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		return g.inner.Submit(ctx, pr)
	})
}
