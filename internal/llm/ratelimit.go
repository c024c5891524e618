package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedProvider throttles outbound completion requests to a
// configured rate ahead of internal/driver's retry/backoff loop, so a
// burst of turns (or retries) can't hammer the LLM endpoint faster
// than an operator-configured budget allows.
type RateLimitedProvider struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewRateLimitedProvider wraps inner with a token-bucket limiter
// allowing requestsPerSecond sustained requests (burst sized the
// same). A non-positive requestsPerSecond disables limiting and
// returns inner unwrapped.
func NewRateLimitedProvider(inner Provider, requestsPerSecond float64) Provider {
	if requestsPerSecond <= 0 {
		return inner
	}
	burst := int(requestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedProvider{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// Complete blocks until the limiter admits the request, then delegates
// to inner. A context cancellation while waiting surfaces as an error
// rather than ever issuing the request.
func (p *RateLimitedProvider) Complete(ctx context.Context, req CompletionRequest) (<-chan Chunk, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.inner.Complete(ctx, req)
}
