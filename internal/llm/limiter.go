package llm

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter implements per-endpoint rate limiting. Independent pipeline runs
// share one Limiter so the backend sees a single throttled client.
type Limiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a new rate limiter
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}

	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  rate.Limit(requestsPerSecond),
		defaultBurst: burst,
	}
}

// Wait waits for rate limit clearance for the given endpoint
func (l *Limiter) Wait(ctx context.Context, endpoint string) error {
	return l.getLimiter(endpoint).Wait(ctx)
}

// getLimiter returns the rate limiter for an endpoint
func (l *Limiter) getLimiter(endpoint string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[endpoint]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[endpoint]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[endpoint] = limiter

	return limiter
}

// RateLimitedProvider waits on a Limiter before every completion
type RateLimitedProvider struct {
	inner   Provider
	limiter *Limiter
}

// NewRateLimitedProvider wraps inner with limiter
func NewRateLimitedProvider(inner Provider, limiter *Limiter) *RateLimitedProvider {
	return &RateLimitedProvider{inner: inner, limiter: limiter}
}

// Name returns the wrapped provider name
func (p *RateLimitedProvider) Name() string {
	return p.inner.Name()
}

// IsAvailable delegates to the wrapped provider
func (p *RateLimitedProvider) IsAvailable(ctx context.Context) bool {
	return p.inner.IsAvailable(ctx)
}

// Complete waits for clearance, then calls the wrapped provider
func (p *RateLimitedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := p.limiter.Wait(ctx, p.inner.Name()); err != nil {
		return nil, err
	}
	return p.inner.Complete(ctx, req)
}
