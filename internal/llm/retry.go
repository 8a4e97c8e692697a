package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// retryWaitFunc waits between retries (injectable for tests)
var retryWaitFunc = waitContext

// waitContext sleeps for d or until ctx is done
func waitContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// StatusError is a non-200 answer from an HTTP backend
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Code, e.Message)
}

// RetryingProvider retries transient backend failures with exponential backoff
type RetryingProvider struct {
	inner      Provider
	maxRetries int
	baseDelay  time.Duration
	logger     *zap.Logger
}

// NewRetryingProvider wraps inner. maxRetries is the number of extra attempts.
func NewRetryingProvider(inner Provider, maxRetries int, logger *zap.Logger) *RetryingProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingProvider{
		inner:      inner,
		maxRetries: maxRetries,
		baseDelay:  time.Second,
		logger:     logger,
	}
}

// Name returns the wrapped provider name
func (p *RetryingProvider) Name() string {
	return p.inner.Name()
}

// IsAvailable delegates to the wrapped provider
func (p *RetryingProvider) IsAvailable(ctx context.Context) bool {
	return p.inner.IsAvailable(ctx)
}

// Complete calls the wrapped provider until it succeeds, fails permanently,
// or the retry budget is spent
func (p *RetryingProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			delay := p.baseDelay << (attempt - 1)
			p.logger.Warn("retrying backend call",
				zap.String("provider", p.inner.Name()),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			if err := retryWaitFunc(ctx, delay); err != nil {
				return nil, err
			}
		}

		resp, err := p.inner.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", p.maxRetries+1, lastErr)
}

// isRetryable reports whether err is a transient transport or server failure
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return retryableStatus(statusErr.Code)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
