package llm

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/JohnsonLy78/quadas-agent/internal/cache"
	"go.uber.org/zap"
)

// CachedProvider serves repeated identical completions from a cache.
// With a deterministic backend this makes reruns on the same study
// reproduce the same result without a second inference call.
type CachedProvider struct {
	inner  Provider
	cache  cache.Cache
	model  string
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedProvider wraps inner. model is the configured default model and
// becomes part of the key so switching models never returns stale text.
func NewCachedProvider(inner Provider, c cache.Cache, model string, ttl time.Duration, logger *zap.Logger) *CachedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedProvider{inner: inner, cache: c, model: model, ttl: ttl, logger: logger}
}

// Name returns the wrapped provider name
func (p *CachedProvider) Name() string {
	return p.inner.Name()
}

// IsAvailable delegates to the wrapped provider
func (p *CachedProvider) IsAvailable(ctx context.Context) bool {
	return p.inner.IsAvailable(ctx)
}

// Complete returns a cached response when one exists, otherwise calls
// the wrapped provider and stores the result. Completions rejected by
// req.Accept are never stored, and a stored one that is rejected is evicted.
func (p *CachedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	key := cache.CacheKey(p.inner.Name(), model, strconv.FormatBool(req.JSON), strconv.Itoa(req.MaxTokens), req.System, req.Prompt)

	if data, ok := p.cache.Get(key); ok {
		var resp CompletionResponse
		if err := json.Unmarshal(data, &resp); err == nil && req.accepts(resp.Text) == nil {
			p.logger.Debug("completion cache hit", zap.String("provider", p.inner.Name()), zap.String("key", key))
			resp.Cached = true
			return &resp, nil
		}
		p.logger.Debug("evicting unusable cached completion", zap.String("key", key))
		_ = p.cache.Delete(key)
	}

	resp, err := p.inner.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := req.accepts(resp.Text); err != nil {
		p.logger.Debug("not caching rejected completion", zap.String("key", key), zap.Error(err))
		return resp, nil
	}

	if data, err := json.Marshal(resp); err == nil {
		if err := p.cache.Set(key, data, p.ttl); err != nil {
			p.logger.Warn("completion cache write failed", zap.Error(err))
		}
	}

	return resp, nil
}
