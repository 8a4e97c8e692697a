package llm

import (
	"fmt"
	"strings"

	"github.com/JohnsonLy78/quadas-agent/internal/cache"
	"github.com/JohnsonLy78/quadas-agent/internal/model"
	"go.uber.org/zap"
)

// NewProvider creates a new LLM provider based on configuration
func NewProvider(config Config) (Provider, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "gemini":
		return NewGeminiProvider(config)

	case "":
		return nil, fmt.Errorf("no LLM provider configured")

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama, gemini)", config.Provider)
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(modelConfig model.LLMConfig) Config {
	return Config{
		Provider:   modelConfig.Provider,
		Model:      modelConfig.Model,
		APIKey:     modelConfig.APIKey,
		BaseURL:    modelConfig.BaseURL,
		Timeout:    modelConfig.Timeout,
		MaxTokens:  modelConfig.MaxTokens,
		HTTPProxy:  modelConfig.HTTPProxy,
		HTTPSProxy: modelConfig.HTTPSProxy,
	}
}

// NewStack builds the configured provider wrapped, from the inside out, in
// rate limiting, retries and the completion cache
func NewStack(cfg *model.Config, limiter *Limiter, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	provider, err := NewProvider(ConfigFromModel(cfg.LLM))
	if err != nil {
		return nil, err
	}

	if limiter == nil && cfg.RateLimit.RequestsPerSecond > 0 {
		limiter = NewLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}
	if limiter != nil {
		provider = NewRateLimitedProvider(provider, limiter)
	}

	if cfg.LLM.MaxRetries > 0 {
		provider = NewRetryingProvider(provider, cfg.LLM.MaxRetries, logger)
	}

	if cfg.Cache.Enabled {
		c := cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
		provider = NewCachedProvider(provider, c, cfg.LLM.Model, cfg.Cache.DiskTTL, logger)
	}

	return provider, nil
}
