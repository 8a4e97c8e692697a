package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/JohnsonLy78/quadas-agent/internal/model"
	"github.com/spf13/viper"
)

// setDefaults registers every config key with v so that environment
// variables are seen by Unmarshal even when no config file sets the key
func setDefaults(v *viper.Viper, cfg *model.Config) {
	v.SetDefault("llm.provider", cfg.LLM.Provider)
	v.SetDefault("llm.model", cfg.LLM.Model)
	v.SetDefault("llm.api_key", cfg.LLM.APIKey)
	v.SetDefault("llm.base_url", cfg.LLM.BaseURL)
	v.SetDefault("llm.timeout", cfg.LLM.Timeout)
	v.SetDefault("llm.max_tokens", cfg.LLM.MaxTokens)
	v.SetDefault("llm.max_retries", cfg.LLM.MaxRetries)
	v.SetDefault("llm.strict_evidence", cfg.LLM.StrictEvidence)
	v.SetDefault("llm.http_proxy", cfg.LLM.HTTPProxy)
	v.SetDefault("llm.https_proxy", cfg.LLM.HTTPSProxy)

	v.SetDefault("cache.enabled", cfg.Cache.Enabled)
	v.SetDefault("cache.dir", cfg.Cache.Dir)
	v.SetDefault("cache.memory_ttl", cfg.Cache.MemoryTTL)
	v.SetDefault("cache.disk_ttl", cfg.Cache.DiskTTL)

	v.SetDefault("rate_limit.requests_per_second", cfg.RateLimit.RequestsPerSecond)
	v.SetDefault("rate_limit.burst", cfg.RateLimit.Burst)

	v.SetDefault("output.dir", cfg.Output.Dir)
	v.SetDefault("output.markdown", cfg.Output.Markdown)
	v.SetDefault("output.html", cfg.Output.HTML)
	v.SetDefault("output.verbose", cfg.Output.Verbose)

	v.SetDefault("checklist.path", cfg.Checklist.Path)
	v.SetDefault("checklist.schema_path", cfg.Checklist.SchemaPath)
}

// loadConfig resolves flags, environment, config file and defaults into a
// validated Config
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	setDefaults(v, cfg)

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	applyProviderEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyProviderEnv fills the API key and base URL from the provider's
// conventional environment variables when the config leaves them empty
func applyProviderEnv(cfg *model.Config) {
	switch strings.ToLower(cfg.LLM.Provider) {
	case "openai":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	case "anthropic", "claude":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	case "gemini":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	case "ollama":
		if cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
		}
	}
}

// missingKeyError explains which variable to set for a keyed provider
func missingKeyError(cfg *model.Config) error {
	switch strings.ToLower(cfg.LLM.Provider) {
	case "openai":
		return fmt.Errorf("OPENAI_API_KEY environment variable not set")
	case "anthropic", "claude":
		return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
	case "gemini":
		return fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}
	return nil
}
