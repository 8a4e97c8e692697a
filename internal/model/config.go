package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the complete runtime configuration
type Config struct {
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Checklist ChecklistConfig `yaml:"checklist" mapstructure:"checklist"`
}

// LLMConfig configures the inference backend
type LLMConfig struct {
	Provider       string `yaml:"provider" mapstructure:"provider" validate:"oneof=ollama openai anthropic claude gemini"`
	Model          string `yaml:"model" mapstructure:"model"`
	APIKey         string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL        string `yaml:"base_url,omitempty" mapstructure:"base_url" validate:"omitempty,url"`
	Timeout        int    `yaml:"timeout" mapstructure:"timeout" validate:"min=1"` // seconds
	MaxTokens      int    `yaml:"max_tokens" mapstructure:"max_tokens" validate:"min=1"`
	MaxRetries     int    `yaml:"max_retries" mapstructure:"max_retries" validate:"min=0,max=10"`
	StrictEvidence bool   `yaml:"strict_evidence" mapstructure:"strict_evidence"`
	HTTPProxy      string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy     string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// CacheConfig configures the completion cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir" validate:"required_if=Enabled true"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// RateLimitConfig throttles calls to the backend. Zero disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"min=0"`
	Burst             int     `yaml:"burst" mapstructure:"burst" validate:"min=0"`
}

// OutputConfig controls where and how results are written
type OutputConfig struct {
	Dir      string `yaml:"dir" mapstructure:"dir" validate:"required"`
	Markdown bool   `yaml:"markdown" mapstructure:"markdown"`
	HTML     bool   `yaml:"html" mapstructure:"html"`
	Verbose  bool   `yaml:"verbose" mapstructure:"verbose"`
}

// ChecklistConfig points at checklist and schema files.
// Empty paths select the embedded QUADAS-2 Index Test defaults.
type ChecklistConfig struct {
	Path       string `yaml:"path,omitempty" mapstructure:"path"`
	SchemaPath string `yaml:"schema_path,omitempty" mapstructure:"schema_path"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	cacheDir := ".quadas-agent/cache"
	if home, err := os.UserHomeDir(); err == nil {
		cacheDir = filepath.Join(home, ".quadas-agent", "cache")
	}

	return &Config{
		LLM: LLMConfig{
			Provider:       "ollama",
			Model:          "qwen2.5:7b",
			Timeout:        120,
			MaxTokens:      2000,
			MaxRetries:     2,
			StrictEvidence: true,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       cacheDir,
			MemoryTTL: time.Hour,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Output: OutputConfig{
			Dir: "outputs",
		},
	}
}

var configValidator = validator.New()

// Validate checks the configuration and reports every invalid field
func (c *Config) Validate() error {
	err := configValidator.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
