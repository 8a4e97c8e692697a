package llm

import (
	"context"
	"strings"
)

// Provider is the inference backend capability used by the pipeline.
// Any service that turns an instruction block plus a payload into text
// satisfies it; the pipeline never depends on a concrete backend.
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete runs one synchronous request/response completion
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// CompletionRequest is one text-completion call
type CompletionRequest struct {
	// System is the natural-language instruction block
	System string

	// Prompt is the serialized structured context (indexed lines or verified quotes)
	Prompt string

	// Model overrides the configured model when set
	Model string

	// MaxTokens limits the response length
	MaxTokens int

	// JSON asks the backend for a single JSON object response
	JSON bool

	// Accept reports whether a completion is usable by the caller. The
	// completion cache only stores and serves text it accepts.
	Accept func(text string) error
}

// accepts reports whether text passes req's Accept check, if any
func (req CompletionRequest) accepts(text string) error {
	if req.Accept == nil {
		return nil
	}
	return req.Accept(text)
}

// CompletionResponse is the backend's answer
type CompletionResponse struct {
	// Text is the raw completion, trimmed of surrounding whitespace
	Text string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int

	// Cached is set when the response was served from the completion cache
	Cached bool
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", "gemini"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic/Gemini
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "ollama",
		Timeout:   120,
		MaxTokens: 2000,
	}
}

const jsonDirective = `CRITICAL: You MUST respond with ONLY valid JSON. Do not include any explanations, markdown formatting, or text outside the JSON object. Start your response with { and end with }. Follow the exact output format specified in the prompt.`

// systemPrompt appends the JSON-only directive when the request asks for JSON
func systemPrompt(req CompletionRequest) string {
	if !req.JSON {
		return req.System
	}
	if strings.TrimSpace(req.System) == "" {
		return jsonDirective
	}
	return req.System + "\n\n" + jsonDirective
}

func resolveModel(req CompletionRequest, cfg Config, fallback string) string {
	if req.Model != "" {
		return req.Model
	}
	if cfg.Model != "" {
		return cfg.Model
	}
	return fallback
}

func resolveMaxTokens(req CompletionRequest, cfg Config) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if cfg.MaxTokens > 0 {
		return cfg.MaxTokens
	}
	return 2000
}
