package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JohnsonLy78/quadas-agent/internal/util"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiProvider implements the Provider interface for Google Gemini models
type GeminiProvider struct {
	client *genai.Client
	config Config
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(config Config) (*GeminiProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	timeout := time.Duration(config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     config.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: util.NewHTTPClient(timeout, config.HTTPProxy, config.HTTPSProxy),
	}
	if config.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		config: config,
	}, nil
}

// Name returns the provider name
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// IsAvailable checks that the configured model can be resolved
func (p *GeminiProvider) IsAvailable(ctx context.Context) bool {
	_, err := p.client.Models.Get(ctx, resolveModel(CompletionRequest{}, p.config, defaultGeminiModel), nil)
	return err == nil
}

// Complete runs one GenerateContent call
func (p *GeminiProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := resolveModel(req, p.config, defaultGeminiModel)

	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt(req), genai.RoleUser),
		Temperature:       genai.Ptr[float32](0),
		Seed:              genai.Ptr[int32](0),
		MaxOutputTokens:   int32(resolveMaxTokens(req, p.config)),
	}
	if req.JSON {
		genConfig.ResponseMIMEType = "application/json"
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), genConfig)
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, fmt.Errorf("no content in Gemini response")
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return &CompletionResponse{
		Text:       text,
		Model:      model,
		TokensUsed: tokens,
	}, nil
}
