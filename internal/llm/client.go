package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Client asks a model for a structured JSON answer
type Client interface {
	// GenerateJSON returns the model's JSON answer for prompt, unwrapped from any
	// markdown fence or surrounding chatter
	GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error)
	// GetModel returns the model name serving a tier
	GetModel(tier ModelTier) string
	Close() error
}

// NewClient creates a client for the configured provider
func NewClient(ctx context.Context, config *Config, apiKey string) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Provider {
	case ProviderGemini, "":
		return NewGeminiClient(ctx, config, apiKey)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", config.Provider)
	}
}

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config *Config
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{client: client, config: config}, nil
}

// GenerateJSON runs prompt against the tier's model in JSON mode, constrained
// by the configured response schema
func (c *GeminiClient) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	modelName := c.config.GetModel(tier)
	if modelName == "" {
		return "", fmt.Errorf("no model configured for tier %s", tier)
	}

	model := c.client.GenerativeModel(modelName)
	c.config.apply(&model.GenerationConfig)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return "", &BlockedError{Model: modelName, Reason: blockReason(blocked)}
		}
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text, err := answerText(resp, modelName)
	if err != nil {
		return "", err
	}
	return CleanJSONBlock(text), nil
}

// GetModel returns the model name for a tier
func (c *GeminiClient) GetModel(tier ModelTier) string {
	return c.config.GetModel(tier)
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func blockReason(b *genai.BlockedError) string {
	if b.PromptFeedback != nil {
		return "prompt: " + b.PromptFeedback.BlockReason.String()
	}
	if b.Candidate != nil {
		return "answer: " + b.Candidate.FinishReason.String()
	}
	return "unspecified"
}

// answerText joins the text parts of the first candidate. An answer cut off by
// the token limit is reported as truncated, since its JSON cannot be complete.
func answerText(resp *genai.GenerateContentResponse, model string) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", &EmptyAnswerError{Model: model}
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonMaxTokens {
		return "", &TruncatedError{Model: model}
	}
	if candidate.Content == nil {
		return "", &EmptyAnswerError{Model: model}
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	answer := strings.TrimSpace(strings.Join(parts, ""))
	if answer == "" {
		return "", &EmptyAnswerError{Model: model}
	}
	return answer, nil
}
