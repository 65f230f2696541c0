// Package llm provides centralized LLM configuration and client abstractions.
// The LLM-backed match scorer talks to a model only through the Client interface.
package llm

import (
	"maps"

	"github.com/google/generative-ai-go/genai"
)

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for quick, cheap match scoring
	TierLite ModelTier = "lite"
	// TierStandard is the default tier for match scoring
	TierStandard ModelTier = "standard"
	// TierAdvanced is for detailed explanations on borderline matches
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
)

// DefaultTemperature keeps scoring output stable across calls
const DefaultTemperature = 0.1

// DefaultMaxOutputTokens leaves room for notes without letting an answer ramble
const DefaultMaxOutputTokens = 2048

// Config holds the model configuration for the application
type Config struct {
	Provider        Provider
	Models          map[ModelTier]string
	Temperature     float32
	MaxOutputTokens int32
	// ResponseSchema constrains the JSON the model may return; nil leaves it free-form
	ResponseSchema *genai.Schema
}

func (c *Config) temperature() float32 {
	if c.Temperature <= 0 {
		return DefaultTemperature
	}
	return c.Temperature
}

func (c *Config) apply(gc *genai.GenerationConfig) {
	gc.SetTemperature(c.temperature())
	if c.MaxOutputTokens > 0 {
		gc.SetMaxOutputTokens(c.MaxOutputTokens)
	}
	gc.ResponseMIMEType = "application/json"
	gc.ResponseSchema = c.ResponseSchema
}

// DefaultConfig returns the default configuration (currently Gemini)
func DefaultConfig() *Config {
	return DefaultGeminiConfig()
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		Temperature:     DefaultTemperature,
		MaxOutputTokens: DefaultMaxOutputTokens,
		ResponseSchema:  MatchResponseSchema(),
	}
}

// MatchResponseSchema describes the scorer answer the matching prompt asks for
func MatchResponseSchema() *genai.Schema {
	skills := &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}}
	area := &genai.Schema{Type: genai.TypeNumber}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"match_score":          {Type: genai.TypeNumber, Description: "overall fit between 0.0 and 1.0"},
			"matched_skills":       skills,
			"missing_skills":       skills,
			"missing_must_have":    skills,
			"missing_nice_to_have": skills,
			"score_breakdown": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"skills":     area,
					"experience": area,
					"education":  area,
					"keywords":   area,
				},
			},
			"notes": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		},
		Required: []string{"match_score", "matched_skills", "missing_skills"},
	}
}

// GetModel returns the model name for a given tier
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	// Fallback chain: try standard, then lite
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// WithModel returns a copy of the config with model serving tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	out := *c
	out.Models = maps.Clone(c.Models)
	if out.Models == nil {
		out.Models = make(map[ModelTier]string)
	}
	out.Models[tier] = model
	return &out
}
