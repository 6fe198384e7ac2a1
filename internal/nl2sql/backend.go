package nl2sql

import (
	"context"
	"fmt"
	"strings"
)

type BackendConfig struct {
	Provider string
	BaseURL  string
	APIKey   string
	Model    string
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	switch normalizeProvider(provider) {
	case ProviderOpenAI:
		return DefaultOpenAIModel
	case ProviderAnthropic:
		return DefaultAnthropicModel
	default:
		return DefaultGeminiModel
	}
}

// NewBackend builds the backend for cfg.Provider; an empty provider selects
// Gemini.
func NewBackend(ctx context.Context, cfg BackendConfig) (Backend, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel(cfg.Provider)
	}
	switch normalizeProvider(cfg.Provider) {
	case ProviderGemini:
		backend, err := NewGeminiBackend(ctx, GeminiConfig{APIKey: cfg.APIKey, Model: model, BaseURL: cfg.BaseURL})
		if err != nil {
			return nil, err
		}
		return backend, nil
	case ProviderOpenAI:
		backend, err := NewOpenAIBackend(OpenAIConfig{APIKey: cfg.APIKey, Model: model, BaseURL: cfg.BaseURL})
		if err != nil {
			return nil, err
		}
		return backend, nil
	case ProviderAnthropic:
		backend, err := NewAnthropicBackend(AnthropicConfig{APIKey: cfg.APIKey, Model: model, BaseURL: cfg.BaseURL})
		if err != nil {
			return nil, err
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.Provider)
	}
}

func normalizeProvider(provider string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return ProviderGemini
	}
	return provider
}
