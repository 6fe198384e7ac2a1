package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
)

const (
	DefaultAnthropicModel     = "claude-sonnet-4-5-20250929"
	defaultAnthropicMaxTokens = 1024
)

type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type AnthropicBackend struct {
	client *anthropic.Client
	model  string
}

func NewAnthropicBackend(cfg AnthropicConfig) (*AnthropicBackend, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultAnthropicModel
	}
	var opts []anthropic.ClientOption
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")))
	}
	return &AnthropicBackend{client: anthropic.NewClient(strings.TrimSpace(cfg.APIKey), opts...), model: model}, nil
}

func (b *AnthropicBackend) Generate(ctx context.Context, prompt Prompt) (string, error) {
	maxTokens := prompt.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	temperature := prompt.Temperature
	user := prompt.User

	resp, err := b.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(b.model),
		System:      prompt.System,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &user},
			}},
		},
	})
	if err != nil {
		return "", classifyAnthropicErr(err)
	}
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			return *block.Text, nil
		}
	}
	return "", ErrEmptyResponse
}

func classifyAnthropicErr(err error) error {
	var reqErr *anthropic.RequestError
	if errors.As(err, &reqErr) {
		return &StatusError{StatusCode: reqErr.StatusCode, Err: err}
	}
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		switch string(apiErr.Type) {
		case "rate_limit_error":
			return &StatusError{StatusCode: 429, Err: err}
		case "overloaded_error", "api_error":
			return &StatusError{StatusCode: 503, Err: err}
		}
	}
	return err
}
