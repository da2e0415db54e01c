// Package openrouter provides an adapter for the OpenRouter API. OpenRouter
// speaks the OpenAI-compatible wire format with vendor-scoped model ids
// ("anthropic/claude-3.5-sonnet"), so the adapter uses a plain HTTP client
// with vendor-specific image content blocks.
package openrouter

import (
	"context"
	"errors"
	"time"

	"github.com/amaslov/tokengate/internal/domain"
	"github.com/amaslov/tokengate/internal/observability"
)

// Provider implements the domain.Provider interface for OpenRouter.
type Provider struct {
	client          *Client
	name            string
	models          []string
	supportedModels map[string]bool
}

var _ domain.Provider = (*Provider)(nil)

// NewProvider creates a new OpenRouter provider.
func NewProvider(config Config) (*Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("OpenRouter API key is required")
	}

	supported := make(map[string]bool, len(config.Models))
	for _, m := range config.Models {
		supported[m] = true
	}

	return &Provider{
		client:          NewClient(config),
		name:            "openrouter",
		models:          config.Models,
		supportedModels: supported,
	}, nil
}

// Invoke sends a chat-completion request and returns the raw result.
func (p *Provider) Invoke(ctx context.Context, model string, messages []domain.Message) (*domain.ProviderResult, error) {
	if len(messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}

	logger := observability.FromContext(ctx)
	logger.Debug("calling OpenRouter API")

	resp, err := p.client.Complete(ctx, chatRequest{
		Model:    model,
		Messages: toWireMessages(messages),
	})
	if err != nil {
		logger.Error("OpenRouter API call failed", observability.Error(err))
		return nil, p.wrapError(model, err)
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	logger.Debug("OpenRouter API call succeeded",
		observability.Int64("prompt_tokens", resp.Usage.PromptTokens),
		observability.Int64("completion_tokens", resp.Usage.CompletionTokens),
	)

	modelUsed := resp.Model
	if modelUsed == "" {
		modelUsed = model
	}

	return &domain.ProviderResult{
		ID:       resp.ID,
		Model:    modelUsed,
		Provider: p.name,
		Content:  content,
		Usage: domain.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
		FinishTime: time.Now(),
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// IsModelSupported checks if the provider supports the given model.
// Any vendor-scoped id routes here even when not in the configured list;
// OpenRouter proxies models it never declared upfront.
func (p *Provider) IsModelSupported(_ context.Context, model string) bool {
	if p.supportedModels[model] {
		return true
	}
	for i := range model {
		if model[i] == '/' {
			return i > 0 && i < len(model)-1
		}
	}
	return false
}

// SupportedModels returns the configured model list.
func (p *Provider) SupportedModels(_ context.Context) []string {
	return p.models
}

// toWireMessages converts domain messages to the OpenAI-compatible wire
// shape, expanding image attachments into content-part arrays.
func toWireMessages(messages []domain.Message) []chatMessage {
	wire := make([]chatMessage, len(messages))
	for i, msg := range messages {
		if msg.ImageURL == "" {
			wire[i] = chatMessage{Role: msg.Role, Content: msg.Content}
			continue
		}
		wire[i] = chatMessage{
			Role: msg.Role,
			Content: []contentPart{
				{Type: "text", Text: msg.Content},
				{Type: "image_url", ImageURL: &imageURL{URL: msg.ImageURL}},
			},
		}
	}
	return wire
}

// wrapError classifies a client error as a transport-level provider error.
func (p *Provider) wrapError(model string, err error) error {
	status := 0
	var se *statusError
	if errors.As(err, &se) {
		status = se.status
	}

	return &domain.ProviderError{
		Provider: p.name,
		Model:    model,
		Status:   status,
		Message:  err.Error(),
		Err:      err,
	}
}
