// Package openai provides an adapter for the OpenAI API using the official
// SDK. It implements the domain.Provider interface and handles conversion
// between domain messages (including image attachments) and SDK types.
// Transport-level retry is delegated to the SDK's bounded retry option.
package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/amaslov/tokengate/internal/domain"
	"github.com/amaslov/tokengate/internal/observability"
)

// Provider implements the domain.Provider interface for OpenAI.
type Provider struct {
	client          openai.Client
	name            string
	supportedModels map[string]bool
}

var _ domain.Provider = (*Provider)(nil)

// NewProvider creates a new OpenAI provider.
func NewProvider(config Config) (*Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
	}

	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(config.Timeout)*time.Second))
	}

	if config.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(config.MaxRetries))
	}

	return &Provider{
		client:          openai.NewClient(opts...),
		name:            "openai",
		supportedModels: buildModelSet(SupportedModels()),
	}, nil
}

// Invoke sends a chat-completion request and returns the raw result.
func (p *Provider) Invoke(ctx context.Context, model string, messages []domain.Message) (*domain.ProviderResult, error) {
	if len(messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}

	logger := observability.FromContext(ctx)
	logger.Debug("calling OpenAI API")

	params := p.toSDKParams(model, messages)

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		logger.Error("OpenAI API call failed", observability.Error(err))
		return nil, p.wrapError(model, err)
	}

	logger.Debug("OpenAI API call succeeded",
		observability.Int("prompt_tokens", int(resp.Usage.PromptTokens)),
		observability.Int("completion_tokens", int(resp.Usage.CompletionTokens)),
	)

	return p.toResult(resp), nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// IsModelSupported checks if the provider supports the given model.
func (p *Provider) IsModelSupported(_ context.Context, model string) bool {
	return p.supportedModels[model]
}

// SupportedModels returns the models this provider declares upfront.
func (p *Provider) SupportedModels(_ context.Context) []string {
	return SupportedModels()
}

// toSDKParams converts domain messages to SDK ChatCompletionNewParams.
// User messages carrying an image become multi-part content blocks.
func (p *Provider) toSDKParams(model string, messages []domain.Message) openai.ChatCompletionNewParams {
	sdkMessages := make([]openai.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case "assistant":
			sdkMessages[i] = openai.AssistantMessage(msg.Content)
		case "system":
			sdkMessages[i] = openai.SystemMessage(msg.Content)
		default:
			if msg.ImageURL != "" {
				sdkMessages[i] = userImageMessage(msg)
			} else {
				sdkMessages[i] = openai.UserMessage(msg.Content)
			}
		}
	}

	return openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: sdkMessages,
	}
}

// userImageMessage builds a user message with text and image content parts.
func userImageMessage(msg domain.Message) openai.ChatCompletionMessageParamUnion {
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(msg.Content),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: msg.ImageURL,
		}),
	}

	return openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfArrayOfContentParts: parts,
			},
		},
	}
}

// toResult converts an SDK response to the domain result.
func (p *Provider) toResult(resp *openai.ChatCompletion) *domain.ProviderResult {
	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	return &domain.ProviderResult{
		ID:       resp.ID,
		Model:    string(resp.Model),
		Provider: p.name,
		Content:  content,
		Usage: domain.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
		FinishTime: time.Now(),
	}
}

// wrapError classifies an SDK error as a transport-level provider error.
func (p *Provider) wrapError(model string, err error) error {
	status := 0
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		status = apierr.StatusCode
	}

	return &domain.ProviderError{
		Provider: p.name,
		Model:    model,
		Status:   status,
		Message:  fmt.Sprintf("OpenAI API call failed: %v", err),
		Err:      err,
	}
}
