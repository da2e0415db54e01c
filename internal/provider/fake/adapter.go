// Package fake provides a deterministic provider that answers locally
// without external API calls, for tests and keyless development runs.
package fake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amaslov/tokengate/internal/domain"
	"github.com/amaslov/tokengate/internal/observability"
)

const (
	providerName = "fake"
	modelName    = "fake-1"
)

// Provider implements the domain.Provider interface with canned responses.
type Provider struct {
	name            string
	supportedModels map[string]bool

	// Reply overrides the echoed content when non-empty.
	Reply string
	// FailWith makes every Invoke return this error.
	FailWith error
}

var _ domain.Provider = (*Provider)(nil)

// NewProvider creates a new fake provider. No configuration is required as
// this provider operates entirely in-memory.
func NewProvider(extraModels ...string) *Provider {
	supported := map[string]bool{modelName: true}
	for _, m := range extraModels {
		supported[m] = true
	}
	return &Provider{
		name:            providerName,
		supportedModels: supported,
	}
}

// Invoke echoes the last user message back with deterministic usage counts.
func (p *Provider) Invoke(ctx context.Context, model string, messages []domain.Message) (*domain.ProviderResult, error) {
	if len(messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}

	if p.FailWith != nil {
		return nil, p.FailWith
	}

	if !p.supportedModels[model] {
		return nil, fmt.Errorf("model %s is not supported by fake provider", model)
	}

	logger := observability.FromContext(ctx)
	logger.Debug("fake provider echoing request")

	content := p.Reply
	if content == "" {
		content = buildEchoContent(messages)
	}

	inputTokens := countTokens(messages)
	outputTokens := int64(len(strings.Fields(content)))

	return &domain.ProviderResult{
		ID:       fmt.Sprintf("fake-%d", time.Now().UnixNano()),
		Model:    model,
		Provider: p.name,
		Content:  content,
		Usage: domain.Usage{
			InputTokens:  inputTokens,
			OutputTokens: outputTokens,
		},
		FinishTime: time.Now(),
	}, nil
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
	models := make([]string, 0, len(p.supportedModels))
	for m := range p.supportedModels {
		models = append(models, m)
	}
	return models
}

func buildEchoContent(messages []domain.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return "echo: " + messages[i].Content
		}
	}
	return "echo:"
}

func countTokens(messages []domain.Message) int64 {
	var total int64
	for _, m := range messages {
		total += int64(len(strings.Fields(m.Content)))
	}
	return total
}
