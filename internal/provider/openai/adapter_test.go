package openai_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/amaslov/tokengate/internal/provider/openai"
)

func TestNewProvider_Success(t *testing.T) {
	config := openai.Config{
		APIKey:     "test-api-key",
		BaseURL:    "https://api.openai.com/v1",
		Timeout:    300,
		MaxRetries: 3,
	}

	provider, err := openai.NewProvider(config)

	require.NoError(t, err)
	require.NotNil(t, provider)
	require.Equal(t, "openai", provider.Name())
}

func TestNewProvider_MissingAPIKey(t *testing.T) {
	config := openai.Config{
		APIKey: "",
	}

	provider, err := openai.NewProvider(config)

	require.Error(t, err)
	require.Nil(t, provider)
	require.Contains(t, err.Error(), "OpenAI API key is required")
}

func TestProvider_IsModelSupported(t *testing.T) {
	provider, err := openai.NewProvider(openai.Config{APIKey: "test-key"})
	require.NoError(t, err)

	tests := []struct {
		name      string
		model     string
		supported bool
	}{
		{name: "GPT-4 is supported", model: "gpt-4", supported: true},
		{name: "GPT-4 Turbo is supported", model: "gpt-4-turbo", supported: true},
		{name: "GPT-4o is supported", model: "gpt-4o", supported: true},
		{name: "GPT-4o mini is supported", model: "gpt-4o-mini", supported: true},
		{name: "GPT-3.5 Turbo is supported", model: "gpt-3.5-turbo", supported: true},
		{name: "Vendor-scoped id is not supported", model: "openai/gpt-4o", supported: false},
		{name: "Unknown model is not supported", model: "unknown-model", supported: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.supported, provider.IsModelSupported(context.Background(), tt.model))
		})
	}
}

func TestProvider_SupportedModels(t *testing.T) {
	provider, err := openai.NewProvider(openai.Config{APIKey: "test-key"})
	require.NoError(t, err)

	models := provider.SupportedModels(context.Background())

	require.Contains(t, models, "gpt-4o-mini")
	require.Contains(t, models, "gpt-4")
}

func TestProvider_Invoke_EmptyMessages(t *testing.T) {
	provider, err := openai.NewProvider(openai.Config{APIKey: "test-key"})
	require.NoError(t, err)

	result, err := provider.Invoke(context.Background(), "gpt-4o-mini", nil)

	require.Error(t, err)
	require.Nil(t, result)
}
