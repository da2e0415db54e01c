package main

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/dig"

	"github.com/amaslov/tokengate/internal/domain"
)

func providerNames(t *testing.T, container *dig.Container) []string {
	t.Helper()

	var names []string
	err := container.Invoke(func(reg domain.ProviderRegistry) error {
		var listErr error
		names, listErr = reg.List(context.Background())
		return listErr
	})
	require.NoError(t, err)
	return names
}

func TestBuildContainer_ProviderRegistration(t *testing.T) {
	t.Run("should register only OpenRouter when only its key is set", func(t *testing.T) {
		os.Clearenv()
		t.Setenv("OPENROUTER_API_KEY", "test-key")

		names := providerNames(t, buildContainer())

		require.Contains(t, names, "openrouter")
		require.NotContains(t, names, "openai")
	})

	t.Run("should register only OpenAI when only its key is set", func(t *testing.T) {
		os.Clearenv()
		t.Setenv("OPENAI_API_KEY", "sk-test-key")

		names := providerNames(t, buildContainer())

		require.Contains(t, names, "openai")
		require.NotContains(t, names, "openrouter")
	})

	t.Run("should register both providers when both keys are set", func(t *testing.T) {
		os.Clearenv()
		t.Setenv("OPENAI_API_KEY", "sk-test-key")
		t.Setenv("OPENROUTER_API_KEY", "test-key")

		names := providerNames(t, buildContainer())

		require.Contains(t, names, "openai")
		require.Contains(t, names, "openrouter")
	})

	t.Run("should start with an empty registry when no key is set", func(t *testing.T) {
		os.Clearenv()

		require.Empty(t, providerNames(t, buildContainer()))
	})
}
