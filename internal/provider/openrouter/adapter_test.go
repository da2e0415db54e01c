package openrouter_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/amaslov/tokengate/internal/domain"
	"github.com/amaslov/tokengate/internal/provider/openrouter"
)

func testConfig(baseURL string) openrouter.Config {
	return openrouter.Config{
		APIKey:     "test-key",
		BaseURL:    baseURL,
		Timeout:    5,
		MaxRetries: 1,
		Referer:    "https://tokengate.example",
		Title:      "tokengate",
		Models:     []string{"openai/gpt-4o-mini", "anthropic/claude-3.5-sonnet"},
	}
}

func completionBody(model, content string) string {
	return `{
		"id": "gen-123",
		"model": "` + model + `",
		"choices": [{"message": {"content": "` + content + `"}}],
		"usage": {"prompt_tokens": 12, "completion_tokens": 34, "total_tokens": 46}
	}`
}

func TestNewProvider(t *testing.T) {
	t.Run("should require an API key", func(t *testing.T) {
		_, err := openrouter.NewProvider(openrouter.Config{})

		require.Error(t, err)
	})
}

func TestProvider_Invoke(t *testing.T) {
	ctx := context.Background()
	messages := []domain.Message{{Role: "user", Content: "hello"}}

	t.Run("should map a successful completion", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/chat/completions", r.URL.Path)
			require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			require.Equal(t, "https://tokengate.example", r.Header.Get("HTTP-Referer"))
			require.Equal(t, "tokengate", r.Header.Get("X-Title"))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(completionBody("openai/gpt-4o-mini", "hi there")))
		}))
		defer server.Close()

		provider, err := openrouter.NewProvider(testConfig(server.URL))
		require.NoError(t, err)

		result, err := provider.Invoke(ctx, "openai/gpt-4o-mini", messages)

		require.NoError(t, err)
		require.Equal(t, "gen-123", result.ID)
		require.Equal(t, "hi there", result.Content)
		require.Equal(t, "openrouter", result.Provider)
		require.Equal(t, int64(12), result.Usage.InputTokens)
		require.Equal(t, int64(34), result.Usage.OutputTokens)
	})

	t.Run("should expand image attachments into content parts", func(t *testing.T) {
		var captured struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string          `json:"role"`
				Content json.RawMessage `json:"content"`
			} `json:"messages"`
		}

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			_, _ = w.Write([]byte(completionBody("openai/gpt-4o", "a cat")))
		}))
		defer server.Close()

		provider, err := openrouter.NewProvider(testConfig(server.URL))
		require.NoError(t, err)

		vision := []domain.Message{
			{Role: "system", Content: "describe images"},
			{Role: "user", Content: "what is this?", ImageURL: "https://example.com/cat.png"},
		}
		_, err = provider.Invoke(ctx, "openai/gpt-4o", vision)
		require.NoError(t, err)

		require.Len(t, captured.Messages, 2)

		var plain string
		require.NoError(t, json.Unmarshal(captured.Messages[0].Content, &plain))
		require.Equal(t, "describe images", plain)

		var parts []struct {
			Type     string `json:"type"`
			Text     string `json:"text"`
			ImageURL *struct {
				URL string `json:"url"`
			} `json:"image_url"`
		}
		require.NoError(t, json.Unmarshal(captured.Messages[1].Content, &parts))
		require.Len(t, parts, 2)
		require.Equal(t, "text", parts[0].Type)
		require.Equal(t, "what is this?", parts[0].Text)
		require.Equal(t, "image_url", parts[1].Type)
		require.Equal(t, "https://example.com/cat.png", parts[1].ImageURL.URL)
	})

	t.Run("should retry a server error then succeed", func(t *testing.T) {
		var attempts int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts++
			if attempts == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			_, _ = w.Write([]byte(completionBody("openai/gpt-4o-mini", "recovered")))
		}))
		defer server.Close()

		provider, err := openrouter.NewProvider(testConfig(server.URL))
		require.NoError(t, err)

		result, err := provider.Invoke(ctx, "openai/gpt-4o-mini", messages)

		require.NoError(t, err)
		require.Equal(t, "recovered", result.Content)
		require.Equal(t, 2, attempts)
	})

	t.Run("should not retry a client error", func(t *testing.T) {
		var attempts int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts++
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error": {"message": "bad request"}}`))
		}))
		defer server.Close()

		provider, err := openrouter.NewProvider(testConfig(server.URL))
		require.NoError(t, err)

		_, err = provider.Invoke(ctx, "openai/gpt-4o-mini", messages)

		require.Error(t, err)
		require.Equal(t, 1, attempts)

		var provErr *domain.ProviderError
		require.ErrorAs(t, err, &provErr)
		require.Equal(t, http.StatusBadRequest, provErr.Status)
	})

	t.Run("should surface an empty 200 body as empty content", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		provider, err := openrouter.NewProvider(testConfig(server.URL))
		require.NoError(t, err)

		result, err := provider.Invoke(ctx, "openai/gpt-4o-mini", messages)

		require.NoError(t, err)
		require.Empty(t, result.Content)
	})

	t.Run("should fail on an error envelope in a 200 response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"error": {"message": "model overloaded"}}`))
		}))
		defer server.Close()

		provider, err := openrouter.NewProvider(testConfig(server.URL))
		require.NoError(t, err)

		_, err = provider.Invoke(ctx, "openai/gpt-4o-mini", messages)

		require.Error(t, err)
		require.Contains(t, err.Error(), "model overloaded")
	})

	t.Run("should reject an empty message list", func(t *testing.T) {
		provider, err := openrouter.NewProvider(testConfig("http://unused"))
		require.NoError(t, err)

		_, err = provider.Invoke(ctx, "openai/gpt-4o-mini", nil)

		require.Error(t, err)
	})
}

func TestProvider_IsModelSupported(t *testing.T) {
	provider, err := openrouter.NewProvider(testConfig("http://unused"))
	require.NoError(t, err)
	ctx := context.Background()

	require.True(t, provider.IsModelSupported(ctx, "openai/gpt-4o-mini"))
	require.True(t, provider.IsModelSupported(ctx, "mistralai/mistral-large"))
	require.False(t, provider.IsModelSupported(ctx, "gpt-4o-mini"))
	require.False(t, provider.IsModelSupported(ctx, "/gpt-4o"))
	require.False(t, provider.IsModelSupported(ctx, "openai/"))
}
