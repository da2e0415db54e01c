package httpserver_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/amaslov/tokengate/internal/domain"
	"github.com/amaslov/tokengate/internal/httpserver"
	"github.com/amaslov/tokengate/internal/ledger/memory"
	"github.com/amaslov/tokengate/internal/provider/fake"
	"github.com/amaslov/tokengate/internal/provider/registry"
	"github.com/amaslov/tokengate/internal/recorder/zaprec"
)

func newTestHandler(t *testing.T, provider *fake.Provider, ledger *memory.Ledger) *httpserver.Handler {
	t.Helper()

	reg := registry.NewRegistry()
	require.NoError(t, reg.Register(context.Background(), provider))

	estimator := domain.NewCostEstimator(domain.DefaultPricingTable(), domain.DefaultProfitMultiplier)
	service, err := domain.NewMeteringService(
		estimator,
		ledger,
		zaprec.NewRecorder(nil),
		domain.NewFallbackOrchestrator(reg, domain.NewSubstringDetector()),
		domain.NewDeductionSplitter(ledger),
		domain.NewResponseReconciler(estimator),
	)
	require.NoError(t, err)

	return httpserver.NewHandler(service)
}

func TestHandler_HandleChat(t *testing.T) {
	t.Run("should complete a funded chat request", func(t *testing.T) {
		ledger := memory.NewLedger()
		ledger.SetBalance("u1", domain.TokenBalance{SubscriptionTokens: 1000})
		handler := newTestHandler(t, fake.NewProvider("gpt-4o-mini"), ledger)

		body := `{"user_id": "u1", "model": "gpt-4o-mini", "messages": [{"role": "user", "content": "hello"}]}`
		req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.HandleChat(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), `"model_used":"gpt-4o-mini"`)
		require.Contains(t, rec.Body.String(), "echo: hello")
	})

	t.Run("should return 402 when the balance cannot cover the estimate", func(t *testing.T) {
		ledger := memory.NewLedger()
		ledger.SetBalance("u1", domain.TokenBalance{SubscriptionTokens: 5})
		handler := newTestHandler(t, fake.NewProvider("gpt-4o-mini"), ledger)

		body := `{"user_id": "u1", "model": "gpt-4o-mini", "messages": [{"role": "user", "content": "hello"}]}`
		req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.HandleChat(rec, req)

		require.Equal(t, http.StatusPaymentRequired, rec.Code)
		require.Contains(t, rec.Body.String(), `"required_tokens":59`)
		require.Contains(t, rec.Body.String(), `"available_tokens":5`)
	})

	t.Run("should return 502 when every model fails", func(t *testing.T) {
		provider := fake.NewProvider("gpt-4o-mini")
		provider.FailWith = errors.New("upstream down")
		ledger := memory.NewLedger()
		ledger.SetBalance("u1", domain.TokenBalance{SubscriptionTokens: 1000})
		handler := newTestHandler(t, provider, ledger)

		body := `{"user_id": "u1", "model": "gpt-4o-mini", "messages": [{"role": "user", "content": "hello"}]}`
		req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.HandleChat(rec, req)

		require.Equal(t, http.StatusBadGateway, rec.Code)
		require.Contains(t, rec.Body.String(), `"attempted_models":["gpt-4o-mini"]`)
	})

	t.Run("should return 400 on malformed JSON", func(t *testing.T) {
		handler := newTestHandler(t, fake.NewProvider("gpt-4o-mini"), memory.NewLedger())

		req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader("{not json"))
		rec := httptest.NewRecorder()

		handler.HandleChat(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("should return 400 on missing fields", func(t *testing.T) {
		handler := newTestHandler(t, fake.NewProvider("gpt-4o-mini"), memory.NewLedger())

		req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"user_id": "u1"}`))
		rec := httptest.NewRecorder()

		handler.HandleChat(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("should reject non-POST methods", func(t *testing.T) {
		handler := newTestHandler(t, fake.NewProvider("gpt-4o-mini"), memory.NewLedger())

		req := httptest.NewRequest(http.MethodGet, "/v1/chat", nil)
		rec := httptest.NewRecorder()

		handler.HandleChat(rec, req)

		require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestHandler_HandleVision(t *testing.T) {
	t.Run("should complete a funded vision request", func(t *testing.T) {
		ledger := memory.NewLedger()
		ledger.SetBalance("u1", domain.TokenBalance{SubscriptionTokens: 10_000})
		handler := newTestHandler(t, fake.NewProvider("gpt-4o"), ledger)

		body := `{"user_id": "u1", "model": "gpt-4o", "image_url": "https://example.com/cat.png", "prompt": "what is this?"}`
		req := httptest.NewRequest(http.MethodPost, "/v1/vision/analyze", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.HandleVision(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), `"model_used":"gpt-4o"`)
	})

	t.Run("should require an image URL", func(t *testing.T) {
		handler := newTestHandler(t, fake.NewProvider("gpt-4o"), memory.NewLedger())

		body := `{"user_id": "u1", "model": "gpt-4o", "prompt": "what is this?"}`
		req := httptest.NewRequest(http.MethodPost, "/v1/vision/analyze", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.HandleVision(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_HandleBalance(t *testing.T) {
	t.Run("should return the balance snapshot", func(t *testing.T) {
		ledger := memory.NewLedger()
		ledger.SetBalance("u1", domain.TokenBalance{SubscriptionTokens: 100, AddonsTokens: 25})
		handler := newTestHandler(t, fake.NewProvider(), ledger)

		req := httptest.NewRequest(http.MethodGet, "/v1/balance?user_id=u1", nil)
		rec := httptest.NewRecorder()

		handler.HandleBalance(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), `"subscription_tokens":100`)
		require.Contains(t, rec.Body.String(), `"addons_tokens":25`)
	})

	t.Run("should require a user id", func(t *testing.T) {
		handler := newTestHandler(t, fake.NewProvider(), memory.NewLedger())

		req := httptest.NewRequest(http.MethodGet, "/v1/balance", nil)
		rec := httptest.NewRecorder()

		handler.HandleBalance(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_HandleHealth(t *testing.T) {
	handler := newTestHandler(t, fake.NewProvider(), memory.NewLedger())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	handler.HandleHealth(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
}
