package domain_test

import (
	"context"
	"fmt"
	"time"

	"github.com/amaslov/tokengate/internal/domain"
)

// mockProvider is a mock implementation of Provider for testing.
type mockProvider struct {
	name            string
	invokeFunc      func(ctx context.Context, model string, messages []domain.Message) (*domain.ProviderResult, error)
	supportedModels map[string]struct{}
	invokeCount     int
}

func (m *mockProvider) Invoke(ctx context.Context, model string, messages []domain.Message) (*domain.ProviderResult, error) {
	m.invokeCount++
	if m.invokeFunc != nil {
		return m.invokeFunc(ctx, model, messages)
	}
	return &domain.ProviderResult{
		ID:       "test-id",
		Model:    model,
		Provider: m.name,
		Content:  "test response",
		Usage: domain.Usage{
			InputTokens:  10,
			OutputTokens: 20,
		},
		FinishTime: time.Now(),
	}, nil
}

func (m *mockProvider) Name() string {
	return m.name
}

func (m *mockProvider) IsModelSupported(_ context.Context, model string) bool {
	if m.supportedModels == nil {
		return true
	}
	_, supported := m.supportedModels[model]
	return supported
}

func (m *mockProvider) SupportedModels(_ context.Context) []string {
	models := make([]string, 0, len(m.supportedModels))
	for model := range m.supportedModels {
		models = append(models, model)
	}
	return models
}

func supporting(models ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(models))
	for _, m := range models {
		set[m] = struct{}{}
	}
	return set
}

// mockRegistry is a mock implementation of ProviderRegistry for testing.
type mockRegistry struct {
	providers []domain.Provider
}

func newMockRegistry(providers ...domain.Provider) *mockRegistry {
	return &mockRegistry{providers: providers}
}

func (m *mockRegistry) Register(_ context.Context, provider domain.Provider) error {
	m.providers = append(m.providers, provider)
	return nil
}

func (m *mockRegistry) Get(_ context.Context, providerName string) (domain.Provider, error) {
	for _, provider := range m.providers {
		if provider.Name() == providerName {
			return provider, nil
		}
	}
	return nil, fmt.Errorf("provider %s not found", providerName)
}

func (m *mockRegistry) GetByModel(ctx context.Context, model string) (domain.Provider, error) {
	for _, provider := range m.providers {
		if provider.IsModelSupported(ctx, model) {
			return provider, nil
		}
	}
	return nil, fmt.Errorf("no provider found for model: %s", model)
}

func (m *mockRegistry) List(_ context.Context) ([]string, error) {
	names := make([]string, 0, len(m.providers))
	for _, provider := range m.providers {
		names = append(names, provider.Name())
	}
	return names, nil
}

// deductCall records one ledger Deduct invocation.
type deductCall struct {
	userID string
	amount int64
	bucket domain.Bucket
	meta   domain.DeductionMeta
}

// fakeLedger is an in-test TokenLedger with error injection per bucket.
type fakeLedger struct {
	balances    map[string]domain.TokenBalance
	balancesErr error
	failBucket  map[domain.Bucket]error
	calls       []deductCall
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		balances:   make(map[string]domain.TokenBalance),
		failBucket: make(map[domain.Bucket]error),
	}
}

func (l *fakeLedger) Balances(_ context.Context, userID string) (domain.TokenBalance, error) {
	if l.balancesErr != nil {
		return domain.TokenBalance{}, l.balancesErr
	}
	return l.balances[userID], nil
}

func (l *fakeLedger) Deduct(_ context.Context, userID string, amount int64, bucket domain.Bucket, meta domain.DeductionMeta) error {
	l.calls = append(l.calls, deductCall{userID: userID, amount: amount, bucket: bucket, meta: meta})

	if err := l.failBucket[bucket]; err != nil {
		return err
	}

	balance := l.balances[userID]
	switch bucket {
	case domain.BucketSubscription:
		if balance.SubscriptionTokens < amount {
			return domain.ErrInsufficientBucket
		}
		balance.SubscriptionTokens -= amount
	case domain.BucketAddon:
		if balance.AddonsTokens < amount {
			return domain.ErrInsufficientBucket
		}
		balance.AddonsTokens -= amount
	}
	l.balances[userID] = balance
	return nil
}

// stubRecorder captures usage events.
type stubRecorder struct {
	events    []domain.UsageEvent
	recordErr error
}

func (r *stubRecorder) Record(_ context.Context, event domain.UsageEvent) error {
	if r.recordErr != nil {
		return r.recordErr
	}
	r.events = append(r.events, event)
	return nil
}
