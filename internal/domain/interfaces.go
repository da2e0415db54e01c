package domain

import "context"

// Provider performs the actual call to an LLM vendor.
type Provider interface {
	// Invoke sends a chat-completion request and returns the raw result.
	// Transport-level retry (bounded, fixed backoff) happens inside the
	// adapter; semantic soft failures are classified by the orchestrator.
	Invoke(ctx context.Context, model string, messages []Message) (*ProviderResult, error)

	// Name returns the provider identifier.
	Name() string

	// IsModelSupported checks if the provider supports the given model.
	IsModelSupported(ctx context.Context, model string) bool

	// SupportedModels returns the models this provider declares upfront.
	SupportedModels(ctx context.Context) []string
}

// ProviderRegistry manages available providers.
type ProviderRegistry interface {
	// Register adds a provider to the registry.
	Register(ctx context.Context, provider Provider) error

	// Get retrieves a provider by name.
	Get(ctx context.Context, providerName string) (Provider, error)

	// GetByModel retrieves a provider that can serve the given model.
	GetByModel(ctx context.Context, model string) (Provider, error)

	// List returns all available provider names.
	List(ctx context.Context) ([]string, error)
}

// TokenLedger exposes the billing subsystem's dual-bucket balances.
// The metering core never mutates balances directly; each Deduct call must
// be atomic per bucket and must never drive a bucket below zero.
type TokenLedger interface {
	// Balances returns the current balance snapshot for a user.
	Balances(ctx context.Context, userID string) (TokenBalance, error)

	// Deduct removes amount from the given bucket. It fails (without
	// partial effect) when the bucket holds less than amount.
	Deduct(ctx context.Context, userID string, amount int64, bucket Bucket, meta DeductionMeta) error
}

// UsageRecorder is a fire-and-forget audit sink. Failures are logged by the
// caller and never fail the parent request.
type UsageRecorder interface {
	Record(ctx context.Context, event UsageEvent) error
}

// SoftFailureDetector decides whether a transport-successful response is
// semantically useless and needs model fallback. It returns the matched
// reason when a soft failure is detected.
type SoftFailureDetector interface {
	Detect(content string, hasImage bool) (reason string, failed bool)
}
