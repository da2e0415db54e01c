package domain

import "time"

// Message represents a chat message sent to a provider.
type Message struct {
	Role     string `json:"role"` // user, assistant, system
	Content  string `json:"content"`
	ImageURL string `json:"image_url,omitempty"` // set for vision requests
}

// HasImage reports whether any message carries an image attachment.
func HasImage(messages []Message) bool {
	for _, m := range messages {
		if m.ImageURL != "" {
			return true
		}
	}
	return false
}

// Usage tracks token consumption reported by a provider.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// ProviderResult is the raw outcome of a single provider call.
type ProviderResult struct {
	ID         string    `json:"id"`
	Model      string    `json:"model"`
	Provider   string    `json:"provider"`
	Content    string    `json:"content"`
	Usage      Usage     `json:"usage"`
	FinishTime time.Time `json:"finish_time"`
}

// TokenBalance is a snapshot of a user's two token buckets.
type TokenBalance struct {
	SubscriptionTokens int64 `json:"subscription_tokens"`
	AddonsTokens       int64 `json:"addons_tokens"`
}

// Total returns the combined balance across both buckets.
func (b TokenBalance) Total() int64 {
	return b.SubscriptionTokens + b.AddonsTokens
}

// Bucket identifies which token balance a deduction draws from.
type Bucket string

const (
	BucketSubscription Bucket = "subscription"
	BucketAddon        Bucket = "addon"
)

// DeductionMeta carries audit attributes for a single ledger deduction.
type DeductionMeta struct {
	RequestID    string
	ModelID      string
	Modality     string // "chat" or "vision"
	Category     string
	InputTokens  int64
	OutputTokens int64
}

// DeductionOutcome reports how a charge was split across buckets.
// Success is true only when every issued sub-deduction succeeded.
type DeductionOutcome struct {
	Success              bool
	SubscriptionDeducted int64
	AddonDeducted        int64
}

// TotalDeducted returns the amount actually committed to the ledger.
func (o DeductionOutcome) TotalDeducted() int64 {
	return o.SubscriptionDeducted + o.AddonDeducted
}

// UsageEvent is the audit record handed to the UsageRecorder after a call.
type UsageEvent struct {
	UserID       string
	RequestID    string
	ModelID      string
	Modality     string
	Category     string
	InputTokens  int64
	OutputTokens int64
	TokenCost    int64
	CostUSD      float64
	Duration     time.Duration
}

// Operation describes the metering profile of one billable surface.
// EstimatedInputUnits/EstimatedOutputUnits feed the pre-authorization
// estimate; actual usage replaces them at reconciliation.
type Operation struct {
	Name                 string
	EstimatedInputUnits  int64
	EstimatedOutputUnits int64
	UsageMultiplier      float64
	Timeout              time.Duration
}

// ChatOperation returns the default metering profile for chat completions.
func ChatOperation() Operation {
	return Operation{
		Name:                 "chat",
		EstimatedInputUnits:  500,
		EstimatedOutputUnits: 1000,
		UsageMultiplier:      1,
		Timeout:              60 * time.Second,
	}
}

// VisionOperation returns the default metering profile for image analysis.
// Vision gets a higher timeout ceiling because multimodal inference is slower
// and payloads are larger.
func VisionOperation() Operation {
	return Operation{
		Name:                 "vision",
		EstimatedInputUnits:  1000,
		EstimatedOutputUnits: 2000,
		UsageMultiplier:      1,
		Timeout:              300 * time.Second,
	}
}

// MeteredResponse is the caller-facing result of a metered operation.
type MeteredResponse struct {
	Content                     string `json:"content"`
	ModelUsed                   string `json:"model_used"`
	TokenCostCharged            int64  `json:"token_cost_charged"`
	RemainingSubscriptionTokens int64  `json:"remaining_subscription_tokens"`
	RemainingAddonsTokens       int64  `json:"remaining_addons_tokens"`
}
