package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/amaslov/tokengate/internal/observability"
)

// MeteringService runs the metered request pipeline:
// estimate -> balance gate -> provider call with fallback -> reconcile -> deduct.
// The sequence is never reordered: the gate strictly precedes the provider
// call, which strictly precedes reconciliation and deduction.
type MeteringService struct {
	estimator    *CostEstimator
	ledger       TokenLedger
	recorder     UsageRecorder
	orchestrator *FallbackOrchestrator
	splitter     *DeductionSplitter
	reconciler   *ResponseReconciler
	prompts      *PromptCatalog
	chatOp       Operation
	visionOp     Operation
	chatPlan     FallbackPlan
	visionPlan   FallbackPlan
}

// MeteringOption configures a MeteringService.
type MeteringOption func(*MeteringService)

// WithChatOperation overrides the chat metering profile.
func WithChatOperation(op Operation) MeteringOption {
	return func(m *MeteringService) { m.chatOp = op }
}

// WithVisionOperation overrides the vision metering profile.
func WithVisionOperation(op Operation) MeteringOption {
	return func(m *MeteringService) { m.visionOp = op }
}

// WithChatFallbackPlan sets the ordered model chain for chat.
func WithChatFallbackPlan(plan FallbackPlan) MeteringOption {
	return func(m *MeteringService) { m.chatPlan = plan }
}

// WithVisionFallbackPlan sets the ordered model chain for vision.
func WithVisionFallbackPlan(plan FallbackPlan) MeteringOption {
	return func(m *MeteringService) { m.visionPlan = plan }
}

// WithPromptCatalog overrides the injected system prompts.
func WithPromptCatalog(prompts *PromptCatalog) MeteringOption {
	return func(m *MeteringService) { m.prompts = prompts }
}

// NewMeteringService creates the pipeline service (DI constructor).
func NewMeteringService(
	estimator *CostEstimator,
	ledger TokenLedger,
	recorder UsageRecorder,
	orchestrator *FallbackOrchestrator,
	splitter *DeductionSplitter,
	reconciler *ResponseReconciler,
	opts ...MeteringOption,
) (*MeteringService, error) {
	m := &MeteringService{
		estimator:    estimator,
		ledger:       ledger,
		recorder:     recorder,
		orchestrator: orchestrator,
		splitter:     splitter,
		reconciler:   reconciler,
		prompts:      DefaultPromptCatalog(),
		chatOp:       ChatOperation(),
		visionOp:     VisionOperation(),
	}

	for _, opt := range opts {
		opt(m)
	}

	if err := m.chatPlan.Validate(); err != nil {
		return nil, err
	}
	if err := m.visionPlan.Validate(); err != nil {
		return nil, err
	}

	return m, nil
}

// Chat meters and executes a chat completion for userID.
func (m *MeteringService) Chat(ctx context.Context, userID, model string, messages []Message) (*MeteredResponse, error) {
	if len(messages) == 0 {
		return nil, errors.New("tokengate: messages cannot be empty")
	}

	withSystem := make([]Message, 0, len(messages)+1)
	withSystem = append(withSystem, Message{Role: "system", Content: m.prompts.ChatSystem()})
	withSystem = append(withSystem, messages...)

	return m.execute(ctx, userID, model, m.chatOp, m.chatPlan, withSystem)
}

// AnalyzeImage meters and executes a vision analysis for userID.
func (m *MeteringService) AnalyzeImage(ctx context.Context, userID, model, imageURL, prompt string) (*MeteredResponse, error) {
	if imageURL == "" {
		return nil, errors.New("tokengate: image URL cannot be empty")
	}
	if prompt == "" {
		prompt = "Describe this image."
	}

	messages := []Message{
		{Role: "system", Content: m.prompts.VisionSystem()},
		{Role: "user", Content: prompt, ImageURL: imageURL},
	}

	return m.execute(ctx, userID, model, m.visionOp, m.visionPlan, messages)
}

func (m *MeteringService) execute(
	ctx context.Context,
	userID, model string,
	op Operation,
	plan FallbackPlan,
	messages []Message,
) (*MeteredResponse, error) {
	if userID == "" {
		return nil, errors.New("tokengate: user id cannot be empty")
	}
	if model == "" {
		return nil, errors.New("tokengate: model cannot be empty")
	}

	ctx = observability.WithUserID(ctx, userID)
	ctx = observability.WithModel(ctx, model)
	logger := observability.FromContext(ctx)

	// 1. Pre-authorization estimate from the operation's fixed unit defaults.
	preAuth := m.estimator.EstimateWithDefault(model, op.EstimatedInputUnits, op.EstimatedOutputUnits, op.UsageMultiplier)

	// 2. Balance gate. Fails fast before any provider spend.
	balance, err := m.ledger.Balances(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balance.Total() < preAuth.TokenCost {
		logger.Info("pre-authorization rejected",
			observability.Int64("required", preAuth.TokenCost),
			observability.Int64("subscription", balance.SubscriptionTokens),
			observability.Int64("addons", balance.AddonsTokens))
		return nil, &InsufficientTokensError{
			Required:     preAuth.TokenCost,
			Subscription: balance.SubscriptionTokens,
			Addons:       balance.AddonsTokens,
		}
	}

	// 3. Provider call with model fallback, bounded by the op timeout.
	callCtx, cancel := context.WithTimeout(ctx, op.Timeout)
	defer cancel()

	start := time.Now()
	result, modelUsed, err := m.orchestrator.Resolve(callCtx, model, plan, messages)
	if err != nil {
		return nil, err
	}
	duration := time.Since(start)

	// 4. Reconcile actual cost against a fresh balance snapshot. The
	// balance may have shifted since the gate due to concurrent requests.
	freshBalance, err := m.ledger.Balances(ctx, userID)
	if err != nil {
		logger.Warn("post-call balance fetch failed, reconciling against gated snapshot",
			observability.Error(err))
		freshBalance = balance
	}
	corrected := m.reconciler.Reconcile(ctx, modelUsed, preAuth, result.Usage, op, freshBalance)

	// 5. Commit the charge. Failures here are logged, never surfaced: the
	// provider result is already in hand (fail-open billing policy).
	meta := DeductionMeta{
		RequestID:    requestID(ctx),
		ModelID:      modelUsed,
		Modality:     op.Name,
		Category:     op.Name,
		InputTokens:  result.Usage.InputTokens,
		OutputTokens: result.Usage.OutputTokens,
	}
	outcome := m.splitter.Deduct(ctx, userID, corrected.TokenCost, meta)
	if !outcome.Success {
		logger.Warn("deduction incomplete, returning result anyway",
			observability.Int64("token_cost", corrected.TokenCost),
			observability.Int64("deducted", outcome.TotalDeducted()))
	}

	// 6. Audit trail, fire-and-forget.
	if m.recorder != nil {
		event := UsageEvent{
			UserID:       userID,
			RequestID:    meta.RequestID,
			ModelID:      modelUsed,
			Modality:     op.Name,
			Category:     op.Name,
			InputTokens:  result.Usage.InputTokens,
			OutputTokens: result.Usage.OutputTokens,
			TokenCost:    outcome.TotalDeducted(),
			CostUSD:      corrected.Estimate.RawCost,
			Duration:     duration,
		}
		if recErr := m.recorder.Record(ctx, event); recErr != nil {
			logger.Warn("usage record failed", observability.Error(recErr))
		}
	}

	remaining, err := m.ledger.Balances(ctx, userID)
	if err != nil {
		logger.Warn("remaining balance fetch failed", observability.Error(err))
	}

	logger.Info("metered request completed",
		observability.String("model_used", modelUsed),
		observability.Int64("token_cost_charged", outcome.TotalDeducted()),
		observability.Int64("remaining_subscription", remaining.SubscriptionTokens),
		observability.Int64("remaining_addons", remaining.AddonsTokens),
		observability.Duration("duration", duration))

	return &MeteredResponse{
		Content:                     result.Content,
		ModelUsed:                   modelUsed,
		TokenCostCharged:            outcome.TotalDeducted(),
		RemainingSubscriptionTokens: remaining.SubscriptionTokens,
		RemainingAddonsTokens:       remaining.AddonsTokens,
	}, nil
}

// Balance exposes the ledger snapshot for the HTTP surface.
func (m *MeteringService) Balance(ctx context.Context, userID string) (TokenBalance, error) {
	if userID == "" {
		return TokenBalance{}, errors.New("tokengate: user id cannot be empty")
	}
	return m.ledger.Balances(ctx, userID)
}

func requestID(ctx context.Context) string {
	if id := observability.GetRequestID(ctx); id != "" {
		return id
	}
	return uuid.New().String()
}
