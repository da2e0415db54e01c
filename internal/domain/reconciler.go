package domain

import (
	"context"

	"github.com/amaslov/tokengate/internal/observability"
)

// reconcileDeltaThreshold is the token delta between pre-authorized and
// actual cost above which the drift is logged. Observability only.
const reconcileDeltaThreshold = 5

// CorrectedCost is the outcome of reconciling a pre-authorization estimate
// against provider-reported usage.
type CorrectedCost struct {
	Estimate  CostEstimate
	TokenCost int64
	Capped    bool
}

// ResponseReconciler recomputes actual cost from provider usage after a call
// completes. Both it and the pre-authorization gate price through the same
// CostEstimator, so the token conversion rate cannot diverge.
type ResponseReconciler struct {
	estimator *CostEstimator
}

// NewResponseReconciler creates a reconciler over the shared estimator.
func NewResponseReconciler(estimator *CostEstimator) *ResponseReconciler {
	return &ResponseReconciler{estimator: estimator}
}

// Reconcile recomputes cost from actual usage, falling back to the
// operation's estimated units when the provider reported none. When the
// corrected cost exceeds the currently available combined balance (it may
// have shifted since the pre-check), the charge is capped at the available
// total: the provider cost is already sunk, so under-charging beats failing
// a completed call.
func (r *ResponseReconciler) Reconcile(
	ctx context.Context,
	modelID string,
	preAuth CostEstimate,
	usage Usage,
	op Operation,
	available TokenBalance,
) CorrectedCost {
	logger := observability.FromContext(ctx)

	inputUnits := usage.InputTokens
	outputUnits := usage.OutputTokens
	if inputUnits == 0 && outputUnits == 0 {
		inputUnits = op.EstimatedInputUnits
		outputUnits = op.EstimatedOutputUnits
	}

	corrected := r.estimator.EstimateWithDefault(modelID, inputUnits, outputUnits, op.UsageMultiplier)

	delta := corrected.TokenCost - preAuth.TokenCost
	if delta < 0 {
		delta = -delta
	}
	if delta > reconcileDeltaThreshold {
		logger.Info("reconciled cost drifted from pre-authorization",
			observability.String("model", modelID),
			observability.Int64("pre_auth_tokens", preAuth.TokenCost),
			observability.Int64("actual_tokens", corrected.TokenCost),
			observability.Int64("delta", delta))
	}

	tokenCost := corrected.TokenCost
	capped := false
	if total := available.Total(); tokenCost > total {
		logger.Warn("corrected cost exceeds available balance, capping charge",
			observability.String("model", modelID),
			observability.Int64("corrected_tokens", tokenCost),
			observability.Int64("available_tokens", total))
		tokenCost = total
		capped = true
	}

	return CorrectedCost{
		Estimate:  corrected,
		TokenCost: tokenCost,
		Capped:    capped,
	}
}
