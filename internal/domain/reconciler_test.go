package domain_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/amaslov/tokengate/internal/domain"
)

func TestResponseReconciler_Reconcile(t *testing.T) {
	ctx := context.Background()
	estimator := domain.NewCostEstimator(domain.DefaultPricingTable(), domain.DefaultProfitMultiplier)
	reconciler := domain.NewResponseReconciler(estimator)
	op := domain.ChatOperation()

	preAuth := estimator.EstimateWithDefault("gpt-4o-mini", op.EstimatedInputUnits, op.EstimatedOutputUnits, op.UsageMultiplier)
	ample := domain.TokenBalance{SubscriptionTokens: 10_000, AddonsTokens: 10_000}

	t.Run("should recompute cost from actual provider usage", func(t *testing.T) {
		usage := domain.Usage{InputTokens: 2000, OutputTokens: 4000}

		corrected := reconciler.Reconcile(ctx, "gpt-4o-mini", preAuth, usage, op, ample)

		expected := estimator.EstimateWithDefault("gpt-4o-mini", 2000, 4000, op.UsageMultiplier)
		require.Equal(t, expected.TokenCost, corrected.TokenCost)
		require.False(t, corrected.Capped)
	})

	t.Run("should fall back to the operation estimate when usage is unreported", func(t *testing.T) {
		corrected := reconciler.Reconcile(ctx, "gpt-4o-mini", preAuth, domain.Usage{}, op, ample)

		require.Equal(t, preAuth.TokenCost, corrected.TokenCost)
		require.False(t, corrected.Capped)
	})

	t.Run("should cap the charge at the available total", func(t *testing.T) {
		usage := domain.Usage{InputTokens: 500, OutputTokens: 1000}
		available := domain.TokenBalance{SubscriptionTokens: 10, AddonsTokens: 20}

		corrected := reconciler.Reconcile(ctx, "gpt-4o-mini", preAuth, usage, op, available)

		require.Equal(t, int64(30), corrected.TokenCost)
		require.True(t, corrected.Capped)
	})

	t.Run("should price unknown models through the default path", func(t *testing.T) {
		usage := domain.Usage{InputTokens: 1000, OutputTokens: 2000}

		corrected := reconciler.Reconcile(ctx, "mystery-model", preAuth, usage, op, ample)

		require.True(t, corrected.Estimate.DefaultPricing)
		require.Equal(t, int64(2335), corrected.TokenCost)
	})
}
