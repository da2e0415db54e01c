package domain

import (
	"context"

	"github.com/amaslov/tokengate/internal/observability"
)

// DeductionSplitter commits a token charge against the two-bucket ledger.
// Subscription tokens are spent first; the addon bucket absorbs whatever the
// subscription bucket cannot cover. A failed sub-deduction is logged, never
// rolled back or retried: the provider cost is already sunk and blocking the
// user's response on billing consistency is worse than an under-charge.
type DeductionSplitter struct {
	ledger TokenLedger
}

// NewDeductionSplitter creates a splitter over the given ledger.
func NewDeductionSplitter(ledger TokenLedger) *DeductionSplitter {
	return &DeductionSplitter{ledger: ledger}
}

// Deduct charges amount tokens to userID. The algorithm is deterministic:
//
//  1. If the subscription bucket alone covers the amount, charge it there.
//  2. Else if the subscription bucket is empty and the addon bucket covers
//     the amount, charge the addon bucket.
//  3. Else split: drain the subscription bucket and charge the remainder to
//     the addon bucket. The two sub-charges always sum exactly to amount.
//
// A non-empty subscription bucket is always drained before the addon bucket
// is touched, even when the addon bucket alone could cover the amount.
// Input/output token attribution follows the money: the subscription leg
// gets floor(tokens * subCharge / amount), the addon leg gets the rest, so
// no tokens are lost to rounding.
func (s *DeductionSplitter) Deduct(ctx context.Context, userID string, amount int64, meta DeductionMeta) DeductionOutcome {
	logger := observability.FromContext(ctx)

	if amount <= 0 {
		return DeductionOutcome{Success: true}
	}

	balance, err := s.ledger.Balances(ctx, userID)
	if err != nil {
		logger.Warn("deduction skipped: balance fetch failed",
			observability.Error(err))
		return DeductionOutcome{}
	}

	switch {
	case balance.SubscriptionTokens >= amount:
		if err := s.ledger.Deduct(ctx, userID, amount, BucketSubscription, meta); err != nil {
			logger.Warn("subscription deduction failed",
				observability.Int64("amount", amount),
				observability.Error(err))
			return DeductionOutcome{}
		}
		return DeductionOutcome{Success: true, SubscriptionDeducted: amount}

	case balance.SubscriptionTokens == 0 && balance.AddonsTokens >= amount:
		if err := s.ledger.Deduct(ctx, userID, amount, BucketAddon, meta); err != nil {
			logger.Warn("addon deduction failed",
				observability.Int64("amount", amount),
				observability.Error(err))
			return DeductionOutcome{}
		}
		return DeductionOutcome{Success: true, AddonDeducted: amount}

	default:
		return s.deductSplit(ctx, userID, amount, balance, meta)
	}
}

func (s *DeductionSplitter) deductSplit(
	ctx context.Context,
	userID string,
	amount int64,
	balance TokenBalance,
	meta DeductionMeta,
) DeductionOutcome {
	logger := observability.FromContext(ctx)

	subCharge := balance.SubscriptionTokens
	addonCharge := amount - subCharge

	// Proportional attribution; integer truncation goes to the addon leg.
	subMeta := meta
	subMeta.InputTokens = meta.InputTokens * subCharge / amount
	subMeta.OutputTokens = meta.OutputTokens * subCharge / amount

	addonMeta := meta
	addonMeta.InputTokens = meta.InputTokens - subMeta.InputTokens
	addonMeta.OutputTokens = meta.OutputTokens - subMeta.OutputTokens

	outcome := DeductionOutcome{Success: true}

	if subCharge > 0 {
		if err := s.ledger.Deduct(ctx, userID, subCharge, BucketSubscription, subMeta); err != nil {
			logger.Warn("split deduction: subscription leg failed",
				observability.Int64("amount", subCharge),
				observability.Error(err))
			outcome.Success = false
		} else {
			outcome.SubscriptionDeducted = subCharge
		}
	}

	if addonCharge > 0 {
		if err := s.ledger.Deduct(ctx, userID, addonCharge, BucketAddon, addonMeta); err != nil {
			// No compensating rollback of the subscription leg: accepted
			// reconciliation gap, the charge stays partial.
			logger.Warn("split deduction: addon leg failed",
				observability.Int64("amount", addonCharge),
				observability.Int64("subscription_deducted", outcome.SubscriptionDeducted),
				observability.Error(err))
			outcome.Success = false
		} else {
			outcome.AddonDeducted = addonCharge
		}
	}

	return outcome
}
