package domain

import "math"

const (
	// TokensPerDollar is the system-wide conversion rate between USD cost
	// and internal tokens (667 tokens ~= $1). Pre-authorization and
	// reconciliation must share this constant; both go through TokenCost.
	TokensPerDollar = 667

	// DefaultProfitMultiplier is the business margin applied on top of raw
	// provider cost.
	DefaultProfitMultiplier = 10.0

	perKUnits = 1000.0
)

// CostEstimate is a derived value: recomputed whenever usage changes, never
// mutated in place.
type CostEstimate struct {
	InputCost        float64
	OutputCost       float64
	RawCost          float64
	ProfitMultiplier float64
	UsageMultiplier  float64
	TotalCost        float64
	TokenCost        int64
	DefaultPricing   bool // true when the model missed the table
}

// TokenCost converts a USD total into internal tokens, ceiling-rounded so a
// fractional cost always charges at least one token.
func TokenCost(totalUSD float64) int64 {
	return int64(math.Ceil(totalUSD * TokensPerDollar))
}

// CostEstimator converts unit counts into monetary and token cost.
type CostEstimator struct {
	pricing          *PricingTable
	profitMultiplier float64
}

// NewCostEstimator creates an estimator over the given pricing table.
// A non-positive profitMultiplier falls back to the default margin.
func NewCostEstimator(pricing *PricingTable, profitMultiplier float64) *CostEstimator {
	if profitMultiplier <= 0 {
		profitMultiplier = DefaultProfitMultiplier
	}
	return &CostEstimator{
		pricing:          pricing,
		profitMultiplier: profitMultiplier,
	}
}

// Estimate computes the cost of inputUnits/outputUnits tokens on the given
// model. Returns ErrUnknownModel on a pricing table miss; callers that must
// not block on a miss use EstimateWithDefault.
func (e *CostEstimator) Estimate(modelID string, inputUnits, outputUnits int64, usageMultiplier float64) (CostEstimate, error) {
	pricing, err := e.pricing.Lookup(modelID)
	if err != nil {
		return CostEstimate{}, err
	}

	if usageMultiplier <= 0 {
		usageMultiplier = 1
	}

	inputCost := float64(inputUnits) / perKUnits * pricing.InputCostPer1K
	outputCost := float64(outputUnits) / perKUnits * pricing.OutputCostPer1K
	rawCost := inputCost + outputCost
	totalCost := rawCost * e.profitMultiplier * usageMultiplier

	return CostEstimate{
		InputCost:        inputCost,
		OutputCost:       outputCost,
		RawCost:          rawCost,
		ProfitMultiplier: e.profitMultiplier,
		UsageMultiplier:  usageMultiplier,
		TotalCost:        totalCost,
		TokenCost:        TokenCost(totalCost),
	}, nil
}

// EstimateWithDefault behaves like Estimate but degrades to the hardcoded
// per-token default rates on an unknown model instead of failing, so
// metering never blocks a request outright. The default path already prices
// in margin, so no profit multiplier is applied to it.
func (e *CostEstimator) EstimateWithDefault(modelID string, inputUnits, outputUnits int64, usageMultiplier float64) CostEstimate {
	est, err := e.Estimate(modelID, inputUnits, outputUnits, usageMultiplier)
	if err == nil {
		return est
	}

	if usageMultiplier <= 0 {
		usageMultiplier = 1
	}

	inputCost := float64(inputUnits) * DefaultInputCostPerToken
	outputCost := float64(outputUnits) * DefaultOutputCostPerToken
	rawCost := inputCost + outputCost
	totalCost := rawCost * usageMultiplier

	return CostEstimate{
		InputCost:        inputCost,
		OutputCost:       outputCost,
		RawCost:          rawCost,
		ProfitMultiplier: 1,
		UsageMultiplier:  usageMultiplier,
		TotalCost:        totalCost,
		TokenCost:        TokenCost(totalCost),
		DefaultPricing:   true,
	}
}
