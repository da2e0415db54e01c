package domain

// ModelPricing contains per-1K-token USD costs for one model.
type ModelPricing struct {
	InputCostPer1K  float64
	OutputCostPer1K float64
}

// Default per-token rates applied when a model is missing from the table.
// Metering degrades to these instead of blocking the request.
const (
	DefaultInputCostPerToken  = 0.0005
	DefaultOutputCostPerToken = 0.0015
)

// PricingTable is an immutable model -> pricing lookup, built once at startup
// and shared by reference. Lookup misses return ErrUnknownModel.
type PricingTable struct {
	models map[string]ModelPricing
}

// NewPricingTable builds a table from the given map. The map is copied so
// later mutation by the caller cannot affect the table.
func NewPricingTable(models map[string]ModelPricing) *PricingTable {
	copied := make(map[string]ModelPricing, len(models))
	for id, p := range models {
		copied[id] = p
	}
	return &PricingTable{models: copied}
}

// Lookup returns pricing for a model id.
func (t *PricingTable) Lookup(modelID string) (ModelPricing, error) {
	p, ok := t.models[modelID]
	if !ok {
		return ModelPricing{}, ErrUnknownModel
	}
	return p, nil
}

// Models returns the ids present in the table.
func (t *PricingTable) Models() []string {
	ids := make([]string, 0, len(t.models))
	for id := range t.models {
		ids = append(ids, id)
	}
	return ids
}

// DefaultPricingTable returns the built-in pricing for the models the
// gateway routes to out of the box, both bare OpenAI ids and vendor-scoped
// OpenRouter ids.
func DefaultPricingTable() *PricingTable {
	return NewPricingTable(map[string]ModelPricing{
		"gpt-4":         {InputCostPer1K: 0.03, OutputCostPer1K: 0.06},
		"gpt-4-turbo":   {InputCostPer1K: 0.01, OutputCostPer1K: 0.03},
		"gpt-4o":        {InputCostPer1K: 0.0025, OutputCostPer1K: 0.01},
		"gpt-4o-mini":   {InputCostPer1K: 0.0025, OutputCostPer1K: 0.0075},
		"gpt-3.5-turbo": {InputCostPer1K: 0.0005, OutputCostPer1K: 0.0015},

		"openai/gpt-4o":               {InputCostPer1K: 0.0025, OutputCostPer1K: 0.01},
		"openai/gpt-4o-mini":          {InputCostPer1K: 0.0025, OutputCostPer1K: 0.0075},
		"anthropic/claude-3.5-sonnet": {InputCostPer1K: 0.003, OutputCostPer1K: 0.015},
		"anthropic/claude-3-haiku":    {InputCostPer1K: 0.00025, OutputCostPer1K: 0.00125},
		"google/gemini-flash-1.5":     {InputCostPer1K: 0.000075, OutputCostPer1K: 0.0003},
	})
}
