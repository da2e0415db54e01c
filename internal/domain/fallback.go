package domain

import (
	"context"
	"fmt"
	"regexp"

	"github.com/amaslov/tokengate/internal/observability"
)

// FallbackPlan is a fixed, ordered, non-repeating sequence of model ids
// tried after the primary model fails.
type FallbackPlan []string

// Validate returns an error when the plan repeats a model id.
func (p FallbackPlan) Validate() error {
	seen := make(map[string]struct{}, len(p))
	for _, id := range p {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("tokengate: fallback plan repeats model %q", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Model ids are either bare ("gpt-4o-mini") or vendor-scoped
// ("anthropic/claude-3.5-sonnet"). Anything else skips straight into the
// fallback chain without a wasted network call.
var modelIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*(/[a-zA-Z0-9][a-zA-Z0-9._:-]*)?$`)

// ValidModelID reports whether id matches a known provider id shape.
func ValidModelID(id string) bool {
	return modelIDPattern.MatchString(id)
}

// FallbackOrchestrator resolves a request against a primary model and an
// ordered fallback plan. It is an explicit iterative loop: no recursion,
// at most 1+len(plan) attempts, and no model is tried twice per resolution.
type FallbackOrchestrator struct {
	registry ProviderRegistry
	detector SoftFailureDetector
}

// NewFallbackOrchestrator creates an orchestrator. A nil detector disables
// semantic soft-failure checks.
func NewFallbackOrchestrator(registry ProviderRegistry, detector SoftFailureDetector) *FallbackOrchestrator {
	return &FallbackOrchestrator{
		registry: registry,
		detector: detector,
	}
}

// Resolve tries the requested model first, then the plan's models in order.
// On success it returns the provider result and the model id actually used,
// which may differ from the requested one. When every candidate fails it
// returns FallbackExhaustedError listing each attempted model id.
func (o *FallbackOrchestrator) Resolve(
	ctx context.Context,
	model string,
	plan FallbackPlan,
	messages []Message,
) (*ProviderResult, string, error) {
	logger := observability.FromContext(ctx)
	hasImage := HasImage(messages)

	candidates := buildCandidates(model, plan)
	attempted := make([]string, 0, len(candidates))

	var lastErr error
	for attempt, candidate := range candidates {
		attempted = append(attempted, candidate)

		if !ValidModelID(candidate) {
			lastErr = fmt.Errorf("%w: %q", ErrInvalidModelID, candidate)
			logger.Warn("skipping syntactically invalid model id",
				observability.String("model", candidate),
				observability.Int("attempt", attempt+1))
			continue
		}

		provider, err := o.registry.GetByModel(ctx, candidate)
		if err != nil {
			lastErr = err
			logger.Warn("no provider for model",
				observability.String("model", candidate),
				observability.Error(err))
			continue
		}

		result, err := provider.Invoke(ctx, candidate, messages)
		if err != nil {
			lastErr = err
			logger.Warn("provider call failed, advancing fallback chain",
				observability.String("model", candidate),
				observability.String("provider", provider.Name()),
				observability.Int("attempt", attempt+1),
				observability.Error(err))
			continue
		}

		if result.Content == "" {
			lastErr = &SoftFailureError{
				Provider: provider.Name(),
				Model:    candidate,
				Reason:   "empty response content",
			}
			logger.Warn("empty provider response, advancing fallback chain",
				observability.String("model", candidate),
				observability.Int("attempt", attempt+1))
			continue
		}

		if o.detector != nil {
			if reason, failed := o.detector.Detect(result.Content, hasImage); failed {
				lastErr = &SoftFailureError{
					Provider: provider.Name(),
					Model:    candidate,
					Reason:   reason,
				}
				logger.Warn("semantic soft failure, advancing fallback chain",
					observability.String("model", candidate),
					observability.String("reason", reason),
					observability.Int("attempt", attempt+1))
				continue
			}
		}

		if candidate != model {
			logger.Info("request served by fallback model",
				observability.String("requested_model", model),
				observability.String("model_used", candidate),
				observability.Int("attempt", attempt+1))
		}
		return result, candidate, nil
	}

	return nil, "", &FallbackExhaustedError{
		Attempted: attempted,
		LastErr:   lastErr,
	}
}

// buildCandidates prepends the requested model to the plan and drops
// duplicates, preserving order. Guarantees no model is tried twice.
func buildCandidates(model string, plan FallbackPlan) []string {
	candidates := make([]string, 0, len(plan)+1)
	seen := make(map[string]struct{}, len(plan)+1)

	for _, id := range append([]string{model}, plan...) {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		candidates = append(candidates, id)
	}
	return candidates
}
