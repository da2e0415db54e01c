// Package zaprec provides a UsageRecorder that writes audit events to the
// structured log. It is the default sink when no database is configured.
package zaprec

import (
	"context"

	"go.uber.org/zap"

	"github.com/amaslov/tokengate/internal/domain"
	"github.com/amaslov/tokengate/internal/observability"
)

// Recorder logs usage events with zap.
type Recorder struct {
	logger *zap.Logger
}

var _ domain.UsageRecorder = (*Recorder)(nil)

// NewRecorder creates a Recorder. A nil logger falls back to the
// context-scoped logger at record time.
func NewRecorder(logger *zap.Logger) *Recorder {
	return &Recorder{logger: logger}
}

// Record writes one audit line per metered call.
func (r *Recorder) Record(ctx context.Context, event domain.UsageEvent) error {
	logger := r.logger
	if logger == nil {
		logger = observability.FromContext(ctx)
	}

	logger.Info("usage recorded",
		zap.String("user_id", event.UserID),
		zap.String("request_id", event.RequestID),
		zap.String("model", event.ModelID),
		zap.String("modality", event.Modality),
		zap.String("category", event.Category),
		zap.Int64("input_tokens", event.InputTokens),
		zap.Int64("output_tokens", event.OutputTokens),
		zap.Int64("token_cost", event.TokenCost),
		zap.Float64("cost_usd", event.CostUSD),
		zap.Duration("duration", event.Duration),
	)
	return nil
}
