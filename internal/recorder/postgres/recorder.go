// Package postgres provides a PostgreSQL-backed UsageRecorder.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/amaslov/tokengate/internal/domain"
)

// DB is the narrow pgx surface the recorder needs; satisfied by *pgxpool.Pool.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Recorder persists usage events to a usage_logs table.
type Recorder struct {
	db DB
}

var _ domain.UsageRecorder = (*Recorder)(nil)

// NewRecorder creates a new Postgres-backed recorder.
func NewRecorder(db DB) *Recorder {
	return &Recorder{db: db}
}

// EnsureSchema creates the usage_logs table if it doesn't exist.
func (r *Recorder) EnsureSchema(ctx context.Context) error {
	q := `
		CREATE TABLE IF NOT EXISTS usage_logs (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			request_id TEXT NOT NULL,
			model TEXT NOT NULL,
			modality TEXT NOT NULL,
			category TEXT NOT NULL,
			input_tokens BIGINT NOT NULL,
			output_tokens BIGINT NOT NULL,
			token_cost BIGINT NOT NULL,
			cost_usd DOUBLE PRECISION NOT NULL,
			latency_ms BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS usage_logs_user_created_idx
			ON usage_logs (user_id, created_at);
	`
	if _, err := r.db.Exec(ctx, q); err != nil {
		return fmt.Errorf("tokengate/recorder: ensure schema: %w", err)
	}
	return nil
}

// Record inserts one audit row per metered call.
func (r *Recorder) Record(ctx context.Context, event domain.UsageEvent) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO usage_logs
			(user_id, request_id, model, modality, category, input_tokens, output_tokens, token_cost, cost_usd, latency_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		event.UserID, event.RequestID, event.ModelID, event.Modality, event.Category,
		event.InputTokens, event.OutputTokens, event.TokenCost, event.CostUSD,
		event.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("tokengate/recorder: record usage: %w", err)
	}
	return nil
}
