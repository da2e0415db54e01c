// Package postgres provides a PostgreSQL-backed TokenLedger.
//
// Each deduction is a single conditional UPDATE bounded by the bucket's
// current value, so per-call atomicity and the never-negative invariant come
// from the database. Deductions are also journaled for the billing audit
// trail.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/amaslov/tokengate/internal/domain"
)

// DB is the narrow pgx surface the ledger needs; satisfied by *pgxpool.Pool.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Ledger is a PostgreSQL-backed TokenLedger.
type Ledger struct {
	db DB
}

var _ domain.TokenLedger = (*Ledger)(nil)

// NewLedger creates a new Postgres-backed ledger.
func NewLedger(db DB) *Ledger {
	return &Ledger{db: db}
}

// EnsureSchema creates the required tables if they don't exist.
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	q := `
		CREATE TABLE IF NOT EXISTS token_balances (
			user_id TEXT PRIMARY KEY,
			subscription_tokens BIGINT NOT NULL DEFAULT 0 CHECK (subscription_tokens >= 0),
			addons_tokens BIGINT NOT NULL DEFAULT 0 CHECK (addons_tokens >= 0),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS token_deductions (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			request_id TEXT NOT NULL,
			amount BIGINT NOT NULL,
			bucket TEXT NOT NULL,
			model_id TEXT NOT NULL,
			modality TEXT NOT NULL,
			category TEXT NOT NULL,
			input_tokens BIGINT NOT NULL DEFAULT 0,
			output_tokens BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`
	if _, err := l.db.Exec(ctx, q); err != nil {
		return fmt.Errorf("tokengate/postgres: ensure schema: %w", err)
	}
	return nil
}

// Balances returns the current snapshot for a user. Users without a row read
// as zero balances.
func (l *Ledger) Balances(ctx context.Context, userID string) (domain.TokenBalance, error) {
	var balance domain.TokenBalance
	err := l.db.QueryRow(ctx,
		`SELECT subscription_tokens, addons_tokens FROM token_balances WHERE user_id = $1`,
		userID,
	).Scan(&balance.SubscriptionTokens, &balance.AddonsTokens)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TokenBalance{}, nil
	}
	if err != nil {
		return domain.TokenBalance{}, fmt.Errorf("tokengate/postgres: balances: %w", err)
	}
	return balance, nil
}

// Deduct removes amount from one bucket with a conditional UPDATE and
// journals the deduction.
func (l *Ledger) Deduct(ctx context.Context, userID string, amount int64, bucket domain.Bucket, meta domain.DeductionMeta) error {
	if amount <= 0 {
		return fmt.Errorf("tokengate/postgres: deduction amount must be positive, got %d", amount)
	}

	column, err := bucketColumn(bucket)
	if err != nil {
		return err
	}

	tag, err := l.db.Exec(ctx,
		fmt.Sprintf(`UPDATE token_balances
			SET %[1]s = %[1]s - $1, updated_at = now()
			WHERE user_id = $2 AND %[1]s >= $1`, column),
		amount, userID,
	)
	if err != nil {
		return fmt.Errorf("tokengate/postgres: deduct: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: bucket %s", domain.ErrInsufficientBucket, bucket)
	}

	// The balance change has landed at this point; a lost journal row is an
	// audit gap, not a billing failure, so the insert is best-effort.
	_, _ = l.db.Exec(ctx,
		`INSERT INTO token_deductions
			(user_id, request_id, amount, bucket, model_id, modality, category, input_tokens, output_tokens)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		userID, meta.RequestID, amount, string(bucket),
		meta.ModelID, meta.Modality, meta.Category, meta.InputTokens, meta.OutputTokens,
	)
	return nil
}

// Credit adds tokens to a bucket, creating the row when absent.
func (l *Ledger) Credit(ctx context.Context, userID string, amount int64, bucket domain.Bucket) error {
	column, err := bucketColumn(bucket)
	if err != nil {
		return err
	}

	_, err = l.db.Exec(ctx,
		fmt.Sprintf(`INSERT INTO token_balances (user_id, %[1]s)
			VALUES ($1, $2)
			ON CONFLICT (user_id) DO UPDATE
			SET %[1]s = token_balances.%[1]s + $2, updated_at = now()`, column),
		userID, amount,
	)
	if err != nil {
		return fmt.Errorf("tokengate/postgres: credit: %w", err)
	}
	return nil
}

func bucketColumn(bucket domain.Bucket) (string, error) {
	switch bucket {
	case domain.BucketSubscription:
		return "subscription_tokens", nil
	case domain.BucketAddon:
		return "addons_tokens", nil
	default:
		return "", fmt.Errorf("tokengate/postgres: unknown bucket %q", bucket)
	}
}
