// Package redis provides a Redis-backed TokenLedger.
//
// Balances live in one hash per user with a subscription and an addon field.
// Deductions run through a Lua script so the check-and-decrement is atomic
// per call, which is all the metering core requires from the ledger: no
// multi-bucket transaction is offered, the splitter issues two independent
// calls.
package redis

import (
	"context"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/amaslov/tokengate/internal/domain"
)

const (
	fieldSubscription = "subscription_tokens"
	fieldAddons       = "addons_tokens"
)

// Ledger is a Redis-backed TokenLedger.
type Ledger struct {
	client    goredis.Cmdable
	keyPrefix string
}

var _ domain.TokenLedger = (*Ledger)(nil)

// Option configures Ledger.
type Option func(*Ledger)

// WithKeyPrefix sets the Redis key prefix (default "tokengate:balance:").
func WithKeyPrefix(prefix string) Option {
	return func(l *Ledger) { l.keyPrefix = prefix }
}

// NewLedger creates a new Redis-backed ledger. The client must be a
// connected *goredis.Client or *goredis.ClusterClient.
func NewLedger(client goredis.Cmdable, opts ...Option) *Ledger {
	l := &Ledger{
		client:    client,
		keyPrefix: "tokengate:balance:",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) userKey(userID string) string {
	return l.keyPrefix + userID
}

// deductScript atomically decrements one bucket field, bounded by its
// current value.
// KEYS[1] = user hash key
// ARGV[1] = bucket field name
// ARGV[2] = amount
//
// Returns:
//
//	1  = deducted OK
//	0  = insufficient balance in bucket
//	-1 = user not found
var deductScript = goredis.NewScript(`
local key = KEYS[1]
local field = ARGV[1]
local amount = tonumber(ARGV[2])

local current = redis.call("HGET", key, field)
if not current then
    return -1
end
current = tonumber(current)

if current < amount then
    return 0
end

redis.call("HINCRBY", key, field, -amount)
return 1
`)

// Balances returns the current snapshot for a user. A missing hash reads as
// zero balances.
func (l *Ledger) Balances(ctx context.Context, userID string) (domain.TokenBalance, error) {
	values, err := l.client.HMGet(ctx, l.userKey(userID), fieldSubscription, fieldAddons).Result()
	if err != nil {
		return domain.TokenBalance{}, fmt.Errorf("tokengate/redis: balances: %w", err)
	}

	balance := domain.TokenBalance{
		SubscriptionTokens: parseField(values[0]),
		AddonsTokens:       parseField(values[1]),
	}
	return balance, nil
}

// Deduct removes amount from one bucket via the atomic Lua script.
func (l *Ledger) Deduct(ctx context.Context, userID string, amount int64, bucket domain.Bucket, _ domain.DeductionMeta) error {
	if amount <= 0 {
		return fmt.Errorf("tokengate/redis: deduction amount must be positive, got %d", amount)
	}

	field, err := bucketField(bucket)
	if err != nil {
		return err
	}

	result, err := deductScript.Run(ctx, l.client, []string{l.userKey(userID)}, field, amount).Int64()
	if err != nil {
		return fmt.Errorf("tokengate/redis: deduct: %w", err)
	}

	switch result {
	case 1:
		return nil
	case 0:
		return fmt.Errorf("%w: bucket %s", domain.ErrInsufficientBucket, bucket)
	case -1:
		return fmt.Errorf("%w: %s", domain.ErrUnknownUser, userID)
	default:
		return fmt.Errorf("tokengate/redis: unexpected deduct result: %d", result)
	}
}

// Credit adds tokens to a bucket, creating the hash when absent. Used by the
// billing subsystem's seeding path and by integration tests.
func (l *Ledger) Credit(ctx context.Context, userID string, amount int64, bucket domain.Bucket) error {
	field, err := bucketField(bucket)
	if err != nil {
		return err
	}
	if err := l.client.HIncrBy(ctx, l.userKey(userID), field, amount).Err(); err != nil {
		return fmt.Errorf("tokengate/redis: credit: %w", err)
	}
	return nil
}

func bucketField(bucket domain.Bucket) (string, error) {
	switch bucket {
	case domain.BucketSubscription:
		return fieldSubscription, nil
	case domain.BucketAddon:
		return fieldAddons, nil
	default:
		return "", fmt.Errorf("tokengate/redis: unknown bucket %q", bucket)
	}
}

func parseField(value any) int64 {
	s, ok := value.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
