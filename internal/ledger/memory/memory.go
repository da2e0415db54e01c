// Package memory provides an in-memory TokenLedger for tests and keyless
// development runs. Each Deduct call is atomic under the store mutex.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/amaslov/tokengate/internal/domain"
)

// Ledger is an in-memory dual-bucket token ledger.
type Ledger struct {
	mu       sync.Mutex
	balances map[string]domain.TokenBalance
}

var _ domain.TokenLedger = (*Ledger)(nil)

// NewLedger creates an empty in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[string]domain.TokenBalance),
	}
}

// SetBalance seeds or replaces a user's balance.
func (l *Ledger) SetBalance(userID string, balance domain.TokenBalance) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[userID] = balance
}

// Balances returns the current snapshot for a user. Unknown users read as
// zero balances rather than erroring, matching the billing subsystem's view
// of users who never purchased tokens.
func (l *Ledger) Balances(_ context.Context, userID string) (domain.TokenBalance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[userID], nil
}

// Deduct removes amount from one bucket. It fails without effect when the
// bucket holds less than amount, so a bucket can never go negative.
func (l *Ledger) Deduct(_ context.Context, userID string, amount int64, bucket domain.Bucket, _ domain.DeductionMeta) error {
	if amount <= 0 {
		return fmt.Errorf("tokengate/memory: deduction amount must be positive, got %d", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.balances[userID]

	switch bucket {
	case domain.BucketSubscription:
		if balance.SubscriptionTokens < amount {
			return fmt.Errorf("%w: subscription has %d, need %d",
				domain.ErrInsufficientBucket, balance.SubscriptionTokens, amount)
		}
		balance.SubscriptionTokens -= amount
	case domain.BucketAddon:
		if balance.AddonsTokens < amount {
			return fmt.Errorf("%w: addons has %d, need %d",
				domain.ErrInsufficientBucket, balance.AddonsTokens, amount)
		}
		balance.AddonsTokens -= amount
	default:
		return fmt.Errorf("tokengate/memory: unknown bucket %q", bucket)
	}

	l.balances[userID] = balance
	return nil
}
