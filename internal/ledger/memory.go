package ledger

import (
	"context"
	"sync"

	"adgen/internal/domain"
)

type account struct{ user, key string }

// MemoryLedger is a process-local ledger for development and tests.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[account]int
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[account]int)}
}

func (l *MemoryLedger) Debit(ctx context.Context, userID, keyID string, amount int) (int, error) {
	if err := validate(userID, keyID, amount); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	acct := account{userID, keyID}
	if l.balances[acct] < amount {
		return 0, domain.ErrInsufficientCredits
	}
	l.balances[acct] -= amount
	return l.balances[acct], nil
}

func (l *MemoryLedger) Credit(ctx context.Context, userID, keyID string, amount int) (int, error) {
	if err := validate(userID, keyID, amount); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	acct := account{userID, keyID}
	l.balances[acct] += amount
	return l.balances[acct], nil
}

func (l *MemoryLedger) Balance(ctx context.Context, userID, keyID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account{userID, keyID}], nil
}

var _ domain.CreditLedger = (*MemoryLedger)(nil)
