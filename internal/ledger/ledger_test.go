package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adgen/internal/domain"
)

func newRedisLedger(t *testing.T) *RedisLedger {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisLedger(rdb, "")
}

func ledgers(t *testing.T) map[string]domain.CreditLedger {
	return map[string]domain.CreditLedger{
		"memory": NewMemoryLedger(),
		"redis":  newRedisLedger(t),
	}
}

func TestLedgerDebitCredit(t *testing.T) {
	for name, l := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			bal, err := l.Balance(ctx, "u1", "k1")
			require.NoError(t, err)
			assert.Equal(t, 0, bal)

			_, err = l.Debit(ctx, "u1", "k1", 1)
			assert.ErrorIs(t, err, domain.ErrInsufficientCredits)

			bal, err = l.Credit(ctx, "u1", "k1", 2)
			require.NoError(t, err)
			assert.Equal(t, 2, bal)

			remaining, err := l.Debit(ctx, "u1", "k1", 1)
			require.NoError(t, err)
			assert.Equal(t, 1, remaining)

			remaining, err = l.Debit(ctx, "u1", "k1", 1)
			require.NoError(t, err)
			assert.Equal(t, 0, remaining)

			_, err = l.Debit(ctx, "u1", "k1", 1)
			assert.ErrorIs(t, err, domain.ErrInsufficientCredits)

			other, err := l.Balance(ctx, "u1", "k2")
			require.NoError(t, err)
			assert.Equal(t, 0, other, "balances are scoped per key")
		})
	}
}

func TestLedgerValidation(t *testing.T) {
	for name, l := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := l.Debit(ctx, "", "k1", 1)
			assert.ErrorIs(t, err, domain.ErrValidation)
			_, err = l.Credit(ctx, "u1", "k1", 0)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestLedgerConcurrentDebitsNeverOverdraw(t *testing.T) {
	for name, l := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := l.Credit(ctx, "u1", "k1", 5)
			require.NoError(t, err)

			var wg sync.WaitGroup
			var mu sync.Mutex
			succeeded := 0
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, err := l.Debit(ctx, "u1", "k1", 1); err == nil {
						mu.Lock()
						succeeded++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, 5, succeeded)
			bal, err := l.Balance(ctx, "u1", "k1")
			require.NoError(t, err)
			assert.Equal(t, 0, bal)
		})
	}
}

func TestLedgerSeparatorInIDs(t *testing.T) {
	for name, l := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := l.Credit(ctx, "a:b", "c", 3)
			require.NoError(t, err)

			bal, err := l.Balance(ctx, "a", "b:c")
			require.NoError(t, err)
			assert.Equal(t, 0, bal, "ids that join to the same string must stay separate")

			_, err = l.Debit(ctx, "a", "b:c", 1)
			assert.ErrorIs(t, err, domain.ErrInsufficientCredits)

			bal, err = l.Balance(ctx, "a:b", "c")
			require.NoError(t, err)
			assert.Equal(t, 3, bal)
		})
	}
}
