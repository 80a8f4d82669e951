package ledger

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"adgen/internal/domain"
)

// debitScript decrements only when the balance covers the amount and
// returns -1 otherwise. Lua scripts run atomically on the server.
var debitScript = goredis.NewScript(`
local balance = tonumber(redis.call('GET', KEYS[1]) or '0')
local amount = tonumber(ARGV[1])
if balance < amount then
  return -1
end
return redis.call('DECRBY', KEYS[1], amount)
`)

// RedisLedger keeps one integer key per (user, key) pair, named
// <prefix>:<len(user)>:<user>:<key>.
type RedisLedger struct {
	rdb    goredis.UniversalClient
	prefix string
}

func NewRedisLedger(rdb goredis.UniversalClient, prefix string) *RedisLedger {
	if prefix == "" {
		prefix = "credits"
	}
	return &RedisLedger{rdb: rdb, prefix: prefix}
}

// key length-prefixes the user id so ids containing ':' cannot collide.
func (l *RedisLedger) key(userID, keyID string) string {
	return fmt.Sprintf("%s:%d:%s:%s", l.prefix, len(userID), userID, keyID)
}

func (l *RedisLedger) Debit(ctx context.Context, userID, keyID string, amount int) (int, error) {
	if err := validate(userID, keyID, amount); err != nil {
		return 0, err
	}
	remaining, err := debitScript.Run(ctx, l.rdb, []string{l.key(userID, keyID)}, amount).Int()
	if err != nil {
		return 0, fmt.Errorf("debit credits: %w", err)
	}
	if remaining < 0 {
		return 0, domain.ErrInsufficientCredits
	}
	return remaining, nil
}

func (l *RedisLedger) Credit(ctx context.Context, userID, keyID string, amount int) (int, error) {
	if err := validate(userID, keyID, amount); err != nil {
		return 0, err
	}
	balance, err := l.rdb.IncrBy(ctx, l.key(userID, keyID), int64(amount)).Result()
	if err != nil {
		return 0, fmt.Errorf("credit credits: %w", err)
	}
	return int(balance), nil
}

func (l *RedisLedger) Balance(ctx context.Context, userID, keyID string) (int, error) {
	balance, err := l.rdb.Get(ctx, l.key(userID, keyID)).Int()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return balance, nil
}

var _ domain.CreditLedger = (*RedisLedger)(nil)
