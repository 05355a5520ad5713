// Package balance caches wallet balances in Redis. Balance state lives
// outside order state, so reads here never touch the order store.
package balance

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/peerdeal/order-engine/internal/domain"
)

const DefaultTTL = 30 * time.Second

// BalanceSource is the upstream that holds the authoritative figure.
type BalanceSource interface {
	FetchBalance(ctx context.Context, wallet string) (*domain.Balance, error)
}

type RedisBalanceCache struct {
	Client *redis.Client
	Source BalanceSource
	TTL    time.Duration
}

func NewRedisBalanceCache(opt *redis.Options, source BalanceSource, ttl time.Duration) *RedisBalanceCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisBalanceCache{
		Client: redis.NewClient(opt),
		Source: source,
		TTL:    ttl,
	}
}

func balanceKey(wallet string) string {
	return fmt.Sprintf("balance:%s", wallet)
}

// Get returns the cached balance and whether it was found fresh. A cache
// miss is not an error: callers decide whether to Refresh.
func (c *RedisBalanceCache) Get(ctx context.Context, wallet string) (*domain.Balance, bool, error) {
	raw, err := c.Client.Get(ctx, balanceKey(wallet)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var balance domain.Balance
	if err := json.Unmarshal(raw, &balance); err != nil {
		return nil, false, err
	}
	return &balance, true, nil
}

// Refresh pulls a fresh figure from the source and rewrites the cache entry.
func (c *RedisBalanceCache) Refresh(ctx context.Context, wallet string) (*domain.Balance, error) {
	balance, err := c.Source.FetchBalance(ctx, wallet)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(balance)
	if err != nil {
		return nil, err
	}
	if err := c.Client.Set(ctx, balanceKey(wallet), raw, c.TTL).Err(); err != nil {
		return nil, err
	}
	return balance, nil
}
