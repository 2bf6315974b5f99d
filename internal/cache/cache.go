package cache

import (
	"context"
	"fmt"
	"time"

	"house-ledger-go/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ProcessedTxCache is an optional Redis fast-path in front of the audit
// log's duplicate check. The database unique index remains the source of
// truth; a cache miss (or no cache at all) only costs one extra query.
// All methods are nil-receiver safe so callers never branch on whether
// caching is enabled.
type ProcessedTxCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis, or returns nil (cache disabled) when cfg.Addr is
// empty. A failed ping is an error: a half-working cache is worse than none.
func New(ctx context.Context, cfg models.RedisConfig) (*ProcessedTxCache, error) {
	if cfg.Addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	zap.L().Info("Processed-tx cache enabled", zap.String("addr", cfg.Addr))
	return &ProcessedTxCache{client: client, ttl: cfg.TTL}, nil
}

func key(currency, txHash string) string {
	return "processed_tx:" + currency + ":" + txHash
}

// Seen reports whether the (currency, txHash) pair was recently processed.
// Errors degrade to "not seen": the database check still runs.
func (c *ProcessedTxCache) Seen(ctx context.Context, currency, txHash string) bool {
	if c == nil {
		return false
	}
	n, err := c.client.Exists(ctx, key(currency, txHash)).Result()
	if err != nil {
		zap.L().Warn("Cache lookup failed", zap.Error(err))
		return false
	}
	return n > 0
}

// Mark records the pair as processed. Best effort.
func (c *ProcessedTxCache) Mark(ctx context.Context, currency, txHash string) {
	if c == nil {
		return
	}
	if err := c.client.Set(ctx, key(currency, txHash), "1", c.ttl).Err(); err != nil {
		zap.L().Warn("Cache write failed", zap.Error(err))
	}
}

func (c *ProcessedTxCache) Close() {
	if c == nil {
		return
	}
	if err := c.client.Close(); err != nil {
		zap.L().Warn("Cache close failed", zap.Error(err))
	}
}
