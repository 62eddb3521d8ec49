package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kzhaodev/mirrorbot/internal/domain"
)

// Transactions are immutable once mined, so entries can live for a long
// time; the TTL only bounds memory for wallets that are never replayed
// again.
const defaultTxTTL = 7 * 24 * time.Hour

// TxCache implements domain.TxCache using Redis with JSON-serialized
// transaction data. It fronts the block-explorer proxy endpoint so repeated
// backtests of the same wallet do not re-fetch enrichment data.
//
// Key schema:
//
//	tx:{hash} - string value containing JSON
type TxCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewTxCache creates a TxCache backed by the given Client. A non-positive
// ttl falls back to the default.
func NewTxCache(c *Client, ttl time.Duration) *TxCache {
	if ttl <= 0 {
		ttl = defaultTxTTL
	}
	return &TxCache{rdb: c.Underlying(), ttl: ttl}
}

func txKey(hash string) string { return "tx:" + strings.ToLower(hash) }

// Get retrieves a cached transaction by hash.
// It returns domain.ErrNotFound when the key does not exist.
func (tc *TxCache) Get(ctx context.Context, hash string) (domain.CachedTx, error) {
	data, err := tc.rdb.Get(ctx, txKey(hash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.CachedTx{}, domain.ErrNotFound
		}
		return domain.CachedTx{}, fmt.Errorf("redis: get tx %s: %w", hash, err)
	}

	var tx domain.CachedTx
	if err := json.Unmarshal(data, &tx); err != nil {
		return domain.CachedTx{}, fmt.Errorf("redis: unmarshal tx %s: %w", hash, err)
	}
	return tx, nil
}

// Set stores a transaction in the cache.
func (tc *TxCache) Set(ctx context.Context, tx domain.CachedTx) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("redis: marshal tx %s: %w", tx.Hash, err)
	}
	if err := tc.rdb.Set(ctx, txKey(tx.Hash), data, tc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set tx %s: %w", tx.Hash, err)
	}
	return nil
}
