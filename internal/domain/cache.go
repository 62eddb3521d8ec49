package domain

import "context"

// CachedTx is the slice of a transaction the backtest enrichment needs.
type CachedTx struct {
	Hash  string `json:"hash"`
	To    string `json:"to"`
	Input string `json:"input"`
}

// TxCache caches explorer transaction lookups so repeated backtest runs over
// the same wallet do not re-fetch immutable transactions.
type TxCache interface {
	// Get returns the cached transaction, or ErrNotFound.
	Get(ctx context.Context, hash string) (CachedTx, error)
	Set(ctx context.Context, tx CachedTx) error
}
