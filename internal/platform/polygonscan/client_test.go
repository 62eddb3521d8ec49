package polygonscan

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzhaodev/mirrorbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestTokenTransfers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "account", q.Get("module"))
		assert.Equal(t, "tokentx", q.Get("action"))
		assert.Equal(t, "0xwallet", q.Get("address"))
		assert.Equal(t, "test-key", q.Get("apikey"))

		json.NewEncoder(w).Encode(map[string]any{
			"status": "1", "message": "OK",
			"result": []map[string]any{
				{
					"hash": "0xaaa", "from": "0x4bfb41d5b3570defd03c39a9a4d8de6bd8b8982e",
					"to": "0xwallet", "value": "25000000", "timeStamp": "1700000000",
					"blockNumber": "100", "gasPrice": "30000000000", "gasUsed": "21000",
					"tokenSymbol": "USDC",
				},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", nil, testLogger())

	transfers, err := c.TokenTransfers(context.Background(), "0xwallet", 0, 99999999)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, "0xaaa", transfers[0].Hash)
	assert.Equal(t, "25000000", transfers[0].Value)
	assert.Equal(t, "USDC", transfers[0].TokenSymbol)
}

func TestTokenTransfersEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status": "0", "message": "No transactions found", "result": []any{},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", nil, testLogger())

	transfers, err := c.TokenTransfers(context.Background(), "0xwallet", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, transfers)
}

func TestTokenTransfersError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status": "0", "message": "NOTOK", "result": "Max rate limit reached",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", nil, testLogger())

	_, err := c.TokenTransfers(context.Background(), "0xwallet", 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Max rate limit reached")
}

type memTxCache struct {
	mu  sync.Mutex
	txs map[string]domain.CachedTx
}

func newMemTxCache() *memTxCache {
	return &memTxCache{txs: make(map[string]domain.CachedTx)}
}

func (c *memTxCache) Get(_ context.Context, hash string) (domain.CachedTx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tx, ok := c.txs[hash]
	if !ok {
		return domain.CachedTx{}, domain.ErrNotFound
	}
	return tx, nil
}

func (c *memTxCache) Set(_ context.Context, tx domain.CachedTx) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.txs[tx.Hash] = tx
	return nil
}

func TestTransactionByHashUsesCache(t *testing.T) {
	var apiCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiCalls++
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"hash":  "0xAAA",
				"to":    "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E",
				"input": "0xd2539b37",
			},
		})
	}))
	defer srv.Close()

	cache := newMemTxCache()
	c := NewClient(srv.URL, "k", cache, testLogger())

	tx, err := c.TransactionByHash(context.Background(), "0xAAA")
	require.NoError(t, err)
	assert.Equal(t, "0xaaa", tx.Hash)
	assert.Equal(t, "0x4bfb41d5b3570defd03c39a9a4d8de6bd8b8982e", tx.To)
	assert.Equal(t, 1, apiCalls)

	// Second lookup is served from the cache.
	tx2, err := c.TransactionByHash(context.Background(), "0xaaa")
	require.NoError(t, err)
	assert.Equal(t, tx, tx2)
	assert.Equal(t, 1, apiCalls)
}

func TestTransactionByHashNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"result": nil})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", nil, testLogger())

	_, err := c.TransactionByHash(context.Background(), "0xmissing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBlockNumberByTime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "block", q.Get("module"))
		assert.Equal(t, "getblocknobytime", q.Get("action"))
		assert.Equal(t, "before", q.Get("closest"))
		json.NewEncoder(w).Encode(map[string]any{"status": "1", "message": "OK", "result": "52000000"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", nil, testLogger())

	n, err := c.BlockNumberByTime(context.Background(), 1700000000)
	require.NoError(t, err)
	assert.Equal(t, uint64(52000000), n)
}
