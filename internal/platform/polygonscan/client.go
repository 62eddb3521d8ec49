// Package polygonscan is a rate-limited client for the Polygonscan REST
// API, used by the backtester to replay a wallet's history.
package polygonscan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kzhaodev/mirrorbot/internal/domain"
)

// DefaultBaseURL is the Polygonscan API root.
const DefaultBaseURL = "https://api.polygonscan.com/api"

// Client queries Polygonscan. All calls go through a shared rate limiter
// sized for the free API tier (5 req/s).
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      domain.TxCache // optional, for TransactionByHash
	logger     *slog.Logger
}

// NewClient creates a Client. cache may be nil.
func NewClient(baseURL, apiKey string, cache domain.TxCache, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(5), 1),
		cache:   cache,
		logger:  logger.With(slog.String("component", "polygonscan")),
	}
}

func (c *Client) get(ctx context.Context, params url.Values, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	params.Set("apikey", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("polygonscan: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("polygonscan: %s: %w", params.Get("action"), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("polygonscan: read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("polygonscan: %w: %s", domain.ErrRateLimited, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("polygonscan: HTTP %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("polygonscan: decode %s response: %w: %v", params.Get("action"), domain.ErrParse, err)
	}
	return nil
}

// TokenTransfers returns the ERC-20 transfer rows touching address within
// the block range, newest first. A "No transactions found" status is an
// empty result, not an error.
func (c *Client) TokenTransfers(ctx context.Context, address string, startBlock, endBlock uint64) ([]domain.TokenTransfer, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "tokentx")
	params.Set("address", address)
	params.Set("startblock", strconv.FormatUint(startBlock, 10))
	params.Set("endblock", strconv.FormatUint(endBlock, 10))
	params.Set("sort", "desc")

	var resp struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Result  json.RawMessage `json:"result"`
	}
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "1" {
		if strings.Contains(resp.Message, "No transactions found") {
			return nil, nil
		}
		// On errors the result field carries the detail as a string.
		var detail string
		_ = json.Unmarshal(resp.Result, &detail)
		return nil, fmt.Errorf("polygonscan: tokentx: %s: %s", resp.Message, detail)
	}

	var transfers []domain.TokenTransfer
	if err := json.Unmarshal(resp.Result, &transfers); err != nil {
		return nil, fmt.Errorf("polygonscan: decode transfers: %w: %v", domain.ErrParse, err)
	}
	return transfers, nil
}

// TransactionByHash resolves a transaction through the proxy module,
// consulting the cache first when one is configured.
func (c *Client) TransactionByHash(ctx context.Context, hash string) (domain.CachedTx, error) {
	hash = strings.ToLower(hash)

	if c.cache != nil {
		if tx, err := c.cache.Get(ctx, hash); err == nil {
			return tx, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			c.logger.Debug("tx cache read failed", slog.String("error", err.Error()))
		}
	}

	params := url.Values{}
	params.Set("module", "proxy")
	params.Set("action", "eth_getTransactionByHash")
	params.Set("txhash", hash)

	var resp struct {
		Result *struct {
			Hash  string `json:"hash"`
			To    string `json:"to"`
			Input string `json:"input"`
		} `json:"result"`
	}
	if err := c.get(ctx, params, &resp); err != nil {
		return domain.CachedTx{}, err
	}
	if resp.Result == nil {
		return domain.CachedTx{}, fmt.Errorf("polygonscan: transaction %s: %w", hash, domain.ErrNotFound)
	}

	tx := domain.CachedTx{
		Hash:  strings.ToLower(resp.Result.Hash),
		To:    domain.NormalizeAddress(resp.Result.To),
		Input: resp.Result.Input,
	}
	if c.cache != nil {
		if err := c.cache.Set(ctx, tx); err != nil {
			c.logger.Debug("tx cache write failed", slog.String("error", err.Error()))
		}
	}
	return tx, nil
}

// BlockNumberByTime returns the closest block before the given Unix time.
func (c *Client) BlockNumberByTime(ctx context.Context, unixTS int64) (uint64, error) {
	params := url.Values{}
	params.Set("module", "block")
	params.Set("action", "getblocknobytime")
	params.Set("timestamp", strconv.FormatInt(unixTS, 10))
	params.Set("closest", "before")

	var resp struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Result  string `json:"result"`
	}
	if err := c.get(ctx, params, &resp); err != nil {
		return 0, err
	}
	if resp.Status != "1" {
		return 0, fmt.Errorf("polygonscan: getblocknobytime: %s: %s", resp.Message, resp.Result)
	}
	n, err := strconv.ParseUint(resp.Result, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("polygonscan: block number %q: %w", resp.Result, domain.ErrParse)
	}
	return n, nil
}
