package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/kzhaodev/mirrorbot/internal/domain"
)

// RPCClient is a minimal JSON-RPC client over HTTP for the handful of node
// calls the pipeline needs: resolving a pending hash to a full transaction
// and the liveness probe. It must point at the same provider as the
// WebSocket endpoint, otherwise pending transactions are often not visible
// yet on the HTTP side.
type RPCClient struct {
	url        string
	httpClient *http.Client
}

// NewRPCClient creates an RPCClient for the given HTTP endpoint.
func NewRPCClient(url string) *RPCClient {
	return &RPCClient{
		url: url,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int    `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *RPCClient) call(ctx context.Context, method string, params []any, result any) error {
	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	})
	if err != nil {
		return fmt.Errorf("feed: marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("feed: build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("feed: %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("feed: read %s response: %w", method, err)
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("feed: parse %s response: %w: %v", method, domain.ErrParse, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("feed: %s rpc error %d: %s", method, envelope.Error.Code, envelope.Error.Message)
	}
	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("feed: decode %s result: %w: %v", method, domain.ErrParse, err)
		}
	}
	return nil
}

// TransactionByHash resolves a pending transaction hash to its envelope.
// Returns domain.ErrNotFound when the node does not know the hash, which is
// common for pending transactions that were mined or dropped between the
// notification and the lookup.
func (c *RPCClient) TransactionByHash(ctx context.Context, hash string) (domain.PendingTransaction, error) {
	var result *struct {
		Hash  string `json:"hash"`
		From  string `json:"from"`
		To    string `json:"to"`
		Input string `json:"input"`
	}
	if err := c.call(ctx, "eth_getTransactionByHash", []any{hash}, &result); err != nil {
		return domain.PendingTransaction{}, err
	}
	if result == nil {
		return domain.PendingTransaction{}, fmt.Errorf("feed: transaction %s: %w", hash, domain.ErrNotFound)
	}
	return domain.PendingTransaction{
		Hash:  strings.ToLower(result.Hash),
		From:  domain.NormalizeAddress(result.From),
		To:    domain.NormalizeAddress(result.To),
		Input: result.Input,
	}, nil
}

// BlockNumber returns the node's latest block number. The heartbeat uses it
// purely as a liveness probe.
func (c *RPCClient) BlockNumber(ctx context.Context) (uint64, error) {
	var hexNum string
	if err := c.call(ctx, "eth_blockNumber", nil, &hexNum); err != nil {
		return 0, err
	}
	n, ok := new(big.Int).SetString(strings.TrimPrefix(hexNum, "0x"), 16)
	if !ok {
		return 0, fmt.Errorf("feed: block number %q: %w", hexNum, domain.ErrParse)
	}
	return n.Uint64(), nil
}
