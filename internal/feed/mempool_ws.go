package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kzhaodev/mirrorbot/internal/domain"
)

// StreamState is the connection lifecycle of the pending-transaction stream.
type StreamState int32

const (
	StateDisconnected StreamState = iota
	StateConnecting
	StateSubscribed
	StateStreaming
)

func (s StreamState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// TxHandler receives each pending transaction as it arrives. It is called
// from the read loop (or a resolver goroutine for hash-only feeds) and must
// not block; slow work belongs on the handler's side of a channel.
type TxHandler func(ctx context.Context, tx domain.PendingTransaction)

// TxResolver resolves a bare hash to its transaction envelope, for providers
// whose pending-transaction feed announces hashes instead of full objects.
// *RPCClient satisfies it.
type TxResolver interface {
	TransactionByHash(ctx context.Context, hash string) (domain.PendingTransaction, error)
}

// StreamConfig configures a StreamClient.
type StreamConfig struct {
	WSURL string
	// SubscribeParams are the eth_subscribe params. The default asks for
	// full transaction objects; providers that only support
	// newPendingTransactions need a resolver for the per-hash lookup.
	SubscribeParams []any
	ReconnectDelay  time.Duration
}

// StreamClient subscribes to the pending-transaction feed over a node
// WebSocket and forwards each transaction to its handler. On any read or
// connect error it tears the connection down and retries after a fixed
// delay, resubscribing from scratch; no transactions are replayed, a gap is
// accepted.
type StreamClient struct {
	cfg      StreamConfig
	resolver TxResolver
	handler  TxHandler
	logger   *slog.Logger

	state atomic.Int32

	messagesSeen atomic.Int64

	closeOnce sync.Once
	done      chan struct{}
}

// NewStreamClient creates a stream client. resolver may be nil when the
// subscription delivers full transaction objects.
func NewStreamClient(cfg StreamConfig, resolver TxResolver, handler TxHandler, logger *slog.Logger) *StreamClient {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if len(cfg.SubscribeParams) == 0 {
		cfg.SubscribeParams = []any{"alchemy_pendingTransactions"}
	}
	return &StreamClient{
		cfg:      cfg,
		resolver: resolver,
		handler:  handler,
		logger:   logger.With(slog.String("component", "mempool_ws")),
		done:     make(chan struct{}),
	}
}

// State returns the current connection state.
func (c *StreamClient) State() StreamState {
	return StreamState(c.state.Load())
}

// MessagesSeen returns the number of pending-transaction notifications
// received across all connections.
func (c *StreamClient) MessagesSeen() int64 {
	return c.messagesSeen.Load()
}

// Run connects and streams until ctx is cancelled or Close is called.
// Connection loss is not an error from Run's point of view; it reconnects
// forever with a fixed delay.
func (c *StreamClient) Run(ctx context.Context) error {
	defer c.state.Store(int32(StateDisconnected))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		default:
		}

		err := c.runConnection(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-c.done:
			return nil
		default:
		}

		c.state.Store(int32(StateDisconnected))
		c.logger.Warn("stream disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", c.cfg.ReconnectDelay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}
}

// Close stops the client. Safe to call more than once.
func (c *StreamClient) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *StreamClient) runConnection(ctx context.Context) error {
	c.state.Store(int32(StateConnecting))

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.cfg.WSURL, nil)
	if err != nil {
		return fmt.Errorf("feed: dial %s: %w: %v", c.cfg.WSURL, domain.ErrWSDisconnect, err)
	}
	defer conn.Close()

	// Close the socket when ctx or done fires so the blocking read returns.
	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-readCtx.Done():
		case <-c.done:
		}
		conn.Close()
	}()

	subID, err := c.subscribe(conn)
	if err != nil {
		return err
	}
	c.state.Store(int32(StateSubscribed))
	c.logger.Info("subscribed to pending transactions", slog.String("sub_id", subID))

	c.state.Store(int32(StateStreaming))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.done:
				return nil
			default:
			}
			return fmt.Errorf("feed: read: %w: %v", domain.ErrWSDisconnect, err)
		}
		c.handleMessage(ctx, subID, msg)
	}
}

func (c *StreamClient) subscribe(conn *websocket.Conn) (string, error) {
	sub := rpcRequest{
		JSONRPC: "2.0",
		Method:  "eth_subscribe",
		Params:  c.cfg.SubscribeParams,
		ID:      1,
	}
	if err := conn.WriteJSON(sub); err != nil {
		return "", fmt.Errorf("feed: subscribe write: %w: %v", domain.ErrWSDisconnect, err)
	}

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("feed: subscribe read: %w: %v", domain.ErrWSDisconnect, err)
	}
	conn.SetReadDeadline(time.Time{})

	var resp struct {
		Result string    `json:"result"`
		Error  *rpcError `json:"error"`
	}
	if err := json.Unmarshal(msg, &resp); err != nil {
		return "", fmt.Errorf("feed: subscribe response: %w: %v", domain.ErrParse, err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("feed: subscribe rejected: %s: %w", resp.Error.Message, domain.ErrWSDisconnect)
	}
	if resp.Result == "" {
		return "", fmt.Errorf("feed: subscribe returned empty id: %w", domain.ErrParse)
	}
	return resp.Result, nil
}

// txFrame is a full pending-transaction object as delivered in
// params.result.
type txFrame struct {
	Hash  string `json:"hash"`
	From  string `json:"from"`
	To    string `json:"to"`
	Input string `json:"input"`
}

func (c *StreamClient) handleMessage(ctx context.Context, subID string, data []byte) {
	var notif struct {
		Method string `json:"method"`
		Params struct {
			Subscription string          `json:"subscription"`
			Result       json.RawMessage `json:"result"`
		} `json:"params"`
	}
	if err := json.Unmarshal(data, &notif); err != nil {
		c.logger.Debug("dropping malformed frame", slog.Int("len", len(data)))
		return
	}
	if notif.Method != "eth_subscription" || notif.Params.Subscription != subID {
		// Non-notification frames (late responses, provider noise) are
		// dropped without affecting the stream.
		return
	}
	if len(notif.Params.Result) == 0 {
		return
	}

	// Full object first; some providers announce bare hashes instead.
	var frame txFrame
	if err := json.Unmarshal(notif.Params.Result, &frame); err == nil && frame.Hash != "" {
		c.messagesSeen.Add(1)
		c.deliver(ctx, domain.PendingTransaction{
			Hash:  frame.Hash,
			From:  domain.NormalizeAddress(frame.From),
			To:    domain.NormalizeAddress(frame.To),
			Input: frame.Input,
		})
		return
	}

	var hash string
	if err := json.Unmarshal(notif.Params.Result, &hash); err != nil || hash == "" {
		c.logger.Debug("dropping unparseable notification", slog.Int("len", len(notif.Params.Result)))
		return
	}
	c.messagesSeen.Add(1)
	if c.resolver == nil {
		c.logger.Debug("hash-only frame with no resolver configured", slog.String("tx", hash))
		return
	}
	// The lookup is an HTTP round trip; keep it off the read loop.
	go func() {
		tx, err := c.resolver.TransactionByHash(ctx, hash)
		if err != nil {
			// Pending transactions routinely get mined or dropped before
			// the lookup lands.
			if !errors.Is(err, domain.ErrNotFound) && ctx.Err() == nil {
				c.logger.Debug("pending tx lookup failed",
					slog.String("tx", hash),
					slog.String("error", err.Error()),
				)
			}
			return
		}
		c.deliver(ctx, tx)
	}()
}

func (c *StreamClient) deliver(ctx context.Context, tx domain.PendingTransaction) {
	if c.handler != nil {
		c.handler(ctx, tx)
	}
}
