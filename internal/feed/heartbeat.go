package feed

import (
	"context"
	"log/slog"
	"time"
)

// LivenessProber answers the periodic node probe. *RPCClient satisfies it.
type LivenessProber interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// Heartbeat polls the node on a fixed interval as an out-of-band liveness
// check for the WebSocket stream, logging the chain head alongside the
// stream's running message count. A failed probe is logged and counted but
// never tears down the stream; the stream has its own failure detection.
type Heartbeat struct {
	prober   LivenessProber
	messages func() int64
	interval time.Duration
	logger   *slog.Logger

	failures int64
}

// NewHeartbeat creates a heartbeat with the given probe interval. messages
// reports how many stream notifications have arrived so far; it may be nil.
func NewHeartbeat(prober LivenessProber, messages func() int64, interval time.Duration, logger *slog.Logger) *Heartbeat {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if messages == nil {
		messages = func() int64 { return 0 }
	}
	return &Heartbeat{
		prober:   prober,
		messages: messages,
		interval: interval,
		logger:   logger.With(slog.String("component", "heartbeat")),
	}
}

// Run probes until ctx is cancelled.
func (h *Heartbeat) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, h.interval)
			block, err := h.prober.BlockNumber(probeCtx)
			cancel()
			if err != nil {
				h.failures++
				h.logger.Warn("liveness probe failed",
					slog.String("error", err.Error()),
					slog.Int64("failures", h.failures),
				)
				continue
			}
			h.logger.Info("heartbeat",
				slog.Uint64("block", block),
				slog.Int64("messages", h.messages()),
			)
		}
	}
}
