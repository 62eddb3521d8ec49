package watch

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/kzhaodev/mirrorbot/internal/domain"
)

// OrderDecoder filters and decodes matchOrders calldata.
type OrderDecoder interface {
	IsTarget(callData string) bool
	DecodeMatchOrders(callData string) (domain.DecodedOrderEvent, error)
}

// TradeHandler receives each trade attributed to the watched wallet.
type TradeHandler func(ctx context.Context, trade domain.MatchedTrade)

// Detector is the filter/decode/attribute stage. For each pending
// transaction it drops everything that is not a matchOrders call to a
// platform contract, decodes the taker order, and forwards trades whose
// maker or signer is the watched wallet. The cheap checks run first: the
// decoder is never invoked unless both the to-address and the selector
// match.
type Detector struct {
	decoder    OrderDecoder
	attributor *Attributor
	onTrade    TradeHandler
	logger     *slog.Logger

	txsSeen       atomic.Int64
	contractCalls atomic.Int64
	decodeErrors  atomic.Int64
	tradesMatched atomic.Int64
}

// NewDetector wires the detection stage together.
func NewDetector(decoder OrderDecoder, attributor *Attributor, onTrade TradeHandler, logger *slog.Logger) *Detector {
	return &Detector{
		decoder:    decoder,
		attributor: attributor,
		onTrade:    onTrade,
		logger:     logger.With(slog.String("component", "detector")),
	}
}

// Stats returns the detector's counters: transactions seen,
// platform-contract calls, decode failures, and attributed trades.
func (d *Detector) Stats() (seen, contractCalls, decodeErrors, matched int64) {
	return d.txsSeen.Load(), d.contractCalls.Load(), d.decodeErrors.Load(), d.tradesMatched.Load()
}

// HandleTx is the feed callback.
func (d *Detector) HandleTx(ctx context.Context, tx domain.PendingTransaction) {
	d.txsSeen.Add(1)

	if !domain.IsPlatformContract(tx.To) {
		return
	}
	d.contractCalls.Add(1)

	if !d.decoder.IsTarget(tx.Input) {
		return
	}

	ev, err := d.decoder.DecodeMatchOrders(tx.Input)
	if err != nil {
		d.decodeErrors.Add(1)
		d.logger.Warn("decode failed on target calldata",
			slog.String("tx", tx.Hash),
			slog.String("to", tx.To),
			slog.String("error", err.Error()),
		)
		return
	}

	if !d.attributor.Matches(ev) {
		d.logger.Debug("order from unwatched wallet",
			slog.String("tx", tx.Hash),
			slog.String("maker", ev.Maker),
		)
		return
	}

	d.tradesMatched.Add(1)
	trade := domain.MatchedTrade{
		TxHash:     tx.Hash,
		Event:      ev,
		DetectedAt: time.Now(),
	}
	d.logger.Info("watched wallet trade detected",
		slog.String("tx", trade.TxHash),
		slog.String("side", string(ev.Side)),
		slog.String("token_id", ev.TokenID),
		slog.String("maker_amount", ev.MakerAmount.String()),
	)
	if d.onTrade != nil {
		d.onTrade(ctx, trade)
	}
}
