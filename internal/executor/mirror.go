package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"

	"github.com/kzhaodev/mirrorbot/internal/domain"
)

// Trader is the order-entry surface the mirror submits through. It is
// implemented by the Polymarket platform client.
type Trader interface {
	// CollateralBalance returns the available USDC balance.
	CollateralBalance(ctx context.Context) (decimal.Decimal, error)
	// PositionSize returns the held share count for a token, zero if none.
	PositionSize(ctx context.Context, tokenID string) (decimal.Decimal, error)
	// PlaceMarketOrder submits a marketable order and reports the venue result.
	PlaceMarketOrder(ctx context.Context, args domain.MarketOrderArgs) (domain.OrderResult, error)
}

// Notifier delivers operator alerts for mirror outcomes. Satisfied by
// notify.Notifier.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// MirrorConfig bounds what the mirror is allowed to do. Min/MaxOrder are in
// USDC for buys and shares for sells; Delay is the pause between detection
// and submission.
type MirrorConfig struct {
	MinOrder       decimal.Decimal
	MaxOrder       decimal.Decimal
	Delay          time.Duration
	MaxConcurrent  int64
	DedupTTL       time.Duration
	ExecuteTimeout time.Duration
}

// Mirror consumes attributed trades and re-issues each one as a bounded
// market order in the bot's own account. Each trade runs on its own
// goroutine, capped by a weighted semaphore; submissions run on a detached
// context so shutdown never cancels an order that may have reached the
// venue.
type Mirror struct {
	trades   <-chan domain.MatchedTrade
	trader   Trader
	store    domain.MirrorStore // optional audit trail
	notifier Notifier           // optional
	cfg      MirrorConfig
	dedup    *Dedup
	sem      *semaphore.Weighted
	logger   *slog.Logger

	wg sync.WaitGroup
}

// NewMirror creates a Mirror reading from trades. store and notifier may be
// nil.
func NewMirror(trades <-chan domain.MatchedTrade, trader Trader, store domain.MirrorStore, notifier Notifier, cfg MirrorConfig, logger *slog.Logger) *Mirror {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 8
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = 10 * time.Minute
	}
	if cfg.ExecuteTimeout <= 0 {
		cfg.ExecuteTimeout = 30 * time.Second
	}
	return &Mirror{
		trades:   trades,
		trader:   trader,
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		dedup:    NewDedup(cfg.DedupTTL),
		sem:      semaphore.NewWeighted(cfg.MaxConcurrent),
		logger:   logger.With(slog.String("component", "mirror")),
	}
}

// Run consumes trades until ctx is cancelled or the channel closes, then
// waits for in-flight mirrors to finish on their own timeouts.
func (m *Mirror) Run(ctx context.Context) error {
	m.logger.Info("mirror started",
		slog.String("min_order", m.cfg.MinOrder.String()),
		slog.String("max_order", m.cfg.MaxOrder.String()),
		slog.Duration("delay", m.cfg.Delay),
	)
	defer m.logger.Info("mirror stopped")
	defer m.wg.Wait()

	cleanup := time.NewTicker(time.Minute)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case trade, ok := <-m.trades:
			if !ok {
				return nil
			}
			m.dispatch(ctx, trade)
		case <-cleanup.C:
			m.dedup.Cleanup()
		}
	}
}

func (m *Mirror) dispatch(ctx context.Context, trade domain.MatchedTrade) {
	if m.dedup.IsDuplicate(trade.TxHash) {
		m.logger.Debug("duplicate source transaction, skipping",
			slog.String("tx", trade.TxHash),
		)
		return
	}

	if err := m.sem.Acquire(ctx, 1); err != nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.sem.Release(1)

		// The mirror must survive pipeline shutdown once started; an order
		// may already be at the venue by the time ctx is cancelled.
		execCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.ExecuteTimeout+m.cfg.Delay)
		defer cancel()
		m.execute(execCtx, trade)
	}()
}

// execute runs one trade through delay, validation, clamping,
// preconditions, and submission, recording the outcome.
func (m *Mirror) execute(ctx context.Context, trade domain.MatchedTrade) {
	log := m.logger.With(
		slog.String("tx", trade.TxHash),
		slog.String("side", string(trade.Event.Side)),
		slog.String("token_id", trade.Event.TokenID),
	)

	record := domain.MirrorRecord{
		ID:           uuid.New().String(),
		SourceTxHash: trade.TxHash,
		SourceMaker:  trade.Event.Maker,
		TokenID:      trade.Event.TokenID,
		Side:         trade.Event.Side,
		SourceAmount: amountFromRaw(trade.Event.MakerAmount),
		CreatedAt:    time.Now().UTC(),
	}
	m.record(ctx, &record)

	if m.cfg.Delay > 0 {
		select {
		case <-ctx.Done():
			m.finish(ctx, &record, domain.MirrorStatusSkipped, "", "cancelled during delay", log)
			return
		case <-time.After(m.cfg.Delay):
		}
	}

	instr, err := m.prepare(ctx, trade)
	if err != nil {
		status := domain.MirrorStatusFailed
		if errors.Is(err, domain.ErrValidation) ||
			errors.Is(err, domain.ErrInsufficientBalance) ||
			errors.Is(err, domain.ErrInsufficientPosition) {
			status = domain.MirrorStatusSkipped
		}
		log.Warn("mirror not submitted", slog.String("reason", err.Error()))
		m.finish(ctx, &record, status, "", err.Error(), log)
		return
	}
	record.MirrorAmount = instr.Amount

	result, err := m.trader.PlaceMarketOrder(ctx, domain.MarketOrderArgs{
		TokenID: instr.TokenID,
		Side:    instr.Side,
		Amount:  instr.Amount,
	})
	if err != nil {
		err = fmt.Errorf("executor: submit mirror order: %w: %v", domain.ErrSubmission, err)
		log.Error("mirror submission failed", slog.String("error", err.Error()))
		m.finish(ctx, &record, domain.MirrorStatusFailed, "", err.Error(), log)
		return
	}
	if !result.Success {
		log.Warn("mirror order rejected by venue",
			slog.String("status", result.Status),
			slog.String("message", result.Message),
		)
		m.finish(ctx, &record, domain.MirrorStatusFailed, result.OrderID, result.Message, log)
		return
	}

	log.Info("mirror order placed",
		slog.String("order_id", result.OrderID),
		slog.String("amount", instr.Amount.String()),
	)
	m.finish(ctx, &record, domain.MirrorStatusFilled, result.OrderID, "", log)
}

// prepare validates and sizes the mirror instruction: clamp into the
// configured bounds, then check the account can actually cover it.
func (m *Mirror) prepare(ctx context.Context, trade domain.MatchedTrade) (domain.MirrorInstruction, error) {
	var zero domain.MirrorInstruction

	ev := trade.Event
	if ev.TokenID == "" || ev.TokenID == "0" {
		return zero, fmt.Errorf("executor: empty token id: %w", domain.ErrValidation)
	}
	if ev.Side != domain.SideBuy && ev.Side != domain.SideSell {
		return zero, fmt.Errorf("executor: unknown side %q: %w", ev.Side, domain.ErrValidation)
	}
	amount := amountFromRaw(ev.MakerAmount)
	if !amount.IsPositive() {
		return zero, fmt.Errorf("executor: non-positive amount: %w", domain.ErrValidation)
	}

	amount = clamp(amount, m.cfg.MinOrder, m.cfg.MaxOrder)

	switch ev.Side {
	case domain.SideBuy:
		balance, err := m.trader.CollateralBalance(ctx)
		if err != nil {
			return zero, fmt.Errorf("executor: balance check: %w", err)
		}
		if balance.LessThan(amount) {
			return zero, fmt.Errorf("executor: balance %s below order %s: %w",
				balance, amount, domain.ErrInsufficientBalance)
		}
	case domain.SideSell:
		position, err := m.trader.PositionSize(ctx, ev.TokenID)
		if err != nil {
			return zero, fmt.Errorf("executor: position check: %w", err)
		}
		if position.LessThan(amount) {
			return zero, fmt.Errorf("executor: position %s below order %s: %w",
				position, amount, domain.ErrInsufficientPosition)
		}
	}

	return domain.MirrorInstruction{
		TokenID: ev.TokenID,
		Side:    ev.Side,
		Amount:  amount,
		Delay:   m.cfg.Delay,
	}, nil
}

func (m *Mirror) record(ctx context.Context, rec *domain.MirrorRecord) {
	if m.store == nil {
		return
	}
	rec.Status = domain.MirrorStatusPending
	if err := m.store.Insert(ctx, *rec); err != nil {
		m.logger.Warn("audit insert failed", slog.String("error", err.Error()))
	}
}

func (m *Mirror) finish(ctx context.Context, rec *domain.MirrorRecord, status domain.MirrorStatus, orderID, reason string, log *slog.Logger) {
	rec.Status = status
	rec.OrderID = orderID
	rec.ErrorReason = reason
	now := time.Now().UTC()
	rec.ExecutedAt = &now

	if m.store != nil {
		if err := m.store.UpdateResult(ctx, rec.ID, status, orderID, reason, now); err != nil {
			log.Warn("audit update failed", slog.String("error", err.Error()))
		}
	}
	if m.notifier != nil {
		title := fmt.Sprintf("Mirror %s", status)
		msg := fmt.Sprintf("%s %s %s (source %s)", rec.Side, rec.MirrorAmount, rec.TokenID, rec.SourceTxHash)
		if reason != "" {
			msg += ": " + reason
		}
		if err := m.notifier.Notify(ctx, "mirror_"+string(status), title, msg); err != nil {
			log.Debug("notify failed", slog.String("error", err.Error()))
		}
	}
}

// amountFromRaw converts a raw 6-decimal on-chain amount to its human value.
func amountFromRaw(raw *big.Int) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -6)
}

// clamp forces v into [min, max]; a zero max means unbounded above.
func clamp(v, min, max decimal.Decimal) decimal.Decimal {
	if min.IsPositive() && v.LessThan(min) {
		return min
	}
	if max.IsPositive() && v.GreaterThan(max) {
		return max
	}
	return v
}
