// Package backtest replays a wallet's historical platform activity from the
// block explorer and computes per-token realized P&L, win rate, and open
// position value.
package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/kzhaodev/mirrorbot/internal/domain"
)

// Explorer is the block-explorer surface the aggregator reads history
// through. Implemented by the polygonscan client.
type Explorer interface {
	TokenTransfers(ctx context.Context, address string, startBlock, endBlock uint64) ([]domain.TokenTransfer, error)
	TransactionByHash(ctx context.Context, hash string) (domain.CachedTx, error)
}

// PositionReader supplies the wallet's open positions for the open-value
// merge. Implemented by the polymarket data client.
type PositionReader interface {
	GetPositions(ctx context.Context, user string) ([]domain.Position, error)
}

// OrderDecoder filters and decodes matchOrders calldata.
type OrderDecoder interface {
	IsTarget(callData string) bool
	DecodeMatchOrders(callData string) (domain.DecodedOrderEvent, error)
}

// Aggregator builds a BacktestReport for one wallet.
type Aggregator struct {
	explorer  Explorer
	positions PositionReader
	decoder   OrderDecoder
	logger    *slog.Logger

	enrichWorkers int
}

// NewAggregator wires the aggregation pipeline. positions may be nil, in
// which case open-value columns stay zero.
func NewAggregator(explorer Explorer, positions PositionReader, decoder OrderDecoder, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		explorer:      explorer,
		positions:     positions,
		decoder:       decoder,
		logger:        logger.With(slog.String("component", "backtest")),
		enrichWorkers: 5,
	}
}

// Aggregate downloads the wallet's transfer history within [startBlock,
// endBlock], enriches and decodes it, and computes the P&L report. A zero
// endBlock means no upper bound.
func (a *Aggregator) Aggregate(ctx context.Context, address string, startBlock, endBlock uint64) (domain.BacktestReport, error) {
	address = domain.NormalizeAddress(address)
	if endBlock == 0 {
		endBlock = 99999999
	}

	transfers, err := a.explorer.TokenTransfers(ctx, address, startBlock, endBlock)
	if err != nil {
		return domain.BacktestReport{}, fmt.Errorf("backtest: download transfers: %w", err)
	}

	entries := a.buildEntries(transfers)
	a.logger.Info("transfers downloaded",
		slog.Int("total", len(transfers)),
		slog.Int("platform", len(entries)),
	)

	if err := a.enrich(ctx, entries); err != nil {
		return domain.BacktestReport{}, err
	}
	a.decode(entries)

	openPositions := a.openPositions(ctx, address)
	report := a.computeStats(address, entries, openPositions)
	return report, nil
}

// buildEntries keeps only transfers touching a platform contract and
// classifies relay-mediated rows. A transfer sent by the conditional-tokens
// contract reaches the wallet through the meta-transaction relay; its
// originating call cannot be attributed, so it is tagged and skipped by
// enrichment.
func (a *Aggregator) buildEntries(transfers []domain.TokenTransfer) []walletEntry {
	entries := make([]walletEntry, 0, len(transfers))
	for _, tr := range transfers {
		from := domain.NormalizeAddress(tr.From)
		to := domain.NormalizeAddress(tr.To)
		if !domain.IsPlatformContract(from) && !domain.IsPlatformContract(to) {
			continue
		}

		e := walletEntry{WalletLedgerEntry: domain.WalletLedgerEntry{
			Transfer: tr,
			Time:     parseUnix(tr.TimeStamp),
			Value:    rawToUSDC(tr.Value),
			GasCost:  gasCost(tr.GasPrice, tr.GasUsed),
		}}
		if from == domain.ContractConditionalTokens {
			e.Relay = true
			e.InteractedWith = domain.ContractRelayHub
		}
		entries = append(entries, e)
	}
	return entries
}

// enrich resolves the originating transaction for every non-relay row on a
// bounded worker pool; results land back at the row's own index so ordering
// is preserved.
func (a *Aggregator) enrich(ctx context.Context, entries []walletEntry) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.enrichWorkers)

	for i := range entries {
		if entries[i].Relay {
			continue
		}
		g.Go(func() error {
			tx, err := a.explorer.TransactionByHash(gctx, entries[i].Transfer.Hash)
			if err != nil {
				// A row we cannot enrich is a row we cannot decode; it
				// stays in the ledger without economics.
				a.logger.Debug("enrich failed",
					slog.String("tx", entries[i].Transfer.Hash),
					slog.String("error", err.Error()),
				)
				return nil
			}
			entries[i].Input = tx.Input
			entries[i].InteractedWith = tx.To
			return nil
		})
	}
	return g.Wait()
}

// decode fills the order fields for rows whose originating call is a
// matchOrders call to a platform contract. Relay rows and non-target
// selectors are left undecoded.
func (a *Aggregator) decode(entries []walletEntry) {
	for i := range entries {
		e := &entries[i]
		if e.Relay || e.InteractedWith == domain.ContractRelayHub {
			continue
		}
		if !domain.IsPlatformContract(e.InteractedWith) || e.Input == "" {
			continue
		}
		if !a.decoder.IsTarget(e.Input) {
			continue
		}
		ev, err := a.decoder.DecodeMatchOrders(e.Input)
		if err != nil {
			a.logger.Debug("decode failed",
				slog.String("tx", e.Transfer.Hash),
				slog.String("error", err.Error()),
			)
			continue
		}
		e.FunctionName = "matchOrders"
		e.Maker = ev.Maker
		e.Signer = ev.Signer
		e.TokenID = ev.TokenID
		e.MakerAmount = ev.MakerAmount.String()
		e.Side = ev.Side
	}
}

func (a *Aggregator) openPositions(ctx context.Context, address string) []domain.Position {
	if a.positions == nil {
		return nil
	}
	positions, err := a.positions.GetPositions(ctx, address)
	if err != nil {
		a.logger.Warn("positions fetch failed, open value omitted",
			slog.String("error", err.Error()),
		)
		return nil
	}
	return positions
}

// computeStats runs the P&L pass. Only decoded rows participate: per token,
// realized P&L is total sell proceeds minus total buy cost in timestamp
// order (cumulative sums rather than lot matching); win rate is the share
// of tokens with positive realized P&L.
func (a *Aggregator) computeStats(address string, entries []walletEntry, positions []domain.Position) domain.BacktestReport {
	posByToken := make(map[string]domain.Position, len(positions))
	for _, p := range positions {
		posByToken[p.TokenID] = p
	}

	byToken := make(map[string][]*walletEntry)
	for i := range entries {
		e := &entries[i]
		if p, ok := posByToken[e.TokenID]; ok {
			e.CurrentPosition = p.Size
			e.CurrentValue = p.CurrentValue
		}
		if e.FunctionName == "" || e.TokenID == "" {
			continue
		}
		byToken[e.TokenID] = append(byToken[e.TokenID], e)
	}

	tokens := make([]string, 0, len(byToken))
	for token := range byToken {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	perToken := make([]domain.TokenStats, 0, len(tokens))
	totalRealized := decimal.Zero
	winners := 0
	for _, token := range tokens {
		rows := byToken[token]
		sort.Slice(rows, func(i, j int) bool { return rows[i].Time.Before(rows[j].Time) })

		cost, proceeds := decimal.Zero, decimal.Zero
		for _, row := range rows {
			if row.Side == domain.SideBuy {
				cost = cost.Add(row.Value)
			} else {
				proceeds = proceeds.Add(row.Value)
			}
		}
		realized := proceeds.Sub(cost)
		for _, row := range rows {
			row.RealizedPnL = realized
		}
		perToken = append(perToken, domain.TokenStats{
			TokenID:     token,
			RealizedPnL: realized,
			TotalVolume: cost.Add(proceeds),
		})
		totalRealized = totalRealized.Add(realized)
		if realized.IsPositive() {
			winners++
		}
	}

	winRate := decimal.Zero
	if len(perToken) > 0 {
		winRate = decimal.NewFromInt(int64(winners)).Div(decimal.NewFromInt(int64(len(perToken))))
	}

	// Open value counts each held token once, whether or not it was traded
	// in the downloaded window.
	totalOpen := decimal.Zero
	for _, p := range positions {
		totalOpen = totalOpen.Add(p.CurrentValue)
	}

	out := make([]domain.WalletLedgerEntry, len(entries))
	for i := range entries {
		out[i] = entries[i].WalletLedgerEntry
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.After(out[j].Time) })

	return domain.BacktestReport{
		Address:          address,
		Entries:          out,
		PerToken:         perToken,
		WinRate:          winRate,
		TotalRealizedPnL: totalRealized,
		TotalOpenValue:   totalOpen,
		TotalPnL:         totalRealized.Add(totalOpen),
		GeneratedAt:      time.Now().UTC(),
	}
}

// walletEntry is the mutable working row used during aggregation.
type walletEntry struct {
	domain.WalletLedgerEntry
}

func parseUnix(s string) time.Time {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(n, 0).UTC()
}

// rawToUSDC converts a raw 6-decimal token value string to its human value.
func rawToUSDC(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d.Shift(-6)
}

// gasCost returns gasPrice * gasUsed in the native token (18 decimals).
func gasCost(gasPrice, gasUsed string) decimal.Decimal {
	p, err := decimal.NewFromString(gasPrice)
	if err != nil {
		return decimal.Zero
	}
	u, err := decimal.NewFromString(gasUsed)
	if err != nil {
		return decimal.Zero
	}
	return p.Mul(u).Shift(-18)
}
