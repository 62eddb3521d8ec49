package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/kzhaodev/mirrorbot/internal/abi"
	"github.com/kzhaodev/mirrorbot/internal/backtest"
	"github.com/kzhaodev/mirrorbot/internal/crypto"
	"github.com/kzhaodev/mirrorbot/internal/domain"
	"github.com/kzhaodev/mirrorbot/internal/executor"
	"github.com/kzhaodev/mirrorbot/internal/feed"
	"github.com/kzhaodev/mirrorbot/internal/platform/polygonscan"
	"github.com/kzhaodev/mirrorbot/internal/platform/polymarket"
	"github.com/kzhaodev/mirrorbot/internal/watch"
)

// MirrorMode runs the live pipeline: mempool stream -> detector -> mirror
// executor, plus the feed liveness heartbeat. It blocks until the context is
// cancelled.
func (a *App) MirrorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting mirror mode",
		slog.String("watched_wallet", a.cfg.Watch.Address),
		slog.String("selector", a.cfg.Watch.Selector),
	)

	decoder, err := abi.NewDecoder(a.cfg.Watch.Selector)
	if err != nil {
		return fmt.Errorf("app: decoder: %w", err)
	}

	signer, err := crypto.NewSigner(a.cfg.Wallet.PrivateKey, a.cfg.Polymarket.ChainID)
	if err != nil {
		return fmt.Errorf("app: signer: %w", err)
	}

	var hmac *crypto.HMACAuth
	if a.cfg.Polymarket.ApiKey != "" {
		hmac = &crypto.HMACAuth{
			Key:        a.cfg.Polymarket.ApiKey,
			Secret:     a.cfg.Polymarket.ApiSecret,
			Passphrase: a.cfg.Polymarket.ApiPassphrase,
		}
	}

	clob := polymarket.NewClobClient(polymarket.ClobConfig{
		BaseURL:           a.cfg.Polymarket.ClobHost,
		Funder:            a.cfg.Wallet.Funder,
		SignatureType:     a.cfg.Polymarket.SignatureType,
		VerifyingContract: a.cfg.Polymarket.VerifyingContract,
	}, signer, hmac)

	if hmac == nil {
		if err := clob.DeriveAPIKey(ctx); err != nil {
			return fmt.Errorf("app: derive api key: %w", err)
		}
		a.logger.InfoContext(ctx, "derived CLOB API key",
			slog.String("address", signer.Address().Hex()),
		)
	}

	data := polymarket.NewDataClient(a.cfg.Polymarket.DataHost)
	trader := polymarket.NewTrader(clob, data, a.cfg.Wallet.Funder)

	trades := make(chan domain.MatchedTrade, 32)
	mirror := executor.NewMirror(trades, trader, deps.MirrorStore, deps.Notifier, executor.MirrorConfig{
		MinOrder:       decimal.NewFromFloat(a.cfg.Mirror.MinOrderUSD),
		MaxOrder:       decimal.NewFromFloat(a.cfg.Mirror.MaxOrderUSD),
		Delay:          a.cfg.Mirror.Delay.Duration,
		MaxConcurrent:  int64(a.cfg.Mirror.MaxConcurrent),
		DedupTTL:       a.cfg.Mirror.DedupTTL.Duration,
		ExecuteTimeout: a.cfg.Mirror.ExecuteTimeout.Duration,
	}, a.logger)

	attributor := watch.NewAttributor(a.cfg.Watch.Address)
	detector := watch.NewDetector(decoder, attributor,
		func(ctx context.Context, trade domain.MatchedTrade) {
			select {
			case trades <- trade:
			case <-ctx.Done():
			}
		}, a.logger)

	var rpc *feed.RPCClient
	if a.cfg.Watch.RPCURL != "" {
		rpc = feed.NewRPCClient(a.cfg.Watch.RPCURL)
	}

	var resolver feed.TxResolver
	if rpc != nil {
		resolver = rpc
	}
	stream := feed.NewStreamClient(feed.StreamConfig{
		WSURL:           a.cfg.Watch.WSURL,
		SubscribeParams: []any{a.cfg.Watch.SubscribeMethod},
		ReconnectDelay:  a.cfg.Watch.ReconnectDelay.Duration,
	}, resolver, detector.HandleTx, a.logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer stream.Close()
		return stream.Run(ctx)
	})
	g.Go(func() error {
		return mirror.Run(ctx)
	})
	if rpc != nil {
		heartbeat := feed.NewHeartbeat(rpc, stream.MessagesSeen, a.cfg.Watch.HeartbeatInterval.Duration, a.logger)
		g.Go(func() error {
			return heartbeat.Run(ctx)
		})
	}

	return g.Wait()
}

// BacktestMode replays the configured wallet's history, writes the P&L
// report CSV, and optionally archives it. It returns once the report is
// written.
func (a *App) BacktestMode(ctx context.Context, deps *Dependencies) error {
	address := a.cfg.Backtest.Address
	if address == "" {
		address = a.cfg.Watch.Address
	}
	a.logger.InfoContext(ctx, "starting backtest mode",
		slog.String("address", address),
	)

	decoder, err := abi.NewDecoder(a.cfg.Watch.Selector)
	if err != nil {
		return fmt.Errorf("app: decoder: %w", err)
	}

	explorer := polygonscan.NewClient(
		a.cfg.Polygonscan.BaseURL,
		a.cfg.Polygonscan.ApiKey,
		deps.TxCache,
		a.logger,
	)
	positions := polymarket.NewDataClient(a.cfg.Polymarket.DataHost)

	startBlock := a.cfg.Backtest.StartBlock
	if lookback := a.cfg.Backtest.Lookback.Duration; startBlock == 0 && lookback > 0 {
		ts := time.Now().Add(-lookback).Unix()
		startBlock, err = explorer.BlockNumberByTime(ctx, ts)
		if err != nil {
			return fmt.Errorf("app: resolve lookback start block: %w", err)
		}
		a.logger.InfoContext(ctx, "lookback window resolved",
			slog.Duration("lookback", lookback),
			slog.Uint64("start_block", startBlock),
		)
	}

	agg := backtest.NewAggregator(explorer, positions, decoder, a.logger)
	report, err := agg.Aggregate(ctx, address, startBlock, a.cfg.Backtest.EndBlock)
	if err != nil {
		return fmt.Errorf("app: backtest: %w", err)
	}

	out, err := os.Create(a.cfg.Backtest.OutputPath)
	if err != nil {
		return fmt.Errorf("app: create report file: %w", err)
	}
	defer out.Close()
	if err := backtest.WriteCSV(out, report); err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "backtest report written",
		slog.String("path", a.cfg.Backtest.OutputPath),
		slog.Int("entries", len(report.Entries)),
		slog.Int("tokens", len(report.PerToken)),
		slog.String("total_realized_pnl", report.TotalRealizedPnL.String()),
		slog.String("total_pnl", report.TotalPnL.String()),
		slog.String("win_rate", report.WinRate.StringFixed(4)),
	)

	if deps.BlobWriter != nil {
		path, err := backtest.ArchiveCSV(ctx, deps.BlobWriter, report)
		if err != nil {
			return err
		}
		a.logger.InfoContext(ctx, "backtest report archived", slog.String("key", path))
	}

	return nil
}
