package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/kzhaodev/mirrorbot/internal/blob/s3"
	"github.com/kzhaodev/mirrorbot/internal/cache/redis"
	"github.com/kzhaodev/mirrorbot/internal/config"
	"github.com/kzhaodev/mirrorbot/internal/domain"
	"github.com/kzhaodev/mirrorbot/internal/notify"
	"github.com/kzhaodev/mirrorbot/internal/store/postgres"
)

// Dependencies bundles the shared infrastructure that the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function. Mode-specific components (feed, detector, mirror,
// aggregator) are built inside the mode functions themselves.
type Dependencies struct {
	// MirrorStore persists the mirror audit trail; nil when Postgres is
	// disabled, in which case outcomes are only logged.
	MirrorStore domain.MirrorStore

	// TxCache fronts block-explorer transaction lookups; nil when Redis is
	// disabled.
	TxCache domain.TxCache

	// BlobWriter archives backtest reports; nil unless backtest mode
	// requested S3 archiving.
	BlobWriter domain.BlobWriter

	// Notifier dispatches mirror outcome events. Always non-nil; with no
	// channels configured it is a no-op.
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}
	mode := strings.ToLower(cfg.Mode)

	// --- PostgreSQL (audit trail, optional) ---
	if cfg.Postgres.Enabled && mode == "mirror" {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		deps.MirrorStore = postgres.NewMirrorStore(pgClient.Pool())
	}

	// --- Redis (explorer tx cache, optional) ---
	if cfg.Redis.Enabled && mode == "backtest" {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.TxCache = redis.NewTxCache(redisClient, cfg.Redis.TxCacheTTL.Duration)
	}

	// --- S3 blob storage (report archive, optional) ---
	if mode == "backtest" && cfg.Backtest.ArchiveToS3 {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
