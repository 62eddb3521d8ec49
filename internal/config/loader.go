package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies MIRRORBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known MIRRORBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "MIRRORBOT_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.Funder, "MIRRORBOT_WALLET_FUNDER")

	// ── Watch ──
	setStr(&cfg.Watch.Address, "MIRRORBOT_WATCH_ADDRESS")
	setStr(&cfg.Watch.Selector, "MIRRORBOT_WATCH_SELECTOR")
	setStr(&cfg.Watch.WSURL, "MIRRORBOT_WATCH_WS_URL")
	setStr(&cfg.Watch.RPCURL, "MIRRORBOT_WATCH_RPC_URL")
	setStr(&cfg.Watch.SubscribeMethod, "MIRRORBOT_WATCH_SUBSCRIBE_METHOD")
	setDuration(&cfg.Watch.ReconnectDelay, "MIRRORBOT_WATCH_RECONNECT_DELAY")
	setDuration(&cfg.Watch.HeartbeatInterval, "MIRRORBOT_WATCH_HEARTBEAT_INTERVAL")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "MIRRORBOT_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.DataHost, "MIRRORBOT_POLYMARKET_DATA_HOST")
	setInt(&cfg.Polymarket.ChainID, "MIRRORBOT_POLYMARKET_CHAIN_ID")
	setInt(&cfg.Polymarket.SignatureType, "MIRRORBOT_POLYMARKET_SIGNATURE_TYPE")
	setStr(&cfg.Polymarket.VerifyingContract, "MIRRORBOT_POLYMARKET_VERIFYING_CONTRACT")
	setStr(&cfg.Polymarket.ApiKey, "MIRRORBOT_POLYMARKET_API_KEY")
	setStr(&cfg.Polymarket.ApiSecret, "MIRRORBOT_POLYMARKET_API_SECRET")
	setStr(&cfg.Polymarket.ApiPassphrase, "MIRRORBOT_POLYMARKET_API_PASSPHRASE")

	// ── Mirror ──
	setFloat64(&cfg.Mirror.MinOrderUSD, "MIRRORBOT_MIRROR_MIN_ORDER_USD")
	setFloat64(&cfg.Mirror.MaxOrderUSD, "MIRRORBOT_MIRROR_MAX_ORDER_USD")
	setDuration(&cfg.Mirror.Delay, "MIRRORBOT_MIRROR_DELAY")
	setInt(&cfg.Mirror.MaxConcurrent, "MIRRORBOT_MIRROR_MAX_CONCURRENT")
	setDuration(&cfg.Mirror.DedupTTL, "MIRRORBOT_MIRROR_DEDUP_TTL")
	setDuration(&cfg.Mirror.ExecuteTimeout, "MIRRORBOT_MIRROR_EXECUTE_TIMEOUT")

	// ── Polygonscan ──
	setStr(&cfg.Polygonscan.BaseURL, "MIRRORBOT_POLYGONSCAN_BASE_URL")
	setStr(&cfg.Polygonscan.ApiKey, "MIRRORBOT_POLYGONSCAN_API_KEY")

	// ── Backtest ──
	setStr(&cfg.Backtest.Address, "MIRRORBOT_BACKTEST_ADDRESS")
	setUint64(&cfg.Backtest.StartBlock, "MIRRORBOT_BACKTEST_START_BLOCK")
	setUint64(&cfg.Backtest.EndBlock, "MIRRORBOT_BACKTEST_END_BLOCK")
	setDuration(&cfg.Backtest.Lookback, "MIRRORBOT_BACKTEST_LOOKBACK")
	setStr(&cfg.Backtest.OutputPath, "MIRRORBOT_BACKTEST_OUTPUT_PATH")
	setBool(&cfg.Backtest.ArchiveToS3, "MIRRORBOT_BACKTEST_ARCHIVE_TO_S3")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "MIRRORBOT_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "MIRRORBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "MIRRORBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "MIRRORBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "MIRRORBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "MIRRORBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "MIRRORBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "MIRRORBOT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "MIRRORBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "MIRRORBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "MIRRORBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "MIRRORBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "MIRRORBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MIRRORBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MIRRORBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MIRRORBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MIRRORBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MIRRORBOT_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.TxCacheTTL, "MIRRORBOT_REDIS_TX_CACHE_TTL")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "MIRRORBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "MIRRORBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "MIRRORBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "MIRRORBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "MIRRORBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "MIRRORBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "MIRRORBOT_S3_FORCE_PATH_STYLE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "MIRRORBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "MIRRORBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "MIRRORBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "MIRRORBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "MIRRORBOT_MODE")
	setStr(&cfg.LogLevel, "MIRRORBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
