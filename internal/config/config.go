// Package config defines the top-level configuration for the mirror bot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by MIRRORBOT_* environment variables.
type Config struct {
	Wallet      WalletConfig      `toml:"wallet"`
	Watch       WatchConfig       `toml:"watch"`
	Polymarket  PolymarketConfig  `toml:"polymarket"`
	Mirror      MirrorConfig      `toml:"mirror"`
	Polygonscan PolygonscanConfig `toml:"polygonscan"`
	Backtest    BacktestConfig    `toml:"backtest"`
	Postgres    PostgresConfig    `toml:"postgres"`
	Redis       RedisConfig       `toml:"redis"`
	S3          S3Config          `toml:"s3"`
	Notify      NotifyConfig      `toml:"notify"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// WalletConfig holds the signing wallet credentials for order submission.
type WalletConfig struct {
	PrivateKey string `toml:"private_key"`
	// Funder is the address holding collateral (the Polymarket proxy wallet
	// for signature types 1 and 2, the EOA itself for type 0).
	Funder string `toml:"funder"`
}

// WatchConfig holds the mempool feed and detection parameters.
type WatchConfig struct {
	// Address is the wallet whose trades are mirrored.
	Address string `toml:"address"`
	// Selector is the 4-byte function selector of matchOrders, hex without 0x.
	Selector string `toml:"selector"`
	WSURL    string `toml:"ws_url"`
	// RPCURL backs hash-only subscription frames and the liveness probe.
	RPCURL string `toml:"rpc_url"`
	// SubscribeMethod is the pending-transaction subscription type.
	SubscribeMethod   string   `toml:"subscribe_method"`
	ReconnectDelay    duration `toml:"reconnect_delay"`
	HeartbeatInterval duration `toml:"heartbeat_interval"`
}

// PolymarketConfig holds Polymarket API endpoints, chain parameters, and
// CLOB API credentials.
type PolymarketConfig struct {
	ClobHost          string `toml:"clob_host"`
	DataHost          string `toml:"data_host"`
	ChainID           int    `toml:"chain_id"`
	SignatureType     int    `toml:"signature_type"`
	VerifyingContract string `toml:"verifying_contract"`
	ApiKey            string `toml:"api_key"`
	ApiSecret         string `toml:"api_secret"`
	ApiPassphrase     string `toml:"api_passphrase"`
}

// MirrorConfig holds sizing and execution parameters for mirrored orders.
type MirrorConfig struct {
	MinOrderUSD    float64  `toml:"min_order_usd"`
	MaxOrderUSD    float64  `toml:"max_order_usd"`
	Delay          duration `toml:"delay"`
	MaxConcurrent  int      `toml:"max_concurrent"`
	DedupTTL       duration `toml:"dedup_ttl"`
	ExecuteTimeout duration `toml:"execute_timeout"`
}

// PolygonscanConfig holds block-explorer API parameters for backtests.
type PolygonscanConfig struct {
	BaseURL string `toml:"base_url"`
	ApiKey  string `toml:"api_key"`
}

// BacktestConfig holds parameters for the offline P&L report.
type BacktestConfig struct {
	// Address is the wallet to replay; defaults to watch.address when empty.
	Address    string `toml:"address"`
	StartBlock uint64 `toml:"start_block"`
	EndBlock   uint64 `toml:"end_block"`
	// Lookback resolves start_block from a wall-clock window (e.g. "720h")
	// when start_block is zero.
	Lookback   duration `toml:"lookback"`
	OutputPath string   `toml:"output_path"`
	// ArchiveToS3 additionally uploads the CSV to the configured bucket.
	ArchiveToS3 bool `toml:"archive_to_s3"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	TxCacheTTL duration `toml:"tx_cache_ttl"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Watch: WatchConfig{
			Selector:          "d2539b37",
			SubscribeMethod:   "alchemy_pendingTransactions",
			ReconnectDelay:    duration{5 * time.Second},
			HeartbeatInterval: duration{5 * time.Second},
		},
		Polymarket: PolymarketConfig{
			ClobHost:      "https://clob.polymarket.com",
			DataHost:      "https://data-api.polymarket.com",
			ChainID:       137,
			SignatureType: 2,
		},
		Mirror: MirrorConfig{
			MinOrderUSD:    1.0,
			MaxOrderUSD:    100.0,
			Delay:          duration{0},
			MaxConcurrent:  8,
			DedupTTL:       duration{10 * time.Minute},
			ExecuteTimeout: duration{30 * time.Second},
		},
		Polygonscan: PolygonscanConfig{
			BaseURL: "https://api.polygonscan.com/api",
		},
		Backtest: BacktestConfig{
			OutputPath: "backtest.csv",
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "mirrorbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TxCacheTTL: duration{7 * 24 * time.Hour},
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "mirrorbot-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Notify: NotifyConfig{
			Events: []string{"mirror_filled", "mirror_skipped", "mirror_failed", "error"},
		},
		Mode:     "mirror",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"mirror":   true,
	"backtest": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// isHexSelector reports whether s is exactly four bytes of hex.
func isHexSelector(s string) bool {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(s) != 8 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found. Requirements depend on Mode:
// mirror mode needs the feed, wallet, and CLOB credentials; backtest mode
// needs the explorer key and a target address.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: mirror, backtest)", c.Mode))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Watch.Address == "" {
		errs = append(errs, "watch: address must not be empty")
	}
	if !isHexSelector(c.Watch.Selector) {
		errs = append(errs, fmt.Sprintf("watch: selector must be 4 bytes of hex, got %q", c.Watch.Selector))
	}

	if mode == "mirror" {
		if c.Watch.WSURL == "" {
			errs = append(errs, "watch: ws_url is required for mirror mode")
		}
		if c.Wallet.PrivateKey == "" {
			errs = append(errs, "wallet: private_key is required for mirror mode")
		}
		if c.Polymarket.ClobHost == "" {
			errs = append(errs, "polymarket: clob_host must not be empty")
		}
		if c.Polymarket.ChainID <= 0 {
			errs = append(errs, "polymarket: chain_id must be positive")
		}
		if st := c.Polymarket.SignatureType; st < 0 || st > 2 {
			errs = append(errs, fmt.Sprintf("polymarket: signature_type must be 0 (EOA), 1 (email proxy), or 2 (Safe), got %d", st))
		}

		// API credentials must be set together, or all empty (derive flow).
		ak := c.Polymarket.ApiKey != ""
		as := c.Polymarket.ApiSecret != ""
		ap := c.Polymarket.ApiPassphrase != ""
		if (ak || as || ap) && !(ak && as && ap) {
			errs = append(errs, "polymarket: api_key, api_secret, and api_passphrase must all be set together")
		}

		if c.Mirror.MinOrderUSD <= 0 {
			errs = append(errs, "mirror: min_order_usd must be > 0")
		}
		if c.Mirror.MaxOrderUSD > 0 && c.Mirror.MaxOrderUSD < c.Mirror.MinOrderUSD {
			errs = append(errs, "mirror: max_order_usd must be >= min_order_usd")
		}
		if c.Mirror.MaxConcurrent < 1 {
			errs = append(errs, "mirror: max_concurrent must be >= 1")
		}
		if c.Mirror.Delay.Duration < 0 {
			errs = append(errs, "mirror: delay must not be negative")
		}
	}

	if mode == "backtest" {
		if c.Polygonscan.ApiKey == "" {
			errs = append(errs, "polygonscan: api_key is required for backtest mode")
		}
		if c.Backtest.EndBlock > 0 && c.Backtest.EndBlock < c.Backtest.StartBlock {
			errs = append(errs, "backtest: end_block must be >= start_block")
		}
		if c.Backtest.Lookback.Duration < 0 {
			errs = append(errs, "backtest: lookback must not be negative")
		}
		if c.Backtest.Lookback.Duration > 0 && c.Backtest.StartBlock > 0 {
			errs = append(errs, "backtest: lookback and start_block are mutually exclusive")
		}
		if c.Backtest.ArchiveToS3 {
			if c.S3.Endpoint == "" {
				errs = append(errs, "s3: endpoint must not be empty when backtest.archive_to_s3 is set")
			}
			if c.S3.Bucket == "" {
				errs = append(errs, "s3: bucket must not be empty when backtest.archive_to_s3 is set")
			}
		}
	}

	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
