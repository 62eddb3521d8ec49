package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalMirrorTOML = `
mode = "mirror"

[wallet]
private_key = "0xabc"

[watch]
address = "0x1111111111111111111111111111111111111111"
ws_url = "wss://polygon-mainnet.example/v2/key"
delay = "0s"
`

func TestLoadMergesDefaults(t *testing.T) {
	path := writeConfig(t, minimalMirrorTOML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mirror", cfg.Mode)
	assert.Equal(t, "d2539b37", cfg.Watch.Selector)
	assert.Equal(t, "https://clob.polymarket.com", cfg.Polymarket.ClobHost)
	assert.Equal(t, 137, cfg.Polymarket.ChainID)
	assert.Equal(t, 8, cfg.Mirror.MaxConcurrent)
	assert.Equal(t, 10*time.Minute, cfg.Mirror.DedupTTL.Duration)
	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MIRRORBOT_WATCH_ADDRESS", "0x2222222222222222222222222222222222222222")
	t.Setenv("MIRRORBOT_MIRROR_MAX_ORDER_USD", "250")
	t.Setenv("MIRRORBOT_MIRROR_DELAY", "3s")
	t.Setenv("MIRRORBOT_LOG_LEVEL", "debug")

	path := writeConfig(t, minimalMirrorTOML)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0x2222222222222222222222222222222222222222", cfg.Watch.Address)
	assert.Equal(t, 250.0, cfg.Mirror.MaxOrderUSD)
	assert.Equal(t, 3*time.Second, cfg.Mirror.Delay.Duration)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestValidateMirrorMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "mirror"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watch: address")
	assert.Contains(t, err.Error(), "watch: ws_url")
	assert.Contains(t, err.Error(), "wallet: private_key")
}

func TestValidateBacktestMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "backtest"
	cfg.Watch.Address = "0x1111111111111111111111111111111111111111"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "polygonscan: api_key")

	cfg.Polygonscan.ApiKey = "KEY"
	require.NoError(t, cfg.Validate())

	// Backtest mode must not demand mirror-only settings.
	assert.Empty(t, cfg.Wallet.PrivateKey)
}

func TestValidateBacktestLookback(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "backtest"
	cfg.Watch.Address = "0x1111111111111111111111111111111111111111"
	cfg.Polygonscan.ApiKey = "KEY"

	cfg.Backtest.Lookback.Duration = 720 * time.Hour
	require.NoError(t, cfg.Validate())

	cfg.Backtest.StartBlock = 50_000_000
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestValidateRejectsBadSelector(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "backtest"
	cfg.Watch.Address = "0x1111111111111111111111111111111111111111"
	cfg.Polygonscan.ApiKey = "KEY"
	cfg.Watch.Selector = "zzzz"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "selector")
}

func TestValidatePartialAPICredentials(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "mirror"
	cfg.Watch.Address = "0x1111111111111111111111111111111111111111"
	cfg.Watch.WSURL = "wss://example"
	cfg.Wallet.PrivateKey = "0xabc"
	cfg.Polymarket.ApiKey = "key-only"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "set together")
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "0xsecret"
	cfg.Polymarket.ApiSecret = "s3cr3t"
	cfg.Polygonscan.ApiKey = "scan-key"
	cfg.Redis.Password = "hunter2"

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Wallet.PrivateKey)
	assert.Equal(t, "***", red.Polymarket.ApiSecret)
	assert.Equal(t, "***", red.Polygonscan.ApiKey)
	assert.Equal(t, "***", red.Redis.Password)

	// Original untouched.
	assert.Equal(t, "0xsecret", cfg.Wallet.PrivateKey)
}
