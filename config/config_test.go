package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, FeedBinance, cfg.Market.Feed)
	assert.Equal(t, 200, cfg.Market.WindowCapacity)
	assert.Equal(t, 14, cfg.Indicators.RSI.Period)
	assert.InDelta(t, 0.30, cfg.Indicators.Weights.StochRSI, 1e-12)
	assert.False(t, cfg.RedisEnabled())
	require.NoError(t, cfg.Validate())
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := writeFile(t, `
http_addr: ":7000"
market:
  feed: sim
  symbols: [BTC/USDT]
  interval: 5m
indicators:
  rsi:
    period: 9
  stoch_rsi:
    stoch_period: 3
    k_period: 3
    d_period: 3
cache:
  max_entries: 50
  ttl:
    analysis: 90s
redis:
  addr: localhost:6379
`)
	t.Setenv("HTTP_ADDR", ":7100")
	t.Setenv("SYMBOLS", "eth/usdt, sol/usdt")
	t.Setenv("WEIGHT_RSI", "0.5")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7100", cfg.HTTPAddr)
	assert.Equal(t, FeedSim, cfg.Market.Feed)
	assert.Equal(t, []string{"ETH/USDT", "SOL/USDT"}, cfg.Market.Symbols)
	assert.Equal(t, "5m", cfg.Market.Interval)
	assert.Equal(t, 9, cfg.Indicators.RSI.Period)
	assert.Equal(t, 70.0, cfg.Indicators.RSI.Overbought, "unset YAML fields keep defaults")
	assert.Equal(t, 3, cfg.Indicators.StochRSI.KPeriod)
	assert.Equal(t, 14, cfg.Indicators.StochRSI.RSIPeriod)
	assert.Equal(t, 0.5, cfg.Indicators.Weights.RSI)
	assert.Equal(t, 50, cfg.Cache.MaxEntries)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL.Analysis)
	assert.True(t, cfg.RedisEnabled())
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeFile(t, "market: [unclosed"))
	assert.ErrorContains(t, err, "parse config")
}

func TestLoad_BadEnvValuesAreReported(t *testing.T) {
	t.Setenv("WINDOW_CAP", "lots")
	t.Setenv("BINANCE_TESTNET", "maybe")

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "WINDOW_CAP")
	assert.ErrorContains(t, err, "BINANCE_TESTNET")
}

func TestLoad_CacheSweepSeconds(t *testing.T) {
	t.Setenv("CACHE_SWEEP_SEC", "5")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Cache.SweepInterval)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown feed", func(c *Config) { c.Market.Feed = "kraken" }, "market.feed"},
		{"no symbols", func(c *Config) { c.Market.Symbols = nil }, "symbols must not be empty"},
		{"bare symbol", func(c *Config) { c.Market.Symbols = []string{"BTCUSDT"} }, "BASE/QUOTE"},
		{"bad interval", func(c *Config) { c.Market.Interval = "7m" }, "unsupported interval"},
		{"bad poll spec", func(c *Config) { c.Market.PollSpec = "every now and then" }, "poll_spec"},
		{"zero window", func(c *Config) { c.Market.WindowCapacity = 0 }, "window_capacity"},
		{"half telegram", func(c *Config) { c.Alerts.TelegramBotToken = "t" }, "telegram"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestValidate_JoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.HTTPAddr = ""
	cfg.Market.Symbols = nil

	err := cfg.Validate()
	assert.ErrorContains(t, err, "http_addr")
	assert.ErrorContains(t, err, "symbols")
}
