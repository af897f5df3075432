package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"crypto-ai-trading/internal/cache"
	"crypto-ai-trading/internal/feed"
	"crypto-ai-trading/internal/indicator"
	"crypto-ai-trading/internal/window"
)

// FeedKind selects the market data source.
type FeedKind string

const (
	FeedBinance FeedKind = "binance"
	FeedSim     FeedKind = "sim"
)

// Config holds all application configuration. Values come from an optional
// YAML file, then a .env file, then the process environment; later sources
// win.
type Config struct {
	Service     string `yaml:"service"`
	HTTPAddr    string `yaml:"http_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	LogText     bool   `yaml:"log_text"`

	Market     MarketConfig     `yaml:"market"`
	Binance    BinanceConfig    `yaml:"binance"`
	Indicators indicator.Config `yaml:"indicators"`
	Cache      cache.Config     `yaml:"cache"`
	Redis      RedisConfig      `yaml:"redis"`
	Anthropic  AnthropicConfig  `yaml:"anthropic"`
	Alerts     AlertConfig      `yaml:"alerts"`

	// WSMetricsInterval is how often system stats are pushed to WS clients.
	WSMetricsInterval time.Duration `yaml:"ws_metrics_interval"`
}

// MarketConfig selects what is polled and how often.
type MarketConfig struct {
	Exchange       string   `yaml:"exchange"`
	Feed           FeedKind `yaml:"feed"`
	Symbols        []string `yaml:"symbols"`
	Interval       string   `yaml:"interval"`
	PollSpec       string   `yaml:"poll_spec"`
	CandleLimit    int      `yaml:"candle_limit"`
	BookDepth      int      `yaml:"book_depth"`
	WindowCapacity int      `yaml:"window_capacity"`
	SimSeed        int64    `yaml:"sim_seed"`
}

// BinanceConfig holds optional venue credentials.
type BinanceConfig struct {
	APIKey    string `yaml:"api_key"`
	SecretKey string `yaml:"secret_key"`
	Testnet   bool   `yaml:"testnet"`
}

// RedisConfig enables snapshot republishing when Addr is set.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// AnthropicConfig configures the chat client. An empty key runs demo mode.
type AnthropicConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// AlertConfig lists the notification channels beyond the log.
type AlertConfig struct {
	WebhookURL       string `yaml:"webhook_url"`
	TelegramBotToken string `yaml:"telegram_bot_token"`
	TelegramChatID   string `yaml:"telegram_chat_id"`
	MaxRetries       int    `yaml:"max_retries"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Service:     "crypto-ai-trading",
		HTTPAddr:    ":8080",
		MetricsAddr: ":9090",
		LogLevel:    "info",
		Market: MarketConfig{
			Exchange:       "binance",
			Feed:           FeedBinance,
			Symbols:        []string{"BTC/USDT", "ETH/USDT", "SOL/USDT"},
			Interval:       feed.DefaultInterval,
			PollSpec:       feed.DefaultPollSpec,
			CandleLimit:    feed.DefaultLimit,
			BookDepth:      feed.DefaultDepth,
			WindowCapacity: window.DefaultCapacity,
			SimSeed:        1,
		},
		Indicators: indicator.DefaultConfig(),
		Cache:      cache.DefaultConfig(),
		Redis: RedisConfig{
			MaxFailures:  5,
			ResetTimeout: 30 * time.Second,
		},
		Alerts:            AlertConfig{MaxRetries: 3},
		WSMetricsInterval: 2 * time.Second,
	}
}

// Load reads the YAML file at path (a missing file is fine), loads .env if
// present, and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// .env is optional; real env vars take precedence over it.
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the config file path from CONFIG_FILE, default config.yaml.
func Path() string { return getEnv("CONFIG_FILE", "config.yaml") }

func (c *Config) applyEnv() error {
	var errs []error

	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	c.MetricsAddr = getEnv("METRICS_ADDR", c.MetricsAddr)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogText = envBool("LOG_TEXT", c.LogText, &errs)

	m := &c.Market
	m.Exchange = getEnv("EXCHANGE", m.Exchange)
	m.Feed = FeedKind(strings.ToLower(getEnv("FEED", string(m.Feed))))
	if v := os.Getenv("SYMBOLS"); v != "" {
		m.Symbols = splitList(v)
	}
	m.Interval = getEnv("CANDLE_INTERVAL", m.Interval)
	m.PollSpec = getEnv("POLL_SPEC", m.PollSpec)
	m.CandleLimit = envInt("CANDLE_LIMIT", m.CandleLimit, &errs)
	m.BookDepth = envInt("BOOK_DEPTH", m.BookDepth, &errs)
	m.WindowCapacity = envInt("WINDOW_CAP", m.WindowCapacity, &errs)
	m.SimSeed = int64(envInt("SIM_SEED", int(m.SimSeed), &errs))

	c.Binance.APIKey = getEnv("BINANCE_API_KEY", c.Binance.APIKey)
	c.Binance.SecretKey = getEnv("BINANCE_API_SECRET", c.Binance.SecretKey)
	c.Binance.Testnet = envBool("BINANCE_TESTNET", c.Binance.Testnet, &errs)

	ind := &c.Indicators
	ind.RSI.Period = envInt("RSI_PERIOD", ind.RSI.Period, &errs)
	ind.RSI.Overbought = envFloat("RSI_OVERBOUGHT", ind.RSI.Overbought, &errs)
	ind.RSI.Oversold = envFloat("RSI_OVERSOLD", ind.RSI.Oversold, &errs)
	ind.StochRSI.RSIPeriod = envInt("STOCH_RSI_PERIOD", ind.StochRSI.RSIPeriod, &errs)
	ind.StochRSI.StochPeriod = envInt("STOCH_PERIOD", ind.StochRSI.StochPeriod, &errs)
	ind.StochRSI.KPeriod = envInt("STOCH_K", ind.StochRSI.KPeriod, &errs)
	ind.StochRSI.DPeriod = envInt("STOCH_D", ind.StochRSI.DPeriod, &errs)
	ind.Band.ShortPeriod = envInt("BMSB_SHORT", ind.Band.ShortPeriod, &errs)
	ind.Band.LongPeriod = envInt("BMSB_LONG", ind.Band.LongPeriod, &errs)
	ind.Weights.RSI = envFloat("WEIGHT_RSI", ind.Weights.RSI, &errs)
	ind.Weights.StochRSI = envFloat("WEIGHT_STOCH_RSI", ind.Weights.StochRSI, &errs)
	ind.Weights.BMSB = envFloat("WEIGHT_BMSB", ind.Weights.BMSB, &errs)

	c.Cache.MaxEntries = envInt("CACHE_MAX_ENTRIES", c.Cache.MaxEntries, &errs)
	if v := os.Getenv("CACHE_SWEEP_SEC"); v != "" {
		c.Cache.SweepInterval = time.Duration(envInt("CACHE_SWEEP_SEC", 0, &errs)) * time.Second
	}

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = envInt("REDIS_DB", c.Redis.DB, &errs)

	c.Anthropic.APIKey = getEnv("ANTHROPIC_API_KEY", c.Anthropic.APIKey)
	c.Anthropic.Model = getEnv("ANTHROPIC_MODEL", c.Anthropic.Model)
	c.Anthropic.BaseURL = getEnv("ANTHROPIC_BASE_URL", c.Anthropic.BaseURL)

	c.Alerts.WebhookURL = getEnv("WEBHOOK_URL", c.Alerts.WebhookURL)
	c.Alerts.TelegramBotToken = getEnv("TELEGRAM_BOT_TOKEN", c.Alerts.TelegramBotToken)
	c.Alerts.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", c.Alerts.TelegramChatID)

	return errors.Join(errs...)
}

// Validate checks the settings that have no safe fallback. Indicator
// parameters are not checked here: the engines replace invalid values with
// their defaults.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http_addr is required"))
	}
	switch c.Market.Feed {
	case FeedBinance, FeedSim:
	default:
		errs = append(errs, fmt.Errorf("market.feed must be binance or sim, got %q", c.Market.Feed))
	}
	if len(c.Market.Symbols) == 0 {
		errs = append(errs, errors.New("market.symbols must not be empty"))
	}
	for _, s := range c.Market.Symbols {
		if !strings.Contains(s, "/") {
			errs = append(errs, fmt.Errorf("symbol %q must be BASE/QUOTE", s))
		}
	}
	if _, err := feed.ParseInterval(c.Market.Interval); err != nil {
		errs = append(errs, err)
	}
	if _, err := cron.ParseStandard(c.Market.PollSpec); err != nil {
		errs = append(errs, fmt.Errorf("market.poll_spec: %w", err))
	}
	if c.Market.WindowCapacity <= 0 {
		errs = append(errs, errors.New("market.window_capacity must be positive"))
	}
	if c.Cache.MaxEntries <= 0 {
		errs = append(errs, errors.New("cache.max_entries must be positive"))
	}
	if (c.Alerts.TelegramBotToken == "") != (c.Alerts.TelegramChatID == "") {
		errs = append(errs, errors.New("telegram needs both bot token and chat id"))
	}
	return errors.Join(errs...)
}

// RedisEnabled reports whether snapshots are republished to Redis.
func (c *Config) RedisEnabled() bool { return c.Redis.Addr != "" }

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64, errs *[]error) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return f
}

func envBool(key string, fallback bool, errs *[]error) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return b
}
