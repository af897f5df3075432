package cache

import (
	"time"

	"crypto-ai-trading/internal/model"
)

// Category TTL defaults. Order books change fastest, user settings slowest.
const (
	TTLOrderBook  = 2 * time.Second
	TTLPrice      = 5 * time.Second
	TTLOHLCV      = 60 * time.Second
	TTLAnalysis   = 300 * time.Second
	TTLNews       = 600 * time.Second
	TTLUserConfig = 24 * time.Hour

	// warmup placeholders expire quickly so the first poll replaces them
	ttlWarmup = 30 * time.Second

	maxWarmupSymbols = 20
)

// TTLConfig holds the expiry per cached category.
type TTLConfig struct {
	OrderBook  time.Duration `yaml:"orderbook"`
	Price      time.Duration `yaml:"price"`
	OHLCV      time.Duration `yaml:"ohlcv"`
	Analysis   time.Duration `yaml:"analysis"`
	News       time.Duration `yaml:"news"`
	UserConfig time.Duration `yaml:"user_config"`
}

// DefaultTTLs returns the stock category TTLs.
func DefaultTTLs() TTLConfig {
	return TTLConfig{
		OrderBook:  TTLOrderBook,
		Price:      TTLPrice,
		OHLCV:      TTLOHLCV,
		Analysis:   TTLAnalysis,
		News:       TTLNews,
		UserConfig: TTLUserConfig,
	}
}

func (t TTLConfig) normalize() TTLConfig {
	d := DefaultTTLs()
	fill := func(v *time.Duration, def time.Duration) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&t.OrderBook, d.OrderBook)
	fill(&t.Price, d.Price)
	fill(&t.OHLCV, d.OHLCV)
	fill(&t.Analysis, d.Analysis)
	fill(&t.News, d.News)
	fill(&t.UserConfig, d.UserConfig)
	return t
}

// Key builders. Keys are colon-separated so category globs ("price:*")
// select a whole category.

func PriceKey(exchange, symbol string) string     { return "price:" + exchange + ":" + symbol }
func OrderBookKey(exchange, symbol string) string { return "orderbook:" + exchange + ":" + symbol }
func OHLCVKey(exchange, symbol, timeframe string) string {
	return "ohlcv:" + exchange + ":" + symbol + ":" + timeframe
}
func AnalysisKey(symbol string) string   { return "analysis:" + symbol }
func NewsKey(keyword string) string      { return "news:" + keyword }
func UserConfigKey(userID string) string { return "config:" + userID }

// GetAs returns the value under key if present and of type T.
// A value of another type reads, and is counted, as a miss.
func GetAs[T any](s *Store, key string) (T, bool) {
	v, ok := s.get(key, func(v any) bool {
		_, ok := v.(T)
		return ok
	})
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// SetPrice caches a ticker under its exchange and symbol.
func (s *Store) SetPrice(t model.Ticker) {
	s.Set(PriceKey(t.Exchange, t.Symbol), t, s.cfg.TTL.Price)
}

// GetPrice returns the cached ticker.
func (s *Store) GetPrice(exchange, symbol string) (model.Ticker, bool) {
	return GetAs[model.Ticker](s, PriceKey(exchange, symbol))
}

// SetOrderBook caches a depth snapshot.
func (s *Store) SetOrderBook(ob model.OrderBook) {
	s.Set(OrderBookKey(ob.Exchange, ob.Symbol), ob, s.cfg.TTL.OrderBook)
}

// GetOrderBook returns the cached depth snapshot.
func (s *Store) GetOrderBook(exchange, symbol string) (model.OrderBook, bool) {
	return GetAs[model.OrderBook](s, OrderBookKey(exchange, symbol))
}

// SetOHLCV caches a candle series for one timeframe.
func (s *Store) SetOHLCV(exchange, symbol, timeframe string, candles []model.PricePoint) {
	s.Set(OHLCVKey(exchange, symbol, timeframe), candles, s.cfg.TTL.OHLCV)
}

// GetOHLCV returns the cached candle series.
func (s *Store) GetOHLCV(exchange, symbol, timeframe string) ([]model.PricePoint, bool) {
	return GetAs[[]model.PricePoint](s, OHLCVKey(exchange, symbol, timeframe))
}

// SetAnalysis caches an indicator snapshot under its symbol.
func (s *Store) SetAnalysis(ti model.TechnicalIndicators) {
	s.Set(AnalysisKey(ti.Symbol), ti, s.cfg.TTL.Analysis)
}

// GetAnalysis returns the cached indicator snapshot.
func (s *Store) GetAnalysis(symbol string) (model.TechnicalIndicators, bool) {
	return GetAs[model.TechnicalIndicators](s, AnalysisKey(symbol))
}

// SetNews caches headlines for a keyword.
func (s *Store) SetNews(keyword string, items []model.NewsItem) {
	s.Set(NewsKey(keyword), items, s.cfg.TTL.News)
}

// GetNews returns cached headlines for a keyword.
func (s *Store) GetNews(keyword string) ([]model.NewsItem, bool) {
	return GetAs[[]model.NewsItem](s, NewsKey(keyword))
}

// SetUserConfig caches per-user settings.
func (s *Store) SetUserConfig(userID string, settings map[string]any) {
	s.Set(UserConfigKey(userID), settings, s.cfg.TTL.UserConfig)
}

// GetUserConfig returns cached per-user settings.
func (s *Store) GetUserConfig(userID string) (map[string]any, bool) {
	return GetAs[map[string]any](s, UserConfigKey(userID))
}

// Warmup seeds placeholder price entries (zero price) for up to the first
// 20 symbols on every exchange. Returns the number of entries written.
func (s *Store) Warmup(symbols, exchanges []string) int {
	if len(symbols) > maxWarmupSymbols {
		symbols = symbols[:maxWarmupSymbols]
	}
	now := s.now()
	n := 0
	for _, ex := range exchanges {
		for _, sym := range symbols {
			s.Set(PriceKey(ex, sym), model.Ticker{Symbol: sym, Exchange: ex, Timestamp: now}, ttlWarmup)
			n++
		}
	}
	s.log.Info("cache warmup complete", "entries", n)
	return n
}
