// Package engine owns the per-symbol price windows and turns them into
// cached, published indicator snapshots.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"crypto-ai-trading/internal/bus"
	"crypto-ai-trading/internal/cache"
	"crypto-ai-trading/internal/feed"
	"crypto-ai-trading/internal/indicator"
	"crypto-ai-trading/internal/logger"
	"crypto-ai-trading/internal/metrics"
	"crypto-ai-trading/internal/model"
	"crypto-ai-trading/internal/window"
)

// ErrUnknownSymbol is returned for symbols that have never received data.
var ErrUnknownSymbol = errors.New("engine: unknown symbol")

// Publisher forwards computed snapshots to an external store.
type Publisher interface {
	Publish(ctx context.Context, ti model.TechnicalIndicators) error
}

// Config configures a Service.
type Config struct {
	Exchange       string // venue name used in cache keys
	Interval       string // candle interval cached under ohlcv keys
	WindowCapacity int
	BusBuffer      int // per-subscriber buffer of the snapshot and ticker buses
}

// Service is safe for concurrent use.
type Service struct {
	cfg     Config
	windows *window.Registry
	agg     *indicator.Aggregator
	cache   *cache.Store
	log     *slog.Logger

	snapshots *bus.FanOut[model.TechnicalIndicators]
	tickers   *bus.FanOut[model.Ticker]

	pub     Publisher
	alerter *Alerter
	m       *metrics.Metrics
}

// Option customizes a Service.
type Option func(*Service)

// WithPublisher republishes every computed snapshot.
func WithPublisher(p Publisher) Option { return func(s *Service) { s.pub = p } }

// WithAlerter checks every computed snapshot for recommendation changes.
func WithAlerter(a *Alerter) Option { return func(s *Service) { s.alerter = a } }

// WithMetrics records compute and ingest metrics.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.m = m } }

// New creates a Service.
func New(cfg Config, agg *indicator.Aggregator, store *cache.Store, log *slog.Logger, opts ...Option) *Service {
	if cfg.Interval == "" {
		cfg.Interval = feed.DefaultInterval
	}
	if cfg.BusBuffer <= 0 {
		cfg.BusBuffer = 64
	}
	s := &Service{
		cfg:       cfg,
		windows:   window.NewRegistry(cfg.WindowCapacity),
		agg:       agg,
		cache:     store,
		log:       log,
		snapshots: bus.New[model.TechnicalIndicators](cfg.BusBuffer),
		tickers:   bus.New[model.Ticker](cfg.BusBuffer),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.m != nil {
		s.snapshots.OnDrop = func(i int) { s.m.FanoutDropsTotal.WithLabelValues(fmt.Sprintf("snapshots-%d", i)).Inc() }
		s.tickers.OnDrop = func(i int) { s.m.FanoutDropsTotal.WithLabelValues(fmt.Sprintf("tickers-%d", i)).Inc() }
	}
	return s
}

// Exchange returns the configured venue name.
func (s *Service) Exchange() string { return s.cfg.Exchange }

// Cache returns the backing store.
func (s *Service) Cache() *cache.Store { return s.cache }

// Subscribe returns a channel receiving every computed snapshot.
func (s *Service) Subscribe() <-chan model.TechnicalIndicators { return s.snapshots.Subscribe() }

// SubscribeTickers returns a channel receiving every polled ticker.
func (s *Service) SubscribeTickers() <-chan model.Ticker { return s.tickers.Subscribe() }

// Close closes the subscription channels.
func (s *Service) Close() {
	s.snapshots.Close()
	s.tickers.Close()
}

// Ingest adds one point to symbol's window and invalidates its cached
// analysis. Returns the window length.
func (s *Service) Ingest(symbol string, p model.PricePoint) int {
	n := s.windows.Add(symbol, p)
	s.cache.Delete(cache.AnalysisKey(symbol))
	if s.m != nil {
		s.m.PointsIngested.Inc()
	}
	return n
}

// IngestBatch adds the points newer than symbol's latest point and returns
// how many were added. The cached analysis is invalidated when any were.
func (s *Service) IngestBatch(symbol string, points []model.PricePoint) int {
	added := s.windows.AddNewer(symbol, points)
	if added > 0 {
		s.cache.Delete(cache.AnalysisKey(symbol))
		if s.m != nil {
			s.m.PointsIngested.Add(float64(added))
		}
	}
	return added
}

// Symbols returns every symbol holding data, sorted.
func (s *Service) Symbols() []string { return s.windows.Keys() }

// WindowLen returns the number of points held for symbol.
func (s *Service) WindowLen(symbol string) int { return s.windows.Len(symbol) }

// analyze computes a snapshot for symbol under the window's read lock and
// returns the window version it was computed from.
func (s *Service) analyze(symbol string) (model.TechnicalIndicators, uint64, error) {
	var (
		ti      model.TechnicalIndicators
		version uint64
	)
	start := time.Now()
	ok := s.windows.View(symbol, func(w *window.PriceWindow) {
		ti = s.agg.Compute(symbol, w.Points())
		version = w.Version()
	})
	if !ok {
		return ti, 0, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	if s.m != nil {
		s.m.IndicatorComputeDur.Observe(time.Since(start).Seconds())
		s.m.IndicatorsTotal.WithLabelValues(ti.Overall.Recommendation.String()).Inc()
		if !ti.Complete.RSI {
			s.m.IncompleteTotal.WithLabelValues("rsi").Inc()
		}
		if !ti.Complete.StochRSI {
			s.m.IncompleteTotal.WithLabelValues("stoch_rsi").Inc()
		}
		if !ti.Complete.BMSB {
			s.m.IncompleteTotal.WithLabelValues("bmsb").Inc()
		}
	}
	return ti, version, nil
}

// cacheIfCurrent stores ti unless its window has changed since version.
// The check and the write run under the window's read lock: an ingest
// either lands first and fails the check, or lands after and deletes the
// entry. Reports whether ti was stored.
func (s *Service) cacheIfCurrent(ti model.TechnicalIndicators, version uint64) bool {
	stored := false
	s.windows.View(ti.Symbol, func(w *window.PriceWindow) {
		if w.Version() == version {
			s.cache.SetAnalysis(ti)
			stored = true
		}
	})
	if !stored {
		s.log.Debug("stale analysis not cached", "symbol", ti.Symbol)
	}
	return stored
}

// distribute fans a fresh snapshot out to subscribers, the publisher and
// the alerter.
func (s *Service) distribute(ctx context.Context, ti model.TechnicalIndicators) {
	s.snapshots.Publish(ti)
	if s.pub != nil {
		if err := s.pub.Publish(ctx, ti); err != nil {
			s.log.Warn("publish snapshot failed", append(logger.LogWithTrace(ctx), "symbol", ti.Symbol, "error", err)...)
		}
	}
	if s.alerter != nil {
		s.alerter.Observe(ctx, ti)
	}
}

// Compute recomputes symbol's snapshot, caches it and distributes it.
func (s *Service) Compute(ctx context.Context, symbol string) (model.TechnicalIndicators, error) {
	ti, version, err := s.analyze(symbol)
	if err != nil {
		return ti, err
	}
	s.cacheIfCurrent(ti, version)
	s.distribute(ctx, ti)
	return ti, nil
}

// GetIndicators returns the cached snapshot for symbol, computing it on a
// miss. A snapshot whose window moved on while it was computed is returned
// but not cached.
func (s *Service) GetIndicators(ctx context.Context, symbol string) (model.TechnicalIndicators, error) {
	if ti, ok := cache.GetAs[model.TechnicalIndicators](s.cache, cache.AnalysisKey(symbol)); ok {
		return ti, nil
	}
	return s.Compute(ctx, symbol)
}

// Summary returns the one-line text rendering of symbol's snapshot.
func (s *Service) Summary(ctx context.Context, symbol string) (string, error) {
	ti, err := s.GetIndicators(ctx, symbol)
	if err != nil {
		return "", err
	}
	return indicator.Summary(ti), nil
}

// Tickers returns the cached tickers of the configured exchange, sorted by
// symbol. Placeholder entries without a price are skipped.
func (s *Service) Tickers() []model.Ticker {
	entries := s.cache.GetByPattern(cache.PriceKey(s.cfg.Exchange, "*"))
	out := make([]model.Ticker, 0, len(entries))
	for _, v := range entries {
		if t, ok := v.(model.Ticker); ok && t.IsPriceValid() {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Handle consumes one poll result: market data is cached, new candles are
// ingested, and the snapshot is recomputed.
func (s *Service) Handle(ctx context.Context, snap feed.Snapshot) {
	exchange := snap.Exchange
	if exchange == "" {
		exchange = s.cfg.Exchange
	}
	interval := snap.Interval
	if interval == "" {
		interval = s.cfg.Interval
	}

	if snap.Ticker.IsPriceValid() {
		t := snap.Ticker
		t.Exchange = exchange
		s.cache.SetPrice(t)
		s.tickers.Publish(t)
	}
	if len(snap.Candles) > 0 {
		s.cache.SetOHLCV(exchange, snap.Symbol, interval, snap.Candles)
	}
	if snap.OrderBook != nil {
		s.cache.SetOrderBook(*snap.OrderBook)
	}

	added := s.IngestBatch(snap.Symbol, snap.Candles)
	if added == 0 && s.windows.Len(snap.Symbol) > 0 {
		if _, cached := s.cache.GetAnalysis(snap.Symbol); cached {
			return
		}
	}
	if _, err := s.Compute(ctx, snap.Symbol); err != nil {
		s.log.Debug("compute skipped", append(logger.LogWithTrace(ctx), "symbol", snap.Symbol, "error", err)...)
	}
}
