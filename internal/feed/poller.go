package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"crypto-ai-trading/internal/logger"
	"crypto-ai-trading/internal/model"
)

// Snapshot is everything one poll gathered for a symbol.
type Snapshot struct {
	Symbol    string
	Exchange  string
	Interval  string
	Ticker    model.Ticker
	Candles   []model.PricePoint // closed candles only, oldest first
	OrderBook *model.OrderBook   // nil when the depth request failed or is disabled
}

// Sink consumes poll results.
type Sink interface {
	Handle(ctx context.Context, snap Snapshot)
}

// PollerConfig configures a Poller.
type PollerConfig struct {
	Symbols  []string
	Interval string        // candle interval, e.g. "1m"
	Limit    int           // candles requested per poll
	Depth    int           // order book levels; 0 disables depth polling
	Spec     string        // cron spec, e.g. "@every 15s"
	Timeout  time.Duration // per-cycle deadline
}

// Defaults.
const (
	DefaultPollSpec  = "@every 15s"
	DefaultInterval  = "1m"
	DefaultLimit     = 200
	DefaultDepth     = 20
	defaultPollLimit = 30 * time.Second
)

func (c PollerConfig) withDefaults() PollerConfig {
	if c.Interval == "" {
		c.Interval = DefaultInterval
	}
	if c.Limit <= 0 {
		c.Limit = DefaultLimit
	}
	if c.Spec == "" {
		c.Spec = DefaultPollSpec
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultPollLimit
	}
	return c
}

// Poller periodically pulls every configured symbol from a Feed and hands
// the result to a Sink. Symbols are fetched in parallel.
type Poller struct {
	feed  Feed
	sink  Sink
	cfg   PollerConfig
	width time.Duration
	log   *slog.Logger
	now   func() time.Time
	cron  *cron.Cron

	// OnCycle, if set, is called after each cycle with the number of symbols
	// that failed and the cycle duration.
	OnCycle func(failed int, dur time.Duration)
}

// NewPoller validates cfg and creates a Poller.
func NewPoller(f Feed, sink Sink, cfg PollerConfig, log *slog.Logger) (*Poller, error) {
	cfg = cfg.withDefaults()
	width, err := ParseInterval(cfg.Interval)
	if err != nil {
		return nil, err
	}
	if len(cfg.Symbols) == 0 {
		return nil, errors.New("feed: poller needs at least one symbol")
	}
	return &Poller{
		feed:  f,
		sink:  sink,
		cfg:   cfg,
		width: width,
		log:   log,
		now:   time.Now,
		cron:  cron.New(cron.WithSeconds()),
	}, nil
}

// Start schedules polling on the configured cron spec. The first cycle runs
// when the schedule first fires; call PollOnce beforehand to backfill.
func (p *Poller) Start(ctx context.Context) error {
	if _, err := p.cron.AddFunc(p.cfg.Spec, func() {
		if ctx.Err() != nil {
			return
		}
		p.PollOnce(ctx)
	}); err != nil {
		return fmt.Errorf("register poll schedule %q: %w", p.cfg.Spec, err)
	}
	p.cron.Start()
	p.log.Info("poller started", "spec", p.cfg.Spec, "symbols", p.cfg.Symbols, "interval", p.cfg.Interval)
	return nil
}

// Stop halts the schedule and waits for a running cycle to finish.
func (p *Poller) Stop() {
	<-p.cron.Stop().Done()
	p.log.Info("poller stopped")
}

// PollOnce runs one cycle across all symbols. It returns the joined
// per-symbol errors; symbols that succeeded are still delivered.
func (p *Poller) PollOnce(ctx context.Context) error {
	start := p.now()
	ctx, cancel := context.WithTimeout(logger.WithTraceID(ctx, logger.NewTraceID()), p.cfg.Timeout)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, sym := range p.cfg.Symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			snap, err := p.pollSymbol(ctx, sym)
			if err != nil {
				p.log.Warn("poll failed", append(logger.LogWithTrace(ctx), "symbol", sym, "error", err)...)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return
			}
			p.sink.Handle(ctx, snap)
		}(sym)
	}
	wg.Wait()

	dur := p.now().Sub(start)
	if p.OnCycle != nil {
		p.OnCycle(len(errs), dur)
	}
	p.log.Debug("poll cycle complete", append(logger.LogWithTrace(ctx), "symbols", len(p.cfg.Symbols), "failed", len(errs), "duration", dur)...)
	return errors.Join(errs...)
}

func (p *Poller) pollSymbol(ctx context.Context, symbol string) (Snapshot, error) {
	t, err := p.feed.Ticker(ctx, symbol)
	if err != nil {
		return Snapshot{}, fmt.Errorf("poll %s: %w", symbol, err)
	}
	candles, err := p.feed.Candles(ctx, symbol, p.cfg.Interval, p.cfg.Limit)
	if err != nil {
		return Snapshot{}, fmt.Errorf("poll %s: %w", symbol, err)
	}

	snap := Snapshot{
		Symbol:   symbol,
		Exchange: p.feed.Name(),
		Interval: p.cfg.Interval,
		Ticker:   t,
		Candles:  p.closedOnly(candles),
	}
	if p.cfg.Depth > 0 {
		ob, err := p.feed.OrderBook(ctx, symbol, p.cfg.Depth)
		if err != nil {
			// depth is best-effort
			p.log.Debug("order book unavailable", "symbol", symbol, "error", err)
		} else {
			snap.OrderBook = &ob
		}
	}
	return snap, nil
}

// closedOnly drops trailing candles that have not closed yet.
func (p *Poller) closedOnly(candles []model.PricePoint) []model.PricePoint {
	now := p.now()
	n := len(candles)
	for n > 0 && candles[n-1].Timestamp.Add(p.width).After(now) {
		n--
	}
	return candles[:n]
}
