package feed

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"time"

	"crypto-ai-trading/internal/model"
)

// defaultSimPrices are starting quotes for common pairs; other symbols
// start at 100.
var defaultSimPrices = map[string]float64{
	"BTC": 65000,
	"ETH": 3500,
	"SOL": 150,
	"BNB": 580,
	"XRP": 0.6,
	"ADA": 0.45,
}

// Sim is an offline feed producing a deterministic oscillating walk per
// symbol. The same symbol, seed and clock always yield the same data, so
// repeated polls see a continuous series.
type Sim struct {
	seed int64
	now  func() time.Time
}

// NewSim creates a simulated feed. A nil now uses time.Now.
func NewSim(seed int64, now func() time.Time) *Sim {
	if now == nil {
		now = time.Now
	}
	return &Sim{seed: seed, now: now}
}

func (s *Sim) Name() string { return "sim" }

func basePrice(symbol string) float64 {
	asset := strings.ToUpper(symbol)
	if i := strings.IndexAny(asset, "/-"); i > 0 {
		asset = asset[:i]
	}
	if p, ok := defaultSimPrices[asset]; ok {
		return p
	}
	return 100
}

func (s *Sim) symbolSeed(symbol string) int64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	return int64(h.Sum64()) ^ s.seed
}

// noise returns a value in [-1, 1) fixed for (symbol, bucket).
func (s *Sim) noise(symbol string, bucket int64) float64 {
	rng := rand.New(rand.NewSource(s.symbolSeed(symbol) ^ (bucket * 0x9E3779B1)))
	return rng.Float64()*2 - 1
}

// priceAt is the close of the step-th bucket of the given width.
func (s *Sim) priceAt(symbol string, width time.Duration, step int64) float64 {
	x := float64(step)
	phase := float64(s.symbolSeed(symbol)%1000) / 100
	swing := 0.03*math.Sin(x/20+phase) + 0.01*math.Sin(x/7+phase)
	// wider candles move more
	scale := math.Sqrt(width.Minutes())
	return basePrice(symbol) * math.Exp(swing*scale) * (1 + 0.001*s.noise(symbol, step))
}

func bucketOf(t time.Time, width time.Duration) int64 {
	return t.UnixNano() / int64(width)
}

// Ticker returns the current simulated 1m price and its 24h change.
func (s *Sim) Ticker(ctx context.Context, symbol string) (model.Ticker, error) {
	if err := ctx.Err(); err != nil {
		return model.Ticker{}, err
	}
	now := s.now().UTC()
	step := bucketOf(now, time.Minute)
	price := s.priceAt(symbol, time.Minute, step)
	dayAgo := s.priceAt(symbol, time.Minute, step-24*60)
	return model.Ticker{
		Symbol:    symbol,
		Exchange:  s.Name(),
		Price:     price,
		Volume24h: 1000 * (2 + s.noise(symbol, step/60)),
		Change24h: (price - dayAgo) / dayAgo * 100,
		Timestamp: now,
	}, nil
}

// Candles returns the last limit closed candles of interval, oldest first.
func (s *Sim) Candles(ctx context.Context, symbol, interval string, limit int) ([]model.PricePoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	width, err := ParseInterval(interval)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("candles %s: %w", symbol, ErrNoData)
	}

	last := bucketOf(s.now(), width) - 1 // most recent closed bucket
	out := make([]model.PricePoint, 0, limit)
	for step := last - int64(limit) + 1; step <= last; step++ {
		open := s.priceAt(symbol, width, step-1)
		cls := s.priceAt(symbol, width, step)
		wick := 0.0005 * (1 + math.Abs(s.noise(symbol, step+1)))
		out = append(out, model.PricePoint{
			Timestamp: time.Unix(0, step*int64(width)).UTC(),
			Open:      open,
			High:      math.Max(open, cls) * (1 + wick),
			Low:       math.Min(open, cls) * (1 - wick),
			Close:     cls,
			Volume:    100 * (2 + s.noise(symbol, -step)),
		})
	}
	return out, nil
}

// OrderBook returns depth levels spaced one basis point apart around the
// current price.
func (s *Sim) OrderBook(ctx context.Context, symbol string, depth int) (model.OrderBook, error) {
	t, err := s.Ticker(ctx, symbol)
	if err != nil {
		return model.OrderBook{}, err
	}
	if depth <= 0 {
		depth = 1
	}
	ob := model.OrderBook{
		Symbol:    symbol,
		Exchange:  s.Name(),
		Bids:      make([]model.BookLevel, depth),
		Asks:      make([]model.BookLevel, depth),
		Timestamp: t.Timestamp,
	}
	step := bucketOf(t.Timestamp, time.Minute)
	for i := 0; i < depth; i++ {
		off := float64(i+1) * 0.0001
		amt := 1 + math.Abs(s.noise(symbol, step+int64(i)))*5
		ob.Bids[i] = model.BookLevel{Price: t.Price * (1 - off), Amount: amt}
		ob.Asks[i] = model.BookLevel{Price: t.Price * (1 + off), Amount: amt}
	}
	return ob, nil
}
