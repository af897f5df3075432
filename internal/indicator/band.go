package indicator

import (
	"math"
	"time"

	"crypto-ai-trading/internal/model"
)

// Support band defaults.
const (
	DefaultShortPeriod = 20
	DefaultLongPeriod  = 21

	// breakoutLookback is how many steps back the band position is compared.
	breakoutLookback = 4
)

// BandConfig parameterizes BandEngine.
type BandConfig struct {
	ShortPeriod int `yaml:"short_period"`
	LongPeriod  int `yaml:"long_period"`
}

// DefaultBandConfig returns the canonical 20/21 configuration.
func DefaultBandConfig() BandConfig {
	return BandConfig{ShortPeriod: DefaultShortPeriod, LongPeriod: DefaultLongPeriod}
}

func (c BandConfig) normalize() BandConfig {
	if c.ShortPeriod <= 0 {
		c.ShortPeriod = DefaultShortPeriod
	}
	if c.LongPeriod <= 0 {
		c.LongPeriod = DefaultLongPeriod
	}
	return c
}

// BandEngine computes the Bull Market Support Band: two simple moving
// averages whose envelope acts as dynamic support/resistance.
type BandEngine struct {
	cfg BandConfig
}

// NewBandEngine creates an engine. Invalid periods fall back to defaults.
func NewBandEngine(cfg BandConfig) *BandEngine {
	return &BandEngine{cfg: cfg.normalize()}
}

// Config returns the effective configuration.
func (e *BandEngine) Config() BandConfig { return e.cfg }

// MinPoints is the number of points needed for one reading.
func (e *BandEngine) MinPoints() int { return max(e.cfg.ShortPeriod, e.cfg.LongPeriod) }

// Calculate returns the band reading for the newest point.
// ok is false when fewer than MinPoints points are given.
func (e *BandEngine) Calculate(points []model.PricePoint) (model.BandResult, bool) {
	if len(points) < e.MinPoints() {
		return model.BandResult{}, false
	}
	closes := model.Closes(points)
	last := points[len(points)-1]
	res := evaluateBand(last.Timestamp, last.Close, mean(closes, e.cfg.ShortPeriod), mean(closes, e.cfg.LongPeriod))
	res.Breakout = e.DetectBreakout(points)
	return res, true
}

// History returns one band reading per point from index MinPoints-1 onward,
// built with rolling averages in a single pass. Breakout is not populated.
func (e *BandEngine) History(points []model.PricePoint) []model.BandResult {
	if len(points) < e.MinPoints() {
		return nil
	}
	short := NewSMA(e.cfg.ShortPeriod)
	long := NewSMA(e.cfg.LongPeriod)
	out := make([]model.BandResult, 0, len(points)-e.MinPoints()+1)
	for _, p := range points {
		short.Update(p.Close)
		long.Update(p.Close)
		if short.Ready() && long.Ready() {
			out = append(out, evaluateBand(p.Timestamp, p.Close, short.Value(), long.Value()))
		}
	}
	return out
}

// DetectBreakout compares the band position breakoutLookback steps ago with
// the newest one. Crossing up through the band is a bullish breakout,
// crossing down a bearish breakdown.
func (e *BandEngine) DetectBreakout(points []model.PricePoint) model.Breakout {
	hist := e.History(points)
	if len(hist) <= breakoutLookback {
		return model.BreakoutNone
	}
	was := hist[len(hist)-1-breakoutLookback].Position
	now := hist[len(hist)-1].Position

	switch {
	case was != model.PositionAbove && now == model.PositionAbove:
		return model.BreakoutBullish
	case was != model.PositionBelow && now == model.PositionBelow:
		return model.BreakoutBearish
	default:
		return model.BreakoutNone
	}
}

// HistoricalAccuracy back-tests the band signal over the last days steps:
// a bullish signal predicts the next close is higher, anything else predicts
// it is not. Returns the hit rate as a percentage, or 0 when fewer than
// days+MinPoints points are given.
func (e *BandEngine) HistoricalAccuracy(points []model.PricePoint, days int) float64 {
	if days <= 0 || len(points) < days+e.MinPoints() {
		return 0
	}
	hist := e.History(points)
	offset := len(points) - len(hist)

	correct := 0
	for j := len(hist) - days - 1; j < len(hist)-1; j++ {
		up := points[offset+j+1].Close > points[offset+j].Close
		if (hist[j].Signal == model.BiasBullish) == up {
			correct++
		}
	}
	return float64(correct) / float64(days) * 100
}

func evaluateBand(ts time.Time, price, short, long float64) model.BandResult {
	upper, lower := max(short, long), min(short, long)

	res := model.BandResult{
		Timestamp:    ts,
		ShortMA:      short,
		LongMA:       long,
		CurrentPrice: price,
		Position:     model.PositionBetween,
	}
	switch {
	case price > upper:
		res.Position = model.PositionAbove
	case price < lower:
		res.Position = model.PositionBelow
	}

	switch {
	case price > upper && short > long:
		res.Signal = model.BiasBullish
	case price < lower:
		res.Signal = model.BiasBearish
	}

	res.Strength = bandStrength(price, upper, lower, res.Position)
	return res
}

// bandStrength scores 0..100 how firmly price sits relative to the band,
// scaled by the band width. 50 is neutral.
func bandStrength(price, upper, lower float64, pos model.Position) float64 {
	bw := upper - lower
	if bw == 0 || math.IsInf(bw, 0) || math.IsNaN(bw) {
		return 50
	}
	var s float64
	switch pos {
	case model.PositionAbove:
		s = 50 + min(50, (price-upper)/bw*25)
	case model.PositionBelow:
		s = 50 - min(50, (lower-price)/bw*25)
	default:
		s = 30 + (price-lower)/bw*40
	}
	return clamp(s, 0, 100)
}
