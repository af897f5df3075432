package indicator

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"crypto-ai-trading/internal/model"
)

// Aggregation thresholds.
const (
	directionalThreshold = 0.5 // |netScore| above this picks a direction
	strongThreshold      = 0.7 // confidence above this upgrades to strong_*
	weightTolerance      = 1e-9
)

// Weights are the contributions of each indicator to the net score.
// They must be non-negative and sum to 1.
type Weights struct {
	RSI      float64 `yaml:"rsi"`
	StochRSI float64 `yaml:"stoch_rsi"`
	BMSB     float64 `yaml:"bmsb"`
}

// DefaultWeights returns the 0.35/0.30/0.35 split.
func DefaultWeights() Weights {
	return Weights{RSI: 0.35, StochRSI: 0.30, BMSB: 0.35}
}

// Valid reports whether the weights are non-negative and sum to 1.
func (w Weights) Valid() bool {
	if w.RSI < 0 || w.StochRSI < 0 || w.BMSB < 0 {
		return false
	}
	return math.Abs(w.RSI+w.StochRSI+w.BMSB-1) <= weightTolerance
}

// RSICalculator produces an RSI reading from a window.
type RSICalculator interface {
	Calculate(points []model.PricePoint) (model.RSIResult, bool)
}

// StochCalculator produces a Stochastic RSI reading from a window.
type StochCalculator interface {
	Calculate(points []model.PricePoint) (model.StochRSIResult, bool)
}

// BandCalculator produces a support band reading from a window.
type BandCalculator interface {
	Calculate(points []model.PricePoint) (model.BandResult, bool)
}

// Config bundles the configuration of every engine behind an Aggregator.
type Config struct {
	RSI      RSIConfig      `yaml:"rsi"`
	StochRSI StochRSIConfig `yaml:"stoch_rsi"`
	Band     BandConfig     `yaml:"bmsb"`
	Weights  Weights        `yaml:"weights"`
}

// DefaultConfig returns the canonical configuration for all engines.
func DefaultConfig() Config {
	return Config{
		RSI:      DefaultRSIConfig(),
		StochRSI: DefaultStochRSIConfig(),
		Band:     DefaultBandConfig(),
		Weights:  DefaultWeights(),
	}
}

// Aggregator runs the three engines over a window and combines their
// readings into one TechnicalIndicators snapshot.
type Aggregator struct {
	rsi     RSICalculator
	stoch   StochCalculator
	band    BandCalculator
	weights Weights
	log     *slog.Logger
	now     func() time.Time

	// OnPanic, if set, is called after a recovered engine failure.
	OnPanic func(symbol string)
}

// New builds an Aggregator with the stock engines for cfg.
func New(cfg Config, log *slog.Logger) *Aggregator {
	return NewAggregator(
		NewRSIEngine(cfg.RSI),
		NewStochRSIEngine(cfg.StochRSI),
		NewBandEngine(cfg.Band),
		cfg.Weights,
		log,
	)
}

// NewAggregator wires arbitrary calculators. Invalid weights fall back to
// DefaultWeights; a nil logger uses slog.Default().
func NewAggregator(rsi RSICalculator, stoch StochCalculator, band BandCalculator, w Weights, log *slog.Logger) *Aggregator {
	if !w.Valid() {
		w = DefaultWeights()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{
		rsi:     rsi,
		stoch:   stoch,
		band:    band,
		weights: w,
		log:     log,
		now:     time.Now,
	}
}

// Weights returns the effective weights.
func (a *Aggregator) Weights() Weights { return a.weights }

// Compute analyses points for symbol. Missing readings are filled with
// neutral defaults and flagged in Complete. A failure inside any engine
// yields a fully neutral snapshot instead of propagating.
func (a *Aggregator) Compute(symbol string, points []model.PricePoint) (ti model.TechnicalIndicators) {
	ts, price := a.now(), 0.0
	if n := len(points); n > 0 {
		ts, price = points[n-1].Timestamp, points[n-1].Close
	}

	defer func() {
		if r := recover(); r != nil {
			a.log.Error("indicator compute failed",
				slog.String("symbol", symbol),
				slog.Int("points", len(points)),
				slog.String("panic", fmt.Sprint(r)))
			ti = Neutral(symbol, ts, price)
			if a.OnPanic != nil {
				a.OnPanic(symbol)
			}
		}
	}()

	ti = Neutral(symbol, ts, price)

	if r, ok := a.rsi.Calculate(points); ok {
		ti.RSI, ti.Complete.RSI = r, true
	}
	if s, ok := a.stoch.Calculate(points); ok {
		ti.StochRSI, ti.Complete.StochRSI = s, true
	}
	if b, ok := a.band.Calculate(points); ok {
		ti.BMSB, ti.Complete.BMSB = b, true
	}

	ti.Overall = Combine(ti.RSI, ti.StochRSI, ti.BMSB, a.weights)
	return ti
}

// Neutral returns a snapshot with every member at its neutral default:
// RSI 50, %K = %D = 50, and a zero-width band at price.
func Neutral(symbol string, ts time.Time, price float64) model.TechnicalIndicators {
	return model.TechnicalIndicators{
		Symbol: symbol,
		RSI: model.RSIResult{
			Timestamp: ts,
			Value:     50,
			Signal:    model.RSINeutral,
			Strength:  model.StrengthWeak,
		},
		StochRSI: model.StochRSIResult{
			Timestamp: ts,
			K:         50,
			D:         50,
			Signal:    model.StochNeutral,
		},
		BMSB: model.BandResult{
			Timestamp:    ts,
			ShortMA:      price,
			LongMA:       price,
			CurrentPrice: price,
			Position:     model.PositionBetween,
			Signal:       model.BiasNeutral,
			Strength:     50,
		},
		Overall: model.Overall{
			Signal:         model.BiasNeutral,
			Recommendation: model.RecommendHold,
		},
		Timestamp: ts,
	}
}

// Combine weighs the directional bias of each reading into the overall
// signal, confidence and recommendation.
func Combine(rsi model.RSIResult, stoch model.StochRSIResult, band model.BandResult, w Weights) model.Overall {
	net := w.RSI*score(RSIBias(rsi)) +
		w.StochRSI*score(StochBias(stoch)) +
		w.BMSB*score(band.Signal)

	out := model.Overall{
		NetScore:   net,
		Confidence: math.Abs(net),
		Signal:     model.BiasNeutral,
	}
	switch {
	case net > directionalThreshold:
		out.Signal = model.BiasBullish
	case net < -directionalThreshold:
		out.Signal = model.BiasBearish
	}
	out.Recommendation = recommend(out.Signal, out.Confidence)
	return out
}

// RSIBias reads RSI as momentum: an overbought market is trending up.
func RSIBias(r model.RSIResult) model.Bias {
	switch r.Signal {
	case model.RSIOverbought:
		return model.BiasBullish
	case model.RSIOversold:
		return model.BiasBearish
	default:
		return model.BiasNeutral
	}
}

// StochBias maps crossover signals directly. Without a crossover, a reading
// pinned in an extreme zone follows the zone while %K holds at or beyond %D.
func StochBias(s model.StochRSIResult) model.Bias {
	switch s.Signal {
	case model.StochBuy:
		return model.BiasBullish
	case model.StochSell:
		return model.BiasBearish
	}
	switch {
	case s.K >= stochOverbought && s.K >= s.D:
		return model.BiasBullish
	case s.K <= stochOversold && s.K <= s.D:
		return model.BiasBearish
	default:
		return model.BiasNeutral
	}
}

func score(b model.Bias) float64 {
	switch b {
	case model.BiasBullish:
		return 1
	case model.BiasBearish:
		return -1
	default:
		return 0
	}
}

func recommend(signal model.Bias, confidence float64) model.Recommendation {
	strong := confidence > strongThreshold
	switch signal {
	case model.BiasBullish:
		if strong {
			return model.RecommendStrongBuy
		}
		return model.RecommendBuy
	case model.BiasBearish:
		if strong {
			return model.RecommendStrongSell
		}
		return model.RecommendSell
	default:
		return model.RecommendHold
	}
}
