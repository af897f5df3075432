package indicator

import (
	"crypto-ai-trading/internal/model"
)

// RSI engine defaults.
const (
	DefaultRSIPeriod  = 14
	DefaultOverbought = 70.0
	DefaultOversold   = 30.0
)

// divergenceLookback is the number of trailing points compared when looking
// for price/oscillator divergence.
const divergenceLookback = 4

// RSIConfig parameterizes RSIEngine.
type RSIConfig struct {
	Period     int     `yaml:"period"`
	Overbought float64 `yaml:"overbought"`
	Oversold   float64 `yaml:"oversold"`
}

// DefaultRSIConfig returns the canonical 14/70/30 configuration.
func DefaultRSIConfig() RSIConfig {
	return RSIConfig{Period: DefaultRSIPeriod, Overbought: DefaultOverbought, Oversold: DefaultOversold}
}

// normalize replaces invalid fields with defaults.
func (c RSIConfig) normalize() RSIConfig {
	d := DefaultRSIConfig()
	if c.Period <= 0 {
		c.Period = d.Period
	}
	if c.Overbought <= c.Oversold || c.Overbought > 100 || c.Oversold < 0 {
		c.Overbought, c.Oversold = d.Overbought, d.Oversold
	}
	return c
}

// RSIEngine computes RSI readings over a price window.
type RSIEngine struct {
	cfg RSIConfig
}

// NewRSIEngine creates an engine. Invalid config fields fall back to defaults.
func NewRSIEngine(cfg RSIConfig) *RSIEngine {
	return &RSIEngine{cfg: cfg.normalize()}
}

// Config returns the effective configuration.
func (e *RSIEngine) Config() RSIConfig { return e.cfg }

// MinPoints is the number of points needed for one reading.
func (e *RSIEngine) MinPoints() int { return e.cfg.Period + 1 }

// Calculate returns the RSI reading for the newest point.
// ok is false when fewer than Period+1 points are given.
func (e *RSIEngine) Calculate(points []model.PricePoint) (model.RSIResult, bool) {
	values := rsiSeries(model.Closes(points), e.cfg.Period)
	if len(values) == 0 {
		return model.RSIResult{}, false
	}
	res := e.reading(points[len(points)-1], values[len(values)-1])
	res.Divergence = DetectDivergence(points, values)
	return res, true
}

// History returns one reading per point from index Period onward, in order.
// The series is built in a single streaming pass.
func (e *RSIEngine) History(points []model.PricePoint) []model.RSIResult {
	values := rsiSeries(model.Closes(points), e.cfg.Period)
	out := make([]model.RSIResult, len(values))
	offset := len(points) - len(values)
	for i, v := range values {
		out[i] = e.reading(points[offset+i], v)
	}
	return out
}

func (e *RSIEngine) reading(p model.PricePoint, v float64) model.RSIResult {
	return model.RSIResult{
		Timestamp: p.Timestamp,
		Value:     v,
		Signal:    e.classify(v),
		Strength:  rsiStrength(v),
	}
}

func (e *RSIEngine) classify(v float64) model.RSISignal {
	switch {
	case v >= e.cfg.Overbought:
		return model.RSIOverbought
	case v <= e.cfg.Oversold:
		return model.RSIOversold
	default:
		return model.RSINeutral
	}
}

func rsiStrength(v float64) model.Strength {
	switch {
	case v >= 80 || v <= 20:
		return model.StrengthStrong
	case v >= 65 || v <= 35:
		return model.StrengthMedium
	default:
		return model.StrengthWeak
	}
}

// DetectDivergence compares the newest point with the one two steps earlier
// over the trailing four points and oscillator values (0..100 scale):
//
//   - bullish: lower low in price, higher oscillator value, oscillator below 50
//   - bearish: higher high in price, lower oscillator value, oscillator above 50
//
// values[len-1] must correspond to points[len-1].
func DetectDivergence(points []model.PricePoint, values []float64) model.Divergence {
	if len(points) < divergenceLookback || len(values) < divergenceLookback {
		return model.DivergenceNone
	}
	p := points[len(points)-divergenceLookback:]
	v := values[len(values)-divergenceLookback:]

	const cur, prev = 3, 1
	switch {
	case p[cur].Low < p[prev].Low && v[cur] > v[prev] && v[cur] < 50:
		return model.DivergenceBullish
	case p[cur].High > p[prev].High && v[cur] < v[prev] && v[cur] > 50:
		return model.DivergenceBearish
	default:
		return model.DivergenceNone
	}
}
