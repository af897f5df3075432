package indicator

import (
	"crypto-ai-trading/internal/model"
)

// Stochastic RSI defaults.
const (
	DefaultStochPeriod = 14
	DefaultKPeriod     = 3
	DefaultDPeriod     = 3

	stochOversold   = 20.0
	stochOverbought = 80.0
)

// StochRSIConfig parameterizes StochRSIEngine.
type StochRSIConfig struct {
	RSIPeriod   int `yaml:"rsi_period"`
	StochPeriod int `yaml:"stoch_period"`
	KPeriod     int `yaml:"k_period"`
	DPeriod     int `yaml:"d_period"`
}

// DefaultStochRSIConfig returns the canonical 14/14/3/3 configuration.
func DefaultStochRSIConfig() StochRSIConfig {
	return StochRSIConfig{
		RSIPeriod:   DefaultRSIPeriod,
		StochPeriod: DefaultStochPeriod,
		KPeriod:     DefaultKPeriod,
		DPeriod:     DefaultDPeriod,
	}
}

func (c StochRSIConfig) normalize() StochRSIConfig {
	d := DefaultStochRSIConfig()
	if c.RSIPeriod <= 0 {
		c.RSIPeriod = d.RSIPeriod
	}
	if c.StochPeriod <= 0 {
		c.StochPeriod = d.StochPeriod
	}
	if c.KPeriod <= 0 {
		c.KPeriod = d.KPeriod
	}
	if c.DPeriod <= 0 {
		c.DPeriod = d.DPeriod
	}
	return c
}

// MinPoints is the fewest points that yield one %D value:
// RSIPeriod+1 points give the first RSI, and each later stage consumes
// (period-1) values of the stage before it.
func (c StochRSIConfig) MinPoints() int {
	return c.RSIPeriod + c.StochPeriod + c.KPeriod + c.DPeriod - 2
}

// StochRSIEngine computes the stochastic oscillator of RSI.
type StochRSIEngine struct {
	cfg StochRSIConfig
}

// NewStochRSIEngine creates an engine. Invalid periods fall back to defaults.
func NewStochRSIEngine(cfg StochRSIConfig) *StochRSIEngine {
	return &StochRSIEngine{cfg: cfg.normalize()}
}

// Config returns the effective configuration.
func (e *StochRSIEngine) Config() StochRSIConfig { return e.cfg }

// MinPoints is the number of points needed for one reading.
func (e *StochRSIEngine) MinPoints() int { return e.cfg.MinPoints() }

// Calculate returns %K/%D for the newest point.
// ok is false when fewer than MinPoints points are given.
func (e *StochRSIEngine) Calculate(points []model.PricePoint) (model.StochRSIResult, bool) {
	if len(points) < e.cfg.MinPoints() {
		return model.StochRSIResult{}, false
	}
	ks, ds := e.series(model.Closes(points))
	if len(ds) == 0 {
		return model.StochRSIResult{}, false
	}
	k, d := ks[len(ks)-1], ds[len(ds)-1]

	return model.StochRSIResult{
		Timestamp:  points[len(points)-1].Timestamp,
		K:          k,
		D:          d,
		Signal:     stochSignal(k, d),
		Divergence: DetectDivergence(points, ks),
	}, true
}

// series returns the %K and %D histories, each aligned so that the last
// element corresponds to the last close.
func (e *StochRSIEngine) series(closes []float64) (ks, ds []float64) {
	rsi := rsiSeries(closes, e.cfg.RSIPeriod)
	if len(rsi) < e.cfg.StochPeriod {
		return nil, nil
	}

	kSMA := NewSMA(e.cfg.KPeriod)
	dSMA := NewSMA(e.cfg.DPeriod)
	for i := e.cfg.StochPeriod - 1; i < len(rsi); i++ {
		kSMA.Update(stochRaw(rsi[i-e.cfg.StochPeriod+1 : i+1]))
		if !kSMA.Ready() {
			continue
		}
		k := clamp(kSMA.Value()*100, 0, 100)
		ks = append(ks, k)

		dSMA.Update(k)
		if dSMA.Ready() {
			ds = append(ds, clamp(dSMA.Value(), 0, 100))
		}
	}
	return ks, ds
}

// stochRaw positions the newest value of window within its range, in [0,1].
// A flat window has no range: it reads 0, except when pinned at the RSI
// ceiling, which reads 1.
func stochRaw(window []float64) float64 {
	lo, hi := window[0], window[0]
	for _, v := range window[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	last := window[len(window)-1]
	if hi == lo {
		if hi >= 100 {
			return 1
		}
		return 0
	}
	return (last - lo) / (hi - lo)
}

func stochSignal(k, d float64) model.StochSignal {
	switch {
	case k > d && k < stochOversold && d < stochOversold:
		return model.StochBuy
	case k < d && k > stochOverbought && d > stochOverbought:
		return model.StochSell
	default:
		return model.StochNeutral
	}
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
