package indicator

import "math"

// RSI calculates the Relative Strength Index using Wilder's smoothing method.
// Update is O(1) per value with no history scans.
type RSI struct {
	period    int
	count     int
	prevClose float64
	avgGain   float64
	avgLoss   float64
	current   float64
}

// NewRSI creates a new RSI indicator with the given period (typically 14).
func NewRSI(period int) *RSI {
	if period <= 0 {
		period = DefaultRSIPeriod
	}
	return &RSI{period: period}
}

func (r *RSI) Name() string { return "RSI" }

func (r *RSI) Update(price float64) {
	r.count++

	if r.count == 1 {
		// First value: just record price, no delta yet
		r.prevClose = price
		return
	}

	gain, loss := split(price - r.prevClose)
	r.prevClose = price

	if r.count <= r.period+1 {
		// Accumulation phase: SMA seed kept as a running mean
		n := float64(r.count - 1)
		r.avgGain += (gain - r.avgGain) / n
		r.avgLoss += (loss - r.avgLoss) / n

		if r.count == r.period+1 {
			r.current = rsiFrom(r.avgGain, r.avgLoss)
		}
		return
	}

	// Wilder's smoothing: avg = (prevAvg*(period-1) + x) / period,
	// rearranged so the product never overflows.
	p := float64(r.period)
	r.avgGain = wilder(r.avgGain, gain, p)
	r.avgLoss = wilder(r.avgLoss, loss, p)
	r.current = rsiFrom(r.avgGain, r.avgLoss)
}

func (r *RSI) Value() float64 { return r.current }
func (r *RSI) Ready() bool    { return r.count > r.period }

// Peek computes what RSI would be with an additional price without mutating state.
func (r *RSI) Peek(price float64) float64 {
	if r.count <= r.period {
		return r.current
	}
	gain, loss := split(price - r.prevClose)
	p := float64(r.period)
	return rsiFrom(wilder(r.avgGain, gain, p), wilder(r.avgLoss, loss, p))
}

// Reset clears the RSI state for reuse.
func (r *RSI) Reset() {
	*r = RSI{period: r.period}
}

func wilder(avg, x, p float64) float64 { return avg + (x-avg)/p }

// split separates a close-to-close change into gain and loss. A change too
// large to represent saturates at MaxFloat64.
func split(delta float64) (gain, loss float64) {
	if delta > 0 {
		return min(delta, math.MaxFloat64), 0
	}
	return 0, min(-delta, math.MaxFloat64)
}

// rsiFrom maps smoothed averages to [0,100]. No losses pins RSI at 100.
func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// rsiSeries returns one RSI value per close from index period onward,
// built in a single streaming pass.
func rsiSeries(closes []float64, period int) []float64 {
	if len(closes) <= period {
		return nil
	}
	r := NewRSI(period)
	out := make([]float64, 0, len(closes)-period)
	for _, c := range closes {
		r.Update(c)
		if r.Ready() {
			out = append(out, r.Value())
		}
	}
	return out
}
