// Package indicator provides technical indicator calculations over price windows.
//
// The building blocks (RSI, SMA) are streaming: each Update is O(1), so a full
// history over a window is built in a single pass. The engines on top of them
// (RSIEngine, StochRSIEngine, BandEngine) are stateless and produce one result
// per call; Aggregator combines their outputs into an overall recommendation.
package indicator

// Streamer is the interface for single-series streaming indicators.
type Streamer interface {
	// Name returns the indicator name (e.g., "SMA", "RSI").
	Name() string

	// Update feeds the next value and recalculates.
	Update(v float64)

	// Value returns the current calculated value. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool

	// Peek computes what Value() would be if v were added next,
	// WITHOUT mutating internal state.
	Peek(v float64) float64
}

var (
	_ Streamer = (*RSI)(nil)
	_ Streamer = (*SMA)(nil)
)
