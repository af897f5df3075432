package indicator

// SMA calculates Simple Moving Average over a rolling window.
// Uses a preallocated circular buffer for zero-allocation hot path.
// Values are accumulated pre-divided by the period so the running
// total stays finite for any finite input.
type SMA struct {
	period  int
	buf     []float64 // preallocated circular buffer of v/period
	idx     int       // current write position
	count   int       // total values received
	sum     float64
	current float64
}

// NewSMA creates a new SMA indicator with the given period.
// Non-positive periods are treated as 1.
func NewSMA(period int) *SMA {
	if period <= 0 {
		period = 1
	}
	return &SMA{
		period: period,
		buf:    make([]float64, period),
	}
}

func (s *SMA) Name() string { return "SMA" }

func (s *SMA) Update(v float64) {
	if s.count >= s.period {
		// Subtract the oldest value being overwritten
		s.sum -= s.buf[s.idx]
	}

	scaled := v / float64(s.period)
	s.buf[s.idx] = scaled
	s.sum += scaled
	s.idx = (s.idx + 1) % s.period
	s.count++

	if s.count >= s.period {
		s.current = s.sum
	}
}

func (s *SMA) Value() float64 { return s.current }
func (s *SMA) Ready() bool    { return s.count >= s.period }

// Peek computes what Value() would be with an additional value without mutating state.
func (s *SMA) Peek(v float64) float64 {
	p := float64(s.period)
	if s.count < s.period {
		// Not fully ready; return partial average including this value
		n := float64(s.count + 1)
		return s.sum*(p/n) + v/n
	}
	// Preview: replace the oldest value (at idx) with v
	return s.sum - s.buf[s.idx] + v/p
}

// Reset clears the SMA state for reuse.
func (s *SMA) Reset() {
	s.idx = 0
	s.count = 0
	s.sum = 0
	s.current = 0
	for i := range s.buf {
		s.buf[i] = 0
	}
}

// mean returns the arithmetic mean of the last n values of xs.
func mean(xs []float64, n int) float64 {
	if n <= 0 || n > len(xs) {
		return 0
	}
	avg := 0.0
	for _, x := range xs[len(xs)-n:] {
		avg += x / float64(n)
	}
	return avg
}
