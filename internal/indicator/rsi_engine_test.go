package indicator

import (
	"math"
	"testing"

	"crypto-ai-trading/internal/model"
)

func TestRSIEngine_InsufficientData(t *testing.T) {
	e := NewRSIEngine(DefaultRSIConfig())
	if _, ok := e.Calculate(series(ramp(100, 1, 14)...)); ok {
		t.Error("expected absent result for 14 points with period 14")
	}
	if _, ok := e.Calculate(nil); ok {
		t.Error("expected absent result for empty window")
	}
	if _, ok := e.Calculate(series(ramp(100, 1, 15)...)); !ok {
		t.Error("expected a result for 15 points with period 14")
	}
	if e.MinPoints() != 15 {
		t.Errorf("MinPoints = %d, want 15", e.MinPoints())
	}
}

func TestRSIEngine_Extremes(t *testing.T) {
	e := NewRSIEngine(DefaultRSIConfig())

	up, _ := e.Calculate(series(ramp(100, 1, 21)...))
	assertClose(t, "rsi up", up.Value, 100, 1e-9)
	if up.Signal != model.RSIOverbought || up.Strength != model.StrengthStrong {
		t.Errorf("ascending: signal=%v strength=%v", up.Signal, up.Strength)
	}

	down, _ := e.Calculate(series(ramp(200, -1, 21)...))
	assertClose(t, "rsi down", down.Value, 0, 1e-9)
	if down.Signal != model.RSIOversold || down.Strength != model.StrengthStrong {
		t.Errorf("descending: signal=%v strength=%v", down.Signal, down.Strength)
	}
}

func TestRSIEngine_ValueInRange(t *testing.T) {
	e := NewRSIEngine(RSIConfig{Period: 5, Overbought: 70, Oversold: 30})
	for _, r := range e.History(series(wave(50, 120)...)) {
		if r.Value < 0 || r.Value > 100 {
			t.Fatalf("rsi out of range: %v", r.Value)
		}
	}
}

func TestRSIEngine_ExtremeMagnitudesStayInRange(t *testing.T) {
	cases := map[string][]float64{
		"alternating near max":  {0.01, 1.7e308, 0.01, 1.7e308, 0.01, 1.7e308},
		"falling from max":      {1.7e308, 0.01, 1.7e308, 0.01, 1.7e308, 0.01, 1.7e308},
		"sign flips at max":     {-1.7e308, 1.7e308, -1.7e308, 1.7e308, -1.7e308, 1.7e308},
		"max then subnormals":   {math.MaxFloat64, math.MaxFloat64, 1e-300, math.MaxFloat64, 5e-324, 1},
		"tiny steps after huge": {1e300, 1e300, 1e300, 1e300, 1e300 + 1e290, 1e300},
	}
	e := NewRSIEngine(RSIConfig{Period: 4})
	for name, closes := range cases {
		pts := series(closes...)
		for _, r := range e.History(pts) {
			if math.IsNaN(r.Value) || r.Value < 0 || r.Value > 100 {
				t.Fatalf("%s: rsi out of range: %v", name, r.Value)
			}
		}
		r, ok := e.Calculate(pts)
		if !ok || math.IsNaN(r.Value) || r.Value < 0 || r.Value > 100 {
			t.Fatalf("%s: Calculate = %v ok=%v", name, r.Value, ok)
		}
	}
}

func TestRSIEngine_HistoryMatchesCalculate(t *testing.T) {
	e := NewRSIEngine(DefaultRSIConfig())
	pts := series(wave(100, 80)...)
	hist := e.History(pts)
	if len(hist) != len(pts)-14 {
		t.Fatalf("history len = %d, want %d", len(hist), len(pts)-14)
	}
	last, _ := e.Calculate(pts)
	assertClose(t, "last history value", hist[len(hist)-1].Value, last.Value, 1e-12)
	if !hist[0].Timestamp.Equal(pts[14].Timestamp) {
		t.Errorf("first history timestamp = %v, want %v", hist[0].Timestamp, pts[14].Timestamp)
	}
	for i, r := range hist {
		want := refRSI(model.Closes(pts[:15+i]), 14)
		assertClose(t, "history vs recompute", r.Value, want, 1e-9)
	}
}

func TestRSIEngine_Classification(t *testing.T) {
	e := NewRSIEngine(DefaultRSIConfig())
	cases := []struct {
		v        float64
		signal   model.RSISignal
		strength model.Strength
	}{
		{85, model.RSIOverbought, model.StrengthStrong},
		{80, model.RSIOverbought, model.StrengthStrong},
		{70, model.RSIOverbought, model.StrengthMedium},
		{65, model.RSINeutral, model.StrengthMedium},
		{50, model.RSINeutral, model.StrengthWeak},
		{35, model.RSINeutral, model.StrengthMedium},
		{30, model.RSIOversold, model.StrengthMedium},
		{20, model.RSIOversold, model.StrengthStrong},
	}
	for _, tc := range cases {
		if got := e.classify(tc.v); got != tc.signal {
			t.Errorf("classify(%v) = %v, want %v", tc.v, got, tc.signal)
		}
		if got := rsiStrength(tc.v); got != tc.strength {
			t.Errorf("rsiStrength(%v) = %v, want %v", tc.v, got, tc.strength)
		}
	}
}

func TestRSIEngine_InvalidConfigFallsBack(t *testing.T) {
	cases := []RSIConfig{
		{Period: 0, Overbought: 70, Oversold: 30},
		{Period: -3, Overbought: 30, Oversold: 70},
		{},
	}
	for _, c := range cases {
		got := NewRSIEngine(c).Config()
		if got.Period <= 0 || got.Overbought <= got.Oversold {
			t.Errorf("config %+v normalized to invalid %+v", c, got)
		}
	}
	if got := NewRSIEngine(RSIConfig{Period: 7, Overbought: 75, Oversold: 25}).Config(); got.Period != 7 || got.Overbought != 75 {
		t.Errorf("valid config was altered: %+v", got)
	}
}

// ────────────────────────────────────────────────────────────
// Divergence
// ────────────────────────────────────────────────────────────

func divPoints(lows, highs []float64) []model.PricePoint {
	pts := series(make([]float64, len(lows))...)
	for i := range pts {
		pts[i].Low, pts[i].High = lows[i], highs[i]
	}
	return pts
}

func TestDetectDivergence(t *testing.T) {
	cases := []struct {
		name   string
		lows   []float64
		highs  []float64
		values []float64
		want   model.Divergence
	}{
		{
			name:   "bullish: lower low, higher oscillator below 50",
			lows:   []float64{10, 10, 10, 9},
			highs:  []float64{12, 12, 12, 12},
			values: []float64{30, 30, 35, 40},
			want:   model.DivergenceBullish,
		},
		{
			name:   "bearish: higher high, lower oscillator above 50",
			lows:   []float64{10, 10, 10, 10},
			highs:  []float64{12, 12, 12, 13},
			values: []float64{70, 70, 65, 60},
			want:   model.DivergenceBearish,
		},
		{
			name:   "lower low but oscillator above 50",
			lows:   []float64{10, 10, 10, 9},
			highs:  []float64{12, 12, 12, 12},
			values: []float64{55, 55, 58, 60},
			want:   model.DivergenceNone,
		},
		{
			name:   "confirmation, no divergence",
			lows:   []float64{10, 10, 10, 11},
			highs:  []float64{12, 12, 12, 13},
			values: []float64{50, 55, 58, 60},
			want:   model.DivergenceNone,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DetectDivergence(divPoints(tc.lows, tc.highs), tc.values)
			if got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDetectDivergence_TooFewValues(t *testing.T) {
	pts := divPoints([]float64{10, 10, 10, 9}, []float64{12, 12, 12, 12})
	if got := DetectDivergence(pts, []float64{30, 35, 40}); got != model.DivergenceNone {
		t.Errorf("3 values: got %v, want none", got)
	}
	if got := DetectDivergence(pts[:3], []float64{30, 30, 35, 40}); got != model.DivergenceNone {
		t.Errorf("3 points: got %v, want none", got)
	}
}
