package indicator

import (
	"math"
	"testing"

	"crypto-ai-trading/internal/model"
)

func TestBand_InsufficientData(t *testing.T) {
	e := NewBandEngine(DefaultBandConfig())
	if _, ok := e.Calculate(series(ramp(100, 1, 20)...)); ok {
		t.Error("expected absent result for 20 points with periods 20/21")
	}
	if _, ok := e.Calculate(series(ramp(100, 1, 21)...)); !ok {
		t.Error("expected a result for 21 points")
	}
}

func TestBand_AscendingIsBullish(t *testing.T) {
	e := NewBandEngine(DefaultBandConfig())
	r, _ := e.Calculate(series(ramp(100, 1, 21)...))

	// SMA20 of 101..120 = 110.5, SMA21 of 100..120 = 110
	assertClose(t, "short", r.ShortMA, 110.5, 1e-9)
	assertClose(t, "long", r.LongMA, 110, 1e-9)
	assertClose(t, "upper", r.Upper(), 110.5, 1e-9)
	assertClose(t, "lower", r.Lower(), 110, 1e-9)
	if r.Position != model.PositionAbove || r.Signal != model.BiasBullish {
		t.Errorf("position=%v signal=%v, want above/bullish", r.Position, r.Signal)
	}
	// distance 9.5 over width 0.5 saturates the bonus
	assertClose(t, "strength", r.Strength, 100, 1e-9)
}

func TestBand_DescendingIsBearish(t *testing.T) {
	e := NewBandEngine(DefaultBandConfig())
	r, _ := e.Calculate(series(ramp(200, -1, 30)...))
	if r.Position != model.PositionBelow || r.Signal != model.BiasBearish {
		t.Errorf("position=%v signal=%v, want below/bearish", r.Position, r.Signal)
	}
	assertClose(t, "strength", r.Strength, 0, 1e-9)
}

func TestBand_FlatIsNeutral(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100
	}
	r, _ := NewBandEngine(DefaultBandConfig()).Calculate(series(closes...))
	if r.Position != model.PositionBetween || r.Signal != model.BiasNeutral {
		t.Errorf("position=%v signal=%v, want between/neutral", r.Position, r.Signal)
	}
	assertClose(t, "strength (zero width)", r.Strength, 50, 1e-12)
}

func TestBand_ExtremeMagnitudesStayInRange(t *testing.T) {
	e := NewBandEngine(BandConfig{ShortPeriod: 2, LongPeriod: 3})
	cases := map[string][]float64{
		"near max":          {1e308, 1.7e308, 1.7e308},
		"dip between highs": {1.7e308, 1.7e308, 1e308, 1.7e308},
		"sign flips":        {-1.7e308, 1.7e308, -1.7e308, 1.7e308},
		"max then small":    {math.MaxFloat64, math.MaxFloat64, 1},
	}
	for name, closes := range cases {
		pts := series(closes...)
		check := func(r model.BandResult) {
			t.Helper()
			if math.IsInf(r.ShortMA, 0) || math.IsInf(r.LongMA, 0) || math.IsNaN(r.ShortMA) || math.IsNaN(r.LongMA) {
				t.Fatalf("%s: averages not finite: short=%v long=%v", name, r.ShortMA, r.LongMA)
			}
			if math.IsNaN(r.Strength) || r.Strength < 0 || r.Strength > 100 {
				t.Fatalf("%s: strength out of range: %v", name, r.Strength)
			}
		}
		for _, h := range e.History(pts) {
			check(h)
		}
		r, ok := e.Calculate(pts)
		if !ok {
			t.Fatalf("%s: expected a reading", name)
		}
		check(r)
	}
}

func TestBandStrength_NonFiniteWidthIsNeutral(t *testing.T) {
	if got := bandStrength(0, math.Inf(1), math.Inf(-1), model.PositionBetween); got != 50 {
		t.Errorf("infinite width: got %v, want 50", got)
	}
	if got := bandStrength(0, math.NaN(), 0, model.PositionBetween); got != 50 {
		t.Errorf("NaN width: got %v, want 50", got)
	}
}

func TestEvaluateBand(t *testing.T) {
	cases := []struct {
		name         string
		price        float64
		short, long  float64
		pos          model.Position
		signal       model.Bias
		wantStrength float64
	}{
		{"mid band", 100.5, 101, 100, model.PositionBetween, model.BiasNeutral, 50},
		{"at lower edge", 100, 101, 100, model.PositionBetween, model.BiasNeutral, 30},
		{"at upper edge", 101, 101, 100, model.PositionBetween, model.BiasNeutral, 70},
		{"above, short>long", 101.5, 101, 100, model.PositionAbove, model.BiasBullish, 62.5},
		{"above, short<long", 105, 100, 101, model.PositionAbove, model.BiasNeutral, 100},
		{"below", 99.5, 101, 100, model.PositionBelow, model.BiasBearish, 37.5},
		{"far below", 80, 101, 100, model.PositionBelow, model.BiasBearish, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := evaluateBand(t0, tc.price, tc.short, tc.long)
			if r.Position != tc.pos || r.Signal != tc.signal {
				t.Errorf("position=%v signal=%v, want %v/%v", r.Position, r.Signal, tc.pos, tc.signal)
			}
			assertClose(t, "strength", r.Strength, tc.wantStrength, 1e-9)
		})
	}
}

func TestBand_HistoryMatchesCalculate(t *testing.T) {
	e := NewBandEngine(DefaultBandConfig())
	pts := series(wave(100, 60)...)
	hist := e.History(pts)
	if len(hist) != 60-21+1 {
		t.Fatalf("history len = %d, want %d", len(hist), 40)
	}
	for i, h := range hist {
		r, _ := e.Calculate(pts[:21+i])
		assertClose(t, "short", h.ShortMA, r.ShortMA, 1e-9)
		assertClose(t, "long", h.LongMA, r.LongMA, 1e-9)
		if h.Position != r.Position || h.Signal != r.Signal {
			t.Fatalf("step %d: history %v/%v vs calculate %v/%v", i, h.Position, h.Signal, r.Position, r.Signal)
		}
	}
}

func TestBand_DetectBreakout(t *testing.T) {
	e := NewBandEngine(DefaultBandConfig())
	flat := make([]float64, 30)
	for i := range flat {
		flat[i] = 100
	}

	up := append(append([]float64{}, flat...), 101, 102, 103, 104)
	if got := e.DetectBreakout(series(up...)); got != model.BreakoutBullish {
		t.Errorf("flat then rally: got %v, want bullish_breakout", got)
	}

	down := append(append([]float64{}, flat...), 99, 98, 97, 96)
	if got := e.DetectBreakout(series(down...)); got != model.BreakoutBearish {
		t.Errorf("flat then drop: got %v, want bearish_breakdown", got)
	}

	if got := e.DetectBreakout(series(ramp(100, 1, 40)...)); got != model.BreakoutNone {
		t.Errorf("steady trend: got %v, want none", got)
	}
	if got := e.DetectBreakout(series(ramp(100, 1, 24)...)); got != model.BreakoutNone {
		t.Errorf("too short: got %v, want none", got)
	}

	r, _ := e.Calculate(series(up...))
	if r.Breakout != model.BreakoutBullish {
		t.Errorf("Calculate did not carry breakout: %v", r.Breakout)
	}
}

func TestBand_HistoricalAccuracy(t *testing.T) {
	e := NewBandEngine(DefaultBandConfig())

	// A steady rally: bullish every step and every next close is higher.
	assertClose(t, "rally accuracy", e.HistoricalAccuracy(series(ramp(100, 1, 60)...), 30), 100, 1e-9)

	// A steady decline: never bullish and never up.
	assertClose(t, "decline accuracy", e.HistoricalAccuracy(series(ramp(200, -1, 60)...), 30), 100, 1e-9)

	if got := e.HistoricalAccuracy(series(ramp(100, 1, 50)...), 30); got != 0 {
		t.Errorf("insufficient data: got %v, want 0", got)
	}
	if got := e.HistoricalAccuracy(series(wave(100, 80)...), 30); got < 0 || got > 100 {
		t.Errorf("accuracy out of range: %v", got)
	}
}
