package indicator

import (
	"io"
	"log/slog"
	"math"
	"testing"

	"crypto-ai-trading/internal/model"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type panickingRSI struct{}

func (panickingRSI) Calculate([]model.PricePoint) (model.RSIResult, bool) {
	panic("boom")
}

func TestAggregator_EndToEnd_StrongBuy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StochRSI = StochRSIConfig{RSIPeriod: 14, StochPeriod: 3, KPeriod: 3, DPeriod: 3}
	agg := New(cfg, quietLogger())

	pts := series(ramp(100, 1, 21)...)
	ti := agg.Compute("BTC/USDT", pts)

	if !ti.Complete.All() {
		t.Fatalf("expected all members computed: %+v", ti.Complete)
	}
	assertClose(t, "rsi", ti.RSI.Value, 100, 1e-9)
	assertClose(t, "stoch K", ti.StochRSI.K, 100, 1e-9)
	assertClose(t, "stoch D", ti.StochRSI.D, 100, 1e-9)
	if ti.BMSB.Signal != model.BiasBullish {
		t.Errorf("bmsb signal = %v, want bullish", ti.BMSB.Signal)
	}
	if ti.Overall.Signal != model.BiasBullish {
		t.Errorf("overall signal = %v, want bullish", ti.Overall.Signal)
	}
	if ti.Overall.Recommendation != model.RecommendStrongBuy {
		t.Errorf("recommendation = %v, want strong_buy", ti.Overall.Recommendation)
	}
	if ti.Overall.Confidence <= 0.7 {
		t.Errorf("confidence = %v, want > 0.7", ti.Overall.Confidence)
	}
	if ti.Symbol != "BTC/USDT" || !ti.Timestamp.Equal(pts[20].Timestamp) {
		t.Errorf("identity fields wrong: %s %v", ti.Symbol, ti.Timestamp)
	}
}

func TestAggregator_MissingStochUsesNeutralDefaults(t *testing.T) {
	agg := New(DefaultConfig(), quietLogger())
	ti := agg.Compute("ETH/USDT", series(ramp(100, 1, 21)...))

	if ti.Complete.StochRSI {
		t.Fatal("stoch should be absent with 21 points and default periods")
	}
	if !ti.Complete.RSI || !ti.Complete.BMSB {
		t.Fatalf("rsi and bmsb should be computed: %+v", ti.Complete)
	}
	if ti.StochRSI.K != 50 || ti.StochRSI.D != 50 || ti.StochRSI.Signal != model.StochNeutral {
		t.Errorf("stoch default = %+v", ti.StochRSI)
	}
	// 0.35 + 0.35 is directional but not above the strong threshold.
	if ti.Overall.Recommendation != model.RecommendBuy {
		t.Errorf("recommendation = %v, want buy (netScore=%v)", ti.Overall.Recommendation, ti.Overall.NetScore)
	}
}

func TestAggregator_EmptyWindowIsNeutral(t *testing.T) {
	agg := New(DefaultConfig(), quietLogger())
	ti := agg.Compute("SOL/USDT", nil)

	if ti.Complete.RSI || ti.Complete.StochRSI || ti.Complete.BMSB {
		t.Errorf("nothing should be complete: %+v", ti.Complete)
	}
	if ti.RSI.Value != 50 || ti.RSI.Strength != model.StrengthWeak {
		t.Errorf("rsi default = %+v", ti.RSI)
	}
	if ti.BMSB.Strength != 50 || ti.BMSB.Position != model.PositionBetween {
		t.Errorf("bmsb default = %+v", ti.BMSB)
	}
	if ti.Overall.Recommendation != model.RecommendHold || ti.Overall.Confidence != 0 {
		t.Errorf("overall = %+v", ti.Overall)
	}
}

func TestAggregator_RecoversFromPanic(t *testing.T) {
	agg := NewAggregator(panickingRSI{}, NewStochRSIEngine(DefaultStochRSIConfig()),
		NewBandEngine(DefaultBandConfig()), DefaultWeights(), quietLogger())
	var panicked string
	agg.OnPanic = func(symbol string) { panicked = symbol }

	pts := series(ramp(100, 1, 40)...)
	ti := agg.Compute("BTC/USDT", pts)

	if panicked != "BTC/USDT" {
		t.Errorf("OnPanic symbol = %q", panicked)
	}

	if ti.Overall.Recommendation != model.RecommendHold || ti.Overall.Signal != model.BiasNeutral {
		t.Errorf("expected neutral record, got %+v", ti.Overall)
	}
	if ti.Complete.RSI || ti.Complete.StochRSI || ti.Complete.BMSB {
		t.Errorf("failure record should not be complete: %+v", ti.Complete)
	}
	if ti.BMSB.CurrentPrice != 139 {
		t.Errorf("neutral band should carry latest price, got %v", ti.BMSB.CurrentPrice)
	}
}

func TestAggregator_InvalidWeightsFallBack(t *testing.T) {
	cases := []Weights{
		{RSI: 0.5, StochRSI: 0.5, BMSB: 0.5},
		{RSI: -0.1, StochRSI: 0.6, BMSB: 0.5},
		{},
	}
	for _, w := range cases {
		cfg := DefaultConfig()
		cfg.Weights = w
		if got := New(cfg, quietLogger()).Weights(); got != DefaultWeights() {
			t.Errorf("weights %+v → %+v, want defaults", w, got)
		}
	}
	w := Weights{RSI: 0.2, StochRSI: 0.3, BMSB: 0.5}
	cfg := DefaultConfig()
	cfg.Weights = w
	if got := New(cfg, quietLogger()).Weights(); got != w {
		t.Errorf("valid weights replaced: %+v", got)
	}
}

func TestCombine(t *testing.T) {
	bullRSI := model.RSIResult{Value: 75, Signal: model.RSIOverbought}
	bearRSI := model.RSIResult{Value: 25, Signal: model.RSIOversold}
	neutRSI := model.RSIResult{Value: 50}
	buy := model.StochRSIResult{K: 15, D: 10, Signal: model.StochBuy}
	sell := model.StochRSIResult{K: 85, D: 90, Signal: model.StochSell}
	midStoch := model.StochRSIResult{K: 50, D: 50}
	bullBand := model.BandResult{Signal: model.BiasBullish}
	bearBand := model.BandResult{Signal: model.BiasBearish}
	neutBand := model.BandResult{}

	cases := []struct {
		name   string
		rsi    model.RSIResult
		stoch  model.StochRSIResult
		band   model.BandResult
		signal model.Bias
		rec    model.Recommendation
		net    float64
	}{
		{"all bullish", bullRSI, buy, bullBand, model.BiasBullish, model.RecommendStrongBuy, 1},
		{"all bearish", bearRSI, sell, bearBand, model.BiasBearish, model.RecommendStrongSell, -1},
		{"rsi+band bearish", bearRSI, midStoch, bearBand, model.BiasBearish, model.RecommendSell, -0.7},
		{"stoch+band bullish", neutRSI, buy, bullBand, model.BiasBullish, model.RecommendBuy, 0.65},
		{"only rsi", bullRSI, midStoch, neutBand, model.BiasNeutral, model.RecommendHold, 0.35},
		{"conflict", bullRSI, sell, bearBand, model.BiasNeutral, model.RecommendHold, -0.3},
		{"nothing", neutRSI, midStoch, neutBand, model.BiasNeutral, model.RecommendHold, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := Combine(tc.rsi, tc.stoch, tc.band, DefaultWeights())
			if o.Signal != tc.signal || o.Recommendation != tc.rec {
				t.Errorf("got %v/%v, want %v/%v", o.Signal, o.Recommendation, tc.signal, tc.rec)
			}
			assertClose(t, "netScore", o.NetScore, tc.net, 1e-9)
			assertClose(t, "confidence", o.Confidence, math.Abs(tc.net), 1e-12)
			if o.Confidence < 0 || o.Confidence > 1 {
				t.Errorf("confidence out of range: %v", o.Confidence)
			}
		})
	}
}

func TestStochBias(t *testing.T) {
	cases := []struct {
		s    model.StochRSIResult
		want model.Bias
	}{
		{model.StochRSIResult{K: 15, D: 10, Signal: model.StochBuy}, model.BiasBullish},
		{model.StochRSIResult{K: 85, D: 90, Signal: model.StochSell}, model.BiasBearish},
		{model.StochRSIResult{K: 100, D: 100}, model.BiasBullish},
		{model.StochRSIResult{K: 90, D: 85}, model.BiasBullish},
		{model.StochRSIResult{K: 0, D: 0}, model.BiasBearish},
		{model.StochRSIResult{K: 10, D: 15}, model.BiasBearish},
		{model.StochRSIResult{K: 50, D: 40}, model.BiasNeutral},
		{model.StochRSIResult{K: 85, D: 75}, model.BiasBullish},
	}
	for _, tc := range cases {
		if got := StochBias(tc.s); got != tc.want {
			t.Errorf("StochBias(%+v) = %v, want %v", tc.s, got, tc.want)
		}
	}
}

func TestRSIBias(t *testing.T) {
	if RSIBias(model.RSIResult{Signal: model.RSIOverbought}) != model.BiasBullish ||
		RSIBias(model.RSIResult{Signal: model.RSIOversold}) != model.BiasBearish ||
		RSIBias(model.RSIResult{}) != model.BiasNeutral {
		t.Error("RSIBias mapping mismatch")
	}
}
