package model

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"
)

func TestFromPrice(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p := FromPrice(ts, 42.5)
	if p.Open != 42.5 || p.High != 42.5 || p.Low != 42.5 || p.Close != 42.5 {
		t.Errorf("expected all prices 42.5, got %+v", p)
	}
	if p.Volume != 0 {
		t.Errorf("expected zero volume, got %v", p.Volume)
	}
	if !p.Timestamp.Equal(ts) {
		t.Errorf("timestamp mismatch: %v", p.Timestamp)
	}
}

func TestEnum_JSONUsesNames(t *testing.T) {
	ti := TechnicalIndicators{
		Symbol: "BTC/USDT",
		RSI:    RSIResult{Value: 75, Signal: RSIOverbought, Strength: StrengthMedium},
		BMSB:   BandResult{Position: PositionAbove, Signal: BiasBullish, Breakout: BreakoutBullish},
		Overall: Overall{
			Signal:         BiasBullish,
			Recommendation: RecommendStrongBuy,
		},
	}
	b, err := json.Marshal(ti)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{`"overbought"`, `"medium"`, `"above"`, `"bullish_breakout"`, `"strong_buy"`, `"none"`} {
		if !strings.Contains(string(b), want) {
			t.Errorf("expected %s in %s", want, b)
		}
	}

	var back TechnicalIndicators
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Overall.Recommendation != RecommendStrongBuy || back.BMSB.Position != PositionAbove {
		t.Errorf("round trip lost enums: %+v", back)
	}
}

func TestEnum_UnknownNameRejected(t *testing.T) {
	var r Recommendation
	if err := r.UnmarshalText([]byte("moon")); err == nil {
		t.Error("expected error for unknown recommendation")
	}
	if s := Recommendation(42).String(); s != "unknown(42)" {
		t.Errorf("unexpected string for out-of-range value: %s", s)
	}
}

func TestEnum_ZeroValuesAreNeutral(t *testing.T) {
	var ti TechnicalIndicators
	if ti.RSI.Signal != RSINeutral || ti.StochRSI.Signal != StochNeutral ||
		ti.BMSB.Signal != BiasNeutral || ti.Overall.Recommendation != RecommendHold {
		t.Errorf("zero value not neutral: %+v", ti)
	}
}

func TestBandResult_Edges(t *testing.T) {
	b := BandResult{ShortMA: 101, LongMA: 99}
	if b.Upper() != 101 || b.Lower() != 99 {
		t.Errorf("upper=%v lower=%v", b.Upper(), b.Lower())
	}
}

func TestTicker_IsPriceValid(t *testing.T) {
	cases := []struct {
		price float64
		want  bool
	}{
		{100, true},
		{0, false},
		{-1, false},
		{math.NaN(), false},
		{math.Inf(1), false},
	}
	for _, tc := range cases {
		if got := (Ticker{Price: tc.price}).IsPriceValid(); got != tc.want {
			t.Errorf("price %v: got %v, want %v", tc.price, got, tc.want)
		}
	}
}

func TestOrderBook_Spread(t *testing.T) {
	ob := OrderBook{
		Bids: []BookLevel{{Price: 99.5, Amount: 1}},
		Asks: []BookLevel{{Price: 100.25, Amount: 2}},
	}
	if s := ob.Spread(); math.Abs(s-0.75) > 1e-9 {
		t.Errorf("spread = %v, want 0.75", s)
	}
	if s := (OrderBook{}).Spread(); s != 0 {
		t.Errorf("empty book spread = %v", s)
	}
}
