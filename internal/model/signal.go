package model

import "fmt"

// Categorical indicator outputs are closed sets. Each type's zero value is
// its neutral member, so a zero-valued result reads as "no opinion".

// RSISignal classifies an RSI value against the overbought/oversold levels.
type RSISignal uint8

const (
	RSINeutral RSISignal = iota
	RSIOverbought
	RSIOversold
)

var rsiSignalNames = []string{"neutral", "overbought", "oversold"}

func (s RSISignal) String() string { return enumString(rsiSignalNames, int(s)) }
func (s RSISignal) MarshalText() ([]byte, error) {
	return enumMarshal(rsiSignalNames, int(s), "rsi signal")
}
func (s *RSISignal) UnmarshalText(b []byte) error {
	return enumUnmarshal(rsiSignalNames, b, "rsi signal", (*uint8)(s))
}

// Strength grades how far an RSI value sits from the midline.
type Strength uint8

const (
	StrengthWeak Strength = iota
	StrengthMedium
	StrengthStrong
)

var strengthNames = []string{"weak", "medium", "strong"}

func (s Strength) String() string { return enumString(strengthNames, int(s)) }
func (s Strength) MarshalText() ([]byte, error) {
	return enumMarshal(strengthNames, int(s), "strength")
}
func (s *Strength) UnmarshalText(b []byte) error {
	return enumUnmarshal(strengthNames, b, "strength", (*uint8)(s))
}

// StochSignal is the Stochastic RSI crossover signal.
type StochSignal uint8

const (
	StochNeutral StochSignal = iota
	StochBuy
	StochSell
)

var stochSignalNames = []string{"neutral", "buy", "sell"}

func (s StochSignal) String() string { return enumString(stochSignalNames, int(s)) }
func (s StochSignal) MarshalText() ([]byte, error) {
	return enumMarshal(stochSignalNames, int(s), "stoch signal")
}
func (s *StochSignal) UnmarshalText(b []byte) error {
	return enumUnmarshal(stochSignalNames, b, "stoch signal", (*uint8)(s))
}

// Divergence between price extremes and an oscillator.
type Divergence uint8

const (
	DivergenceNone Divergence = iota
	DivergenceBullish
	DivergenceBearish
)

var divergenceNames = []string{"none", "bullish", "bearish"}

func (d Divergence) String() string { return enumString(divergenceNames, int(d)) }
func (d Divergence) MarshalText() ([]byte, error) {
	return enumMarshal(divergenceNames, int(d), "divergence")
}
func (d *Divergence) UnmarshalText(b []byte) error {
	return enumUnmarshal(divergenceNames, b, "divergence", (*uint8)(d))
}

// Position of the price relative to the support band.
type Position uint8

const (
	PositionBetween Position = iota
	PositionAbove
	PositionBelow
)

var positionNames = []string{"between", "above", "below"}

func (p Position) String() string { return enumString(positionNames, int(p)) }
func (p Position) MarshalText() ([]byte, error) {
	return enumMarshal(positionNames, int(p), "position")
}
func (p *Position) UnmarshalText(b []byte) error {
	return enumUnmarshal(positionNames, b, "position", (*uint8)(p))
}

// Bias is a directional reading: the band signal and the overall signal.
type Bias uint8

const (
	BiasNeutral Bias = iota
	BiasBullish
	BiasBearish
)

var biasNames = []string{"neutral", "bullish", "bearish"}

func (b Bias) String() string               { return enumString(biasNames, int(b)) }
func (b Bias) MarshalText() ([]byte, error) { return enumMarshal(biasNames, int(b), "bias") }
func (b *Bias) UnmarshalText(text []byte) error {
	return enumUnmarshal(biasNames, text, "bias", (*uint8)(b))
}

// Breakout reports a band position change over the recent points.
type Breakout uint8

const (
	BreakoutNone Breakout = iota
	BreakoutBullish
	BreakoutBearish
)

var breakoutNames = []string{"none", "bullish_breakout", "bearish_breakdown"}

func (b Breakout) String() string { return enumString(breakoutNames, int(b)) }
func (b Breakout) MarshalText() ([]byte, error) {
	return enumMarshal(breakoutNames, int(b), "breakout")
}
func (b *Breakout) UnmarshalText(text []byte) error {
	return enumUnmarshal(breakoutNames, text, "breakout", (*uint8)(b))
}

// Recommendation is the actionable output of the aggregator.
type Recommendation uint8

const (
	RecommendHold Recommendation = iota
	RecommendBuy
	RecommendSell
	RecommendStrongBuy
	RecommendStrongSell
)

var recommendationNames = []string{"hold", "buy", "sell", "strong_buy", "strong_sell"}

func (r Recommendation) String() string { return enumString(recommendationNames, int(r)) }
func (r Recommendation) MarshalText() ([]byte, error) {
	return enumMarshal(recommendationNames, int(r), "recommendation")
}
func (r *Recommendation) UnmarshalText(b []byte) error {
	return enumUnmarshal(recommendationNames, b, "recommendation", (*uint8)(r))
}

// Strong reports whether r is one of the high-confidence recommendations.
func (r Recommendation) Strong() bool {
	return r == RecommendStrongBuy || r == RecommendStrongSell
}

func enumString(names []string, v int) string {
	if v < 0 || v >= len(names) {
		return fmt.Sprintf("unknown(%d)", v)
	}
	return names[v]
}

func enumMarshal(names []string, v int, kind string) ([]byte, error) {
	if v < 0 || v >= len(names) {
		return nil, fmt.Errorf("model: invalid %s %d", kind, v)
	}
	return []byte(names[v]), nil
}

func enumUnmarshal(names []string, b []byte, kind string, dst *uint8) error {
	s := string(b)
	for i, n := range names {
		if n == s {
			*dst = uint8(i)
			return nil
		}
	}
	return fmt.Errorf("model: unknown %s %q", kind, s)
}
