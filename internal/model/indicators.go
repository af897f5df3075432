package model

import "time"

// RSIResult is one Relative Strength Index reading.
type RSIResult struct {
	Timestamp  time.Time  `json:"timestamp"`
	Value      float64    `json:"value"`
	Signal     RSISignal  `json:"signal"`
	Strength   Strength   `json:"strength"`
	Divergence Divergence `json:"divergence"`
}

// StochRSIResult is one Stochastic RSI reading. K and D are in [0,100].
type StochRSIResult struct {
	Timestamp  time.Time   `json:"timestamp"`
	K          float64     `json:"k"`
	D          float64     `json:"d"`
	Signal     StochSignal `json:"signal"`
	Divergence Divergence  `json:"divergence"`
}

// BandResult is one Bull Market Support Band reading.
type BandResult struct {
	Timestamp    time.Time `json:"timestamp"`
	ShortMA      float64   `json:"shortMA"`
	LongMA       float64   `json:"longMA"`
	CurrentPrice float64   `json:"currentPrice"`
	Position     Position  `json:"position"`
	Signal       Bias      `json:"signal"`
	Strength     float64   `json:"strength"`
	Breakout     Breakout  `json:"breakout"`
}

// Upper returns the upper edge of the band.
func (b BandResult) Upper() float64 { return max(b.ShortMA, b.LongMA) }

// Lower returns the lower edge of the band.
func (b BandResult) Lower() float64 { return min(b.ShortMA, b.LongMA) }

// Overall is the aggregated opinion across all indicators.
type Overall struct {
	Signal         Bias           `json:"signal"`
	Confidence     float64        `json:"confidence"`
	NetScore       float64        `json:"netScore"`
	Recommendation Recommendation `json:"recommendation"`
}

// Completeness records which members were computed from data rather than
// filled with neutral defaults.
type Completeness struct {
	RSI      bool `json:"rsi"`
	StochRSI bool `json:"stochRSI"`
	BMSB     bool `json:"bmsb"`
}

// All reports whether every member was computed.
func (c Completeness) All() bool { return c.RSI && c.StochRSI && c.BMSB }

// TechnicalIndicators is the full analysis snapshot for one instrument.
// Values are replaced wholesale in caches, never mutated in place.
type TechnicalIndicators struct {
	Symbol    string         `json:"symbol"`
	RSI       RSIResult      `json:"rsi"`
	StochRSI  StochRSIResult `json:"stochRSI"`
	BMSB      BandResult     `json:"bmsb"`
	Overall   Overall        `json:"overall"`
	Complete  Completeness   `json:"complete"`
	Timestamp time.Time      `json:"timestamp"`
}
