package model

import (
	"encoding/json"
	"time"
)

// PricePoint is a single OHLCV observation for one instrument.
// Prices are float64 quote-currency units as delivered by the venue.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// FromPrice builds a point from a bare price observation: open, high and low
// all equal the close and volume is zero.
func FromPrice(ts time.Time, price float64) PricePoint {
	return PricePoint{
		Timestamp: ts,
		Open:      price,
		High:      price,
		Low:       price,
		Close:     price,
	}
}

// JSON returns the JSON-encoded point (ignoring errors for hot-path usage).
func (p PricePoint) JSON() []byte {
	b, _ := json.Marshal(p)
	return b
}

// Closes extracts the close prices of points in order.
func Closes(points []PricePoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Close
	}
	return out
}
