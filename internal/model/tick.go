package model

import (
	"math"
	"time"
)

// Ticker is the latest 24h market snapshot for an instrument on one venue.
type Ticker struct {
	Symbol    string    `json:"symbol"`
	Exchange  string    `json:"exchange"`
	Price     float64   `json:"price"`
	Volume24h float64   `json:"volume24h"`
	Change24h float64   `json:"change24h"` // percent
	Timestamp time.Time `json:"timestamp"`
}

// IsPriceValid reports whether the ticker carries a usable price.
// Warmup placeholders have a zero price.
func (t Ticker) IsPriceValid() bool {
	return t.Price > 0 && !math.IsNaN(t.Price) && !math.IsInf(t.Price, 0)
}

// Point converts the ticker into a bare price observation.
func (t Ticker) Point() PricePoint {
	p := FromPrice(t.Timestamp, t.Price)
	p.Volume = t.Volume24h
	return p
}

// BookLevel is one price level of an order book side.
type BookLevel struct {
	Price  float64 `json:"price"`
	Amount float64 `json:"amount"`
}

// OrderBook is a depth snapshot. Bids are sorted best (highest) first,
// asks best (lowest) first.
type OrderBook struct {
	Symbol    string      `json:"symbol"`
	Exchange  string      `json:"exchange"`
	Bids      []BookLevel `json:"bids"`
	Asks      []BookLevel `json:"asks"`
	Timestamp time.Time   `json:"timestamp"`
}

// Spread returns best ask minus best bid, or 0 when either side is empty.
func (ob OrderBook) Spread() float64 {
	if len(ob.Bids) == 0 || len(ob.Asks) == 0 {
		return 0
	}
	return ob.Asks[0].Price - ob.Bids[0].Price
}

// NewsItem is a headline cached under a search keyword.
type NewsItem struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"publishedAt"`
}
