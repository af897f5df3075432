// Package feed pulls market data from an exchange (or a simulator) and
// drives periodic polling of the configured symbols.
package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"crypto-ai-trading/internal/model"
)

var (
	// ErrNoData is returned when the venue answers with an empty result.
	ErrNoData = errors.New("feed: no data")
	// ErrUnsupportedInterval is returned for candle intervals outside Intervals.
	ErrUnsupportedInterval = errors.New("feed: unsupported interval")
	// ErrRateLimited is returned when the venue throttles requests.
	ErrRateLimited = errors.New("feed: rate limited")
	// ErrInvalidSymbol is returned when the venue does not list the symbol.
	ErrInvalidSymbol = errors.New("feed: invalid symbol")
)

// Feed is a source of market data for one venue.
type Feed interface {
	// Name is the venue identifier used in cache keys ("binance", "sim").
	Name() string
	// Ticker returns the latest 24h ticker for symbol.
	Ticker(ctx context.Context, symbol string) (model.Ticker, error)
	// Candles returns up to limit closed candles, oldest first.
	Candles(ctx context.Context, symbol, interval string, limit int) ([]model.PricePoint, error)
	// OrderBook returns the top depth levels on each side.
	OrderBook(ctx context.Context, symbol string, depth int) (model.OrderBook, error)
}

// Intervals maps the supported candle interval names to their duration.
var Intervals = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
}

// ParseInterval returns the duration of a candle interval name.
func ParseInterval(s string) (time.Duration, error) {
	d, ok := Intervals[s]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedInterval, s)
	}
	return d, nil
}

// VenueSymbol converts "BTC/USDT" to the venue form "BTCUSDT".
func VenueSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
}

// parsePrice converts an exchange decimal string to float64.
func parsePrice(field, s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parsing %s %q: %w", field, s, err)
	}
	return d.InexactFloat64(), nil
}
