package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"

	"crypto-ai-trading/internal/model"
)

const (
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"
)

// BinanceConfig configures the Binance futures adapter. Keys are optional:
// every call the adapter makes is a public market-data endpoint.
type BinanceConfig struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	// BaseURL overrides the venue endpoint (tests).
	BaseURL string
}

// Binance reads market data from Binance USDⓈ-M futures REST endpoints.
type Binance struct {
	client *futures.Client
	log    *slog.Logger
}

// NewBinance creates the adapter.
func NewBinance(cfg BinanceConfig, log *slog.Logger) *Binance {
	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	switch {
	case cfg.BaseURL != "":
		client.BaseURL = cfg.BaseURL
	case cfg.UseTestnet:
		client.BaseURL = baseURLTestnet
	default:
		client.BaseURL = baseURLProduction
	}
	log.Info("binance feed configured", "base_url", client.BaseURL, "authenticated", cfg.APIKey != "")
	return &Binance{client: client, log: log}
}

func (b *Binance) Name() string { return "binance" }

// handleError maps Binance API error codes onto the feed sentinels.
func (b *Binance) handleError(err error, op, symbol string) error {
	if err == nil {
		return nil
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		b.log.Warn("binance api error", "op", op, "symbol", symbol, "code", apiErr.Code, "message", apiErr.Message)
		switch apiErr.Code {
		case -1003:
			return fmt.Errorf("%s %s: %w: %w", op, symbol, ErrRateLimited, err)
		case -1121:
			return fmt.Errorf("%s %s: %w: %w", op, symbol, ErrInvalidSymbol, err)
		}
		return fmt.Errorf("%s %s: %w", op, symbol, err)
	}
	if !errors.Is(err, context.Canceled) {
		b.log.Warn("binance request failed", "op", op, "symbol", symbol, "error", err)
	}
	return fmt.Errorf("%s %s: %w", op, symbol, err)
}

// Ticker returns the 24h rolling statistics for symbol.
func (b *Binance) Ticker(ctx context.Context, symbol string) (model.Ticker, error) {
	const op = "ticker"
	stats, err := b.client.NewListPriceChangeStatsService().Symbol(VenueSymbol(symbol)).Do(ctx)
	if err != nil {
		return model.Ticker{}, b.handleError(err, op, symbol)
	}
	if len(stats) == 0 {
		return model.Ticker{}, fmt.Errorf("%s %s: %w", op, symbol, ErrNoData)
	}
	s := stats[0]

	price, err := parsePrice("last price", s.LastPrice)
	if err != nil {
		return model.Ticker{}, b.handleError(err, op, symbol)
	}
	vol, err := parsePrice("volume", s.Volume)
	if err != nil {
		return model.Ticker{}, b.handleError(err, op, symbol)
	}
	change, err := parsePrice("change percent", s.PriceChangePercent)
	if err != nil {
		return model.Ticker{}, b.handleError(err, op, symbol)
	}

	ts := time.UnixMilli(s.CloseTime).UTC()
	if s.CloseTime == 0 {
		ts = time.Now().UTC()
	}
	return model.Ticker{
		Symbol:    symbol,
		Exchange:  b.Name(),
		Price:     price,
		Volume24h: vol,
		Change24h: change,
		Timestamp: ts,
	}, nil
}

// Candles returns up to limit candles for symbol, oldest first.
func (b *Binance) Candles(ctx context.Context, symbol, interval string, limit int) ([]model.PricePoint, error) {
	const op = "candles"
	if _, err := ParseInterval(interval); err != nil {
		return nil, err
	}
	klines, err := b.client.NewKlinesService().
		Symbol(VenueSymbol(symbol)).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, b.handleError(err, op, symbol)
	}
	if len(klines) == 0 {
		return nil, fmt.Errorf("%s %s: %w", op, symbol, ErrNoData)
	}

	out := make([]model.PricePoint, 0, len(klines))
	for _, k := range klines {
		p, err := translateKline(k)
		if err != nil {
			return nil, b.handleError(err, op, symbol)
		}
		out = append(out, p)
	}
	return out, nil
}

// OrderBook returns the top depth levels for symbol.
func (b *Binance) OrderBook(ctx context.Context, symbol string, depth int) (model.OrderBook, error) {
	const op = "orderbook"
	res, err := b.client.NewDepthService().Symbol(VenueSymbol(symbol)).Limit(depth).Do(ctx)
	if err != nil {
		return model.OrderBook{}, b.handleError(err, op, symbol)
	}

	ob := model.OrderBook{
		Symbol:    symbol,
		Exchange:  b.Name(),
		Bids:      make([]model.BookLevel, 0, len(res.Bids)),
		Asks:      make([]model.BookLevel, 0, len(res.Asks)),
		Timestamp: time.UnixMilli(res.Time).UTC(),
	}
	if res.Time == 0 {
		ob.Timestamp = time.Now().UTC()
	}
	for _, l := range res.Bids {
		lvl, err := translateLevel(l.Price, l.Quantity)
		if err != nil {
			return model.OrderBook{}, b.handleError(err, op, symbol)
		}
		ob.Bids = append(ob.Bids, lvl)
	}
	for _, l := range res.Asks {
		lvl, err := translateLevel(l.Price, l.Quantity)
		if err != nil {
			return model.OrderBook{}, b.handleError(err, op, symbol)
		}
		ob.Asks = append(ob.Asks, lvl)
	}
	return ob, nil
}

// --- Translation Helpers ---

func translateKline(k *futures.Kline) (model.PricePoint, error) {
	if k == nil {
		return model.PricePoint{}, errors.New("received nil kline")
	}
	open, err := parsePrice("open", k.Open)
	if err != nil {
		return model.PricePoint{}, err
	}
	high, err := parsePrice("high", k.High)
	if err != nil {
		return model.PricePoint{}, err
	}
	low, err := parsePrice("low", k.Low)
	if err != nil {
		return model.PricePoint{}, err
	}
	cls, err := parsePrice("close", k.Close)
	if err != nil {
		return model.PricePoint{}, err
	}
	vol, err := parsePrice("volume", k.Volume)
	if err != nil {
		return model.PricePoint{}, err
	}
	return model.PricePoint{
		Timestamp: time.UnixMilli(k.OpenTime).UTC(),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     cls,
		Volume:    vol,
	}, nil
}

func translateLevel(price, qty string) (model.BookLevel, error) {
	p, err := parsePrice("level price", price)
	if err != nil {
		return model.BookLevel{}, err
	}
	q, err := parsePrice("level quantity", qty)
	if err != nil {
		return model.BookLevel{}, err
	}
	return model.BookLevel{Price: p, Amount: q}, nil
}
