// Package redis republishes indicator snapshots to Redis so other processes
// can read the latest value, replay recent history, or subscribe to updates.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"crypto-ai-trading/internal/model"
)

const (
	// stream trimming: recent snapshots per symbol
	streamMaxLen     = 1000
	defaultLatestTTL = 5 * time.Minute
)

// Key layout.
func LatestKey(symbol string) string   { return "ind:latest:" + symbol }
func StreamKey(symbol string) string   { return "ind:stream:" + symbol }
func ChannelName(symbol string) string { return "pub:ind:" + symbol }

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr      string // Redis address, e.g. "localhost:6379"
	Password  string
	DB        int
	LatestTTL time.Duration // expiry of ind:latest:* keys
}

// Writer writes indicator snapshots to Redis.
type Writer struct {
	client    *goredis.Client
	latestTTL time.Duration
	log       *slog.Logger
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a new Redis Writer and pings the server.
func New(ctx context.Context, cfg WriterConfig, log *slog.Logger) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	ttl := cfg.LatestTTL
	if ttl <= 0 {
		ttl = defaultLatestTTL
	}
	log.Info("redis connected", "addr", cfg.Addr)
	return &Writer{client: client, latestTTL: ttl, log: log}, nil
}

// WriteIndicators stores ti as the symbol's latest snapshot, appends it to
// the symbol's stream and publishes it, in one pipeline round trip.
func (w *Writer) WriteIndicators(ctx context.Context, ti model.TechnicalIndicators) error {
	return w.WriteBatch(ctx, []model.TechnicalIndicators{ti})
}

// WriteBatch pipelines SET + XADD + PUBLISH for every snapshot.
func (w *Writer) WriteBatch(ctx context.Context, batch []model.TechnicalIndicators) error {
	if len(batch) == 0 {
		return nil
	}

	pipe := w.client.Pipeline()
	for i := range batch {
		ti := &batch[i]
		data, err := json.Marshal(ti)
		if err != nil {
			return fmt.Errorf("redis: marshal %s: %w", ti.Symbol, err)
		}
		payload := string(data)

		pipe.Set(ctx, LatestKey(ti.Symbol), payload, w.latestTTL)
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: StreamKey(ti.Symbol),
			MaxLen: streamMaxLen,
			Approx: true,
			Values: map[string]interface{}{"data": payload},
		})
		pipe.Publish(ctx, ChannelName(ti.Symbol), payload)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: pipeline (%d snapshots): %w", len(batch), err)
	}
	return nil
}

// Latest reads the most recent snapshot stored for symbol.
func (w *Writer) Latest(ctx context.Context, symbol string) (model.TechnicalIndicators, bool, error) {
	var ti model.TechnicalIndicators
	raw, err := w.client.Get(ctx, LatestKey(symbol)).Bytes()
	if err == goredis.Nil {
		return ti, false, nil
	}
	if err != nil {
		return ti, false, fmt.Errorf("redis GET %s: %w", LatestKey(symbol), err)
	}
	if err := json.Unmarshal(raw, &ti); err != nil {
		return ti, false, fmt.Errorf("redis: decode %s: %w", LatestKey(symbol), err)
	}
	return ti, true, nil
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
