package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-ai-trading/internal/logger"
	"crypto-ai-trading/internal/model"
)

type fakeWriter struct {
	mu      sync.Mutex
	fail    bool
	written []model.TechnicalIndicators
}

func (f *fakeWriter) WriteBatch(_ context.Context, batch []model.TechnicalIndicators) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("connection refused")
	}
	f.written = append(f.written, batch...)
	return nil
}

func (f *fakeWriter) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *fakeWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.written)
}

func snapshot(symbol string, price float64) model.TechnicalIndicators {
	return model.TechnicalIndicators{Symbol: symbol, BMSB: model.BandResult{CurrentPrice: price}}
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "ind:latest:BTC/USDT", LatestKey("BTC/USDT"))
	assert.Equal(t, "ind:stream:BTC/USDT", StreamKey("BTC/USDT"))
	assert.Equal(t, "pub:ind:BTC/USDT", ChannelName("BTC/USDT"))
}

func TestPublisher_WritesThrough(t *testing.T) {
	w := &fakeWriter{}
	p := NewPublisher(w, NewCircuitBreaker(3, time.Second), logger.Discard())

	require.NoError(t, p.Publish(context.Background(), snapshot("BTC/USDT", 1)))
	assert.Equal(t, 1, w.count())
	assert.Zero(t, p.PendingCount())
}

func TestPublisher_HoldsWhileOpenAndFlushesOnClose(t *testing.T) {
	w := &fakeWriter{fail: true}
	cb, clk := newTestBreaker(2, time.Second)
	p := NewPublisher(w, cb, logger.Discard())

	var buffered int
	flushed := make(chan int, 1)
	p.OnBuffer = func() { buffered++ }
	p.OnFlush = func(n int) { flushed <- n }

	ctx := context.Background()
	assert.Error(t, p.Publish(ctx, snapshot("BTC/USDT", 1)))
	assert.Error(t, p.Publish(ctx, snapshot("BTC/USDT", 2)))
	require.Equal(t, StateOpen, cb.CurrentState())

	// Open: rejected silently, newest per symbol kept.
	assert.NoError(t, p.Publish(ctx, snapshot("BTC/USDT", 3)))
	assert.NoError(t, p.Publish(ctx, snapshot("ETH/USDT", 4)))
	assert.Equal(t, 2, p.PendingCount())
	assert.Equal(t, 4, buffered)

	// Recovery: the trial request succeeds, closing the circuit triggers a flush.
	w.setFail(false)
	clk.advance(2 * time.Second)
	require.NoError(t, p.Publish(ctx, snapshot("SOL/USDT", 5)))

	select {
	case n := <-flushed:
		assert.Equal(t, 2, n)
	case <-time.After(time.Second):
		t.Fatal("flush did not run after circuit closed")
	}
	assert.Zero(t, p.PendingCount())

	w.mu.Lock()
	defer w.mu.Unlock()
	prices := map[string]float64{}
	for _, ti := range w.written {
		prices[ti.Symbol] = ti.BMSB.CurrentPrice
	}
	assert.Equal(t, map[string]float64{"SOL/USDT": 5, "BTC/USDT": 3, "ETH/USDT": 4}, prices)
}

func TestPublisher_FlushFailureKeepsNewer(t *testing.T) {
	w := &fakeWriter{fail: true}
	p := NewPublisher(w, NewCircuitBreaker(10, time.Second), logger.Discard())
	ctx := context.Background()

	p.Publish(ctx, snapshot("BTC/USDT", 1))
	require.Equal(t, 1, p.PendingCount())

	assert.Error(t, p.Flush(ctx))
	assert.Equal(t, 1, p.PendingCount())

	w.setFail(false)
	require.NoError(t, p.Flush(ctx))
	assert.Zero(t, p.PendingCount())
	assert.Equal(t, 1, w.count())
	assert.NoError(t, p.Flush(ctx), "empty flush is a no-op")
}
