package redis

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"crypto-ai-trading/internal/model"
)

// SnapshotWriter is the write side of Writer, narrowed for the publisher.
type SnapshotWriter interface {
	WriteBatch(ctx context.Context, batch []model.TechnicalIndicators) error
}

// Publisher writes snapshots through a circuit breaker. While the circuit is
// open, the newest snapshot per symbol is held back and flushed when the
// circuit closes again; older pending snapshots for the same symbol are
// superseded.
type Publisher struct {
	writer  SnapshotWriter
	cb      *CircuitBreaker
	timeout time.Duration
	log     *slog.Logger

	mu      sync.Mutex
	pending map[string]model.TechnicalIndicators

	// Callbacks
	OnBuffer func()          // called when a snapshot is held back (for metrics)
	OnFlush  func(count int) // called after flushing held snapshots
}

// NewPublisher wraps w with cb. The breaker's OnStateChange is chained so
// that a close triggers a flush.
func NewPublisher(w SnapshotWriter, cb *CircuitBreaker, log *slog.Logger) *Publisher {
	p := &Publisher{
		writer:  w,
		cb:      cb,
		timeout: 2 * time.Second,
		log:     log,
		pending: make(map[string]model.TechnicalIndicators),
	}

	prevCallback := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prevCallback != nil {
			prevCallback(from, to)
		}
		log.Warn("redis circuit breaker transition", "from", from, "to", to)
		if to == StateClosed {
			go p.Flush(context.Background())
		}
	}
	return p
}

// Publish writes ti through the circuit breaker. A rejected write is held
// back and nil is returned; write errors are returned as is.
func (p *Publisher) Publish(ctx context.Context, ti model.TechnicalIndicators) error {
	err := p.cb.Execute(func() error {
		wctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		return p.writer.WriteBatch(wctx, []model.TechnicalIndicators{ti})
	})
	if errors.Is(err, ErrCircuitOpen) {
		p.hold(ti)
		return nil
	}
	if err != nil {
		p.hold(ti)
	}
	return err
}

func (p *Publisher) hold(ti model.TechnicalIndicators) {
	p.mu.Lock()
	p.pending[ti.Symbol] = ti
	p.mu.Unlock()
	if p.OnBuffer != nil {
		p.OnBuffer()
	}
}

// Flush writes every held snapshot in one batch. On failure the snapshots
// are held again unless a newer one arrived meanwhile.
func (p *Publisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	if len(p.pending) == 0 {
		p.mu.Unlock()
		return nil
	}
	batch := make([]model.TechnicalIndicators, 0, len(p.pending))
	for _, ti := range p.pending {
		batch = append(batch, ti)
	}
	p.pending = make(map[string]model.TechnicalIndicators)
	p.mu.Unlock()

	err := p.cb.Execute(func() error {
		wctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		return p.writer.WriteBatch(wctx, batch)
	})
	if err != nil {
		p.mu.Lock()
		for _, ti := range batch {
			if _, newer := p.pending[ti.Symbol]; !newer {
				p.pending[ti.Symbol] = ti
			}
		}
		p.mu.Unlock()
		return err
	}

	p.log.Info("flushed held snapshots", "count", len(batch))
	if p.OnFlush != nil {
		p.OnFlush(len(batch))
	}
	return nil
}

// PendingCount returns the number of snapshots waiting to be flushed.
func (p *Publisher) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}
