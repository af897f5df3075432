package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"crypto-ai-trading/internal/logger"
	"crypto-ai-trading/internal/metrics"
	"crypto-ai-trading/internal/model"
	"crypto-ai-trading/internal/notification"
)

const alertSendTimeout = 10 * time.Second

// Alerter sends a notification whenever a symbol's recommendation changes
// into strong_buy or strong_sell. Delivery runs in the background.
type Alerter struct {
	n   notification.Notifier
	log *slog.Logger
	m   *metrics.Metrics

	mu   sync.Mutex
	last map[string]model.Recommendation
	wg   sync.WaitGroup
}

// NewAlerter creates an Alerter. m may be nil.
func NewAlerter(n notification.Notifier, m *metrics.Metrics, log *slog.Logger) *Alerter {
	return &Alerter{
		n:    n,
		log:  log,
		m:    m,
		last: make(map[string]model.Recommendation),
	}
}

// Observe records ti's recommendation and reports whether an alert was
// dispatched.
func (a *Alerter) Observe(ctx context.Context, ti model.TechnicalIndicators) bool {
	rec := ti.Overall.Recommendation

	a.mu.Lock()
	prev, seen := a.last[ti.Symbol]
	a.last[ti.Symbol] = rec
	a.mu.Unlock()

	if !rec.Strong() || (seen && prev == rec) {
		return false
	}

	alert := notification.NewAlert(ti, prev, seen)
	traceAttrs := logger.LogWithTrace(ctx)
	sendCtx := context.WithoutCancel(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(sendCtx, alertSendTimeout)
		defer cancel()
		if err := a.n.Send(ctx, alert); err != nil {
			a.log.Warn("alert delivery failed", append(traceAttrs, "symbol", ti.Symbol, "error", err)...)
			return
		}
		if a.m != nil {
			a.m.AlertsSent.Inc()
		}
	}()
	return true
}

// Wait blocks until every dispatched alert has been delivered or failed.
func (a *Alerter) Wait() { a.wg.Wait() }
