// Package notification provides alert delivery to external channels
// (Telegram, webhooks, logs) for recommendation changes.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"crypto-ai-trading/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert reports that a symbol's recommendation changed. Backends render
// it from the analysis snapshot that triggered it.
type Alert struct {
	Snapshot model.TechnicalIndicators
	// Previous is the recommendation before the change. Ignored when First.
	Previous model.Recommendation
	// First marks the first recommendation observed for the symbol.
	First bool
}

// NewAlert builds an alert for ti. seen reports whether prev is a real
// earlier observation.
func NewAlert(ti model.TechnicalIndicators, prev model.Recommendation, seen bool) Alert {
	return Alert{Snapshot: ti, Previous: prev, First: !seen}
}

// Symbol is the instrument the alert is about.
func (a Alert) Symbol() string { return a.Snapshot.Symbol }

// Recommendation is the new recommendation.
func (a Alert) Recommendation() model.Recommendation { return a.Snapshot.Overall.Recommendation }

// Level maps the recommendation to a severity: strong sells are critical,
// strong buys a warning, anything else informational.
func (a Alert) Level() AlertLevel {
	switch a.Recommendation() {
	case model.RecommendStrongSell:
		return AlertCritical
	case model.RecommendStrongBuy:
		return AlertWarning
	default:
		return AlertInfo
	}
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the structured log (useful for development).
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	ov := alert.Snapshot.Overall
	attrs := []any{
		"level", alert.Level(),
		"symbol", alert.Symbol(),
		"recommendation", ov.Recommendation,
		"confidence", ov.Confidence,
		"net_score", ov.NetScore,
		"price", alert.Snapshot.BMSB.CurrentPrice,
	}
	if !alert.First {
		attrs = append(attrs, "previous", alert.Previous)
	}
	n.log.Info(alert.Title(), attrs...)
	return nil
}

// Multi delivers every alert to all of its notifiers. A failing backend
// does not stop the others; the errors are joined.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Retrying wraps a Notifier with exponential backoff.
type Retrying struct {
	next       Notifier
	maxRetries int
	base       time.Duration
	log        *slog.Logger
}

// WithRetry retries failed sends up to maxRetries times, waiting base,
// 2×base, 4×base… between attempts.
func WithRetry(n Notifier, maxRetries int, base time.Duration, log *slog.Logger) *Retrying {
	if base <= 0 {
		base = time.Second
	}
	return &Retrying{next: n, maxRetries: maxRetries, base: base, log: log}
}

func (r *Retrying) Send(ctx context.Context, alert Alert) error {
	var lastErr error
	for i := 0; i <= r.maxRetries; i++ {
		if lastErr = r.next.Send(ctx, alert); lastErr == nil {
			return nil
		}
		if i == r.maxRetries {
			break
		}
		backoff := r.base * time.Duration(1<<uint(i))
		r.log.Warn("alert send failed, retrying",
			"attempt", i+1, "max_attempts", r.maxRetries+1, "backoff", backoff, "error", lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("all %d attempts exhausted: %w", r.maxRetries+1, lastErr)
}
