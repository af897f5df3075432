package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"crypto-ai-trading/internal/model"
)

// WebhookNotifier posts alerts as JSON to a generic HTTP endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
	log    *slog.Logger
}

// NewWebhookNotifier creates a webhook notifier for url.
func NewWebhookNotifier(url string, log *slog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

// webhookPayload is the body posted for every alert. Previous is omitted on
// a symbol's first recommendation.
type webhookPayload struct {
	Level          AlertLevel                `json:"level"`
	Title          string                    `json:"title"`
	Symbol         string                    `json:"symbol"`
	Recommendation model.Recommendation      `json:"recommendation"`
	Previous       *model.Recommendation     `json:"previous,omitempty"`
	Price          float64                   `json:"price"`
	Confidence     float64                   `json:"confidence"`
	NetScore       float64                   `json:"netScore"`
	Text           string                    `json:"text"`
	Indicators     model.TechnicalIndicators `json:"indicators"`
	TS             string                    `json:"ts"`
}

func newWebhookPayload(a Alert) webhookPayload {
	ti := a.Snapshot
	p := webhookPayload{
		Level:          a.Level(),
		Title:          a.Title(),
		Symbol:         ti.Symbol,
		Recommendation: ti.Overall.Recommendation,
		Price:          ti.BMSB.CurrentPrice,
		Confidence:     ti.Overall.Confidence,
		NetScore:       ti.Overall.NetScore,
		Text:           a.Text(),
		Indicators:     ti,
		TS:             ti.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if !a.First {
		prev := a.Previous
		p.Previous = &prev
	}
	return p
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(newWebhookPayload(alert))
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send %s: %w", alert.Symbol(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: %s: unexpected status %d", alert.Symbol(), resp.StatusCode)
	}

	w.log.Debug("webhook alert sent", "symbol", alert.Symbol(), "recommendation", alert.Recommendation())
	return nil
}
