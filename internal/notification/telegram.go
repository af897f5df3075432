package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"crypto-ai-trading/internal/model"
)

const telegramAPI = "https://api.telegram.org"

// TelegramNotifier sends alerts through the Telegram Bot API as
// MarkdownV2 messages.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	log      *slog.Logger
}

// NewTelegramNotifier creates a notifier posting to chatID with botToken.
func NewTelegramNotifier(botToken, chatID string, log *slog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  telegramAPI,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func marker(r model.Recommendation) string {
	switch r {
	case model.RecommendStrongBuy, model.RecommendBuy:
		return "🟢"
	case model.RecommendStrongSell, model.RecommendSell:
		return "🔴"
	default:
		return "ℹ️"
	}
}

// telegramText renders a as a bold headline, the detail lines and the
// snapshot time in italics.
func telegramText(a Alert) string {
	var b strings.Builder
	b.WriteString(marker(a.Recommendation()))
	b.WriteString(" *")
	b.WriteString(escapeMarkdown(a.Title()))
	b.WriteString("*\n\n")
	for _, line := range a.Details() {
		b.WriteString(escapeMarkdown(line))
		b.WriteByte('\n')
	}
	if ts := a.Snapshot.Timestamp; !ts.IsZero() {
		b.WriteString("\n_")
		b.WriteString(escapeMarkdown(ts.UTC().Format("2006-01-02 15:04 MST")))
		b.WriteString("_")
	}
	return b.String()
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(telegramMessage{ChatID: t.chatID, Text: telegramText(alert), ParseMode: "MarkdownV2"})
	if err != nil {
		return fmt.Errorf("telegram: marshal: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send %s: %w", alert.Symbol(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram: unexpected status %d: %s", resp.StatusCode, respBody)
	}

	t.log.Debug("telegram alert sent", "symbol", alert.Symbol(), "recommendation", alert.Recommendation())
	return nil
}

// escapeMarkdown escapes the characters MarkdownV2 reserves.
func escapeMarkdown(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`_*[]()~`+"`"+`>#+-=|{}.!`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
