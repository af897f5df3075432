// Package chat talks to the Anthropic Messages API to turn indicator
// snapshots into prose. Without an API key it runs in demo mode and
// answers from a fixed set of replies.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	DefaultModel     = "claude-3-5-sonnet-20241022"
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultMaxTokens = 1000
	DefaultTimeout   = 30 * time.Second

	apiVersion = "2023-06-01"
	// DemoKey is the placeholder key that forces demo mode.
	DemoKey = "sk-ant-demo-mode"

	maxErrorBody = 4 << 10
)

// ErrEmptyMessage is returned for blank chat input.
var ErrEmptyMessage = errors.New("chat: empty message")

// Mode says where a reply came from.
type Mode uint8

const (
	ModeDemo Mode = iota
	ModeLive
)

func (m Mode) String() string {
	if m == ModeLive {
		return "live"
	}
	return "demo"
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// Reply is one answer.
type Reply struct {
	Text string `json:"response"`
	Mode Mode   `json:"mode"`
}

// Config configures a Client.
type Config struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Client is safe for concurrent use.
type Client struct {
	cfg   Config
	httpc *http.Client
	log   *slog.Logger
	live  bool
}

// NewClient creates a Client. An empty key or DemoKey selects demo mode.
func NewClient(cfg Config, log *slog.Logger) *Client {
	cfg = cfg.withDefaults()
	c := &Client{
		cfg:   cfg,
		httpc: &http.Client{Timeout: cfg.Timeout},
		log:   log,
		live:  cfg.APIKey != "" && cfg.APIKey != DemoKey,
	}
	if c.live {
		log.Info("chat client initialized", "model", cfg.Model)
	} else {
		log.Info("chat client initialized in demo mode", "model", cfg.Model)
	}
	return c
}

// Live reports whether the client calls the API.
func (c *Client) Live() bool { return c.live }

// Model returns the configured model name.
func (c *Client) Model() string { return c.cfg.Model }

type messageRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat answers msg. API failures fall back to a demo reply; only blank
// input is an error.
func (c *Client) Chat(ctx context.Context, msg string) (Reply, error) {
	if strings.TrimSpace(msg) == "" {
		return Reply{}, ErrEmptyMessage
	}
	if !c.live {
		return Reply{Text: DemoReply(msg), Mode: ModeDemo}, nil
	}
	text, err := c.complete(ctx, msg, c.cfg.MaxTokens)
	if err != nil {
		c.log.Warn("chat request failed, using demo reply", "error", err)
		return Reply{Text: DemoReply(msg), Mode: ModeDemo}, nil
	}
	return Reply{Text: text, Mode: ModeLive}, nil
}

// complete sends one user message and returns the first text block.
func (c *Client) complete(ctx context.Context, msg string, maxTokens int) (string, error) {
	body, err := json.Marshal(messageRequest{
		Model:     c.cfg.Model,
		MaxTokens: maxTokens,
		Messages:  []message{{Role: "user", Content: msg}},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("post messages: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if len(raw) > maxErrorBody {
			raw = raw[:maxErrorBody]
		}
		detail := gjson.GetBytes(raw, "error.message").String()
		if detail == "" {
			detail = string(raw)
		}
		return "", fmt.Errorf("messages api status %d: %s", resp.StatusCode, detail)
	}

	block := gjson.GetBytes(raw, "content.0")
	if block.Get("type").String() != "text" {
		return "", fmt.Errorf("messages api: no text content in response")
	}
	return block.Get("text").String(), nil
}

// Health describes the client's state.
type Health struct {
	Status    string    `json:"status"` // demo, operational or error
	Model     string    `json:"model"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Health checks the API with a tiny request. Demo clients never call out.
func (c *Client) Health(ctx context.Context) Health {
	h := Health{Model: c.cfg.Model, Timestamp: time.Now().UTC()}
	if !c.live {
		h.Status, h.Message = "demo", "running in demo mode"
		return h
	}
	if _, err := c.complete(ctx, "Health check test", 50); err != nil {
		h.Status, h.Error = "error", err.Error()
		return h
	}
	h.Status, h.Message = "operational", "API is responding"
	return h
}
