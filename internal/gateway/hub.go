package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"crypto-ai-trading/internal/metrics"
	"crypto-ai-trading/internal/model"
)

const clientSendBuffer = 256

// Hub manages WebSocket clients and pushes snapshots and prices to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	latest  map[string]latestEntry
	seq     int64

	Broadcaster *Broadcaster

	log *slog.Logger
	m   *metrics.Metrics
}

type latestEntry struct {
	Symbol   string
	Envelope []byte
	TS       time.Time
}

// NewHub creates a Hub. m may be nil.
func NewHub(m *metrics.Metrics, log *slog.Logger) *Hub {
	h := &Hub{
		clients: make(map[*Client]struct{}),
		latest:  make(map[string]latestEntry),
		log:     log,
		m:       m,
	}
	h.Broadcaster = NewBroadcaster(h)
	return h
}

// Run forwards snapshots and tickers to clients until ctx is done or both
// channels are closed.
func (h *Hub) Run(ctx context.Context, snapshots <-chan model.TechnicalIndicators, tickers <-chan model.Ticker) {
	for snapshots != nil || tickers != nil {
		select {
		case <-ctx.Done():
			return
		case ti, ok := <-snapshots:
			if !ok {
				snapshots = nil
				continue
			}
			h.publish(MsgIndicators, ti.Symbol, ti)
		case t, ok := <-tickers:
			if !ok {
				tickers = nil
				continue
			}
			h.publish(MsgPriceUpdate, t.Symbol, t)
		}
	}
}

func (h *Hub) publish(typ MsgType, symbol string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error("ws payload marshal failed", "type", typ.String(), "symbol", symbol, "error", err)
		return
	}
	h.Broadcaster.Broadcast(typ, symbol, data)
}

// HandleWSRequest registers an upgraded connection and starts its pumps.
func (h *Hub) HandleWSRequest(conn *websocket.Conn) *Client {
	client := &Client{
		id:      uuid.NewString(),
		conn:    conn,
		send:    make(chan []byte, clientSendBuffer),
		hub:     h,
		symbols: make(map[string]struct{}),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	if h.m != nil {
		h.m.WSClients.Set(float64(count))
	}

	h.log.Info("ws client connected", "client", client.id, "total", count)

	client.sendConnected()
	go client.writePump()
	go client.readPump()
	return client
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	close(c.send)
	h.mu.Unlock()
	if h.m != nil {
		h.m.WSClients.Set(float64(count))
	}
	h.log.Info("ws client disconnected", "client", c.id, "total", count)
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// latestFor returns the latest envelopes whose symbol satisfies match,
// oldest first.
func (h *Hub) latestFor(match func(symbol string) bool) [][]byte {
	h.mu.RLock()
	entries := make([]latestEntry, 0, len(h.latest))
	for _, e := range h.latest {
		if match(e.Symbol) {
			entries = append(entries, e)
		}
	}
	h.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].TS.Before(entries[j].TS) })
	out := make([][]byte, len(entries))
	for i, e := range entries {
		out[i] = e.Envelope
	}
	return out
}

// StartMetricsBroadcast sends a system stats envelope to all clients on
// every interval until ctx is done.
func (h *Hub) StartMetricsBroadcast(ctx context.Context, interval time.Duration, collect func() SystemStats) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.publish(MsgMetrics, "", collect())
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		h.RemoveClient(c)
	}
}
