package gateway

import (
	"strconv"
	"time"
)

// MsgType tags every WebSocket envelope.
type MsgType uint8

const (
	MsgConnected MsgType = iota
	MsgPriceUpdate
	MsgIndicators
	MsgMetrics
	MsgSubscribed
	MsgPong
	MsgError
)

var msgTypeNames = []string{"connected", "priceUpdate", "indicators", "metrics", "subscribed", "pong", "error"}

func (t MsgType) String() string {
	if int(t) < len(msgTypeNames) {
		return msgTypeNames[t]
	}
	return "unknown"
}

func (t MsgType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// Broadcaster constructs envelope JSON and sends filtered messages to clients.
type Broadcaster struct {
	hub *Hub
	now func() time.Time
}

// NewBroadcaster creates a Broadcaster backed by the given Hub.
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub, now: time.Now}
}

// buildEnvelope renders {"type":...,"symbol":...,"data":...,"ts":...,"seq":N}
// by hand; data must already be valid JSON. symbol is omitted when empty.
func buildEnvelope(typ MsgType, symbol string, data []byte, now time.Time, seq int64) []byte {
	buf := make([]byte, 0, len(symbol)+len(data)+128)
	buf = append(buf, `{"type":"`...)
	buf = append(buf, typ.String()...)
	buf = append(buf, '"')
	if symbol != "" {
		buf = append(buf, `,"symbol":`...)
		buf = strconv.AppendQuote(buf, symbol)
	}
	buf = append(buf, `,"data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, '}')
	return buf
}

// Broadcast sends data to every client subscribed to symbol and keeps it as
// the latest value for (typ, symbol). An empty symbol reaches every client.
func (b *Broadcaster) Broadcast(typ MsgType, symbol string, data []byte) int {
	now := b.now().UTC()

	b.hub.mu.Lock()
	b.hub.seq++
	seq := b.hub.seq
	buf := buildEnvelope(typ, symbol, data, now, seq)
	if symbol != "" {
		b.hub.latest[latestKey(typ, symbol)] = latestEntry{Symbol: symbol, Envelope: buf, TS: now}
	}
	b.hub.mu.Unlock()

	b.hub.mu.RLock()
	defer b.hub.mu.RUnlock()
	sent := 0
	for client := range b.hub.clients {
		if !client.matches(symbol) {
			continue
		}
		select {
		case client.send <- buf:
			sent++
		default:
			b.hub.log.Debug("ws send buffer full, dropping message", "client", client.id, "type", typ.String())
		}
	}
	if b.hub.m != nil {
		b.hub.m.WSMessagesTotal.WithLabelValues(typ.String()).Add(float64(sent))
	}
	return sent
}

func latestKey(typ MsgType, symbol string) string {
	return typ.String() + ":" + symbol
}
