package gateway

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 4096
)

// Client represents a single WebSocket peer.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// symbols filters pushes; empty means everything.
	subMu   sync.RWMutex
	symbols map[string]struct{}
}

// ID returns the client's connection id.
func (c *Client) ID() string { return c.id }

// inbound is any message a client may send.
type inbound struct {
	Type    string   `json:"type"`
	Symbol  string   `json:"symbol"`
	Symbols []string `json:"symbols"`
	Ping    int64    `json:"ping"`
}

// enqueue queues buf unless the client is gone or its buffer is full.
func (c *Client) enqueue(buf []byte) bool {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return false
	}
	select {
	case c.send <- buf:
		return true
	default:
		c.hub.log.Debug("ws send buffer full, dropping message", "client", c.id)
		return false
	}
}

func (c *Client) sendEnvelope(typ MsgType, symbol string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.hub.log.Error("ws payload marshal failed", "client", c.id, "error", err)
		return
	}
	c.hub.mu.Lock()
	c.hub.seq++
	seq := c.hub.seq
	c.hub.mu.Unlock()
	c.enqueue(buildEnvelope(typ, symbol, data, time.Now().UTC(), seq))
}

func (c *Client) sendError(msg string) {
	c.sendEnvelope(MsgError, "", map[string]string{"message": msg})
}

// sendConnected greets the client and replays the latest value of every
// stream.
func (c *Client) sendConnected() {
	c.sendEnvelope(MsgConnected, "", map[string]string{
		"clientId": c.id,
		"message":  "connected to crypto-ai-trading",
	})
	for _, buf := range c.hub.latestFor(func(string) bool { return true }) {
		c.enqueue(buf)
	}
}

// matches reports whether pushes for symbol go to this client.
func (c *Client) matches(symbol string) bool {
	if symbol == "" {
		return true
	}
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	if len(c.symbols) == 0 {
		return true
	}
	_, ok := c.symbols[symbol]
	return ok
}

// Symbols returns the client's subscription filter, sorted.
func (c *Client) Symbols() []string {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	out := make([]string, 0, len(c.symbols))
	for s := range c.symbols {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// Coalesce queued messages into one frame, newline separated.
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var msg inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.sendError("invalid message: " + err.Error())
			continue
		}

		switch strings.ToLower(msg.Type) {
		case "subscribe":
			c.handleSubscribe(msg.targets())
		case "unsubscribe":
			c.handleUnsubscribe(msg.targets())
		case "ping":
			c.sendEnvelope(MsgPong, "", map[string]int64{"ping": msg.Ping, "serverTs": time.Now().UnixMilli()})
		default:
			c.sendError("unknown message type " + msg.Type)
		}
	}
}

func (m inbound) targets() []string {
	out := make([]string, 0, len(m.Symbols)+1)
	if m.Symbol != "" {
		out = append(out, ParseSymbol(m.Symbol))
	}
	for _, s := range m.Symbols {
		if s != "" {
			out = append(out, ParseSymbol(s))
		}
	}
	return out
}

// handleSubscribe adds symbols to the filter and replays their latest
// prices and indicators.
func (c *Client) handleSubscribe(symbols []string) {
	if len(symbols) == 0 {
		c.sendError("subscribe needs symbol or symbols")
		return
	}
	c.subMu.Lock()
	for _, s := range symbols {
		c.symbols[s] = struct{}{}
	}
	c.subMu.Unlock()

	c.hub.log.Debug("ws client subscribed", "client", c.id, "symbols", symbols)
	c.sendEnvelope(MsgSubscribed, "", map[string][]string{"symbols": c.Symbols()})

	wanted := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		wanted[s] = true
	}
	for _, buf := range c.hub.latestFor(func(s string) bool { return wanted[s] }) {
		c.enqueue(buf)
	}
}

func (c *Client) handleUnsubscribe(symbols []string) {
	c.subMu.Lock()
	if len(symbols) == 0 {
		c.symbols = make(map[string]struct{})
	}
	for _, s := range symbols {
		delete(c.symbols, s)
	}
	c.subMu.Unlock()

	c.hub.log.Debug("ws client unsubscribed", "client", c.id, "symbols", symbols)
	c.sendEnvelope(MsgSubscribed, "", map[string][]string{"symbols": c.Symbols()})
}
