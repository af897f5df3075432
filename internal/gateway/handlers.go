// Package gateway serves the REST API and the WebSocket push feed.
package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crypto-ai-trading/internal/cache"
	"crypto-ai-trading/internal/chat"
	"crypto-ai-trading/internal/engine"
	"crypto-ai-trading/internal/metrics"
	"crypto-ai-trading/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

const (
	maxBodyBytes  = 64 << 10
	topKeysLimit  = 10
	healthTimeout = 5 * time.Second
)

// Indicators is the analysis surface the API reads from.
type Indicators interface {
	GetIndicators(ctx context.Context, symbol string) (model.TechnicalIndicators, error)
	Summary(ctx context.Context, symbol string) (string, error)
	Tickers() []model.Ticker
	Symbols() []string
}

// CacheInspector exposes cache statistics.
type CacheInspector interface {
	Stats() cache.Stats
	Health() cache.Health
	TopKeys(limit int) []cache.KeyStat
}

// Assistant answers chat and analysis requests.
type Assistant interface {
	Chat(ctx context.Context, msg string) (chat.Reply, error)
	AnalyzeMarket(ctx context.Context, ti model.TechnicalIndicators) (chat.Reply, error)
	Health(ctx context.Context) chat.Health
}

// Deps are the collaborators behind the API. Health, Metrics and Assistant
// may be nil.
type Deps struct {
	Indicators Indicators
	Cache      CacheInspector
	Assistant  Assistant
	Health     *metrics.HealthStatus
	Hub        *Hub
	Metrics    *metrics.Metrics
}

// Server is the public HTTP server.
type Server struct {
	deps  Deps
	log   *slog.Logger
	start time.Time
	srv   *http.Server
}

// NewServer creates the HTTP server listening on addr.
func NewServer(addr string, deps Deps, log *slog.Logger) *Server {
	s := &Server{deps: deps, log: log, start: time.Now()}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler with CORS and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.withLogging(withCORS(mux))
}

// RegisterRoutes registers all HTTP routes on the provided mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/indicators/{symbol}", s.handleIndicators)
	mux.HandleFunc("GET /api/indicators/{symbol}/summary", s.handleSummary)
	mux.HandleFunc("GET /api/symbols", s.handleSymbols)
	mux.HandleFunc("GET /api/market/tickers", s.handleTickers)
	mux.HandleFunc("GET /api/market/stats", s.handleMarketStats)
	mux.HandleFunc("GET /api/cache/stats", s.handleCacheStats)
	mux.HandleFunc("POST /api/analysis/enhanced", s.handleEnhancedAnalysis)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/claude/chat", s.handleChat)
	mux.Handle("GET /metrics", promhttp.Handler())
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info("http server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server error", "error", err)
		}
	}()
}

// Stop gracefully shuts down the server and disconnects WS clients.
func (s *Server) Stop(ctx context.Context) error {
	if s.deps.Hub != nil {
		s.deps.Hub.Close()
	}
	return s.srv.Shutdown(ctx)
}

// ── Middleware ──

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (c net.Conn, rw *bufio.ReadWriter, err error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("gateway: response writer cannot hijack")
	}
	return h.Hijack()
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("http request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

// ── Helpers ──

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"success": false, "error": msg})
}

// ParseSymbol normalizes "btc-usdt", "BTC_USDT" and "BTCUSDT" to "BTC/USDT".
func ParseSymbol(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.NewReplacer("-", "/", "_", "/").Replace(s)
	if strings.Contains(s, "/") {
		return s
	}
	for _, quote := range []string{"USDT", "USDC", "BUSD", "USD", "BTC", "ETH"} {
		if base := strings.TrimSuffix(s, quote); base != s && base != "" {
			return base + "/" + quote
		}
	}
	return s
}

func (s *Server) lookupError(w http.ResponseWriter, symbol string, err error) {
	if errors.Is(err, engine.ErrUnknownSymbol) {
		writeError(w, http.StatusNotFound, "no market data for "+symbol)
		return
	}
	s.log.Error("indicator lookup failed", "symbol", symbol, "error", err)
	writeError(w, http.StatusInternalServerError, "analysis failed")
}

// ── Handlers ──

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.deps.Hub == nil {
		writeError(w, http.StatusServiceUnavailable, "websocket disabled")
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade error", "error", err)
		return
	}
	s.deps.Hub.HandleWSRequest(conn)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if s.deps.Health != nil {
		status, code = s.deps.Health.Status()
	}

	services := map[string]any{}
	if s.deps.Cache != nil {
		services["cache"] = s.deps.Cache.Health()
	}
	if s.deps.Assistant != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		services["ai"] = s.deps.Assistant.Health(ctx)
		cancel()
	}
	if s.deps.Hub != nil {
		services["websocket"] = map[string]int{"clients": s.deps.Hub.ClientCount()}
	}
	if s.deps.Health != nil {
		services["exchange"] = s.deps.Health.Feed()
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services":  services,
		"system":    CollectSystemStats(s.start, s.deps.Hub, s.deps.Cache),
	})
}

func (s *Server) handleIndicators(w http.ResponseWriter, r *http.Request) {
	symbol := ParseSymbol(r.PathValue("symbol"))
	ti, err := s.deps.Indicators.GetIndicators(r.Context(), symbol)
	if err != nil {
		s.lookupError(w, symbol, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": ti})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	symbol := ParseSymbol(r.PathValue("symbol"))
	line, err := s.deps.Indicators.Summary(r.Context(), symbol)
	if err != nil {
		s.lookupError(w, symbol, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "symbol": symbol, "summary": line})
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	symbols := s.deps.Indicators.Symbols()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "count": len(symbols), "data": symbols})
}

func (s *Server) handleTickers(w http.ResponseWriter, r *http.Request) {
	tickers := s.deps.Indicators.Tickers()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"count":     len(tickers),
		"data":      tickers,
		"timestamp": time.Now().UnixMilli(),
	})
}

func (s *Server) handleMarketStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    NewMarketStats(s.deps.Indicators.Tickers()),
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Cache == nil {
		writeError(w, http.StatusServiceUnavailable, "cache unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"stats":   s.deps.Cache.Stats(),
		"health":  s.deps.Cache.Health(),
		"topKeys": s.deps.Cache.TopKeys(topKeysLimit),
	})
}

type enhancedRequest struct {
	Symbol string `json:"symbol"`
}

func (s *Server) handleEnhancedAnalysis(w http.ResponseWriter, r *http.Request) {
	var req enhancedRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Symbol) == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	symbol := ParseSymbol(req.Symbol)

	ti, err := s.deps.Indicators.GetIndicators(r.Context(), symbol)
	if err != nil {
		s.lookupError(w, symbol, err)
		return
	}
	data := map[string]any{
		"symbol":     symbol,
		"indicators": ti,
		"summary":    ti.Overall,
		"timestamp":  time.Now().UnixMilli(),
	}
	if s.deps.Assistant != nil {
		reply, err := s.deps.Assistant.AnalyzeMarket(r.Context(), ti)
		if err == nil {
			data["analysis"] = reply.Text
			data["mode"] = reply.Mode
			s.countChat(reply.Mode)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.deps.Assistant == nil {
		writeError(w, http.StatusServiceUnavailable, "chat disabled")
		return
	}
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	reply, err := s.deps.Assistant.Chat(r.Context(), req.Message)
	if errors.Is(err, chat.ErrEmptyMessage) {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if err != nil {
		s.log.Error("chat failed", "error", err)
		writeError(w, http.StatusInternalServerError, "chat failed")
		return
	}
	s.countChat(reply.Mode)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"response":  reply.Text,
		"mode":      reply.Mode,
		"timestamp": time.Now().UnixMilli(),
	})
}

func (s *Server) countChat(mode chat.Mode) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.ChatRequests.WithLabelValues(mode.String()).Inc()
	}
}
