package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the analysis service.
type Metrics struct {
	// Feed / poller
	PollsTotal      *prometheus.CounterVec // labels: result=ok|error
	PollDur         prometheus.Histogram
	PointsIngested  prometheus.Counter
	FeedErrorsTotal *prometheus.CounterVec // labels: op

	// Indicator computation
	IndicatorComputeDur prometheus.Histogram
	IndicatorsTotal     *prometheus.CounterVec // labels: recommendation
	IncompleteTotal     *prometheus.CounterVec // labels: indicator
	ComputePanics       prometheus.Counter

	// Cache
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	CacheEvictions   prometheus.Counter
	CacheExpirations prometheus.Counter
	CacheEntries     prometheus.Gauge

	// Fan-out backpressure
	FanoutDropsTotal *prometheus.CounterVec // labels: subscriber

	// Redis publisher circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
	RedisPublishDur          prometheus.Histogram

	// Gateway
	WSClients       prometheus.Gauge
	WSMessagesTotal *prometheus.CounterVec // labels: type
	ChatRequests    *prometheus.CounterVec // labels: mode=live|demo
	AlertsSent      prometheus.Counter
}

// NewMetrics creates all metrics and registers them with reg.
// A nil reg uses the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		PollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptoai_polls_total",
			Help: "Feed poll cycles by result",
		}, []string{"result"}),
		PollDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cryptoai_poll_duration_seconds",
			Help:    "Duration of one feed poll cycle across all symbols",
			Buckets: prometheus.DefBuckets,
		}),
		PointsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cryptoai_points_ingested_total",
			Help: "Price points added to symbol windows",
		}),
		FeedErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptoai_feed_errors_total",
			Help: "Feed request failures by operation",
		}, []string{"op"}),

		IndicatorComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cryptoai_indicator_compute_duration_seconds",
			Help:    "Aggregated indicator computation latency per symbol",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
		IndicatorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptoai_indicators_total",
			Help: "Indicator snapshots computed by recommendation",
		}, []string{"recommendation"}),
		IncompleteTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptoai_indicator_incomplete_total",
			Help: "Snapshots where an indicator fell back to its neutral default",
		}, []string{"indicator"}),
		ComputePanics: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cryptoai_indicator_panics_total",
			Help: "Recovered panics during indicator computation",
		}),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cryptoai_cache_hits_total",
			Help: "Cache lookups that found a live entry",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cryptoai_cache_misses_total",
			Help: "Cache lookups that found nothing or an expired entry",
		}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cryptoai_cache_evictions_total",
			Help: "Entries evicted at capacity",
		}),
		CacheExpirations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cryptoai_cache_expirations_total",
			Help: "Entries removed after their TTL",
		}),
		CacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cryptoai_cache_entries",
			Help: "Current number of cache entries",
		}),

		FanoutDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptoai_fanout_drops_total",
			Help: "Snapshots dropped by the fan-out bus per subscriber",
		}, []string{"subscriber"}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cryptoai_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cryptoai_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		RedisPublishDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cryptoai_redis_publish_duration_seconds",
			Help:    "Redis snapshot publish latency",
			Buckets: prometheus.DefBuckets,
		}),

		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cryptoai_ws_clients",
			Help: "Connected WebSocket clients",
		}),
		WSMessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptoai_ws_messages_total",
			Help: "WebSocket messages sent by envelope type",
		}, []string{"type"}),
		ChatRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptoai_chat_requests_total",
			Help: "Chat requests by mode",
		}, []string{"mode"}),
		AlertsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cryptoai_alerts_sent_total",
			Help: "Strong-recommendation alerts dispatched",
		}),
	}

	reg.MustRegister(
		m.PollsTotal,
		m.PollDur,
		m.PointsIngested,
		m.FeedErrorsTotal,
		m.IndicatorComputeDur,
		m.IndicatorsTotal,
		m.IncompleteTotal,
		m.ComputePanics,
		m.CacheHits,
		m.CacheMisses,
		m.CacheEvictions,
		m.CacheExpirations,
		m.CacheEntries,
		m.FanoutDropsTotal,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.RedisPublishDur,
		m.WSClients,
		m.WSMessagesTotal,
		m.ChatRequests,
		m.AlertsSent,
	)

	return m
}

// CacheObserver adapts the cache counters to the store's event hooks.
type CacheObserver struct{ m *Metrics }

// CacheObserver returns an observer that feeds the cache metrics.
func (m *Metrics) CacheObserver() CacheObserver { return CacheObserver{m: m} }

func (o CacheObserver) Hit()          { o.m.CacheHits.Inc() }
func (o CacheObserver) Miss()         { o.m.CacheMisses.Inc() }
func (o CacheObserver) Evicted()      { o.m.CacheEvictions.Inc() }
func (o CacheObserver) Expired(n int) { o.m.CacheExpirations.Add(float64(n)) }
func (o CacheObserver) Entries(n int) { o.m.CacheEntries.Set(float64(n)) }

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	Exchange       string    `json:"exchange"`
	FeedOK         bool      `json:"feed_ok"`
	FailedSymbols  int       `json:"failed_symbols"`
	LastPollTime   time.Time `json:"last_poll_time"`
	RedisEnabled   bool      `json:"redis_enabled"`
	RedisConnected bool      `json:"redis_connected"`
	CacheHealthy   bool      `json:"cache_healthy"`
	Symbols        []string  `json:"symbols"`

	// Liveness check results
	RedisLatencyMs float64   `json:"redis_latency_ms"`
	LastCheckAt    time.Time `json:"last_check_at"`
	StartedAt      time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetExchange(name string) {
	h.mu.Lock()
	h.Exchange = name
	h.mu.Unlock()
}

// RecordPoll stores the outcome of one poll cycle. The feed counts as up
// while at least one of total symbols was fetched.
func (h *HealthStatus) RecordPoll(failed, total int, at time.Time) {
	h.mu.Lock()
	h.FeedOK = failed < total
	h.FailedSymbols = failed
	h.LastPollTime = at
	h.mu.Unlock()
}

// FeedStatus is the venue connectivity view served by the public API.
type FeedStatus struct {
	Exchange      string `json:"exchange"`
	Status        string `json:"status"` // pending before the first poll, then ok, partial or error
	Online        bool   `json:"online"`
	FailedSymbols int    `json:"failedSymbols"`
	Symbols       int    `json:"symbols"`
	Updated       int64  `json:"updated"` // unix ms of the last poll, 0 before it
}

// Feed reports the state of the market data feed.
func (h *HealthStatus) Feed() FeedStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	fs := FeedStatus{
		Exchange:      h.Exchange,
		Online:        h.FeedOK,
		FailedSymbols: h.FailedSymbols,
		Symbols:       len(h.Symbols),
	}
	switch {
	case h.LastPollTime.IsZero():
		fs.Status = "pending"
	case !h.FeedOK:
		fs.Status = "error"
	case h.FailedSymbols > 0:
		fs.Status = "partial"
	default:
		fs.Status = "ok"
	}
	if !h.LastPollTime.IsZero() {
		fs.Updated = h.LastPollTime.UnixMilli()
	}
	return fs
}

func (h *HealthStatus) SetRedisEnabled(v bool) {
	h.mu.Lock()
	h.RedisEnabled = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetCacheHealthy(v bool) {
	h.mu.Lock()
	h.CacheHealthy = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSymbols(symbols []string) {
	h.mu.Lock()
	h.Symbols = symbols
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks until ctx is done.
// cacheHealthy, when non-nil, is polled on the same interval.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, cacheHealthy func() bool, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(checkCtx, rdb)
				}
				cancel()
				if cacheHealthy != nil {
					h.SetCacheHealthy(cacheHealthy())
				}
			}
		}
	}()
}

// Status returns the overall status and the HTTP code that reports it.
// The feed is required; Redis only counts when enabled.
func (h *HealthStatus) Status() (string, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.statusLocked()
}

func (h *HealthStatus) statusLocked() (string, int) {
	switch {
	case !h.FeedOK:
		return "unhealthy", http.StatusServiceUnavailable
	case h.RedisEnabled && !h.RedisConnected:
		return "degraded", http.StatusServiceUnavailable
	case !h.CacheHealthy:
		// a cold or saturated cache slows responses but serves them
		return "degraded", http.StatusOK
	default:
		return "healthy", http.StatusOK
	}
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus, httpCode := h.statusLocked()

	// Poll age
	pollAge := ""
	if !h.LastPollTime.IsZero() {
		pollAge = time.Since(h.LastPollTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status         string   `json:"status"`
		Uptime         string   `json:"uptime"`
		FeedOK         bool     `json:"feed_ok"`
		LastPollTime   string   `json:"last_poll_time"`
		PollAge        string   `json:"poll_age"`
		RedisEnabled   bool     `json:"redis_enabled"`
		RedisConnected bool     `json:"redis_connected"`
		RedisLatencyMs float64  `json:"redis_latency_ms"`
		CacheHealthy   bool     `json:"cache_healthy"`
		Symbols        []string `json:"symbols"`
		LastCheckAt    string   `json:"last_check_at"`
	}{
		Status:         overallStatus,
		Uptime:         time.Since(h.StartedAt).Round(time.Second).String(),
		FeedOK:         h.FeedOK,
		LastPollTime:   h.LastPollTime.Format(time.RFC3339),
		PollAge:        pollAge,
		RedisEnabled:   h.RedisEnabled,
		RedisConnected: h.RedisConnected,
		RedisLatencyMs: h.RedisLatencyMs,
		CacheHealthy:   h.CacheHealthy,
		Symbols:        h.Symbols,
		LastCheckAt:    h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
	log    *slog.Logger
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus, log *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		log:    log,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info("metrics server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			s.log.Error("metrics server error", "error", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
