// Package cache is an in-memory key/value store with per-entry TTL,
// bounded size, glob pattern queries and hit statistics. It memoizes
// computed analyses and raw market snapshots with category-specific expiry.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Defaults.
const (
	DefaultTTL           = 60 * time.Second
	DefaultMaxEntries    = 10000
	DefaultSweepInterval = 30 * time.Second
)

// Config configures a Store.
type Config struct {
	MaxEntries    int           `yaml:"max_entries"`
	DefaultTTL    time.Duration `yaml:"default_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	TTL           TTLConfig     `yaml:"ttl"`
}

// DefaultConfig returns the stock store configuration.
func DefaultConfig() Config {
	return Config{
		MaxEntries:    DefaultMaxEntries,
		DefaultTTL:    DefaultTTL,
		SweepInterval: DefaultSweepInterval,
		TTL:           DefaultTTLs(),
	}
}

func (c Config) normalize() Config {
	if c.MaxEntries <= 0 {
		c.MaxEntries = DefaultMaxEntries
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = DefaultTTL
	}
	c.TTL = c.TTL.normalize()
	return c
}

// Observer receives store events. Implementations must be cheap and
// safe for concurrent use.
type Observer interface {
	Hit()
	Miss()
	Evicted()
	Expired(n int)
	Entries(n int)
}

type nopObserver struct{}

func (nopObserver) Hit()        {}
func (nopObserver) Miss()       {}
func (nopObserver) Evicted()    {}
func (nopObserver) Expired(int) {}
func (nopObserver) Entries(int) {}

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.log = l } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithObserver attaches an event observer (e.g. Prometheus counters).
func WithObserver(o Observer) Option { return func(s *Store) { s.obs = o } }

// entry is immutable once stored except for its hit counter.
type entry struct {
	key       string
	data      any
	createdAt time.Time
	ttl       time.Duration
	hits      atomic.Int64
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) > e.ttl
}

// Store is safe for concurrent use.
type Store struct {
	cfg Config
	log *slog.Logger
	now func() time.Time
	obs Observer

	mu      sync.RWMutex
	entries map[string]*entry

	hits        atomic.Int64
	misses      atomic.Int64
	evictions   atomic.Int64
	expirations atomic.Int64

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Store and starts its background sweeper when
// cfg.SweepInterval is positive. Call Close to stop it.
func New(cfg Config, opts ...Option) *Store {
	s := &Store{
		cfg:     cfg.normalize(),
		log:     slog.Default(),
		now:     time.Now,
		obs:     nopObserver{},
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.cfg.SweepInterval > 0 {
		go s.sweepLoop(s.cfg.SweepInterval)
	} else {
		close(s.done)
	}
	return s
}

// Config returns the effective configuration.
func (s *Store) Config() Config { return s.cfg }

// Set stores data under key for ttl. A non-positive ttl uses DefaultTTL.
// Inserting a new key at capacity first evicts the least-hit entry.
func (s *Store) Set(key string, data any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}
	e := &entry{key: key, data: data, createdAt: s.now(), ttl: ttl}

	s.mu.Lock()
	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.cfg.MaxEntries {
		s.evictLocked()
	}
	s.entries[key] = e
	n := len(s.entries)
	s.mu.Unlock()

	s.obs.Entries(n)
}

// evictLocked removes the entry with the fewest hits, oldest first on ties.
// This approximates LRU without tracking access order.
func (s *Store) evictLocked() {
	var victim *entry
	for _, e := range s.entries {
		if victim == nil {
			victim = e
			continue
		}
		h, vh := e.hits.Load(), victim.hits.Load()
		if h < vh || (h == vh && e.createdAt.Before(victim.createdAt)) {
			victim = e
		}
	}
	if victim == nil {
		return
	}
	delete(s.entries, victim.key)
	s.evictions.Add(1)
	s.obs.Evicted()
	s.log.Debug("cache eviction", slog.String("key", victim.key), slog.Int64("hits", victim.hits.Load()))
}

// Get returns the value stored under key. Expired entries are removed on
// access and count as misses.
func (s *Store) Get(key string) (any, bool) { return s.get(key, nil) }

// get is Get with an optional acceptance check. A value accept rejects is
// reported and counted as a miss, and its hit count is left alone.
func (s *Store) get(key string, accept func(any) bool) (any, bool) {
	now := s.now()

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		s.miss()
		return nil, false
	}
	if e.expired(now) {
		s.mu.Lock()
		// Only drop the entry we saw; a concurrent Set may have replaced it.
		if cur, ok := s.entries[key]; ok && cur == e {
			delete(s.entries, key)
			s.expirations.Add(1)
			s.obs.Expired(1)
		}
		s.mu.Unlock()
		s.miss()
		return nil, false
	}
	if accept != nil && !accept(e.data) {
		s.miss()
		return nil, false
	}

	e.hits.Add(1)
	s.hits.Add(1)
	s.obs.Hit()
	return e.data, true
}

func (s *Store) miss() {
	s.misses.Add(1)
	s.obs.Miss()
}

// Has reports whether key holds a live entry. It does not touch statistics.
func (s *Store) Has(key string) bool {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return ok && !e.expired(now)
}

// Delete removes key. Returns whether it was present.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	_, ok := s.entries[key]
	delete(s.entries, key)
	n := len(s.entries)
	s.mu.Unlock()
	s.obs.Entries(n)
	return ok
}

// Clear removes every entry and resets statistics.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]*entry)
	s.mu.Unlock()

	s.hits.Store(0)
	s.misses.Store(0)
	s.evictions.Store(0)
	s.expirations.Store(0)
	s.obs.Entries(0)
}

// Len returns the number of stored entries, including expired entries not
// yet swept.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Fetcher loads a value on a cache miss.
type Fetcher func(ctx context.Context) (any, error)

// GetOrSet returns the cached value for key, or calls fetch and caches its
// result for ttl. Concurrent misses on the same key each call fetch.
// Fetch errors are returned and nothing is cached.
func (s *Store) GetOrSet(ctx context.Context, key string, ttl time.Duration, fetch Fetcher) (any, error) {
	if v, ok := s.Get(key); ok {
		return v, nil
	}
	v, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	s.Set(key, v, ttl)
	return v, nil
}

// ────────────────────────────────────────────────────────────
// Pattern operations
// ────────────────────────────────────────────────────────────

// compilePattern turns a glob with '*' wildcards into an anchored regexp.
// All other characters match literally.
func compilePattern(glob string) *regexp.Regexp {
	parts := strings.Split(glob, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile("^" + strings.Join(parts, ".*") + "$")
}

// GetByPattern returns every live entry whose full key matches glob.
// It does not touch statistics.
func (s *Store) GetByPattern(glob string) map[string]any {
	re := compilePattern(glob)
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any)
	for k, e := range s.entries {
		if !e.expired(now) && re.MatchString(k) {
			out[k] = e.data
		}
	}
	return out
}

// DeleteByPattern removes every entry whose full key matches glob and
// returns how many were removed.
func (s *Store) DeleteByPattern(glob string) int {
	re := compilePattern(glob)

	s.mu.Lock()
	removed := 0
	for k := range s.entries {
		if re.MatchString(k) {
			delete(s.entries, k)
			removed++
		}
	}
	n := len(s.entries)
	s.mu.Unlock()

	s.obs.Entries(n)
	return removed
}

// ────────────────────────────────────────────────────────────
// Expiry sweep
// ────────────────────────────────────────────────────────────

// Sweep removes every expired entry and returns how many were removed.
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.Lock()
	removed := 0
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
			removed++
		}
	}
	n := len(s.entries)
	s.mu.Unlock()

	if removed > 0 {
		s.expirations.Add(int64(removed))
		s.obs.Expired(removed)
		s.log.Debug("cache sweep", slog.Int("removed", removed), slog.Int("entries", n))
	}
	s.obs.Entries(n)
	return removed
}

func (s *Store) sweepLoop(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Close stops the sweeper and drops every entry. Safe to call repeatedly.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
		s.Clear()
	})
}

// ────────────────────────────────────────────────────────────
// Statistics
// ────────────────────────────────────────────────────────────

// Stats is a point-in-time view of store counters.
type Stats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	HitRate     float64 `json:"hitRate"` // hits/(hits+misses), 0 when idle
	Entries     int     `json:"entries"`
	MaxEntries  int     `json:"maxEntries"`
	MemoryBytes int64   `json:"memoryBytes"`
	Evictions   int64   `json:"evictions"`
	Expirations int64   `json:"expirations"`
}

// Stats returns current counters and a memory estimate.
func (s *Store) Stats() Stats {
	hits, misses := s.hits.Load(), s.misses.Load()
	st := Stats{
		Hits:        hits,
		Misses:      misses,
		MaxEntries:  s.cfg.MaxEntries,
		Evictions:   s.evictions.Load(),
		Expirations: s.expirations.Load(),
	}
	if total := hits + misses; total > 0 {
		st.HitRate = float64(hits) / float64(total)
	}

	s.mu.RLock()
	st.Entries = len(s.entries)
	for k, e := range s.entries {
		st.MemoryBytes += int64(len(k)) + encodedSize(e.data)
	}
	s.mu.RUnlock()
	return st
}

// encodedSize estimates a value's footprint by its JSON length.
func encodedSize(v any) int64 {
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return int64(len(b))
}

// KeyStat describes one entry for the top-keys report.
type KeyStat struct {
	Key  string        `json:"key"`
	Hits int64         `json:"hits"`
	Age  time.Duration `json:"age"`
	TTL  time.Duration `json:"ttl"`
}

// TopKeys returns up to limit entries ordered by hit count, most hit first.
func (s *Store) TopKeys(limit int) []KeyStat {
	if limit <= 0 {
		return []KeyStat{}
	}
	now := s.now()

	s.mu.RLock()
	out := make([]KeyStat, 0, len(s.entries))
	for k, e := range s.entries {
		out = append(out, KeyStat{Key: k, Hits: e.hits.Load(), Age: now.Sub(e.createdAt), TTL: e.ttl})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Hits != out[j].Hits {
			return out[i].Hits > out[j].Hits
		}
		return out[i].Key < out[j].Key
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
