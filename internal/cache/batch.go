package cache

import (
	"context"
	"fmt"
	"time"
)

// Item is one entry of a batch write.
type Item struct {
	Key  string
	Data any
	TTL  time.Duration
}

// SetMultiple writes every item.
func (s *Store) SetMultiple(items []Item) {
	for _, it := range items {
		s.Set(it.Key, it.Data, it.TTL)
	}
}

// GetMultiple returns the live values among keys. Missing keys are absent
// from the result and each counts as a miss.
func (s *Store) GetMultiple(keys []string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := s.Get(k); ok {
			out[k] = v
		}
	}
	return out
}

// DeleteMultiple removes keys and returns how many were present.
func (s *Store) DeleteMultiple(keys []string) int {
	n := 0
	for _, k := range keys {
		if s.Delete(k) {
			n++
		}
	}
	return n
}

// GetOrSetAs is the typed form of GetOrSet. A cached value of another type
// is treated as a miss and overwritten.
func GetOrSetAs[T any](ctx context.Context, s *Store, key string, ttl time.Duration, fetch func(ctx context.Context) (T, error)) (T, error) {
	if v, ok := GetAs[T](s, key); ok {
		return v, nil
	}
	v, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	s.Set(key, v, ttl)
	return v, nil
}

// Health thresholds.
const (
	healthyHitRate  = 0.7
	healthyFillRate = 0.9
)

// Health summarizes whether the store is serving effectively.
type Health struct {
	Healthy bool     `json:"healthy"`
	Stats   Stats    `json:"stats"`
	Issues  []string `json:"issues,omitempty"`
}

// Health reports healthy when the hit rate is above 70% and the store is
// below 90% of its capacity.
func (s *Store) Health() Health {
	st := s.Stats()
	h := Health{Stats: st}
	if st.HitRate <= healthyHitRate {
		h.Issues = append(h.Issues, fmt.Sprintf("hit rate %.1f%% at or below %.0f%%", st.HitRate*100, healthyHitRate*100))
	}
	if limit := float64(st.MaxEntries) * healthyFillRate; float64(st.Entries) >= limit {
		h.Issues = append(h.Issues, fmt.Sprintf("%d entries at or above %.0f%% of capacity %d", st.Entries, healthyFillRate*100, st.MaxEntries))
	}
	h.Healthy = len(h.Issues) == 0
	return h
}
