package window

import (
	"sort"
	"sync"

	"crypto-ai-trading/internal/model"
)

// Registry owns one PriceWindow per instrument key. Each window carries its
// own lock: writers to one instrument never block readers of another.
type Registry struct {
	capacity int

	mu    sync.RWMutex
	slots map[string]*slot
}

type slot struct {
	mu sync.RWMutex
	w  *PriceWindow
}

// NewRegistry creates an empty registry whose windows hold capacity points.
func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{
		capacity: capacity,
		slots:    make(map[string]*slot),
	}
}

func (r *Registry) slot(key string, create bool) *slot {
	r.mu.RLock()
	s, ok := r.slots[key]
	r.mu.RUnlock()
	if ok || !create {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok = r.slots[key]; ok {
		return s
	}
	s = &slot{w: New(r.capacity)}
	r.slots[key] = s
	return s
}

// Add appends p to the window for key, creating it on first use.
// Returns the window length after insertion.
func (r *Registry) Add(key string, p model.PricePoint) int {
	s := r.slot(key, true)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Add(p)
	return s.w.Len()
}

// AddBatch inserts points for key under a single lock acquisition.
func (r *Registry) AddBatch(key string, points []model.PricePoint) int {
	s := r.slot(key, true)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		s.w.Add(p)
	}
	return s.w.Len()
}

// AddNewer inserts only the points strictly newer than the newest point
// already held for key, so overlapping polls do not duplicate candles.
// Returns how many points were inserted.
func (r *Registry) AddNewer(key string, points []model.PricePoint) int {
	s := r.slot(key, true)
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.w.Last()
	added := 0
	for _, p := range points {
		if ok && !p.Timestamp.After(last.Timestamp) {
			continue
		}
		s.w.Add(p)
		added++
	}
	return added
}

// View runs fn with the window for key under its read lock.
// fn must not retain the window. Returns false when key is unknown.
func (r *Registry) View(key string, fn func(w *PriceWindow)) bool {
	s := r.slot(key, false)
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.w)
	return true
}

// Snapshot returns a copy of the points held for key.
func (r *Registry) Snapshot(key string) ([]model.PricePoint, bool) {
	var pts []model.PricePoint
	ok := r.View(key, func(w *PriceWindow) { pts = w.Points() })
	return pts, ok
}

// Len returns the number of points held for key (0 if unknown).
func (r *Registry) Len(key string) int {
	n := 0
	r.View(key, func(w *PriceWindow) { n = w.Len() })
	return n
}

// Remove drops the window for key.
func (r *Registry) Remove(key string) {
	r.mu.Lock()
	delete(r.slots, key)
	r.mu.Unlock()
}

// Keys returns the registered instrument keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	keys := make([]string, 0, len(r.slots))
	for k := range r.slots {
		keys = append(keys, k)
	}
	r.mu.RUnlock()
	sort.Strings(keys)
	return keys
}
