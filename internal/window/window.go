// Package window holds bounded, time-ordered price buffers per instrument.
package window

import (
	"sort"

	"crypto-ai-trading/internal/model"
)

// DefaultCapacity is the number of points kept when no capacity is given.
const DefaultCapacity = 200

// PriceWindow is a bounded buffer of price points kept in non-decreasing
// timestamp order. Insertion is the only mutator; once full, the oldest
// points are dropped.
//
// A PriceWindow is not safe for concurrent use. Registry serializes access.
type PriceWindow struct {
	capacity int
	points   []model.PricePoint
	version  uint64
}

// New creates a window holding at most capacity points.
// Non-positive capacity falls back to DefaultCapacity.
func New(capacity int) *PriceWindow {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &PriceWindow{
		capacity: capacity,
		points:   make([]model.PricePoint, 0, capacity+1),
	}
}

// Add inserts p in timestamp order. Points with equal timestamps keep their
// arrival order. If the window overflows, the oldest points are dropped.
func (w *PriceWindow) Add(p model.PricePoint) {
	w.version++

	// Fast path: in-order arrival.
	n := len(w.points)
	if n == 0 || !p.Timestamp.Before(w.points[n-1].Timestamp) {
		w.points = append(w.points, p)
	} else {
		i := sort.Search(n, func(i int) bool {
			return w.points[i].Timestamp.After(p.Timestamp)
		})
		w.points = append(w.points, model.PricePoint{})
		copy(w.points[i+1:], w.points[i:])
		w.points[i] = p
	}

	if over := len(w.points) - w.capacity; over > 0 {
		w.points = append(w.points[:0], w.points[over:]...)
	}
}

// Version counts insertions since creation. Two reads with equal versions
// saw the same points.
func (w *PriceWindow) Version() uint64 { return w.version }

// Len returns the number of points held.
func (w *PriceWindow) Len() int { return len(w.points) }

// Cap returns the maximum number of points held.
func (w *PriceWindow) Cap() int { return w.capacity }

// HasEnoughData reports whether at least required points are held.
func (w *PriceWindow) HasEnoughData(required int) bool {
	return len(w.points) >= required
}

// Latest returns a copy of the newest n points, oldest first.
// Fewer are returned when the window holds less than n; n <= 0 returns none.
func (w *PriceWindow) Latest(n int) []model.PricePoint {
	if n <= 0 {
		return []model.PricePoint{}
	}
	if n > len(w.points) {
		n = len(w.points)
	}
	out := make([]model.PricePoint, n)
	copy(out, w.points[len(w.points)-n:])
	return out
}

// Points returns a copy of every point held, oldest first.
func (w *PriceWindow) Points() []model.PricePoint {
	return w.Latest(len(w.points))
}

// Closes returns a copy of the close prices, oldest first.
func (w *PriceWindow) Closes() []float64 {
	return model.Closes(w.points)
}

// Last returns the newest point.
func (w *PriceWindow) Last() (model.PricePoint, bool) {
	if len(w.points) == 0 {
		return model.PricePoint{}, false
	}
	return w.points[len(w.points)-1], true
}
