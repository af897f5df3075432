package window

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"crypto-ai-trading/internal/model"
)

var t0 = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func pt(sec int, price float64) model.PricePoint {
	return model.FromPrice(t0.Add(time.Duration(sec)*time.Second), price)
}

func TestPriceWindow_InOrder(t *testing.T) {
	w := New(5)
	for i := 0; i < 3; i++ {
		w.Add(pt(i, float64(100+i)))
	}
	if w.Len() != 3 {
		t.Fatalf("len = %d, want 3", w.Len())
	}
	closes := w.Closes()
	for i, want := range []float64{100, 101, 102} {
		if closes[i] != want {
			t.Errorf("close[%d] = %v, want %v", i, closes[i], want)
		}
	}
}

func TestPriceWindow_OutOfOrderIsSorted(t *testing.T) {
	w := New(10)
	for _, sec := range []int{5, 1, 3, 2, 4} {
		w.Add(pt(sec, float64(sec)))
	}
	pts := w.Points()
	for i := 1; i < len(pts); i++ {
		if pts[i].Timestamp.Before(pts[i-1].Timestamp) {
			t.Fatalf("not sorted at %d: %v before %v", i, pts[i].Timestamp, pts[i-1].Timestamp)
		}
	}
	if pts[0].Close != 1 || pts[4].Close != 5 {
		t.Errorf("unexpected order: %v", w.Closes())
	}
}

func TestPriceWindow_EqualTimestampsKeepArrivalOrder(t *testing.T) {
	w := New(10)
	w.Add(pt(2, 20))
	w.Add(pt(1, 10))
	w.Add(pt(1, 11))
	got := w.Closes()
	want := []float64{10, 11, 20}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("closes = %v, want %v", got, want)
		}
	}
}

func TestPriceWindow_TruncatesOldest(t *testing.T) {
	w := New(3)
	for i := 0; i < 10; i++ {
		w.Add(pt(i, float64(i)))
		if w.Len() > 3 {
			t.Fatalf("len %d exceeds capacity after insert %d", w.Len(), i)
		}
	}
	got := w.Closes()
	for i, want := range []float64{7, 8, 9} {
		if got[i] != want {
			t.Errorf("close[%d] = %v, want %v", i, got[i], want)
		}
	}
}

func TestPriceWindow_DefaultCapacity(t *testing.T) {
	for _, c := range []int{0, -5} {
		if got := New(c).Cap(); got != DefaultCapacity {
			t.Errorf("New(%d).Cap() = %d, want %d", c, got, DefaultCapacity)
		}
	}
}

func TestPriceWindow_Latest(t *testing.T) {
	w := New(10)
	for i := 0; i < 5; i++ {
		w.Add(pt(i, float64(i)))
	}

	cases := []struct {
		n    int
		want []float64
	}{
		{0, nil},
		{-1, nil},
		{2, []float64{3, 4}},
		{5, []float64{0, 1, 2, 3, 4}},
		{50, []float64{0, 1, 2, 3, 4}},
	}
	for _, tc := range cases {
		got := w.Latest(tc.n)
		if len(got) != len(tc.want) {
			t.Errorf("Latest(%d) len = %d, want %d", tc.n, len(got), len(tc.want))
			continue
		}
		for i := range got {
			if got[i].Close != tc.want[i] {
				t.Errorf("Latest(%d)[%d] = %v, want %v", tc.n, i, got[i].Close, tc.want[i])
			}
		}
	}

	// Returned slice is a copy.
	got := w.Latest(1)
	got[0].Close = -1
	if last, _ := w.Last(); last.Close != 4 {
		t.Errorf("Latest leaked internal state: last close = %v", last.Close)
	}
}

func TestPriceWindow_HasEnoughData(t *testing.T) {
	w := New(10)
	if !w.HasEnoughData(0) {
		t.Error("empty window should satisfy requirement 0")
	}
	w.Add(pt(0, 1))
	w.Add(pt(1, 2))
	if !w.HasEnoughData(2) || w.HasEnoughData(3) {
		t.Error("HasEnoughData mismatch at len 2")
	}
	if _, ok := New(1).Last(); ok {
		t.Error("Last on empty window should report false")
	}
}

// ────────────────────────────────────────────────────────────
// Registry
// ────────────────────────────────────────────────────────────

func TestRegistry_IsolatesInstruments(t *testing.T) {
	r := NewRegistry(5)
	r.Add("BTC/USDT", pt(0, 100))
	r.Add("BTC/USDT", pt(1, 101))
	r.Add("ETH/USDT", pt(0, 10))

	if n := r.Len("BTC/USDT"); n != 2 {
		t.Errorf("BTC len = %d, want 2", n)
	}
	if n := r.Len("ETH/USDT"); n != 1 {
		t.Errorf("ETH len = %d, want 1", n)
	}
	if n := r.Len("SOL/USDT"); n != 0 {
		t.Errorf("unknown len = %d, want 0", n)
	}

	keys := r.Keys()
	if len(keys) != 2 || keys[0] != "BTC/USDT" || keys[1] != "ETH/USDT" {
		t.Errorf("keys = %v", keys)
	}

	if ok := r.View("SOL/USDT", func(*PriceWindow) { t.Error("fn called for unknown key") }); ok {
		t.Error("View should report false for unknown key")
	}

	r.Remove("ETH/USDT")
	if _, ok := r.Snapshot("ETH/USDT"); ok {
		t.Error("snapshot after Remove should report false")
	}
}

func TestRegistry_AddBatch(t *testing.T) {
	r := NewRegistry(3)
	n := r.AddBatch("X", []model.PricePoint{pt(3, 3), pt(1, 1), pt(2, 2), pt(4, 4)})
	if n != 3 {
		t.Fatalf("len = %d, want 3", n)
	}
	pts, _ := r.Snapshot("X")
	if pts[0].Close != 2 || pts[2].Close != 4 {
		t.Errorf("unexpected window: %+v", pts)
	}
}

func TestRegistry_AddNewer(t *testing.T) {
	r := NewRegistry(10)
	if n := r.AddNewer("X", []model.PricePoint{pt(1, 1), pt(2, 2), pt(3, 3)}); n != 3 {
		t.Fatalf("first batch added %d, want 3", n)
	}
	// Overlapping poll: 2 and 3 are already held.
	if n := r.AddNewer("X", []model.PricePoint{pt(2, 20), pt(3, 30), pt(4, 4)}); n != 1 {
		t.Fatalf("overlapping batch added %d, want 1", n)
	}
	pts, _ := r.Snapshot("X")
	if len(pts) != 4 || pts[1].Close != 2 || pts[3].Close != 4 {
		t.Errorf("unexpected window: %+v", pts)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry(50)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			key := fmt.Sprintf("SYM%d", g%4)
			for i := 0; i < 200; i++ {
				r.Add(key, pt(i, float64(i)))
				r.View(key, func(w *PriceWindow) {
					if w.Len() > 50 {
						t.Errorf("window exceeded capacity: %d", w.Len())
					}
				})
			}
		}(g)
	}
	wg.Wait()

	if len(r.Keys()) != 4 {
		t.Errorf("keys = %v, want 4 instruments", r.Keys())
	}
}

func TestPriceWindow_VersionCountsInsertions(t *testing.T) {
	w := New(2)
	if w.Version() != 0 {
		t.Fatalf("new window version = %d", w.Version())
	}
	for i := 0; i < 3; i++ {
		w.Add(pt(i, float64(i)))
	}
	if w.Version() != 3 {
		t.Errorf("version = %d after 3 inserts into a 2-point window, want 3", w.Version())
	}
	if w.Len() != 2 {
		t.Errorf("len = %d, want 2", w.Len())
	}
}
