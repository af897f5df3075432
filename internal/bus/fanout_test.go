package bus

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"crypto-ai-trading/internal/model"
)

func TestFanOut_BroadcastsToAll(t *testing.T) {
	fo := New[model.TechnicalIndicators](10)
	out1 := fo.Subscribe()
	out2 := fo.Subscribe()

	input := make(chan model.TechnicalIndicators, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fo.Run(ctx, input)

	input <- model.TechnicalIndicators{Symbol: "BTC/USDT"}

	for i, out := range []<-chan model.TechnicalIndicators{out1, out2} {
		select {
		case ti := <-out:
			if ti.Symbol != "BTC/USDT" {
				t.Errorf("out%d: expected BTC/USDT, got %s", i+1, ti.Symbol)
			}
		case <-time.After(time.Second):
			t.Fatalf("out%d: timed out waiting for snapshot", i+1)
		}
	}
}

func TestFanOut_DropsForSlowSubscriber(t *testing.T) {
	fo := New[int](1)
	fast := fo.Subscribe()
	_ = fo.Subscribe() // never drained

	var drops atomic.Int32
	fo.OnDrop = func(idx int) {
		if idx != 1 {
			t.Errorf("expected drop on subscriber 1, got %d", idx)
		}
		drops.Add(1)
	}

	if n := fo.Publish(1); n != 2 {
		t.Fatalf("expected 2 deliveries, got %d", n)
	}
	<-fast
	if n := fo.Publish(2); n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}
	if drops.Load() != 1 {
		t.Errorf("expected 1 drop, got %d", drops.Load())
	}

	stats := fo.ChannelStats()
	if len(stats) != 2 || stats[1].Len != 1 || stats[1].Cap != 1 {
		t.Errorf("unexpected channel stats %+v", stats)
	}
}

func TestFanOut_RunClosesOutputs(t *testing.T) {
	fo := New[int](1)
	out := fo.Subscribe()
	input := make(chan int)

	done := make(chan struct{})
	go func() {
		fo.Run(context.Background(), input)
		close(done)
	}()
	close(input)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after input closed")
	}
	if _, ok := <-out; ok {
		t.Error("expected output channel to be closed")
	}

	late := fo.Subscribe()
	if _, ok := <-late; ok {
		t.Error("expected late subscription to be closed")
	}
	if n := fo.Publish(3); n != 0 {
		t.Errorf("expected no deliveries after close, got %d", n)
	}
	fo.Close()
}
