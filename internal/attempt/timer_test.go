package attempt

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTimerStartStop(t *testing.T) {
	ticker := newManualTicker()
	var ticks atomic.Int32
	timer := NewTimer(time.Second, ticker.factory(), func() { ticks.Add(1) })

	if timer.IsRunning() {
		t.Fatalf("timer must not run before Start")
	}
	if !timer.Start() {
		t.Fatalf("expected first Start to succeed")
	}
	if timer.Start() {
		t.Fatalf("expected second Start to report already running")
	}

	ticker.ch <- time.Now()
	ticker.ch <- time.Now()
	ticker.ch <- time.Now()
	deadline := time.Now().Add(time.Second)
	for ticks.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if ticks.Load() < 2 {
		t.Fatalf("expected ticks to be delivered, got %d", ticks.Load())
	}

	timer.Stop()
	timer.Stop()
	if timer.IsRunning() {
		t.Fatalf("expected timer stopped")
	}
}

func TestTimerStopFromTick(t *testing.T) {
	ticker := newManualTicker()
	var timer *Timer
	stopped := make(chan struct{})
	timer = NewTimer(time.Second, ticker.factory(), func() {
		timer.Stop()
		close(stopped)
	})
	timer.Start()
	ticker.ch <- time.Now()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatalf("tick handler did not run")
	}
	if timer.IsRunning() {
		t.Fatalf("expected timer stopped from inside the tick")
	}
}
