package attempt

import (
	"sync"
	"time"
)

// Ticker is the tick source behind a Timer.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc builds a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type stdTicker struct {
	t *time.Ticker
}

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

// NewStdTicker wraps time.NewTicker.
func NewStdTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

// Timer runs onTick on every tick of its source until stopped.
// Stop is safe to call from inside onTick and more than once.
type Timer struct {
	interval  time.Duration
	newTicker TickerFunc
	onTick    func()

	mu      sync.Mutex
	running bool
	stop    chan struct{}
}

// NewTimer returns a stopped timer calling onTick once per interval.
func NewTimer(interval time.Duration, newTicker TickerFunc, onTick func()) *Timer {
	if newTicker == nil {
		newTicker = NewStdTicker
	}
	return &Timer{
		interval:  interval,
		newTicker: newTicker,
		onTick:    onTick,
	}
}

// Start begins ticking. It returns false if the timer is already running.
func (t *Timer) Start() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return false
	}
	t.running = true
	t.stop = make(chan struct{})
	go t.loop(t.newTicker(t.interval), t.stop)
	return true
}

func (t *Timer) loop(ticker Ticker, stop <-chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			select {
			case <-stop:
				return
			default:
			}
			t.onTick()
		}
	}
}

// Stop releases the tick source. A tick already being handled runs to completion.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.running = false
	close(t.stop)
}

// IsRunning reports whether ticks are being delivered.
func (t *Timer) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}
