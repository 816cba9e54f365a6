package clock

import (
	"sync"
	"time"
)

// FakeClock is a Clock whose time only moves when the test advances it.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*FakeTicker
}

// NewFakeClock returns a FakeClock pinned to start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (f *FakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.now
}

func (f *FakeClock) Ticker(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := &FakeTicker{
		period: d,
		ch:     make(chan time.Time, 1),
	}
	f.tickers = append(f.tickers, t)

	return t
}

// Advance moves the clock forward and delivers one tick to every ticker
// whose period has elapsed. Ticks are non-blocking; a ticker that has not
// been drained keeps its pending tick.
func (f *FakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	now := f.now
	tickers := make([]*FakeTicker, len(f.tickers))
	copy(tickers, f.tickers)
	f.mu.Unlock()

	for _, t := range tickers {
		t.maybeTick(now, d)
	}
}

// FakeTicker is the Ticker returned by FakeClock.
type FakeTicker struct {
	mu      sync.Mutex
	period  time.Duration
	ch      chan time.Time
	stopped bool
}

func (t *FakeTicker) Chan() <-chan time.Time {
	return t.ch
}

func (t *FakeTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
}

func (t *FakeTicker) maybeTick(now time.Time, elapsed time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped || elapsed < t.period {
		return
	}

	select {
	case t.ch <- now:
	default:
	}
}
