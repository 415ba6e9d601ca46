package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Window is a resetting call budget: up to maxCalls recorded calls are
// allowed, after which callers block until the window has elapsed since its
// start, at which point the count resets to zero and a new window begins.
//
// It is not a sliding window: a burst near the end of a window can leave
// callers waiting almost a full window.
type Window struct {
	maxCalls int
	length   time.Duration
	clock    Clock

	mu    sync.Mutex
	calls int
	start time.Time
}

// NewWindow creates a window starting now
func NewWindow(maxCalls int, length time.Duration, clock Clock) *Window {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Window{
		maxCalls: maxCalls,
		length:   length,
		clock:    clock,
		start:    clock.Now(),
	}
}

// Wait blocks until the window has capacity. It does not consume capacity;
// callers call Record once the guarded exchange has completed. notify, if
// non-nil, is called with the planned suspension before sleeping.
func (w *Window) Wait(ctx context.Context, notify func(wait time.Duration)) error {
	for {
		w.mu.Lock()
		if w.calls < w.maxCalls {
			w.mu.Unlock()
			return nil
		}

		remaining := w.length - w.clock.Now().Sub(w.start)
		if remaining <= 0 {
			w.reset()
			w.mu.Unlock()
			return nil
		}
		w.mu.Unlock()

		if notify != nil {
			notify(remaining)
		}
		if err := w.clock.Sleep(ctx, remaining); err != nil {
			return err
		}
	}
}

// Allow reports whether a call could proceed right now without waiting,
// resetting an elapsed window as a side effect
func (w *Window) Allow() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.calls < w.maxCalls {
		return true
	}
	if w.clock.Now().Sub(w.start) >= w.length {
		w.reset()
		return true
	}
	return false
}

// Record counts one completed call against the window
func (w *Window) Record() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
}

// Reset starts a fresh window now
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reset()
}

// reset must be called with mu held
func (w *Window) reset() {
	w.calls = 0
	w.start = w.clock.Now()
}

// Status is a point-in-time view of a window
type Status struct {
	Category    Category
	Calls       int
	MaxCalls    int
	Window      time.Duration
	WindowStart time.Time
}

func (w *Window) status(c Category) Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Status{
		Category:    c,
		Calls:       w.calls,
		MaxCalls:    w.maxCalls,
		Window:      w.length,
		WindowStart: w.start,
	}
}
