package capture

import (
	"sync"
	"time"
)

// flushTimer is a cancellable debounce handle. At most one schedule is
// pending; Reset supersedes it and Cancel drops it. Every schedule carries a
// generation number so a timer that already fired but lost the race with
// Reset or Cancel does nothing.
type flushTimer struct {
	delay time.Duration
	fn    func()

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

func newFlushTimer(delay time.Duration, fn func()) *flushTimer {
	return &flushTimer{delay: delay, fn: fn}
}

// Reset cancels any pending schedule and starts a new one.
func (t *flushTimer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	gen := t.gen
	t.timer = time.AfterFunc(t.delay, func() { t.fire(gen) })
}

// Cancel drops the pending schedule, if any.
func (t *flushTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Pending reports whether a schedule is outstanding.
func (t *flushTimer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

func (t *flushTimer) stopLocked() {
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *flushTimer) fire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.mu.Unlock()
	t.fn()
}
