package cache

import (
	"sync"
	"time"
)

// flusher debounces store flushes: every Schedule pushes the single pending
// flush back to delay after the latest call.
type flusher struct {
	delay time.Duration
	flush func()

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	closed  bool
	running sync.WaitGroup
}

func newFlusher(delay time.Duration, flush func()) *flusher {
	return &flusher{delay: delay, flush: flush}
}

// Schedule cancels any pending flush and arms a new one.
func (f *flusher) Schedule() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.stopLocked()
	f.gen++
	gen := f.gen
	f.timer = time.AfterFunc(f.delay, func() { f.fire(gen) })
}

func (f *flusher) fire(gen uint64) {
	f.mu.Lock()
	if f.closed || gen != f.gen {
		f.mu.Unlock()
		return
	}
	f.timer = nil
	f.running.Add(1)
	f.mu.Unlock()

	defer f.running.Done()
	f.flush()
}

// Pending reports whether a flush is armed.
func (f *flusher) Pending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.timer != nil
}

// Cancel disarms the pending flush, if any.
func (f *flusher) Cancel() {
	f.mu.Lock()
	f.stopLocked()
	f.mu.Unlock()
}

// Close disarms the flusher for good and waits for a flush already running.
// It reports whether a flush was pending.
func (f *flusher) Close() bool {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return false
	}
	f.closed = true
	pending := f.timer != nil
	f.stopLocked()
	f.mu.Unlock()

	f.running.Wait()
	return pending
}

func (f *flusher) stopLocked() {
	f.gen++
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}
