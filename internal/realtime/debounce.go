package realtime

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of writes per target into a single flush
// carrying the most recent payload. Keystroke-rate edits to a file become
// one persisted write per quiet period; intermediate payloads are
// intentionally dropped (last writer wins within the session too).
//
// Teardown policy is flush-on-close: Close fires every pending write so
// the final state of a burst is never lost when a session ends mid-window.
// Cancel exists for the rare case where dropping is the right thing
// (target deleted under the editor).
type Debouncer[T any] struct {
	window time.Duration
	flush  func(targetID string, payload T)

	mu      sync.Mutex
	pending map[string]*pendingWrite[T]
	closed  bool
}

type pendingWrite[T any] struct {
	payload T
	timer   *time.Timer
}

// NewDebouncer builds a debouncer with the given quiet window. A window
// of zero or less disables coalescing: every Write flushes synchronously.
func NewDebouncer[T any](window time.Duration, flush func(targetID string, payload T)) *Debouncer[T] {
	return &Debouncer[T]{
		window:  window,
		flush:   flush,
		pending: make(map[string]*pendingWrite[T]),
	}
}

// Write schedules payload for targetID. A write arriving inside the
// window of an earlier one for the same target replaces its payload and
// restarts the window.
func (d *Debouncer[T]) Write(targetID string, payload T) {
	if d.window <= 0 {
		d.flush(targetID, payload)
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		// The owning session is gone; write through rather than drop.
		d.flush(targetID, payload)
		return
	}
	if p, ok := d.pending[targetID]; ok {
		p.payload = payload
		p.timer.Reset(d.window)
		d.mu.Unlock()
		return
	}
	p := &pendingWrite[T]{payload: payload}
	p.timer = time.AfterFunc(d.window, func() { d.fire(targetID, p) })
	d.pending[targetID] = p
	d.mu.Unlock()
}

func (d *Debouncer[T]) fire(targetID string, p *pendingWrite[T]) {
	d.mu.Lock()
	current, ok := d.pending[targetID]
	if !ok || current != p {
		// Flushed or cancelled while the timer was in flight.
		d.mu.Unlock()
		return
	}
	delete(d.pending, targetID)
	payload := p.payload
	d.mu.Unlock()

	d.flush(targetID, payload)
}

// Flush persists the pending write for targetID immediately, if any.
func (d *Debouncer[T]) Flush(targetID string) {
	d.mu.Lock()
	p, ok := d.pending[targetID]
	if ok {
		delete(d.pending, targetID)
		p.timer.Stop()
	}
	d.mu.Unlock()

	if ok {
		d.flush(targetID, p.payload)
	}
}

// Cancel drops the pending write for targetID without persisting it.
func (d *Debouncer[T]) Cancel(targetID string) {
	d.mu.Lock()
	if p, ok := d.pending[targetID]; ok {
		delete(d.pending, targetID)
		p.timer.Stop()
	}
	d.mu.Unlock()
}

// Close flushes everything pending and puts the debouncer in write-through
// mode. Safe to call more than once.
func (d *Debouncer[T]) Close() {
	d.mu.Lock()
	d.closed = true
	remaining := d.pending
	d.pending = make(map[string]*pendingWrite[T])
	d.mu.Unlock()

	for targetID, p := range remaining {
		p.timer.Stop()
		d.flush(targetID, p.payload)
	}
}
