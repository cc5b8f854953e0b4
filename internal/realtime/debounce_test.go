package realtime

import (
	"sync"
	"testing"
	"time"
)

type flushRecorder struct {
	mu     sync.Mutex
	writes []flushed
}

type flushed struct {
	targetID string
	payload  string
}

func (r *flushRecorder) flush(targetID, payload string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, flushed{targetID, payload})
}

func (r *flushRecorder) snapshot() []flushed {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]flushed, len(r.writes))
	copy(out, r.writes)
	return out
}

func (r *flushRecorder) waitFor(t *testing.T, n int) []flushed {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := r.snapshot(); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d flushes, have %d", n, len(r.snapshot()))
	return nil
}

func TestDebouncerCoalescesToLastPayload(t *testing.T) {
	rec := &flushRecorder{}
	d := NewDebouncer(30*time.Millisecond, rec.flush)

	d.Write("file-1", "P1")
	d.Write("file-1", "P2")

	got := rec.waitFor(t, 1)
	if len(got) != 1 {
		t.Fatalf("expected exactly one flush, got %d", len(got))
	}
	if got[0].payload != "P2" {
		t.Fatalf("expected last payload P2, got %q", got[0].payload)
	}

	// Quiet period passed; nothing else may fire.
	time.Sleep(60 * time.Millisecond)
	if n := len(rec.snapshot()); n != 1 {
		t.Fatalf("expected no further flushes, got %d", n)
	}
}

func TestDebouncerSeparateTargets(t *testing.T) {
	rec := &flushRecorder{}
	d := NewDebouncer(20*time.Millisecond, rec.flush)

	d.Write("a", "va")
	d.Write("b", "vb")

	got := rec.waitFor(t, 2)
	seen := map[string]string{}
	for _, w := range got {
		seen[w.targetID] = w.payload
	}
	if seen["a"] != "va" || seen["b"] != "vb" {
		t.Fatalf("unexpected flushes: %v", got)
	}
}

func TestDebouncerCloseFlushesPending(t *testing.T) {
	rec := &flushRecorder{}
	d := NewDebouncer(time.Hour, rec.flush)

	d.Write("file-1", "P1")
	d.Write("file-1", "P2")
	d.Close()

	got := rec.snapshot()
	if len(got) != 1 || got[0].payload != "P2" {
		t.Fatalf("expected Close to flush P2 exactly once, got %v", got)
	}

	// After Close, writes pass straight through.
	d.Write("file-1", "P3")
	got = rec.snapshot()
	if len(got) != 2 || got[1].payload != "P3" {
		t.Fatalf("expected write-through after Close, got %v", got)
	}
}

func TestDebouncerCancelDropsPending(t *testing.T) {
	rec := &flushRecorder{}
	d := NewDebouncer(time.Hour, rec.flush)

	d.Write("file-1", "P1")
	d.Cancel("file-1")
	d.Close()

	if got := rec.snapshot(); len(got) != 0 {
		t.Fatalf("expected cancelled write to be dropped, got %v", got)
	}
}

func TestDebouncerFlushFiresEarly(t *testing.T) {
	rec := &flushRecorder{}
	d := NewDebouncer(time.Hour, rec.flush)

	d.Write("file-1", "P1")
	d.Flush("file-1")

	got := rec.snapshot()
	if len(got) != 1 || got[0].payload != "P1" {
		t.Fatalf("expected immediate flush of P1, got %v", got)
	}

	// Flushing again is a no-op.
	d.Flush("file-1")
	if n := len(rec.snapshot()); n != 1 {
		t.Fatalf("expected no duplicate flush, got %d", n)
	}
}

func TestDebouncerZeroWindowWritesThrough(t *testing.T) {
	rec := &flushRecorder{}
	d := NewDebouncer(0, rec.flush)

	d.Write("file-1", "P1")
	d.Write("file-1", "P2")

	got := rec.snapshot()
	if len(got) != 2 {
		t.Fatalf("expected synchronous write-through, got %v", got)
	}
}
