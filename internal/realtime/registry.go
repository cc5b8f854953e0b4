package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// SnapshotFunc loads the current full state of a collection. It runs once
// per Subscribe, after the change stream is attached, so a subscriber
// never misses a write (it may observe one both in the snapshot and as a
// change event; consumers treat events as upserts, which makes that safe).
type SnapshotFunc func(ctx context.Context) (Event, error)

// Registry tracks the live subscriptions of one client session and
// guarantees at most one subscription per (collection, workspace) pair.
// Subscribing to an already-subscribed pair disposes the previous
// subscription first. DisposeAll runs on session teardown.
type Registry struct {
	broadcaster Broadcaster

	mu     sync.Mutex
	subs   map[subKey]*Subscription
	closed bool
}

type subKey struct {
	collection  Collection
	workspaceID uuid.UUID
}

// Subscription is a live listener on one (collection, workspace) pair.
type Subscription struct {
	registry *Registry
	key      subKey
	detach   func()

	mu   sync.Mutex
	dead bool
}

func NewRegistry(b Broadcaster) *Registry {
	return &Registry{
		broadcaster: b,
		subs:        make(map[subKey]*Subscription),
	}
}

// Subscribe attaches onEvent to the workspace's change stream filtered to
// one collection, then delivers the initial snapshot. Delivery order is:
// snapshot first, then changes (changes racing the snapshot load are
// buffered until the snapshot has gone out). An OpError event is terminal
// for the subscription; the caller may Subscribe again.
func (r *Registry) Subscribe(ctx context.Context, collection Collection, workspaceID uuid.UUID, snapshot SnapshotFunc, onEvent func(Event)) (*Subscription, error) {
	if !collection.Valid() {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}

	key := subKey{collection: collection, workspaceID: workspaceID}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, fmt.Errorf("registry closed")
	}
	prev := r.subs[key]
	r.mu.Unlock()

	// One live subscription per pair: replace, never stack.
	if prev != nil {
		prev.Dispose()
	}

	sub := &Subscription{registry: r, key: key}

	// Hold change events back until the snapshot is delivered. The gate
	// also stays held across each onEvent call, so the backlog drain and
	// live deliveries cannot interleave: events reach the subscriber in
	// publish order.
	var gate sync.Mutex
	var pending []Event
	snapshotSent := false

	deliver := func(ev Event) {
		if ev.Collection != collection {
			return
		}
		sub.mu.Lock()
		if sub.dead {
			sub.mu.Unlock()
			return
		}
		terminal := ev.Op == OpError
		if terminal {
			sub.dead = true
		}
		sub.mu.Unlock()

		gate.Lock()
		if !snapshotSent {
			pending = append(pending, ev)
			gate.Unlock()
			return
		}
		onEvent(ev)
		gate.Unlock()

		if terminal {
			sub.Dispose()
		}
	}

	detach, err := r.broadcaster.Attach(workspaceID, deliver)
	if err != nil {
		return nil, fmt.Errorf("attach %s/%s: %w", collection, workspaceID, err)
	}
	sub.detach = detach

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		detach()
		return nil, fmt.Errorf("registry closed")
	}
	r.subs[key] = sub
	r.mu.Unlock()

	snap, err := snapshot(ctx)
	if err != nil {
		// Snapshot failure is a subscription error: surface the terminal
		// variant and tear down, per the no-automatic-retry contract.
		sub.Dispose()
		onEvent(ErrorEvent(collection, workspaceID, "load snapshot: "+err.Error()))
		return nil, fmt.Errorf("load snapshot %s/%s: %w", collection, workspaceID, err)
	}
	onEvent(snap)

	// Drain the backlog with the gate held; a live event racing this
	// loop blocks in deliver until the last buffered event is out.
	gate.Lock()
	snapshotSent = true
	dead := false
	for _, ev := range pending {
		onEvent(ev)
		if ev.Op == OpError {
			dead = true
		}
	}
	pending = nil
	gate.Unlock()

	if dead {
		sub.Dispose()
	}

	return sub, nil
}

// Dispose unregisters the listener. Idempotent.
func (s *Subscription) Dispose() {
	s.mu.Lock()
	s.dead = true
	s.mu.Unlock()

	if s.detach != nil {
		s.detach()
	}

	r := s.registry
	r.mu.Lock()
	if r.subs[s.key] == s {
		delete(r.subs, s.key)
	}
	r.mu.Unlock()
}

// DisposeKey drops the subscription for one pair, if any.
func (r *Registry) DisposeKey(collection Collection, workspaceID uuid.UUID) {
	r.mu.Lock()
	sub := r.subs[subKey{collection: collection, workspaceID: workspaceID}]
	r.mu.Unlock()
	if sub != nil {
		sub.Dispose()
	}
}

// Len reports the number of live subscriptions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// DisposeAll tears down every subscription and rejects future ones.
// Called when the owning session closes.
func (r *Registry) DisposeAll() {
	r.mu.Lock()
	r.closed = true
	subs := make([]*Subscription, 0, len(r.subs))
	for _, s := range r.subs {
		subs = append(subs, s)
	}
	r.mu.Unlock()

	for _, s := range subs {
		s.Dispose()
	}
}
