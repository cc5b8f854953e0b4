package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// fakeBroadcaster is an in-process Broadcaster: Publish delivers
// synchronously to every attachment for the workspace.
type fakeBroadcaster struct {
	mu       sync.Mutex
	attached map[uuid.UUID]map[*fakeAttachment]struct{}
}

type fakeAttachment struct {
	deliver func(Event)
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{attached: make(map[uuid.UUID]map[*fakeAttachment]struct{})}
}

func (b *fakeBroadcaster) Attach(workspaceID uuid.UUID, deliver func(Event)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.attached[workspaceID] == nil {
		b.attached[workspaceID] = make(map[*fakeAttachment]struct{})
	}
	att := &fakeAttachment{deliver: deliver}
	b.attached[workspaceID][att] = struct{}{}
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.attached[workspaceID], att)
	}, nil
}

func (b *fakeBroadcaster) Publish(_ context.Context, ev Event) error {
	b.mu.Lock()
	atts := make([]*fakeAttachment, 0)
	for att := range b.attached[ev.WorkspaceID] {
		atts = append(atts, att)
	}
	b.mu.Unlock()
	for _, att := range atts {
		att.deliver(ev)
	}
	return nil
}

func (b *fakeBroadcaster) attachmentCount(workspaceID uuid.UUID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.attached[workspaceID])
}

type eventSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *eventSink) record(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *eventSink) all() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func emptySnapshot(collection Collection, workspaceID uuid.UUID) SnapshotFunc {
	return func(context.Context) (Event, error) {
		return SnapshotEvent[string](collection, workspaceID, nil), nil
	}
}

func TestSubscribeDeliversSnapshotFirst(t *testing.T) {
	b := newFakeBroadcaster()
	r := NewRegistry(b)
	ws := uuid.New()
	sink := &eventSink{}

	sub, err := r.Subscribe(context.Background(), CollectionFiles, ws, emptySnapshot(CollectionFiles, ws), sink.record)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Dispose()

	_ = b.Publish(context.Background(), NewEvent(CollectionFiles, OpAdded, ws, map[string]string{"name": "main.go"}))

	events := sink.all()
	if len(events) != 2 {
		t.Fatalf("expected snapshot + change, got %d events", len(events))
	}
	if events[0].Op != OpSnapshot {
		t.Fatalf("first event must be the snapshot, got %s", events[0].Op)
	}
	if events[1].Op != OpAdded {
		t.Fatalf("second event must be the change, got %s", events[1].Op)
	}
}

func TestBufferedEventsDrainInPublishOrder(t *testing.T) {
	b := newFakeBroadcaster()
	r := NewRegistry(b)
	ws := uuid.New()
	sink := &eventSink{}

	added := NewEvent(CollectionFiles, OpAdded, ws, map[string]string{"name": "a.go"})
	removed := NewEvent(CollectionFiles, OpRemoved, ws, map[string]string{"name": "a.go"})
	late := NewEvent(CollectionFiles, OpUpdated, ws, map[string]string{"name": "late.go"})

	// Both change events arrive while the snapshot is loading, so they
	// are buffered and drained after it.
	snapshot := func(ctx context.Context) (Event, error) {
		_ = b.Publish(ctx, added)
		_ = b.Publish(ctx, removed)
		return SnapshotEvent[string](CollectionFiles, ws, nil), nil
	}

	// While the backlog drains, a concurrent publisher fires another
	// event. It must land after the buffered removal, never between the
	// buffered add and remove.
	var lateOnce sync.Once
	var wg sync.WaitGroup
	record := func(ev Event) {
		sink.record(ev)
		if ev.Op == OpAdded {
			lateOnce.Do(func() {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_ = b.Publish(context.Background(), late)
				}()
				time.Sleep(20 * time.Millisecond)
			})
		}
	}

	sub, err := r.Subscribe(context.Background(), CollectionFiles, ws, snapshot, record)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Dispose()
	wg.Wait()

	want := []Op{OpSnapshot, OpAdded, OpRemoved, OpUpdated}
	events := sink.all()
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d: %v", len(want), len(events), events)
	}
	for i, ev := range events {
		if ev.Op != want[i] {
			t.Fatalf("event %d: want %s, got %s (full order %v)", i, want[i], ev.Op, events)
		}
	}
}

func TestSubscribeFiltersOtherCollections(t *testing.T) {
	b := newFakeBroadcaster()
	r := NewRegistry(b)
	ws := uuid.New()
	sink := &eventSink{}

	sub, err := r.Subscribe(context.Background(), CollectionFiles, ws, emptySnapshot(CollectionFiles, ws), sink.record)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Dispose()

	_ = b.Publish(context.Background(), NewEvent(CollectionMessages, OpAdded, ws, map[string]string{"body": "hello"}))

	events := sink.all()
	if len(events) != 1 || events[0].Op != OpSnapshot {
		t.Fatalf("message event must not reach a files subscription: %v", events)
	}
}

func TestSubscribeReplacesExistingPair(t *testing.T) {
	b := newFakeBroadcaster()
	r := NewRegistry(b)
	ws := uuid.New()

	first := &eventSink{}
	if _, err := r.Subscribe(context.Background(), CollectionFiles, ws, emptySnapshot(CollectionFiles, ws), first.record); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	second := &eventSink{}
	if _, err := r.Subscribe(context.Background(), CollectionFiles, ws, emptySnapshot(CollectionFiles, ws), second.record); err != nil {
		t.Fatalf("resubscribe: %v", err)
	}

	if r.Len() != 1 {
		t.Fatalf("expected exactly one live subscription per pair, got %d", r.Len())
	}
	if got := b.attachmentCount(ws); got != 1 {
		t.Fatalf("expected the first attachment to be detached, have %d", got)
	}

	_ = b.Publish(context.Background(), NewEvent(CollectionFiles, OpUpdated, ws, map[string]string{}))

	if n := len(first.all()); n != 1 {
		t.Fatalf("replaced subscription must not receive changes, got %d events", n)
	}
	if n := len(second.all()); n != 2 {
		t.Fatalf("live subscription should have snapshot + change, got %d", n)
	}
}

func TestDisposeStopsDelivery(t *testing.T) {
	b := newFakeBroadcaster()
	r := NewRegistry(b)
	ws := uuid.New()
	sink := &eventSink{}

	sub, err := r.Subscribe(context.Background(), CollectionFolders, ws, emptySnapshot(CollectionFolders, ws), sink.record)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	sub.Dispose()

	if r.Len() != 0 {
		t.Fatalf("dispose must unregister, have %d", r.Len())
	}
	if got := b.attachmentCount(ws); got != 0 {
		t.Fatalf("dispose must detach from the broadcaster, have %d", got)
	}

	_ = b.Publish(context.Background(), NewEvent(CollectionFolders, OpAdded, ws, map[string]string{}))
	if n := len(sink.all()); n != 1 {
		t.Fatalf("disposed subscription received a change")
	}
}

func TestSnapshotFailureIsTerminal(t *testing.T) {
	b := newFakeBroadcaster()
	r := NewRegistry(b)
	ws := uuid.New()
	sink := &eventSink{}

	failing := func(context.Context) (Event, error) {
		return Event{}, errors.New("boom")
	}
	_, err := r.Subscribe(context.Background(), CollectionFiles, ws, failing, sink.record)
	if err == nil {
		t.Fatalf("expected subscribe to fail")
	}

	events := sink.all()
	if len(events) != 1 || events[0].Op != OpError {
		t.Fatalf("expected a single terminal error event, got %v", events)
	}
	if r.Len() != 0 || b.attachmentCount(ws) != 0 {
		t.Fatalf("failed subscription must be fully torn down")
	}
}

func TestErrorEventDisposesSubscription(t *testing.T) {
	b := newFakeBroadcaster()
	r := NewRegistry(b)
	ws := uuid.New()
	sink := &eventSink{}

	if _, err := r.Subscribe(context.Background(), CollectionFiles, ws, emptySnapshot(CollectionFiles, ws), sink.record); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	_ = b.Publish(context.Background(), ErrorEvent(CollectionFiles, ws, "stream terminated"))

	events := sink.all()
	if events[len(events)-1].Op != OpError {
		t.Fatalf("expected terminal error event, got %v", events)
	}
	if r.Len() != 0 {
		t.Fatalf("terminal error must dispose the subscription")
	}

	// No automatic retry: a fresh Subscribe is required and works.
	if _, err := r.Subscribe(context.Background(), CollectionFiles, ws, emptySnapshot(CollectionFiles, ws), sink.record); err != nil {
		t.Fatalf("resubscribe after error: %v", err)
	}
}

func TestRejectsUnknownCollection(t *testing.T) {
	r := NewRegistry(newFakeBroadcaster())
	if _, err := r.Subscribe(context.Background(), Collection("bogus"), uuid.New(), emptySnapshot("bogus", uuid.Nil), func(Event) {}); err == nil {
		t.Fatalf("expected unknown collection to be rejected")
	}
}

func TestDisposeAllClosesRegistry(t *testing.T) {
	b := newFakeBroadcaster()
	r := NewRegistry(b)
	ws := uuid.New()

	for _, kind := range []Collection{CollectionFiles, CollectionFolders, CollectionMessages} {
		if _, err := r.Subscribe(context.Background(), kind, ws, emptySnapshot(kind, ws), func(Event) {}); err != nil {
			t.Fatalf("subscribe %s: %v", kind, err)
		}
	}

	r.DisposeAll()
	if r.Len() != 0 || b.attachmentCount(ws) != 0 {
		t.Fatalf("DisposeAll must drop every subscription")
	}

	if _, err := r.Subscribe(context.Background(), CollectionFiles, ws, emptySnapshot(CollectionFiles, ws), func(Event) {}); err == nil {
		t.Fatalf("closed registry must reject new subscriptions")
	}
}
