package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Broadcaster is the fanout surface the registry builds on. Attach wires
// a delivery callback for every event published to a workspace and
// returns a detach func. Implementations deliver events in publish order
// and call deliver with an OpError event exactly once if the underlying
// stream fails, after which the attachment is dead.
type Broadcaster interface {
	Attach(workspaceID uuid.UUID, deliver func(Event)) (func(), error)
	Publish(ctx context.Context, ev Event) error
}

// Hub fans workspace events out across server instances via redis
// pub/sub. Each instance holds at most one upstream redis subscription
// per workspace, refcounted by local attachments: the first Attach opens
// it, the last detach closes it.
type Hub struct {
	rdb    *redis.Client
	logger *zap.Logger

	mu        sync.Mutex
	upstreams map[uuid.UUID]*upstream
}

type upstream struct {
	pubsub *redis.PubSub
	subs   map[*attachment]struct{}
	done   chan struct{}
}

type attachment struct {
	deliver func(Event)
}

func NewHub(rdb *redis.Client, logger *zap.Logger) *Hub {
	return &Hub{
		rdb:       rdb,
		logger:    logger,
		upstreams: make(map[uuid.UUID]*upstream),
	}
}

func channelFor(workspaceID uuid.UUID) string {
	return "rt:" + workspaceID.String()
}

// Publish sends an event to every attachment for its workspace, on every
// instance. Local delivery also rides the redis round-trip, which keeps
// ordering identical for local and remote subscribers.
func (h *Hub) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := h.rdb.Publish(ctx, channelFor(ev.WorkspaceID), payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Attach registers a delivery callback for a workspace's event stream.
func (h *Hub) Attach(workspaceID uuid.UUID, deliver func(Event)) (func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	up, ok := h.upstreams[workspaceID]
	if !ok {
		pubsub := h.rdb.Subscribe(context.Background(), channelFor(workspaceID))
		up = &upstream{
			pubsub: pubsub,
			subs:   make(map[*attachment]struct{}),
			done:   make(chan struct{}),
		}
		h.upstreams[workspaceID] = up
		go h.pump(workspaceID, up)
	}

	att := &attachment{deliver: deliver}
	up.subs[att] = struct{}{}

	detached := false
	detach := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if detached {
			return
		}
		detached = true
		delete(up.subs, att)
		if len(up.subs) == 0 && h.upstreams[workspaceID] == up {
			delete(h.upstreams, workspaceID)
			_ = up.pubsub.Close()
		}
	}
	return detach, nil
}

// pump relays messages from the redis channel to local attachments until
// the channel closes. A close while attachments remain means the upstream
// failed (not a normal teardown): those attachments get a terminal error
// event and must re-attach.
func (h *Hub) pump(workspaceID uuid.UUID, up *upstream) {
	defer close(up.done)

	for msg := range up.pubsub.Channel() {
		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			h.logger.Warn("dropping undecodable event",
				zap.String("workspace_id", workspaceID.String()),
				zap.Error(err),
			)
			continue
		}
		for _, att := range h.snapshotSubs(up) {
			att.deliver(ev)
		}
	}

	h.mu.Lock()
	orphaned := make([]*attachment, 0, len(up.subs))
	for att := range up.subs {
		orphaned = append(orphaned, att)
	}
	up.subs = make(map[*attachment]struct{})
	if h.upstreams[workspaceID] == up {
		delete(h.upstreams, workspaceID)
	}
	h.mu.Unlock()

	if len(orphaned) > 0 {
		h.logger.Error("workspace event stream terminated",
			zap.String("workspace_id", workspaceID.String()),
			zap.Int("subscribers", len(orphaned)),
		)
		for _, att := range orphaned {
			for _, kind := range []Collection{CollectionFolders, CollectionFiles, CollectionMembers, CollectionMessages, CollectionCursors} {
				att.deliver(ErrorEvent(kind, workspaceID, "event stream terminated"))
			}
		}
	}
}

// snapshotSubs copies the attachment set so delivery runs without the
// hub lock held (deliver callbacks may block on slow clients).
func (h *Hub) snapshotSubs(up *upstream) []*attachment {
	h.mu.Lock()
	defer h.mu.Unlock()
	atts := make([]*attachment, 0, len(up.subs))
	for att := range up.subs {
		atts = append(atts, att)
	}
	return atts
}
