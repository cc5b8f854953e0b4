// Package realtime is the synchronization layer between clients sharing a
// workspace: the subscription registry, the redis-backed fanout hub, the
// debounced save channel, and the cursor presence store.
package realtime

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Collection names the shared record sets a client can subscribe to.
type Collection string

const (
	CollectionFolders  Collection = "folders"
	CollectionFiles    Collection = "files"
	CollectionMembers  Collection = "members"
	CollectionMessages Collection = "messages"
	CollectionCursors  Collection = "cursors"
)

func (c Collection) Valid() bool {
	switch c {
	case CollectionFolders, CollectionFiles, CollectionMembers, CollectionMessages, CollectionCursors:
		return true
	}
	return false
}

// Op classifies what happened to a collection.
type Op string

const (
	// OpSnapshot carries the full current state of a collection and is
	// always the first event a new subscription receives.
	OpSnapshot Op = "snapshot"
	OpAdded    Op = "added"
	OpUpdated  Op = "updated"
	OpRemoved  Op = "removed"
	// OpCleared signals a bulk wipe (chat clear, workspace delete).
	OpCleared Op = "cleared"
	// OpError is terminal: the subscription that receives it is dead and
	// the caller must re-subscribe. There is no automatic retry.
	OpError Op = "error"
)

// Event is the unit of change distributed to subscribers. Doc holds the
// affected record for single-record ops; Docs holds the whole set for
// snapshots. Events for one workspace are delivered in publish order.
type Event struct {
	Collection  Collection        `json:"collection"`
	Op          Op                `json:"op"`
	WorkspaceID uuid.UUID         `json:"workspace_id"`
	Doc         json.RawMessage   `json:"doc,omitempty"`
	Docs        []json.RawMessage `json:"docs,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// NewEvent marshals doc into a single-record event. Marshal failures are
// programming errors (our own model types), reported as an error event so
// they are visible rather than silently dropped.
func NewEvent(collection Collection, op Op, workspaceID uuid.UUID, doc any) Event {
	ev := Event{Collection: collection, Op: op, WorkspaceID: workspaceID}
	if doc == nil {
		return ev
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return ErrorEvent(collection, workspaceID, "encode event: "+err.Error())
	}
	ev.Doc = raw
	return ev
}

// SnapshotEvent marshals a slice of records into the initial full-state
// event for a subscription.
func SnapshotEvent[T any](collection Collection, workspaceID uuid.UUID, docs []T) Event {
	ev := Event{Collection: collection, Op: OpSnapshot, WorkspaceID: workspaceID, Docs: make([]json.RawMessage, 0, len(docs))}
	for _, d := range docs {
		raw, err := json.Marshal(d)
		if err != nil {
			return ErrorEvent(collection, workspaceID, "encode snapshot: "+err.Error())
		}
		ev.Docs = append(ev.Docs, raw)
	}
	return ev
}

// ErrorEvent builds the terminal error variant.
func ErrorEvent(collection Collection, workspaceID uuid.UUID, msg string) Event {
	return Event{Collection: collection, Op: OpError, WorkspaceID: workspaceID, Error: msg}
}
