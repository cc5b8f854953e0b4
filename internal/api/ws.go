package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/arvind-28/codeorbit/internal/auth"
	"github.com/arvind-28/codeorbit/internal/models"
	"github.com/arvind-28/codeorbit/internal/realtime"
	"github.com/arvind-28/codeorbit/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	writeWait = 10 * time.Second
	// Outbound queue per session. A client that cannot drain this many
	// events is too far behind to be useful; the session is closed.
	sendQueueSize = 256

	flushTimeout = 10 * time.Second
)

// WSHandler owns the live session endpoint. One connection covers one
// workspace: subscriptions, debounced file edits and cursor publishes
// all ride the same socket.
type WSHandler struct {
	workspaces repository.WorkspaceRepository
	members    repository.MemberRepository
	folders    repository.FolderRepository
	files      repository.FileRepository
	messages   repository.MessageRepository
	presence   *realtime.Presence
	hub        realtime.Broadcaster

	jwtSecret    string
	saveDebounce time.Duration
	chatWindow   int
	logger       *zap.Logger
}

func NewWSHandler(
	workspaces repository.WorkspaceRepository,
	members repository.MemberRepository,
	folders repository.FolderRepository,
	files repository.FileRepository,
	messages repository.MessageRepository,
	presence *realtime.Presence,
	hub realtime.Broadcaster,
	jwtSecret string,
	saveDebounce time.Duration,
	chatWindow int,
	logger *zap.Logger,
) *WSHandler {
	return &WSHandler{
		workspaces:   workspaces,
		members:      members,
		folders:      folders,
		files:        files,
		messages:     messages,
		presence:     presence,
		hub:          hub,
		jwtSecret:    jwtSecret,
		saveDebounce: saveDebounce,
		chatWindow:   chatWindow,
		logger:       logger,
	}
}

// clientMessage is the inbound frame. Type selects the action; the other
// fields are read per type.
type clientMessage struct {
	Type       string              `json:"type"` // "subscribe", "unsubscribe", "edit_file", "cursor"
	Collection realtime.Collection `json:"collection,omitempty"`
	FileID     uuid.UUID           `json:"file_id,omitempty"`
	Content    string              `json:"content,omitempty"`
	X          float64             `json:"x,omitempty"`
	Y          float64             `json:"y,omitempty"`
	Color      string              `json:"color,omitempty"`
}

// serverMessage is the outbound frame.
type serverMessage struct {
	Type  string          `json:"type"` // "event" or "error"
	Event *realtime.Event `json:"event,omitempty"`
	Error string          `json:"error,omitempty"`
}

// session is one authenticated websocket bound to one workspace.
type session struct {
	h           *WSHandler
	conn        *websocket.Conn
	workspaceID uuid.UUID
	userID      uuid.UUID
	role        models.Role
	displayName string

	registry  *realtime.Registry
	debouncer *realtime.Debouncer[string]
	send      chan serverMessage
	done      chan struct{}
	logger    *zap.Logger
}

// Handle handles GET /v1/workspaces/:id/ws?token=<jwt>
//
// Browsers cannot set headers on websocket dials, so the token rides a
// query parameter here and nowhere else.
func (h *WSHandler) Handle(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workspace id"})
		return
	}

	claims, err := auth.ParseToken(c.Query("token"), h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	userID := claims.UserID

	ws, err := h.workspaces.GetByID(c.Request.Context(), workspaceID)
	if err != nil {
		h.logger.Error("failed to load workspace", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open session"})
		return
	}
	if ws == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "workspace not found"})
		return
	}

	role, err := h.members.RoleOf(c.Request.Context(), workspaceID, userID)
	if err != nil {
		h.logger.Error("failed to check role", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open session"})
		return
	}
	if !canView(role, ws) {
		c.JSON(http.StatusForbidden, gin.H{"error": "workspace is private"})
		return
	}

	displayName := claims.Email
	if m, err := h.members.List(c.Request.Context(), workspaceID); err == nil {
		for _, member := range m {
			if member.UserID == userID {
				displayName = member.DisplayName
				break
			}
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	s := &session{
		h:           h,
		conn:        conn,
		workspaceID: workspaceID,
		userID:      userID,
		role:        role,
		displayName: displayName,
		registry:    realtime.NewRegistry(h.hub),
		send:        make(chan serverMessage, sendQueueSize),
		done:        make(chan struct{}),
		logger: h.logger.With(
			zap.String("workspace_id", workspaceID.String()),
			zap.String("user_id", userID.String()),
		),
	}
	s.debouncer = realtime.NewDebouncer[string](h.saveDebounce, s.persistEdit)

	go s.writeLoop()
	s.readLoop()
	s.teardown()
}

// enqueue hands an event to the writer. If the queue is full the client
// is hopelessly behind; the session is closed rather than blocking the
// fanout path.
func (s *session) enqueue(msg serverMessage) {
	select {
	case s.send <- msg:
	case <-s.done:
	default:
		s.logger.Warn("send queue full, closing session")
		s.conn.Close()
	}
}

func (s *session) onEvent(ev realtime.Event) {
	s.enqueue(serverMessage{Type: "event", Event: &ev})
}

func (s *session) writeLoop() {
	for {
		select {
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				s.conn.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *session) readLoop() {
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.enqueue(serverMessage{Type: "error", Error: "invalid message"})
			continue
		}

		switch msg.Type {
		case "subscribe":
			s.handleSubscribe(msg.Collection)
		case "unsubscribe":
			s.registry.DisposeKey(msg.Collection, s.workspaceID)
		case "edit_file":
			s.handleEdit(msg.FileID, msg.Content)
		case "cursor":
			s.handleCursor(msg.X, msg.Y, msg.Color)
		default:
			s.enqueue(serverMessage{Type: "error", Error: "unknown message type " + msg.Type})
		}
	}
}

func (s *session) handleSubscribe(collection realtime.Collection) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	_, err := s.registry.Subscribe(ctx, collection, s.workspaceID, s.snapshotFunc(collection), s.onEvent)
	if err != nil {
		// Snapshot failures already surfaced as a terminal error event
		// through onEvent; anything else gets a plain error frame.
		s.logger.Warn("subscribe failed", zap.String("collection", string(collection)), zap.Error(err))
		s.enqueue(serverMessage{Type: "error", Error: "subscribe " + string(collection) + " failed"})
	}
}

// snapshotFunc maps a collection to its full-state loader.
func (s *session) snapshotFunc(collection realtime.Collection) realtime.SnapshotFunc {
	return func(ctx context.Context) (realtime.Event, error) {
		switch collection {
		case realtime.CollectionFolders:
			folders, err := s.h.folders.ListByWorkspace(ctx, s.workspaceID)
			if err != nil {
				return realtime.Event{}, err
			}
			return realtime.SnapshotEvent(collection, s.workspaceID, folders), nil
		case realtime.CollectionFiles:
			files, err := s.h.files.ListByWorkspace(ctx, s.workspaceID)
			if err != nil {
				return realtime.Event{}, err
			}
			return realtime.SnapshotEvent(collection, s.workspaceID, files), nil
		case realtime.CollectionMembers:
			members, err := s.h.members.List(ctx, s.workspaceID)
			if err != nil {
				return realtime.Event{}, err
			}
			return realtime.SnapshotEvent(collection, s.workspaceID, members), nil
		case realtime.CollectionMessages:
			messages, err := s.h.messages.ListRecent(ctx, s.workspaceID, s.h.chatWindow)
			if err != nil {
				return realtime.Event{}, err
			}
			return realtime.SnapshotEvent(collection, s.workspaceID, messages), nil
		case realtime.CollectionCursors:
			cursors, err := s.h.presence.List(ctx, s.workspaceID)
			if err != nil {
				return realtime.Event{}, err
			}
			return realtime.SnapshotEvent(collection, s.workspaceID, cursors), nil
		default:
			return realtime.Event{}, errUnknownCollection
		}
	}
}

// handleEdit feeds a keystroke-rate content update into the debouncer.
// The payload is the whole buffer; within a quiet window only the last
// one survives.
func (s *session) handleEdit(fileID uuid.UUID, content string) {
	if !s.role.CanMutate() {
		s.enqueue(serverMessage{Type: "error", Error: "read-only access"})
		return
	}
	if fileID == uuid.Nil {
		s.enqueue(serverMessage{Type: "error", Error: "missing file id"})
		return
	}
	s.debouncer.Write(fileID.String(), content)
}

// persistEdit is the debouncer's flush target. It runs on a timer
// goroutine (or during teardown), so it carries its own context rather
// than a request's.
func (s *session) persistEdit(fileID string, content string) {
	id, err := uuid.Parse(fileID)
	if err != nil {
		s.logger.Error("bad file id in flush", zap.String("file_id", fileID))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	file, err := s.h.files.UpdateContent(ctx, s.workspaceID, id, content)
	if err != nil {
		s.logger.Error("failed to persist edit", zap.String("file_id", fileID), zap.Error(err))
		return
	}
	if file == nil {
		// Deleted while the edit was pending; nothing to persist.
		return
	}

	ev := realtime.NewEvent(realtime.CollectionFiles, realtime.OpUpdated, s.workspaceID, file)
	if err := s.h.hub.Publish(ctx, ev); err != nil {
		s.logger.Warn("failed to publish file update", zap.Error(err))
	}
}

func (s *session) handleCursor(x, y float64, color string) {
	entry := models.CursorEntry{
		UserID:      s.userID,
		X:           x,
		Y:           y,
		DisplayName: s.displayName,
		Color:       color,
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	stored, err := s.h.presence.Publish(ctx, s.workspaceID, entry)
	if err != nil {
		s.logger.Warn("failed to store cursor", zap.Error(err))
		return
	}
	if stored == nil {
		// Throttled; the next accepted publish carries the fresh position.
		return
	}

	// Fan out the stored record, not the raw input, so remote renderers
	// see the same normalized entry a fresh List would return.
	ev := realtime.NewEvent(realtime.CollectionCursors, realtime.OpUpdated, s.workspaceID, stored)
	if err := s.h.hub.Publish(ctx, ev); err != nil {
		s.logger.Warn("failed to publish cursor", zap.Error(err))
	}
}

// teardown runs when the read loop exits, whatever the reason. Pending
// edits flush first so the tail of a typing burst survives the
// disconnect; then the cursor is withdrawn and every subscription is
// dropped.
func (s *session) teardown() {
	s.debouncer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	if err := s.h.presence.Remove(ctx, s.workspaceID, s.userID); err != nil {
		s.logger.Warn("failed to remove cursor", zap.Error(err))
	} else {
		ev := realtime.NewEvent(realtime.CollectionCursors, realtime.OpRemoved, s.workspaceID, gin.H{"user_id": s.userID})
		if err := s.h.hub.Publish(ctx, ev); err != nil {
			s.logger.Warn("failed to publish cursor removal", zap.Error(err))
		}
	}

	s.registry.DisposeAll()
	close(s.done)
	s.conn.Close()
}
