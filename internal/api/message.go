package api

import (
	"net/http"
	"strings"

	"github.com/arvind-28/codeorbit/internal/access"
	"github.com/arvind-28/codeorbit/internal/middleware"
	"github.com/arvind-28/codeorbit/internal/realtime"
	"github.com/arvind-28/codeorbit/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type MessageHandler struct {
	messages   repository.MessageRepository
	users      repository.UserRepository
	workspaces repository.WorkspaceRepository
	gate       *access.Gate
	hub        realtime.Broadcaster
	window     int
	logger     *zap.Logger
}

func NewMessageHandler(
	messages repository.MessageRepository,
	users repository.UserRepository,
	workspaces repository.WorkspaceRepository,
	gate *access.Gate,
	hub realtime.Broadcaster,
	window int,
	logger *zap.Logger,
) *MessageHandler {
	return &MessageHandler{
		messages:   messages,
		users:      users,
		workspaces: workspaces,
		gate:       gate,
		hub:        hub,
		window:     window,
		logger:     logger,
	}
}

type sendMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// Send handles POST /v1/workspaces/:id/messages
func (h *MessageHandler) Send(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workspace id"})
		return
	}

	userID := middleware.GetUserID(c)
	if err := h.gate.RequireMutate(c.Request.Context(), workspaceID, userID); err != nil {
		abortForbidden(c, h.logger, err)
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message text is empty"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil || user == nil {
		h.logger.Error("failed to load sender", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
		return
	}

	msg, err := h.messages.Create(c.Request.Context(), workspaceID, userID, user.DisplayName, user.PhotoURL, text)
	if err != nil {
		h.logger.Error("failed to create message", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
		return
	}

	publish(c, h.hub, h.logger, realtime.NewEvent(realtime.CollectionMessages, realtime.OpAdded, workspaceID, msg))

	c.JSON(http.StatusCreated, msg)
}

// List handles GET /v1/workspaces/:id/messages
//
// Returns the most recent window in ascending order, the same slice a
// fresh subscriber receives as its snapshot.
func (h *MessageHandler) List(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workspace id"})
		return
	}

	if !requireView(c, h.workspaces, h.gate, h.logger, workspaceID) {
		return
	}

	messages, err := h.messages.ListRecent(c.Request.Context(), workspaceID, h.window)
	if err != nil {
		h.logger.Error("failed to list messages", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}

	c.JSON(http.StatusOK, messages)
}

// Clear handles DELETE /v1/workspaces/:id/messages
func (h *MessageHandler) Clear(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workspace id"})
		return
	}

	if err := h.gate.RequireMutate(c.Request.Context(), workspaceID, middleware.GetUserID(c)); err != nil {
		abortForbidden(c, h.logger, err)
		return
	}

	cleared, err := h.messages.Clear(c.Request.Context(), workspaceID)
	if err != nil {
		h.logger.Error("failed to clear messages", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear messages"})
		return
	}

	publish(c, h.hub, h.logger, realtime.Event{
		Collection:  realtime.CollectionMessages,
		Op:          realtime.OpCleared,
		WorkspaceID: workspaceID,
	})

	c.JSON(http.StatusOK, gin.H{"cleared": cleared})
}
