package api

import (
	"net/http"

	"github.com/arvind-28/codeorbit/internal/access"
	"github.com/arvind-28/codeorbit/internal/middleware"
	"github.com/arvind-28/codeorbit/internal/models"
	"github.com/arvind-28/codeorbit/internal/realtime"
	"github.com/arvind-28/codeorbit/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type WorkspaceHandler struct {
	workspaces repository.WorkspaceRepository
	members    repository.MemberRepository
	users      repository.UserRepository
	gate       *access.Gate
	hub        realtime.Broadcaster
	presence   *realtime.Presence
	logger     *zap.Logger
}

func NewWorkspaceHandler(
	workspaces repository.WorkspaceRepository,
	members repository.MemberRepository,
	users repository.UserRepository,
	gate *access.Gate,
	hub realtime.Broadcaster,
	presence *realtime.Presence,
	logger *zap.Logger,
) *WorkspaceHandler {
	return &WorkspaceHandler{
		workspaces: workspaces,
		members:    members,
		users:      users,
		gate:       gate,
		hub:        hub,
		presence:   presence,
		logger:     logger,
	}
}

type createWorkspaceRequest struct {
	Name     string `json:"name" binding:"required"`
	IsPublic bool   `json:"is_public"`
}

// Create handles POST /v1/workspaces
//
// The creator becomes the owner member in the same breath; a workspace
// without an owner member would be unmanageable.
func (h *WorkspaceHandler) Create(c *gin.Context) {
	var req createWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := middleware.GetUserID(c)
	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil || user == nil {
		h.logger.Error("failed to load creator", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create workspace"})
		return
	}

	ws, err := h.workspaces.Create(c.Request.Context(), req.Name, req.IsPublic, userID)
	if err != nil {
		h.logger.Error("failed to create workspace", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create workspace"})
		return
	}

	owner := models.Member{
		WorkspaceID: ws.ID,
		UserID:      userID,
		Role:        models.RoleOwner,
		DisplayName: user.DisplayName,
		PhotoURL:    user.PhotoURL,
	}
	if err := h.members.Add(c.Request.Context(), owner); err != nil {
		h.logger.Error("failed to add owner member", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create workspace"})
		return
	}

	c.JSON(http.StatusCreated, ws)
}

// List handles GET /v1/workspaces
func (h *WorkspaceHandler) List(c *gin.Context) {
	userID := middleware.GetUserID(c)

	workspaces, err := h.workspaces.ListVisible(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list workspaces", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list workspaces"})
		return
	}

	c.JSON(http.StatusOK, workspaces)
}

// GetByID handles GET /v1/workspaces/:id
func (h *WorkspaceHandler) GetByID(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workspace id"})
		return
	}

	ws, err := h.workspaces.GetByID(c.Request.Context(), workspaceID)
	if err != nil {
		h.logger.Error("failed to get workspace", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get workspace"})
		return
	}
	if ws == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "workspace not found"})
		return
	}

	role, err := h.gate.RoleOf(c.Request.Context(), workspaceID, middleware.GetUserID(c))
	if err != nil {
		abortForbidden(c, h.logger, err)
		return
	}
	if !canView(role, ws) {
		c.JSON(http.StatusForbidden, gin.H{"error": "workspace is private"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"workspace": ws, "role": role})
}

// Delete handles DELETE /v1/workspaces/:id
//
// Owner only. Cascades to folders, files, members, messages and pending
// invites in one transaction, then purges the redis cursors and tells
// every subscriber the workspace is gone.
func (h *WorkspaceHandler) Delete(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workspace id"})
		return
	}

	userID := middleware.GetUserID(c)
	if err := h.gate.RequireOwner(c.Request.Context(), workspaceID, userID); err != nil {
		abortForbidden(c, h.logger, err)
		return
	}

	if err := h.workspaces.Delete(c.Request.Context(), workspaceID); err != nil {
		h.logger.Error("failed to delete workspace", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete workspace"})
		return
	}

	if err := h.presence.RemoveAll(c.Request.Context(), workspaceID); err != nil {
		// Cursors self-expire via TTL; log and move on.
		h.logger.Warn("failed to purge cursors", zap.Error(err))
	}

	for _, kind := range []realtime.Collection{
		realtime.CollectionFolders,
		realtime.CollectionFiles,
		realtime.CollectionMembers,
		realtime.CollectionMessages,
		realtime.CollectionCursors,
	} {
		publish(c, h.hub, h.logger, realtime.Event{
			Collection:  kind,
			Op:          realtime.OpCleared,
			WorkspaceID: workspaceID,
		})
	}

	c.Status(http.StatusNoContent)
}
