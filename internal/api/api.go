package api

import (
	"errors"
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

var errUnknownCollection = errors.New("unknown collection")

// publish pushes a change event to workspace subscribers. A failed
// publish never fails the request that caused it: the write is already
// durable, and subscribers recover the state on their next snapshot.
func publish(c *gin.Context, hub realtime.Broadcaster, logger *zap.Logger, ev realtime.Event) {
	if err := hub.Publish(c.Request.Context(), ev); err != nil {
		logger.Warn("failed to publish event",
			zap.String("collection", string(ev.Collection)),
			zap.String("op", string(ev.Op)),
			zap.String("workspace_id", ev.WorkspaceID.String()),
			zap.Error(err),
		)
	}
}

// abortForbidden maps gate failures to HTTP statuses.
func abortForbidden(c *gin.Context, logger *zap.Logger, err error) {
	if errors.Is(err, access.ErrForbidden) {
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
		return
	}
	logger.Error("role check failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "role check failed"})
}

// canView reports whether a role (possibly none) may read a workspace.
func canView(role models.Role, ws *models.Workspace) bool {
	if role != models.RoleNone {
		return true
	}
	return ws != nil && ws.IsPublic
}

// requireView enforces read access on a workspace-scoped endpoint:
// members always, non-members only when the workspace is public. Writes
// the error response and returns false when the caller may not read.
func requireView(c *gin.Context, workspaces repository.WorkspaceRepository, gate *access.Gate, logger *zap.Logger, workspaceID uuid.UUID) bool {
	ws, err := workspaces.GetByID(c.Request.Context(), workspaceID)
	if err != nil {
		logger.Error("failed to load workspace", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load workspace"})
		return false
	}
	if ws == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "workspace not found"})
		return false
	}

	role, err := gate.RoleOf(c.Request.Context(), workspaceID, middleware.GetUserID(c))
	if err != nil {
		abortForbidden(c, logger, err)
		return false
	}
	if !canView(role, ws) {
		c.JSON(http.StatusForbidden, gin.H{"error": "workspace is private"})
		return false
	}
	return true
}
