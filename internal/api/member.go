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

// MemberHandler covers workspace membership and the invite flow. An
// invite lands the workspace id on the invitee's user record; accepting
// creates the member row and removes the invite, declining just removes
// the invite.
type MemberHandler struct {
	members    repository.MemberRepository
	users      repository.UserRepository
	workspaces repository.WorkspaceRepository
	gate       *access.Gate
	hub        realtime.Broadcaster
	logger     *zap.Logger
}

func NewMemberHandler(
	members repository.MemberRepository,
	users repository.UserRepository,
	workspaces repository.WorkspaceRepository,
	gate *access.Gate,
	hub realtime.Broadcaster,
	logger *zap.Logger,
) *MemberHandler {
	return &MemberHandler{
		members:    members,
		users:      users,
		workspaces: workspaces,
		gate:       gate,
		hub:        hub,
		logger:     logger,
	}
}

// List handles GET /v1/workspaces/:id/members
func (h *MemberHandler) List(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workspace id"})
		return
	}

	if !requireView(c, h.workspaces, h.gate, h.logger, workspaceID) {
		return
	}

	members, err := h.members.List(c.Request.Context(), workspaceID)
	if err != nil {
		h.logger.Error("failed to list members", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list members"})
		return
	}

	c.JSON(http.StatusOK, members)
}

type inviteRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

// Invite handles POST /v1/workspaces/:id/invites
//
// Members with mutation rights may invite. Inviting an existing member
// or re-inviting is a no-op, not an error.
func (h *MemberHandler) Invite(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workspace id"})
		return
	}

	if err := h.gate.RequireMutate(c.Request.Context(), workspaceID, middleware.GetUserID(c)); err != nil {
		abortForbidden(c, h.logger, err)
		return
	}

	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	invitee, err := h.users.GetByID(c.Request.Context(), req.UserID)
	if err != nil {
		h.logger.Error("failed to load invitee", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send invite"})
		return
	}
	if invitee == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	role, err := h.members.RoleOf(c.Request.Context(), workspaceID, req.UserID)
	if err != nil {
		h.logger.Error("failed to check invitee role", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send invite"})
		return
	}
	if role != models.RoleNone {
		c.Status(http.StatusNoContent)
		return
	}

	if err := h.users.AddInvite(c.Request.Context(), req.UserID, workspaceID); err != nil {
		h.logger.Error("failed to add invite", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send invite"})
		return
	}

	c.Status(http.StatusNoContent)
}

// ListInvites handles GET /v1/users/me/invites
func (h *MemberHandler) ListInvites(c *gin.Context) {
	invites, err := h.users.ListInvites(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.logger.Error("failed to list invites", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list invites"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"invites": invites})
}

// Accept handles POST /v1/invites/:workspaceId/accept
//
// Creates the contributor member row, then removes the invite. The
// member row is the one that matters: if the invite removal fails the
// user is still in, and the leftover invite is a harmless no-op to
// accept again.
func (h *MemberHandler) Accept(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Param("workspaceId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workspace id"})
		return
	}

	userID := middleware.GetUserID(c)
	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil || user == nil {
		h.logger.Error("failed to load user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to accept invite"})
		return
	}

	invited := false
	for _, id := range user.Invites {
		if id == workspaceID {
			invited = true
			break
		}
	}
	if !invited {
		c.JSON(http.StatusNotFound, gin.H{"error": "no pending invite for this workspace"})
		return
	}

	member := models.Member{
		WorkspaceID: workspaceID,
		UserID:      userID,
		Role:        models.RoleContributor,
		DisplayName: user.DisplayName,
		PhotoURL:    user.PhotoURL,
	}
	if err := h.members.Add(c.Request.Context(), member); err != nil {
		h.logger.Error("failed to add member", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to accept invite"})
		return
	}
	if err := h.users.RemoveInvite(c.Request.Context(), userID, workspaceID); err != nil {
		h.logger.Warn("failed to remove accepted invite", zap.Error(err))
	}

	publish(c, h.hub, h.logger, realtime.NewEvent(realtime.CollectionMembers, realtime.OpAdded, workspaceID, member))

	c.Status(http.StatusNoContent)
}

// Decline handles POST /v1/invites/:workspaceId/decline
func (h *MemberHandler) Decline(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Param("workspaceId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workspace id"})
		return
	}

	if err := h.users.RemoveInvite(c.Request.Context(), middleware.GetUserID(c), workspaceID); err != nil {
		h.logger.Error("failed to decline invite", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to decline invite"})
		return
	}

	c.Status(http.StatusNoContent)
}

// Leave handles POST /v1/workspaces/:id/leave
//
// The owner cannot leave; they delete the workspace instead. Otherwise
// an ownerless workspace would be stuck forever.
func (h *MemberHandler) Leave(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workspace id"})
		return
	}

	userID := middleware.GetUserID(c)
	role, err := h.gate.RoleOf(c.Request.Context(), workspaceID, userID)
	if err != nil {
		abortForbidden(c, h.logger, err)
		return
	}
	if role == models.RoleOwner {
		c.JSON(http.StatusConflict, gin.H{"error": "owner cannot leave; delete the workspace instead"})
		return
	}
	if role == models.RoleNone {
		c.Status(http.StatusNoContent)
		return
	}

	if err := h.members.Remove(c.Request.Context(), workspaceID, userID); err != nil {
		h.logger.Error("failed to leave workspace", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to leave workspace"})
		return
	}

	publish(c, h.hub, h.logger, realtime.NewEvent(realtime.CollectionMembers, realtime.OpRemoved, workspaceID, gin.H{"user_id": userID}))

	c.Status(http.StatusNoContent)
}
