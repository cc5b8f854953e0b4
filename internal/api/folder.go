package api

import (
	"net/http"

	"github.com/arvind-28/codeorbit/internal/access"
	"github.com/arvind-28/codeorbit/internal/middleware"
	"github.com/arvind-28/codeorbit/internal/realtime"
	"github.com/arvind-28/codeorbit/internal/repository"
	"github.com/arvind-28/codeorbit/internal/tree"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type FolderHandler struct {
	folders    repository.FolderRepository
	files      repository.FileRepository
	workspaces repository.WorkspaceRepository
	gate       *access.Gate
	hub        realtime.Broadcaster
	logger     *zap.Logger
}

func NewFolderHandler(
	folders repository.FolderRepository,
	files repository.FileRepository,
	workspaces repository.WorkspaceRepository,
	gate *access.Gate,
	hub realtime.Broadcaster,
	logger *zap.Logger,
) *FolderHandler {
	return &FolderHandler{
		folders:    folders,
		files:      files,
		workspaces: workspaces,
		gate:       gate,
		hub:        hub,
		logger:     logger,
	}
}

type createFolderRequest struct {
	Name           string     `json:"name" binding:"required"`
	ParentFolderID *uuid.UUID `json:"parent_folder_id"`
}

// Create handles POST /v1/workspaces/:id/folders
func (h *FolderHandler) Create(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workspace id"})
		return
	}

	if err := h.gate.RequireMutate(c.Request.Context(), workspaceID, middleware.GetUserID(c)); err != nil {
		abortForbidden(c, h.logger, err)
		return
	}

	var req createFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.ParentFolderID != nil {
		parent, err := h.folders.GetByID(c.Request.Context(), workspaceID, *req.ParentFolderID)
		if err != nil {
			h.logger.Error("failed to check parent folder", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create folder"})
			return
		}
		if parent == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "parent folder not found"})
			return
		}
	}

	folder, err := h.folders.Create(c.Request.Context(), workspaceID, req.Name, req.ParentFolderID)
	if err != nil {
		h.logger.Error("failed to create folder", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create folder"})
		return
	}

	publish(c, h.hub, h.logger, realtime.NewEvent(realtime.CollectionFolders, realtime.OpAdded, workspaceID, folder))

	c.JSON(http.StatusCreated, folder)
}

// Tree handles GET /v1/workspaces/:id/tree
//
// Returns the projected forest rather than the flat records, so clients
// that don't hold a live subscription still render the same structure
// subscribers build from snapshots.
func (h *FolderHandler) Tree(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workspace id"})
		return
	}

	if !requireView(c, h.workspaces, h.gate, h.logger, workspaceID) {
		return
	}

	folders, err := h.folders.ListByWorkspace(c.Request.Context(), workspaceID)
	if err != nil {
		h.logger.Error("failed to list folders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load tree"})
		return
	}
	files, err := h.files.ListByWorkspace(c.Request.Context(), workspaceID)
	if err != nil {
		h.logger.Error("failed to list files", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load tree"})
		return
	}

	c.JSON(http.StatusOK, tree.Project(folders, files))
}

type moveFolderRequest struct {
	NewParentID *uuid.UUID `json:"new_parent_id"`
}

// Move handles PATCH /v1/workspaces/:id/folders/:folderId
//
// Rejects a move that would make a folder its own ancestor.
func (h *FolderHandler) Move(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workspace id"})
		return
	}
	folderID, err := uuid.Parse(c.Param("folderId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid folder id"})
		return
	}

	if err := h.gate.RequireMutate(c.Request.Context(), workspaceID, middleware.GetUserID(c)); err != nil {
		abortForbidden(c, h.logger, err)
		return
	}

	var req moveFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	folders, err := h.folders.ListByWorkspace(c.Request.Context(), workspaceID)
	if err != nil {
		h.logger.Error("failed to list folders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to move folder"})
		return
	}

	if req.NewParentID != nil {
		parentKnown := false
		for _, f := range folders {
			if f.ID == *req.NewParentID {
				parentKnown = true
				break
			}
		}
		if !parentKnown {
			c.JSON(http.StatusBadRequest, gin.H{"error": "new parent folder not found"})
			return
		}
	}
	if tree.WouldCycle(folders, folderID, req.NewParentID) {
		c.JSON(http.StatusConflict, gin.H{"error": "move would create a cycle"})
		return
	}

	if err := h.folders.Move(c.Request.Context(), workspaceID, folderID, req.NewParentID); err != nil {
		h.logger.Error("failed to move folder", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to move folder"})
		return
	}

	publish(c, h.hub, h.logger, realtime.NewEvent(realtime.CollectionFolders, realtime.OpUpdated, workspaceID, gin.H{
		"id":               folderID,
		"parent_folder_id": req.NewParentID,
	}))

	c.Status(http.StatusNoContent)
}

// Delete handles DELETE /v1/workspaces/:id/folders/:folderId
//
// Collects the folder's whole subtree plus every file inside it and
// removes all of it in one transaction, so no file is left pointing at
// a deleted folder.
func (h *FolderHandler) Delete(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workspace id"})
		return
	}
	folderID, err := uuid.Parse(c.Param("folderId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid folder id"})
		return
	}

	if err := h.gate.RequireMutate(c.Request.Context(), workspaceID, middleware.GetUserID(c)); err != nil {
		abortForbidden(c, h.logger, err)
		return
	}

	folders, err := h.folders.ListByWorkspace(c.Request.Context(), workspaceID)
	if err != nil {
		h.logger.Error("failed to list folders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete folder"})
		return
	}

	exists := false
	for _, f := range folders {
		if f.ID == folderID {
			exists = true
			break
		}
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "folder not found"})
		return
	}

	subtree := tree.Subtree(folders, folderID)
	foldersDeleted, filesDeleted, err := h.folders.DeleteCascade(c.Request.Context(), workspaceID, subtree)
	if err != nil {
		h.logger.Error("failed to cascade delete folder", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete folder"})
		return
	}

	h.logger.Info("folder deleted",
		zap.String("workspace_id", workspaceID.String()),
		zap.String("folder_id", folderID.String()),
		zap.Int64("folders_deleted", foldersDeleted),
		zap.Int64("files_deleted", filesDeleted),
	)

	for _, id := range subtree {
		publish(c, h.hub, h.logger, realtime.NewEvent(realtime.CollectionFolders, realtime.OpRemoved, workspaceID, gin.H{"id": id}))
	}
	if filesDeleted > 0 {
		// Subscribers re-snapshot files rather than receive per-file
		// removals; the cascade can touch many records at once.
		publish(c, h.hub, h.logger, realtime.Event{
			Collection:  realtime.CollectionFiles,
			Op:          realtime.OpCleared,
			WorkspaceID: workspaceID,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"folders_deleted": foldersDeleted,
		"files_deleted":   filesDeleted,
	})
}
