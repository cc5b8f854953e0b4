package api

import (
	"net/http"

	"github.com/arvind-28/codeorbit/internal/access"
	"github.com/arvind-28/codeorbit/internal/middleware"
	"github.com/arvind-28/codeorbit/internal/realtime"
	"github.com/arvind-28/codeorbit/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type FileHandler struct {
	files      repository.FileRepository
	folders    repository.FolderRepository
	workspaces repository.WorkspaceRepository
	gate       *access.Gate
	hub        realtime.Broadcaster
	logger     *zap.Logger
}

func NewFileHandler(
	files repository.FileRepository,
	folders repository.FolderRepository,
	workspaces repository.WorkspaceRepository,
	gate *access.Gate,
	hub realtime.Broadcaster,
	logger *zap.Logger,
) *FileHandler {
	return &FileHandler{
		files:      files,
		folders:    folders,
		workspaces: workspaces,
		gate:       gate,
		hub:        hub,
		logger:     logger,
	}
}

type createFileRequest struct {
	Name     string     `json:"name" binding:"required"`
	FolderID *uuid.UUID `json:"folder_id"`
}

// Create handles POST /v1/workspaces/:id/files
func (h *FileHandler) Create(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workspace id"})
		return
	}

	if err := h.gate.RequireMutate(c.Request.Context(), workspaceID, middleware.GetUserID(c)); err != nil {
		abortForbidden(c, h.logger, err)
		return
	}

	var req createFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.FolderID != nil {
		folder, err := h.folders.GetByID(c.Request.Context(), workspaceID, *req.FolderID)
		if err != nil {
			h.logger.Error("failed to check folder", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create file"})
			return
		}
		if folder == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "folder not found"})
			return
		}
	}

	file, err := h.files.Create(c.Request.Context(), workspaceID, req.Name, req.FolderID)
	if err != nil {
		h.logger.Error("failed to create file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create file"})
		return
	}

	publish(c, h.hub, h.logger, realtime.NewEvent(realtime.CollectionFiles, realtime.OpAdded, workspaceID, file))

	c.JSON(http.StatusCreated, file)
}

// List handles GET /v1/workspaces/:id/files
func (h *FileHandler) List(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workspace id"})
		return
	}

	if !requireView(c, h.workspaces, h.gate, h.logger, workspaceID) {
		return
	}

	files, err := h.files.ListByWorkspace(c.Request.Context(), workspaceID)
	if err != nil {
		h.logger.Error("failed to list files", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list files"})
		return
	}

	c.JSON(http.StatusOK, files)
}

// Get handles GET /v1/workspaces/:id/files/:fileId
func (h *FileHandler) Get(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workspace id"})
		return
	}
	fileID, err := uuid.Parse(c.Param("fileId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file id"})
		return
	}

	if !requireView(c, h.workspaces, h.gate, h.logger, workspaceID) {
		return
	}

	file, err := h.files.GetByID(c.Request.Context(), workspaceID, fileID)
	if err != nil {
		h.logger.Error("failed to get file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get file"})
		return
	}
	if file == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}

	c.JSON(http.StatusOK, file)
}

type saveFileRequest struct {
	Content *string `json:"content" binding:"required"`
}

// Save handles PUT /v1/workspaces/:id/files/:fileId
//
// Whole-content overwrite, last writer wins. The websocket edit path
// coalesces keystrokes before it lands here; this endpoint is the
// direct save for clients that manage their own timing.
func (h *FileHandler) Save(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workspace id"})
		return
	}
	fileID, err := uuid.Parse(c.Param("fileId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file id"})
		return
	}

	if err := h.gate.RequireMutate(c.Request.Context(), workspaceID, middleware.GetUserID(c)); err != nil {
		abortForbidden(c, h.logger, err)
		return
	}

	var req saveFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	file, err := h.files.UpdateContent(c.Request.Context(), workspaceID, fileID, *req.Content)
	if err != nil {
		h.logger.Error("failed to save file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save file"})
		return
	}
	if file == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}

	publish(c, h.hub, h.logger, realtime.NewEvent(realtime.CollectionFiles, realtime.OpUpdated, workspaceID, file))

	c.JSON(http.StatusOK, file)
}

// Delete handles DELETE /v1/workspaces/:id/files/:fileId
func (h *FileHandler) Delete(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workspace id"})
		return
	}
	fileID, err := uuid.Parse(c.Param("fileId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file id"})
		return
	}

	if err := h.gate.RequireMutate(c.Request.Context(), workspaceID, middleware.GetUserID(c)); err != nil {
		abortForbidden(c, h.logger, err)
		return
	}

	if err := h.files.Delete(c.Request.Context(), workspaceID, fileID); err != nil {
		h.logger.Error("failed to delete file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete file"})
		return
	}

	publish(c, h.hub, h.logger, realtime.NewEvent(realtime.CollectionFiles, realtime.OpRemoved, workspaceID, gin.H{"id": fileID}))

	c.Status(http.StatusNoContent)
}
