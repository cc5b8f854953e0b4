package api

import (
	"errors"
	"net/http"

	"github.com/arvind-28/codeorbit/internal/access"
	"github.com/arvind-28/codeorbit/internal/repository"
	"github.com/arvind-28/codeorbit/internal/runner"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RunHandler executes editor buffers on the sandboxed execution service.
// Running code reads workspace content but mutates nothing, so it is
// open to anyone who can view the workspace, viewers included.
type RunHandler struct {
	client     *runner.Client
	workspaces repository.WorkspaceRepository
	gate       *access.Gate
	logger     *zap.Logger
}

func NewRunHandler(client *runner.Client, workspaces repository.WorkspaceRepository, gate *access.Gate, logger *zap.Logger) *RunHandler {
	return &RunHandler{client: client, workspaces: workspaces, gate: gate, logger: logger}
}

type runRequest struct {
	Language string `json:"language" binding:"required"`
	Code     string `json:"code" binding:"required"`
}

// Run handles POST /v1/workspaces/:id/run
func (h *RunHandler) Run(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workspace id"})
		return
	}

	if !requireView(c, h.workspaces, h.gate, h.logger, workspaceID) {
		return
	}

	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.client.Run(c.Request.Context(), req.Language, req.Code)
	if err != nil {
		if errors.Is(err, runner.ErrUnsupportedLanguage) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "unsupported language",
				"supported": runner.Languages(),
			})
			return
		}
		h.logger.Warn("run request failed", zap.String("language", req.Language), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "execution service unavailable"})
		return
	}

	c.JSON(http.StatusOK, result)
}
