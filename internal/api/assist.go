package api

import (
	"net/http"

	"github.com/arvind-28/codeorbit/internal/access"
	"github.com/arvind-28/codeorbit/internal/ai"
	"github.com/arvind-28/codeorbit/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AssistHandler exposes the editor helpers backed by the completion
// model. Failures surface as 502 without touching any stored content;
// the editor shows the error and the buffer stays as it was.
type AssistHandler struct {
	client *ai.Client
	gate   *access.Gate
	logger *zap.Logger
}

func NewAssistHandler(client *ai.Client, gate *access.Gate, logger *zap.Logger) *AssistHandler {
	return &AssistHandler{client: client, gate: gate, logger: logger}
}

type assistRequest struct {
	Code     string `json:"code" binding:"required"`
	Language string `json:"language"`
}

func (h *AssistHandler) run(c *gin.Context, op string, fn func(code, language string) (string, error)) {
	workspaceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workspace id"})
		return
	}

	if err := h.gate.RequireMutate(c.Request.Context(), workspaceID, middleware.GetUserID(c)); err != nil {
		abortForbidden(c, h.logger, err)
		return
	}

	var req assistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	language := req.Language
	if language == "" {
		language = "plaintext"
	}

	result, err := fn(req.Code, language)
	if err != nil {
		h.logger.Warn("assist request failed", zap.String("op", op), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "assistant unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

// Docs handles POST /v1/workspaces/:id/assist/docs
func (h *AssistHandler) Docs(c *gin.Context) {
	h.run(c, "docs", func(code, language string) (string, error) {
		return h.client.GenerateDocs(c.Request.Context(), code, language)
	})
}

// Complete handles POST /v1/workspaces/:id/assist/complete
func (h *AssistHandler) Complete(c *gin.Context) {
	h.run(c, "complete", func(code, _ string) (string, error) {
		return h.client.CompleteLine(c.Request.Context(), code)
	})
}

// Fix handles POST /v1/workspaces/:id/assist/fix
func (h *AssistHandler) Fix(c *gin.Context) {
	h.run(c, "fix", func(code, language string) (string, error) {
		return h.client.FixSyntax(c.Request.Context(), code, language)
	})
}
