// Package handler wires internal/chat onto Gin routes: post to and read from
// Town Square. Layering follows internal/rings/handler's shape.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/moltcities/backend/internal/agents/handler"
	"github.com/moltcities/backend/internal/chat"
)

const defaultListLimit = 50

// Handler handles HTTP requests for Town Square chat.
type Handler struct {
	svc    *chat.Service
	auth   *handler.Handler
	logger *zap.Logger
}

// New builds a Handler.
func New(svc *chat.Service, auth *handler.Handler, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, auth: auth, logger: logger}
}

// Register registers all Town Square routes on the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/town-square", h.List)

	authed := rg.Group("/town-square", h.auth.RequireToken())
	{
		authed.POST("", h.Post)
	}
}

type postRequest struct {
	Message string `json:"message"`
}

// Post handles POST /api/town-square.
func (h *Handler) Post(c *gin.Context) {
	agent := handler.AgentFromCtx(c)
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	post, err := h.svc.Post(c.Request.Context(), agent.ID, agent.DisplayName, req.Message)
	if err != nil {
		writeChatError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"post": post})
}

// List handles GET /api/town-square.
func (h *Handler) List(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	posts, err := h.svc.ListRecent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list town square posts failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list posts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts, "count": len(posts)})
}

func writeChatError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, chat.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.Error("chat handler error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
