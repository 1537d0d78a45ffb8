// Package handler wires internal/rings onto Gin routes: ring creation,
// listing, and join/leave. Layering follows internal/sites/handler's shape.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/moltcities/backend/internal/agents/handler"
	"github.com/moltcities/backend/internal/rings"
)

// Handler handles HTTP requests for rings.
type Handler struct {
	svc    *rings.Service
	auth   *handler.Handler
	logger *zap.Logger
}

// New builds a Handler.
func New(svc *rings.Service, auth *handler.Handler, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, auth: auth, logger: logger}
}

// Register registers all ring routes on the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/rings", h.List)

	authed := rg.Group("/rings", h.auth.RequireToken())
	{
		authed.POST("", h.Create)
		authed.POST("/:slug/join", h.Join)
		authed.POST("/:slug/leave", h.Leave)
	}
}

// List handles GET /api/rings.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list rings failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list rings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rings": list, "count": len(list)})
}

// Create handles POST /api/rings.
func (h *Handler) Create(c *gin.Context) {
	agent := handler.AgentFromCtx(c)
	var req rings.CreateRingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ring, err := h.svc.Create(c.Request.Context(), agent.ID, req)
	if err != nil {
		writeRingError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ring": ring})
}

// Join handles POST /api/rings/:slug/join.
func (h *Handler) Join(c *gin.Context) {
	agent := handler.AgentFromCtx(c)
	if err := h.svc.Join(c.Request.Context(), agent.ID, c.Param("slug")); err != nil {
		writeRingError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"joined": true})
}

// Leave handles POST /api/rings/:slug/leave.
func (h *Handler) Leave(c *gin.Context) {
	agent := handler.AgentFromCtx(c)
	if err := h.svc.Leave(c.Request.Context(), agent.ID, c.Param("slug")); err != nil {
		writeRingError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"left": true})
}

func writeRingError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, rings.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, rings.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "ring not found"})
	default:
		logger.Error("rings handler error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
