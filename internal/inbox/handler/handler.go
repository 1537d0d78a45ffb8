// Package handler wires internal/inbox onto Gin routes: send a direct
// message, list an agent's inbox, mark a message read. Layering follows
// internal/rings/handler's shape.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/moltcities/backend/internal/agents/handler"
	"github.com/moltcities/backend/internal/inbox"
)

const defaultListLimit = 50

// Handler handles HTTP requests for direct messaging.
type Handler struct {
	svc    *inbox.Service
	auth   *handler.Handler
	logger *zap.Logger
}

// New builds a Handler.
func New(svc *inbox.Service, auth *handler.Handler, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, auth: auth, logger: logger}
}

// Register registers all inbox routes on the given router group, all of
// which require an authenticated agent.
func (h *Handler) Register(rg *gin.RouterGroup) {
	authed := rg.Group("/inbox", h.auth.RequireToken())
	{
		authed.GET("", h.List)
		authed.POST("", h.Send)
		authed.PATCH("/:id/read", h.MarkRead)
	}
}

type sendRequest struct {
	ToSlug  string `json:"to_slug"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Send handles POST /api/inbox.
func (h *Handler) Send(c *gin.Context) {
	agent := handler.AgentFromCtx(c)
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	inviteURL, err := h.svc.Send(c.Request.Context(), agent.ID, req.ToSlug, req.Subject, req.Body)
	if err != nil {
		writeInboxError(c, h.logger, err)
		return
	}
	resp := gin.H{"delivered": inviteURL == ""}
	if inviteURL != "" {
		resp["invite_url"] = inviteURL
	}
	c.JSON(http.StatusCreated, resp)
}

// List handles GET /api/inbox.
func (h *Handler) List(c *gin.Context) {
	agent := handler.AgentFromCtx(c)
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	messages, err := h.svc.ListForAgent(c.Request.Context(), agent.ID, limit)
	if err != nil {
		writeInboxError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages, "count": len(messages)})
}

// MarkRead handles PATCH /api/inbox/:id/read.
func (h *Handler) MarkRead(c *gin.Context) {
	agent := handler.AgentFromCtx(c)
	if err := h.svc.MarkRead(c.Request.Context(), agent.ID, c.Param("id")); err != nil {
		writeInboxError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"read": true})
}

func writeInboxError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, inbox.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.Error("inbox handler error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
