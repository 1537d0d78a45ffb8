// Package handler wires the identity service onto Gin routes, following the
// teacher's internal/registry/handler/agent.go layering: one struct holding
// the service, a requireToken middleware, and one method per endpoint that
// binds JSON, dispatches to the service, and maps sentinel errors to HTTP
// status codes via errors.Is/errors.As.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/moltcities/backend/internal/agents/model"
	"github.com/moltcities/backend/internal/agents/service"
	"github.com/moltcities/backend/internal/challenge"
	"github.com/moltcities/backend/internal/store"
	"go.uber.org/zap"
)

const agentCtxKey = "moltcities_agent"

// Handler handles HTTP requests for agent identity.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// New builds a Handler.
func New(svc *service.Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RequireToken is Gin middleware that authenticates the bearer token and
// stores the resolved agent in the request context, aborting with 401 if
// authentication fails.
func (h *Handler) RequireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		agent, err := h.svc.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing bearer token"})
			return
		}
		c.Set(agentCtxKey, agent)
		c.Next()
	}
}

// AgentFromCtx returns the authenticated agent set by RequireToken, or nil.
func AgentFromCtx(c *gin.Context) *model.Agent {
	v, ok := c.Get(agentCtxKey)
	if !ok {
		return nil
	}
	a, _ := v.(*model.Agent)
	return a
}

// Register registers all identity routes on the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/register", h.RegisterStart)
	rg.POST("/register/verify", h.RegisterVerify)
	rg.POST("/recover", h.RecoverStart)
	rg.POST("/recover/verify", h.RecoverVerify)
	rg.GET("/check", h.CheckSlug)

	me := rg.Group("/me", h.RequireToken())
	{
		me.GET("", h.GetMe)
		me.PATCH("", h.UpdateMe)
		me.POST("/pubkey", h.AddKeyStart)
		me.POST("/pubkey/verify", h.AddKeyVerify)
		me.POST("/wallet/challenge", h.WalletChallengeStart)
		me.POST("/wallet/verify", h.WalletVerify)
	}
}

// RegisterStart handles POST /api/register — phase 1 of registration.
func (h *Handler) RegisterStart(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.svc.RegisterStart(c.Request.Context(), req, c.ClientIP())
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RegisterVerify handles POST /api/register/verify — phase 2 of registration.
func (h *Handler) RegisterVerify(c *gin.Context) {
	var req model.RegisterPhase2Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.svc.RegisterVerify(c.Request.Context(), req.PendingID, req.SignatureBase64)
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// RecoverStart handles POST /api/recover — phase 1 of key recovery.
func (h *Handler) RecoverStart(c *gin.Context) {
	var req struct {
		AgentID      string `json:"agent_id"`
		PublicKeyPEM string `json:"public_key_pem"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resp, err := h.svc.RecoverStart(c.Request.Context(), req.AgentID, req.PublicKeyPEM)
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RecoverVerify handles POST /api/recover/verify — phase 2 of key recovery.
func (h *Handler) RecoverVerify(c *gin.Context) {
	var req model.RegisterPhase2Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resp, err := h.svc.RecoverVerify(c.Request.Context(), req.PendingID, req.SignatureBase64)
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AddKeyStart handles POST /api/me/pubkey — phase 1 of adding a secondary key.
func (h *Handler) AddKeyStart(c *gin.Context) {
	agent := AgentFromCtx(c)
	var req struct {
		PublicKeyPEM string `json:"public_key_pem"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resp, err := h.svc.AddKeyStart(c.Request.Context(), agent.ID, req.PublicKeyPEM)
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AddKeyVerify handles POST /api/me/pubkey/verify.
func (h *Handler) AddKeyVerify(c *gin.Context) {
	var req model.RegisterPhase2Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	agent, err := h.svc.AddKeyVerify(c.Request.Context(), req.PendingID, req.SignatureBase64)
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent": agent})
}

// WalletChallengeStart handles POST /api/me/wallet/challenge.
func (h *Handler) WalletChallengeStart(c *gin.Context) {
	agent := AgentFromCtx(c)
	var req model.WalletChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resp, err := h.svc.WalletChallengeStart(c.Request.Context(), agent.ID, req.WalletAddress)
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// WalletVerify handles POST /api/me/wallet/verify.
func (h *Handler) WalletVerify(c *gin.Context) {
	var req model.WalletVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	agent, err := h.svc.WalletVerify(c.Request.Context(), req.PendingID, req.SignatureBase58)
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent": agent})
}

// GetMe handles GET /api/me — returns the authenticated agent's full profile.
func (h *Handler) GetMe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"agent": AgentFromCtx(c)})
}

// UpdateMe handles PATCH /api/me.
func (h *Handler) UpdateMe(c *gin.Context) {
	agent := AgentFromCtx(c)
	var req service.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.UpdateProfile(c.Request.Context(), agent.ID, req); err != nil {
		writeServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// CheckSlug handles GET /api/check?slug=... for client-side availability checks.
func (h *Handler) CheckSlug(c *gin.Context) {
	slug := c.Query("slug")
	available, err := h.svc.CheckSlug(c.Request.Context(), slug)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check slug"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"slug": slug, "available": available})
}

// writeServiceError maps the identity service's sentinel errors to HTTP
// status codes, the same errors.Is dispatch shape as the teacher's handler
// package.
func writeServiceError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "resource already exists"})
	case errors.Is(err, challenge.ErrExpired):
		c.JSON(http.StatusGone, gin.H{"error": "challenge expired, please start over"})
	case errors.Is(err, challenge.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "pending challenge not found"})
	case errors.Is(err, challenge.ErrVerificationFailed):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "signature verification failed"})
	default:
		logger.Error("identity handler error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
