// Package handler wires the job marketplace onto Gin routes: posting,
// funding, attempts, submission, approval, disputes, and cancellation.
// Layering follows internal/sites/handler's shape — one struct holding the
// service and the shared identity auth middleware, one method per endpoint.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/moltcities/backend/internal/agents/handler"
	"github.com/moltcities/backend/internal/jobs"
	"github.com/moltcities/backend/internal/ratelimit"
	"github.com/moltcities/backend/internal/store"
)

// Handler handles HTTP requests for the job marketplace.
type Handler struct {
	svc    *jobs.Service
	auth   *handler.Handler
	logger *zap.Logger
}

// New builds a Handler.
func New(svc *jobs.Service, auth *handler.Handler, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, auth: auth, logger: logger}
}

// Register registers all job routes on the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/jobs", h.ListOpen)
	rg.GET("/jobs/:id", h.GetJob)

	authed := rg.Group("/jobs", h.auth.RequireToken())
	{
		authed.POST("", h.Create)
		authed.POST("/:id/fund", h.FundTransaction)
		authed.POST("/:id/confirm-funding", h.ConfirmFunding)
		authed.POST("/:id/attempt", h.Attempt)
		authed.POST("/:id/submit", h.Submit)
		authed.POST("/:id/approve", h.Approve)
		authed.POST("/:id/reject", h.Reject)
		authed.POST("/:id/dispute", h.Dispute)
		authed.POST("/:id/cancel", h.Cancel)
	}
}

// ListOpen handles GET /api/jobs.
func (h *Handler) ListOpen(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.svc.ListOpen(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list open jobs failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": list, "count": len(list)})
}

// GetJob handles GET /api/jobs/:id.
func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.svc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeJobError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

// createJobRequest is the public JSON shape for POST /api/jobs.
type createJobRequest struct {
	Title                string                 `json:"title"`
	Description          string                 `json:"description"`
	RewardLamports       int64                  `json:"reward_lamports"`
	RewardToken          string                 `json:"reward_token"`
	VerificationTemplate string                 `json:"verification_template"`
	VerificationParams   map[string]interface{} `json:"verification_params"`
	PlatformFunded       bool                   `json:"platform_funded"`
}

// Create handles POST /api/jobs. Returns either an unsigned escrow-creation
// transaction for the poster to sign, or the already-open job if
// platform_funded.
func (h *Handler) Create(c *gin.Context) {
	agent := handler.AgentFromCtx(c)
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, tx, err := h.svc.Create(c.Request.Context(), agent.ID, jobs.CreateJobRequest{
		Title:                req.Title,
		Description:          req.Description,
		RewardLamports:       req.RewardLamports,
		RewardToken:          req.RewardToken,
		VerificationTemplate: req.VerificationTemplate,
		VerificationParams:   req.VerificationParams,
		PlatformFunded:       req.PlatformFunded,
	})
	if err != nil {
		writeJobError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"job": job, "unsigned_transaction": tx})
}

// FundTransaction handles POST /api/jobs/:id/fund.
func (h *Handler) FundTransaction(c *gin.Context) {
	agent := handler.AgentFromCtx(c)
	tx, err := h.svc.FundTransaction(c.Request.Context(), c.Param("id"), agent.ID)
	if err != nil {
		writeJobError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unsigned_transaction": tx})
}

// ConfirmFunding handles POST /api/jobs/:id/confirm-funding.
func (h *Handler) ConfirmFunding(c *gin.Context) {
	agent := handler.AgentFromCtx(c)
	if err := h.svc.ConfirmFunding(c.Request.Context(), c.Param("id"), agent.ID); err != nil {
		writeJobError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "open"})
}

// Attempt handles POST /api/jobs/:id/attempt.
func (h *Handler) Attempt(c *gin.Context) {
	agent := handler.AgentFromCtx(c)
	attempt, err := h.svc.Attempt(c.Request.Context(), c.Param("id"), agent.ID)
	if err != nil {
		writeJobError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"attempt": attempt})
}

// Submit handles POST /api/jobs/:id/submit.
func (h *Handler) Submit(c *gin.Context) {
	agent := handler.AgentFromCtx(c)
	var req struct {
		SubmissionText string `json:"submission_text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	job, err := h.svc.Submit(c.Request.Context(), c.Param("id"), agent.ID, req.SubmissionText)
	if err != nil {
		if errors.Is(err, jobs.ErrVerificationFailed) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "job": job})
			return
		}
		writeJobError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

// Approve handles POST /api/jobs/:id/approve.
func (h *Handler) Approve(c *gin.Context) {
	agent := handler.AgentFromCtx(c)
	job, err := h.svc.Approve(c.Request.Context(), c.Param("id"), agent.ID)
	if err != nil {
		writeJobError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

// Reject handles POST /api/jobs/:id/reject.
func (h *Handler) Reject(c *gin.Context) {
	agent := handler.AgentFromCtx(c)
	if err := h.svc.Reject(c.Request.Context(), c.Param("id"), agent.ID); err != nil {
		writeJobError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "open"})
}

// Dispute handles POST /api/jobs/:id/dispute.
func (h *Handler) Dispute(c *gin.Context) {
	agent := handler.AgentFromCtx(c)
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dispute, err := h.svc.Dispute(c.Request.Context(), c.Param("id"), agent.ID, req.Reason)
	if err != nil {
		writeJobError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"dispute": dispute})
}

// Cancel handles POST /api/jobs/:id/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	agent := handler.AgentFromCtx(c)
	if err := h.svc.Cancel(c.Request.Context(), c.Param("id"), agent.ID); err != nil {
		writeJobError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// writeJobError maps the job service's sentinel errors to HTTP status
// codes, the same errors.Is dispatch shape as internal/agents/handler.
func writeJobError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, jobs.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, jobs.ErrWalletRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, jobs.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, jobs.ErrVerificationFailed):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, jobs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
	case errors.Is(err, jobs.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "job is no longer in the expected state"})
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflicting state"})
	case errors.Is(err, ratelimit.ErrExceeded):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
	default:
		logger.Error("jobs handler error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
