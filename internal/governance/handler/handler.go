// Package handler wires internal/governance onto Gin routes: proposal
// creation/voting/listing, dispute ballots, and agent reports. Layering
// follows internal/jobs/handler's shape one package over.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/moltcities/backend/internal/agents/handler"
	"github.com/moltcities/backend/internal/governance"
	"github.com/moltcities/backend/internal/store"
)

// Handler handles HTTP requests for proposals, dispute ballots, and reports.
type Handler struct {
	svc    *governance.Service
	auth   *handler.Handler
	logger *zap.Logger
}

// New builds a Handler.
func New(svc *governance.Service, auth *handler.Handler, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, auth: auth, logger: logger}
}

// Register registers all governance routes on the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/governance/proposals", h.ListProposals)

	authed := rg.Group("/governance", h.auth.RequireToken())
	{
		authed.POST("/proposals", h.CreateProposal)
		authed.POST("/proposals/:id/vote", h.VoteProposal)
		authed.POST("/disputes/:id/vote", h.VoteDispute)
		authed.POST("/reports", h.CreateReport)
		authed.POST("/reports/:id/vote", h.VoteReport)
	}
}

// ListProposals handles GET /api/governance/proposals.
func (h *Handler) ListProposals(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	proposals, err := h.svc.ListProposals(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list proposals failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list proposals"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposals": proposals, "count": len(proposals)})
}

// CreateProposal handles POST /api/governance/proposals.
func (h *Handler) CreateProposal(c *gin.Context) {
	agent := handler.AgentFromCtx(c)
	var req governance.CreateProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	proposal, err := h.svc.CreateProposal(c.Request.Context(), agent.ID, req)
	if err != nil {
		writeGovernanceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"proposal": proposal})
}

// VoteProposal handles POST /api/governance/proposals/:id/vote.
func (h *Handler) VoteProposal(c *gin.Context) {
	agent := handler.AgentFromCtx(c)
	var req struct {
		Support bool `json:"support"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	weight, err := h.svc.VoteProposal(c.Request.Context(), c.Param("id"), agent.ID, req.Support)
	if err != nil {
		writeGovernanceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"weight": weight})
}

// VoteDispute handles POST /api/governance/disputes/:id/vote.
func (h *Handler) VoteDispute(c *gin.Context) {
	agent := handler.AgentFromCtx(c)
	var req governance.VoteDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	weight, err := h.svc.VoteDispute(c.Request.Context(), c.Param("id"), agent.ID, req)
	if err != nil {
		writeGovernanceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"weight": weight})
}

// CreateReport handles POST /api/governance/reports.
func (h *Handler) CreateReport(c *gin.Context) {
	agent := handler.AgentFromCtx(c)
	var req governance.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	report, err := h.svc.CreateReport(c.Request.Context(), agent.ID, req)
	if err != nil {
		writeGovernanceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"report": report})
}

// VoteReport handles POST /api/governance/reports/:id/vote.
func (h *Handler) VoteReport(c *gin.Context) {
	agent := handler.AgentFromCtx(c)
	var req struct {
		Support bool `json:"support"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	weight, err := h.svc.VoteReport(c.Request.Context(), c.Param("id"), agent.ID, req.Support)
	if err != nil {
		writeGovernanceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"weight": weight})
}

// writeGovernanceError maps the governance service's sentinel errors to
// HTTP status codes, the same errors.Is dispatch shape as
// internal/jobs/handler's writeJobError.
func writeGovernanceError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, governance.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, governance.ErrStakeRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, governance.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, governance.ErrVotingClosed):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	case errors.Is(err, governance.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "already voted"})
	default:
		logger.Error("governance handler error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
