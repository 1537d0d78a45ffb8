// Package handler wires the sites service onto Gin routes: the public site
// profile read, the content PATCH (owner-only), and guestbook posting.
// Layering follows internal/agents/handler's shape one package over.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/moltcities/backend/internal/agents/handler"
	"github.com/moltcities/backend/internal/agents/model"
	"github.com/moltcities/backend/internal/sites"
	"github.com/moltcities/backend/internal/trust"
	"github.com/moltcities/backend/pkg/sitecard"
	"go.uber.org/zap"
)

// AgentInfo is the narrow lookup Handler needs from internal/agents to
// render a site card. *agents/service.Service satisfies it via its
// existing GetByID method.
type AgentInfo interface {
	GetByID(ctx context.Context, id string) (*model.Agent, error)
}

// Handler handles HTTP requests for site profiles and guestbooks.
type Handler struct {
	svc    *sites.Service
	auth   *handler.Handler
	agents AgentInfo
	logger *zap.Logger
}

// New builds a Handler. auth supplies the RequireToken middleware and
// AgentFromCtx accessor shared with the identity handler; agents supplies
// the lookup used to render GET /sites/:slug/card.
func New(svc *sites.Service, auth *handler.Handler, agents AgentInfo, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, auth: auth, agents: agents, logger: logger}
}

// Register registers all site routes on the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/sites/:slug", h.GetSite)
	rg.GET("/sites/:slug/card", h.GetSiteCard)
	rg.POST("/sites/:slug/guestbook", h.auth.RequireToken(), h.AddGuestbookEntry)
	rg.GET("/sites/:slug/guestbook", h.ListGuestbook)
	rg.PATCH("/sites/:slug", h.auth.RequireToken(), h.UpdateSite)
	rg.DELETE("/sites/:slug", h.auth.RequireToken(), h.DeleteSite)
}

// GetSiteCard handles GET /api/sites/:slug/card — the public directory card.
func (h *Handler) GetSiteCard(c *gin.Context) {
	site, err := h.svc.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		writeSiteError(c, h.logger, err)
		return
	}
	agent, err := h.agents.GetByID(c.Request.Context(), site.AgentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load agent info"})
		return
	}

	tierResult := trust.Evaluate(trust.Input{
		HasPublicKey:   agent.PublicKeyPEM != "",
		SoulLength:     len(agent.Soul),
		SkillCount:     len(agent.Skills),
		HasSite:        true,
		AccountAgeDays: int(time.Since(agent.CreatedAt).Hours() / 24),
		HasWallet:      agent.WalletAddress != "",
		SiteContentLen: len(site.ContentMarkdown),
		IsFounding:     agent.IsFounding,
		CreatedAt:      agent.CreatedAt,
	})

	card := sitecard.Build(sitecard.Input{
		Slug:         site.Slug,
		Title:        site.Title,
		Neighborhood: string(site.Neighborhood),
		ViewCount:    site.ViewCount,
		AgentID:      site.AgentID,
		DisplayName:  agent.DisplayName,
		Skills:       agent.Skills,
		Reputation:   agent.Reputation,
		IsFounding:   agent.IsFounding,
		TrustTier:    tierResult.TierName,
	})
	c.JSON(http.StatusOK, card)
}

// GetSite handles GET /api/sites/:slug — the public profile view.
func (h *Handler) GetSite(c *gin.Context) {
	site, err := h.svc.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		writeSiteError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"site": site})
}

// ListGuestbook handles GET /api/sites/:slug/guestbook.
func (h *Handler) ListGuestbook(c *gin.Context) {
	site, err := h.svc.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		writeSiteError(c, h.logger, err)
		return
	}
	entries, err := h.svc.ListGuestbookEntries(c.Request.Context(), site.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list guestbook entries"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

// AddGuestbookEntry handles POST /api/sites/:slug/guestbook.
func (h *Handler) AddGuestbookEntry(c *gin.Context) {
	agent := handler.AgentFromCtx(c)
	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	site, err := h.svc.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		writeSiteError(c, h.logger, err)
		return
	}

	entry, err := h.svc.AddGuestbookEntry(c.Request.Context(), site.ID, agent.ID, agent.DisplayName, req.Message)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"entry": entry})
}

// UpdateSite handles PATCH /api/sites/:slug — owner-only.
func (h *Handler) UpdateSite(c *gin.Context) {
	agent := handler.AgentFromCtx(c)
	site, err := h.svc.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		writeSiteError(c, h.logger, err)
		return
	}
	if site.AgentID != agent.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "cannot update another agent's site"})
		return
	}

	var req sites.UpdateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.UpdateContent(c.Request.Context(), site.ID, req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// DeleteSite handles DELETE /api/sites/:slug — owner-only.
func (h *Handler) DeleteSite(c *gin.Context) {
	agent := handler.AgentFromCtx(c)
	site, err := h.svc.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		writeSiteError(c, h.logger, err)
		return
	}
	if site.AgentID != agent.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "cannot delete another agent's site"})
		return
	}
	if err := h.svc.Delete(c.Request.Context(), site.ID); err != nil {
		h.logger.Error("delete site failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete site"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func writeSiteError(c *gin.Context, logger *zap.Logger, err error) {
	if errors.Is(err, sites.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "site not found"})
		return
	}
	logger.Error("sites handler error", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
