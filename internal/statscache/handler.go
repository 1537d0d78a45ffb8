package statscache

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler serves the cached stats snapshot over HTTP.
type Handler struct {
	cache  *Cache
	logger *zap.Logger
}

// NewHandler builds a Handler.
func NewHandler(cache *Cache, logger *zap.Logger) *Handler {
	return &Handler{cache: cache, logger: logger}
}

// Register mounts GET /api/stats.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/stats", h.Get)
}

// Get handles GET /api/stats. Cache-Control is advisory only — the Redis
// TTL inside Cache is what actually bounds recomputation.
func (h *Handler) Get(c *gin.Context) {
	snap, err := h.cache.Get(c.Request.Context())
	if err != nil {
		h.logger.Error("stats snapshot failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}
	c.Header("Cache-Control", "max-age=30")
	c.JSON(http.StatusOK, snap)
}
