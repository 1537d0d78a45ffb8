package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler serves the health report over HTTP.
type Handler struct {
	checker *Checker
}

// NewHandler builds a Handler.
func NewHandler(checker *Checker) *Handler {
	return &Handler{checker: checker}
}

// Register mounts GET /healthz.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/healthz", h.Get)
}

// Get handles GET /healthz, returning 200 if every dependency is reachable
// and 503 otherwise.
func (h *Handler) Get(c *gin.Context) {
	report := h.checker.Check(c.Request.Context())
	status := http.StatusOK
	if !report.Healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}
