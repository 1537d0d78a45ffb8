package webhooks

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHeader is the header Helius is configured to send the shared secret
// on, per its "authentication header" delivery option.
const AuthHeader = "Authorization"

// Handler handles the inbound webhook endpoint.
type Handler struct {
	svc    *Service
	secret string
	logger *zap.Logger
}

// New builds a Handler. An empty secret disables authentication, for local
// development only — production configs must set webhooks.helius_secret.
func New(svc *Service, secret string, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, secret: secret, logger: logger}
}

// Register registers the webhook route. Unauthenticated at the Gin
// middleware level — authentication is the shared-secret header check
// below, not a bearer token, since the caller is the ledger operator, not
// an agent.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/webhooks/helius", h.Ingest)
}

// Ingest handles POST /api/webhooks/helius — an array of transaction events
// from the ledger operator. The source trusts the payload once the shared
// secret matches; spec calls this out explicitly as a point a production
// deployment should harden further (signed envelope, IP allowlist).
func (h *Handler) Ingest(c *gin.Context) {
	if h.secret != "" {
		if subtle.ConstantTimeCompare([]byte(c.GetHeader(AuthHeader)), []byte(h.secret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
			return
		}
	}

	var events []Event
	if err := c.ShouldBindJSON(&events); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for _, e := range events {
		h.svc.Ingest(c.Request.Context(), e)
	}
	c.JSON(http.StatusOK, gin.H{"received": len(events)})
}
