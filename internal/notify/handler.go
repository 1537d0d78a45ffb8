package notify

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthFunc resolves the agent ID a bearer token belongs to, adapting
// *agents/service.Service.Authenticate (which returns a full *model.Agent)
// down to the one field this package needs — avoiding an import of
// internal/agents/model just for an ID field.
type AuthFunc func(ctx context.Context, authorizationHeader string) (agentID string, err error)

// Handler upgrades HTTP connections to the personal or town-square
// WebSocket groups.
type Handler struct {
	hub    *Hub
	auth   AuthFunc
	logger *zap.Logger
}

// NewHandler builds a Handler.
func NewHandler(hub *Hub, auth AuthFunc, logger *zap.Logger) *Handler {
	return &Handler{hub: hub, auth: auth, logger: logger}
}

// Register mounts GET /notifications/connect.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/notifications/connect", h.Connect)
}

// Connect handles GET /api/notifications/connect?token=mc_...&channel=personal|town-square.
// The token is also accepted as a standard Authorization: Bearer header,
// for clients that prefer not to put it in the URL — browsers cannot set
// custom headers on a WebSocket handshake, so the query parameter is the
// primary path.
func (h *Handler) Connect(c *gin.Context) {
	channel := c.Query("channel")
	if channel == "" {
		channel = "personal"
	}

	switch channel {
	case "town-square":
		if err := h.hub.ServeTownSquare(c.Writer, c.Request); err != nil {
			h.logger.Warn("town square websocket upgrade failed", zap.Error(err))
		}
	case "personal":
		bearer := c.GetHeader("Authorization")
		if bearer == "" {
			if tok := c.Query("token"); tok != "" {
				bearer = "Bearer " + tok
			}
		}
		agentID, err := h.auth(c.Request.Context(), bearer)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			return
		}
		if err := h.hub.ServePersonal(c.Writer, c.Request, agentID); err != nil {
			h.logger.Warn("personal websocket upgrade failed", zap.Error(err))
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel must be personal or town-square"})
	}
}
