// Package httpapi assembles the public gin.Engine: CORS, the IP-level rate
// limit backstop, Prometheus request metrics, and every domain handler
// group mounted under /api. cmd/server is the only caller; this package
// holds no business logic of its own.
package httpapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/moltcities/backend/internal/metrics"
)

// Registrar is satisfied by every domain handler: mount its routes on a
// router group.
type Registrar interface {
	Register(rg *gin.RouterGroup)
}

// Config configures the assembled engine.
type Config struct {
	CORSOrigins  []string
	RateLimitRPS int
}

// New builds the gin.Engine mounting every registrar under /api, in front
// of CORS, the IP rate limiter, and request metrics middleware. rootReg (if
// non-nil) is mounted at the engine root instead of under /api — used for
// GET /healthz, which load balancers and orchestrators expect outside any
// API version prefix.
func New(cfg Config, logger *zap.Logger, rootReg Registrar, registrars ...Registrar) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ginLogger(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(metrics.Middleware())

	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 20
	}
	r.Use(IPRateLimiter(rps, rps*2))

	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	if rootReg != nil {
		rootReg.Register(&r.RouterGroup)
	}

	api := r.Group("/api")
	for _, reg := range registrars {
		reg.Register(api)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return r
}

func ginLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.String("ip", c.ClientIP()),
		)
	}
}
