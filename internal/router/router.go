// Package router assembles the gin engine: global middleware, the health and
// metrics endpoints, the event stream and every /api/v1 feature group.
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"carbon-scribe/credit-registry-backend/internal/config"
	"carbon-scribe/credit-registry-backend/internal/middleware"
	"carbon-scribe/credit-registry-backend/internal/response"
)

// RouteRegistrar is implemented by every feature handler.
type RouteRegistrar interface {
	RegisterRoutes(router *gin.RouterGroup)
}

type Options struct {
	Config   *config.Config
	Logger   *zap.Logger
	Handlers []RouteRegistrar
	// Hub serves the websocket event stream on /ws when set.
	Hub http.Handler
	// Limiter throttles /api/v1 per client IP when set.
	Limiter *middleware.RateLimiter
}

// New builds the HTTP handler for the registry API.
func New(opts Options) *gin.Engine {
	cfg := opts.Config
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.Recovery(opts.Logger))
	r.Use(middleware.RequestLogger(opts.Logger))
	r.Use(middleware.CORS(cfg.Security.AllowedOrigins))
	r.Use(middleware.Metrics())

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, response.Envelope{Error: "route not found"})
	})

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"version":   config.Version,
			"timestamp": time.Now().UTC(),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if opts.Hub != nil {
		r.GET("/ws", gin.WrapH(opts.Hub))
	}

	api := r.Group("/api/v1")
	if opts.Limiter != nil {
		api.Use(opts.Limiter.Middleware())
	}
	api.Use(middleware.NewAuthenticator(cfg.Security.JWTSecret, cfg.Security.RequireAuth).Middleware())
	for _, h := range opts.Handlers {
		h.RegisterRoutes(api)
	}
	return r
}
