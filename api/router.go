// Package api wires the HTTP surface: routing, authentication, and rate
// limiting around the orchestration core.
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/acquire/api/handler"
	"github.com/use-agent/acquire/api/middleware"
	"github.com/use-agent/acquire/cache"
	"github.com/use-agent/acquire/config"
	"github.com/use-agent/acquire/orchestrator"
	"github.com/use-agent/acquire/search"
	"github.com/use-agent/acquire/session"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(o *orchestrator.Orchestrator, so *search.Orchestrator, sm *session.Manager, cfg *config.Config, cc *cache.Cache, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health stays outside auth.
	v1.GET("/health", handler.Health(sm, cc, startTime))

	// Protected group: auth plus rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Acquisition
	protected.POST("/acquire", handler.Acquire(o))
	protected.GET("/engines", handler.Engines(o))

	// Batch
	protected.POST("/batch", handler.PostBatch(o, cfg.Webhook.Secret))
	protected.GET("/batch/:id", handler.GetBatch())

	// Search
	protected.POST("/search", handler.Search(so))

	// Sessions
	protected.GET("/session/:profile/screenshot", handler.Screenshot(sm))

	return r
}
