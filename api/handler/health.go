package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/acquire/cache"
	"github.com/use-agent/acquire/session"
)

// Health returns a handler for GET /api/v1/health.
func Health(sm *session.Manager, cc *cache.Cache, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{
			"status":  "healthy",
			"uptime":  time.Since(startTime).Round(time.Second).String(),
			"version": "0.1.0",
		}
		if sm != nil {
			body["sessions"] = sm.Len()
		}
		if cc != nil {
			body["cache_entries"] = cc.Len()
		}
		c.JSON(http.StatusOK, body)
	}
}
