package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/acquire/models"
	"github.com/use-agent/acquire/orchestrator"
)

// Acquire returns a handler for POST /api/v1/acquire.
//
// Flow:
//  1. Parse & validate request, apply defaults.
//  2. Orchestrator.Acquire → cache lookup, engine chain, extraction.
//  3. Return the result with cache status and timing.
func Acquire(o *orchestrator.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.AcquireRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": models.ErrorDetail{
					Kind:    models.ErrKindInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		result, err := o.Acquire(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// Engines returns a handler for GET /api/v1/engines listing each engine and
// its availability probe result.
func Engines(o *orchestrator.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"engines": o.AvailableEngines()})
	}
}
