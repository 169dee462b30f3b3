package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/acquire/models"
	"github.com/use-agent/acquire/search"
)

// Search returns a handler for POST /api/v1/search.
func Search(so *search.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": models.ErrorDetail{
					Kind:    models.ErrKindInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		resp, err := so.Search(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}
