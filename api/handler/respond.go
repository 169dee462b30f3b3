package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/acquire/models"
)

// respondError maps an AcquireError kind to an HTTP status and writes a
// structured JSON error body.
func respondError(c *gin.Context, err error) {
	ae := models.Categorize(err, err.Error())
	c.JSON(statusFor(ae.Kind), gin.H{"error": ae.ToDetail()})
}

// statusFor translates error kinds to HTTP status codes.
func statusFor(kind string) int {
	switch kind {
	case models.ErrKindTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrKindNavigation, models.ErrKindConnection:
		return http.StatusBadGateway // 502
	case models.ErrKindElementNotFound:
		return http.StatusUnprocessableEntity // 422
	case models.ErrKindInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrKindRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrKindUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
