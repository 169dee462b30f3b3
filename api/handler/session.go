package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/acquire/models"
	"github.com/use-agent/acquire/session"
)

// Screenshot returns a handler for GET /api/v1/session/:profile/screenshot.
// An optional "selector" query parameter captures a single element instead
// of the viewport. The profile must already have a live session.
func Screenshot(sm *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile := c.Param("profile")
		if _, ok := sm.Get(profile); !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": models.ErrorDetail{
					Kind:    models.ErrKindInvalidInput,
					Message: "no live session for profile " + profile,
				},
			})
			return
		}

		var (
			img []byte
			err error
		)
		if selector := c.Query("selector"); selector != "" {
			img, err = sm.ScreenshotElement(c.Request.Context(), profile, selector)
		} else {
			img, err = sm.Screenshot(c.Request.Context(), profile)
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.Data(http.StatusOK, "image/png", img)
	}
}
