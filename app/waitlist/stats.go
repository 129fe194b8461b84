// Package waitlist contains the public read-only waitlist endpoints
package waitlist

import (
	"bitwise74/waitlist-api/internal"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func Stats(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	stats, err := d.Waitlist.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to load waitlist stats", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusOK, stats)
}
