package waitlist

import (
	"bitwise74/waitlist-api/internal"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Leaderboard returns the best ranked users. ?limit= can shrink the page but
// never grow it past the configured page size
func Leaderboard(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	pageSize := d.Config.Leaderboard.PageSize

	limit := pageSize
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "Invalid limit provided",
				"requestID": requestID,
			})
			return
		}

		limit = min(n, pageSize)
	}

	entries, err := d.Waitlist.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to fetch leaderboard", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"leaderboard": entries,
	})
}
