package user

import (
	"bitwise74/waitlist-api/internal"
	"net/http"

	"github.com/gin-gonic/gin"
)

// UserPosition returns the rank of the user owning ?code= and how many
// people are currently ahead of them
func UserPosition(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "No referral code provided",
			"requestID": requestID,
		})
		return
	}

	pos, err := d.Waitlist.Position(c.Request.Context(), code)
	if err != nil {
		abortWithServiceError(c, err, "Failed to fetch user position")
		return
	}

	c.JSON(http.StatusOK, pos)
}
