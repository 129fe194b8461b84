package user

import (
	"bitwise74/waitlist-api/internal"
	"bitwise74/waitlist-api/internal/model"
	"net/http"

	"github.com/gin-gonic/gin"
)

// UserFetch looks a user up by ?id= or, failing that, by ?email=
func UserFetch(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	id := c.Query("id")
	email := c.Query("email")

	if id == "" && email == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "User ID or email is required",
			"requestID": requestID,
		})
		return
	}

	var (
		user *model.User
		err  error
	)

	if id != "" {
		user, err = d.Waitlist.UserByID(c.Request.Context(), id)
	} else {
		user, err = d.Waitlist.UserByEmail(c.Request.Context(), email)
	}
	if err != nil {
		abortWithServiceError(c, err, "Failed to fetch user")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": user,
	})
}
