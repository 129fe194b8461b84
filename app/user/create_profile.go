package user

import (
	"bitwise74/waitlist-api/internal"
	"bitwise74/waitlist-api/internal/metrics"
	"bitwise74/waitlist-api/internal/service"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type createProfileBody struct {
	UserID         string `json:"userId"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	ReferredByCode string `json:"referredByCode"`
}

// UserCreateProfile creates the waitlist profile of a user who just signed up
// through the auth provider. Repeated calls return the existing profile
func UserCreateProfile(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var data createProfileBody
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})

		zap.L().Debug("Can't bind request body", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	if data.UserID == "" || data.Email == "" || data.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Missing required fields",
			"requestID": requestID,
		})
		return
	}

	// Only set when token verification is enabled
	if authUserID := c.GetString("authUserID"); authUserID != "" && authUserID != strings.TrimSpace(data.UserID) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":     "Token doesn't belong to this user",
			"requestID": requestID,
		})
		return
	}

	user, created, err := d.Waitlist.CreateProfile(c.Request.Context(), service.SignupInput{
		ID:             data.UserID,
		Email:          data.Email,
		Name:           data.Name,
		ReferredByCode: data.ReferredByCode,
	})
	if err != nil {
		abortWithServiceError(c, err, "Failed to create profile")
		return
	}

	if !created {
		c.JSON(http.StatusOK, gin.H{
			"user": user,
		})
		return
	}

	metrics.Signups.WithLabelValues("profile").Inc()

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    user,
	})
}
