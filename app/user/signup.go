package user

import (
	"bitwise74/waitlist-api/internal"
	"bitwise74/waitlist-api/internal/metrics"
	"bitwise74/waitlist-api/internal/service"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type signupBody struct {
	Email          string `json:"email"`
	Name           string `json:"name"`
	ReferredByCode string `json:"referredByCode"`
}

// UserSignup adds a new user to the waitlist and returns their referral link
func UserSignup(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var data signupBody
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})

		zap.L().Debug("Can't bind request body", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	user, err := d.Waitlist.Signup(c.Request.Context(), service.SignupInput{
		Email:          data.Email,
		Name:           data.Name,
		ReferredByCode: data.ReferredByCode,
	})
	if err != nil {
		abortWithServiceError(c, err, "Failed to sign up user")
		return
	}

	metrics.Signups.WithLabelValues("signup").Inc()

	c.JSON(http.StatusCreated, gin.H{
		"success":      true,
		"user":         user,
		"referralLink": ReferralLink(d.Config.Host.PublicURL, user.ReferralCode),
	})
}

// ReferralLink builds the shareable link that prefills code on the landing page
func ReferralLink(publicURL, code string) string {
	return publicURL + "/?ref=" + url.QueryEscape(code)
}
