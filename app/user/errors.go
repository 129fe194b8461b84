package user

import (
	"bitwise74/waitlist-api/internal/service"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// abortWithServiceError answers with the status matching err. Anything that
// isn't a known service error is logged and hidden behind a generic message
func abortWithServiceError(c *gin.Context, err error, logMsg string) {
	requestID := c.GetString("requestID")

	var inputErr *service.InputError

	switch {
	case errors.As(err, &inputErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     inputErr.Error(),
			"requestID": requestID,
		})
	case errors.Is(err, service.ErrEmailTaken):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "This email is already on the waitlist",
			"requestID": requestID,
		})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "User not found",
			"requestID": requestID,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error(logMsg, zap.Error(err), zap.String("requestID", requestID))
	}
}
