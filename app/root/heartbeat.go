package root

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Heartbeat answers HEAD with a bare 200 and GET with a small status body
func Heartbeat(c *gin.Context) {
	if c.Request.Method == http.MethodHead {
		c.Status(http.StatusOK)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
