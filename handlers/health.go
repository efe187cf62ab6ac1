package handlers

import (
	"net/http"

	"turnero/utils"

	"github.com/gin-gonic/gin"
)

// HealthHandler reports the latest dependency snapshot. It answers 503 when
// any checked dependency failed its last ping.
func HealthHandler(c *gin.Context) {
	status := utils.GetHealthStatus()
	if !status.Healthy() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": status})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": status})
}
