package handlers

import (
	"net/http"

	"cmsledger/utils"

	"github.com/gin-gonic/gin"
)

// HealthHandler reports the last dependency probe from the health monitor.
func HealthHandler(c *gin.Context) {
	status := utils.GetHealthStatus()
	code := http.StatusOK
	if !status.Healthy() {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"success": status.Healthy(), "message": "CMS payment ledger", "data": status})
}
