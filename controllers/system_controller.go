package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/princinho/sahoassist/services"
)

// GET /ping
func Ping() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	}
}

// GET /health
func Health(health *services.HealthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := health.Check(c.Request.Context())
		status := http.StatusOK
		if report.Status == "degraded" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, report)
	}
}

// POST /admin/sweeps/:name
func RunSweep(sweeper *services.Sweeper) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := sweeper.Run(c.Request.Context(), c.Param("name"))
		if report == nil {
			respondError(c, err)
			return
		}
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"report": report, "error": "one or more sweep tasks failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"report": report})
	}
}
