package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/autovant/RCA-Final-sub001/internal/observability"
)

func HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// Metrics serves the Prometheus exposition of every registered metric.
func Metrics(c *gin.Context) {
	c.Header("Content-Type", "text/plain; version=0.0.4")
	if err := observability.Current().WritePrometheus(c.Writer); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}
