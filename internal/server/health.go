package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthChecker interface for checking component health.
type HealthChecker interface {
	Liveness() bool
	Readiness(ctx context.Context) bool
	GetStatus() map[string]string
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// AppenderChecker reports appender health. The process is live while it
// serves requests and ready while the most recent flush succeeded.
type AppenderChecker struct {
	app Appender
}

// NewAppenderChecker creates a health checker for app.
func NewAppenderChecker(app Appender) *AppenderChecker {
	return &AppenderChecker{app: app}
}

// Liveness always reports true.
func (c *AppenderChecker) Liveness() bool {
	return true
}

// Readiness reports whether the last flush reached the sink.
func (c *AppenderChecker) Readiness(context.Context) bool {
	return c.app.Healthy()
}

// GetStatus returns per-check details for the readiness response.
func (c *AppenderChecker) GetStatus() map[string]string {
	stats := c.app.Stats()
	status := map[string]string{
		"buffer":    stats.State,
		"occupancy": strconv.Itoa(stats.Occupancy) + "/" + strconv.Itoa(stats.Capacity),
		"dropped":   strconv.FormatUint(stats.Dropped, 10),
		"sink":      "ok",
	}
	if stats.LastFlushError != "" {
		status["sink"] = stats.LastFlushError
	}
	return status
}

// LivenessHandler returns a handler for Kubernetes liveness probes.
// Liveness probes should only fail if the process needs to be restarted.
func LivenessHandler(checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "alive"
		statusCode := http.StatusOK

		if !checker.Liveness() {
			status = "not alive"
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// ReadinessHandler returns a handler for Kubernetes readiness probes.
func ReadinessHandler(checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ready"
		statusCode := http.StatusOK

		if !checker.Readiness(c.Request.Context()) {
			status = "not ready"
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    checker.GetStatus(),
		})
	}
}

// StatsHandler returns the appender statistics.
func StatsHandler(app Appender) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, app.Stats())
	}
}

// FlushHandler drains the ring on demand.
func FlushHandler(app Appender, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		if err := app.Flush(ctx); err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"message": "flush failed",
				"error":   err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":   "flushed",
			"occupancy": app.Stats().Occupancy,
		})
	}
}
