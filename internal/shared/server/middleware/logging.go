package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"farmdata-backend/internal/shared/telemetry"
)

// Context keys handlers may set to enrich the request log line.
const (
	AnalysisIDKey = "analysisId"
	FileCountKey  = "fileCount"
	ModelKey      = "model"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"user_id":     UserIDFromContext(c),
			"is_guest":    IsGuest(c),
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		for _, key := range []string{AnalysisIDKey, FileCountKey, ModelKey} {
			if v, ok := c.Get(key); ok {
				fields[key] = v
			}
		}
		telemetry.Info("request.complete", fields)
	}
}
