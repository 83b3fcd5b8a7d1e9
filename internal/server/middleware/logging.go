package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/BIFROTEK-com/vapi-demo-coolify/internal/logger"
)

// RequestLogger returns middleware that logs every request with method,
// path, status code, and duration. Health-check paths are silently skipped.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isHealthEndpoint(c.Request.URL.Path) {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			path = path + "?" + q
		}

		fields := map[string]interface{}{
			"method":      c.Request.Method,
			"path":        path,
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
		}
		if id := c.GetString("request_id"); id != "" {
			fields[logger.FieldRequestID] = id
		}

		switch {
		case status >= 500:
			logger.Error("Request failed", fields)
		case status >= 400:
			logger.Warn("Request error", fields)
		default:
			logger.Info("Request", fields)
		}
	}
}

func isHealthEndpoint(path string) bool {
	return strings.HasPrefix(path, "/health") || strings.HasPrefix(path, "/ready")
}
