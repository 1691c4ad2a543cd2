// File: web/middleware.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package web

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/momentics/canvasrelay/control"
)

// RequestLogger logs one line per request, escalating the level on
// client and server errors.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := logger.Info()
		if status >= 500 {
			event = logger.Error()
		} else if status >= 400 {
			event = logger.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", routePath(c)).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Int("bytes", c.Writer.Size()).
			Msg("http_request")
	}
}

// RequestMetrics records request counts and latency on m.
func RequestMetrics(m *control.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.HTTPRequest(c.Request.Method, routePath(c), c.Writer.Status(), time.Since(start))
	}
}

// routePath prefers the route template so unmatched paths do not explode
// label cardinality.
func routePath(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return "unmatched"
}
