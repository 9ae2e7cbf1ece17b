package server

import (
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogger emits one structured line per request. Metrics scrapes
// stay at debug so they do not drown the log.
func (s *Server) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := s.logger.Info()
		if c.Request.URL.Path == "/metrics" || c.Request.URL.Path == "/health" {
			event = s.logger.Debug()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}
