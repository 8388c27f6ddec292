package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	callerHeader = "X-User-ID"
	callerKey    = "callerId"
)

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.config.logger().Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.config.Metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		s.config.Metrics.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// requireSubjectAccess lets callers read their own data, and physicians read
// data of patients assigned to them. Verifying the caller header is the job
// of the gateway in front of this service.
func (s *Server) requireSubjectAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.GetHeader(callerHeader)
		if caller == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing caller identity"})
			return
		}

		subject := c.Param("subjectId")
		if caller != subject {
			ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
			ok, err := s.config.Assignments.IsAssigned(ctx, caller, subject)
			cancel()
			if err != nil {
				s.config.logger().Error("assignment lookup failed", "caller", caller, "subject", subject, "err", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to verify access"})
				return
			}
			if !ok {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not allowed to view this patient"})
				return
			}
		}

		c.Set(callerKey, caller)
		c.Next()
	}
}
