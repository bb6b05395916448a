package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/deicod/pizzeria/errors"
	"github.com/deicod/pizzeria/internal/logging"
	"github.com/deicod/pizzeria/observability/tracing"
)

const headerRequestID = "X-Request-ID"

// requestID reuses the caller's X-Request-ID or mints a UUIDv7, echoes it and
// stores it on the request context for query logs.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			if v7, err := uuid.NewV7(); err == nil {
				id = v7.String()
			} else {
				id = uuid.NewString()
			}
		}
		c.Header(headerRequestID, id)
		c.Set(logging.FieldRequestID, id)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logging.FromContext(c.Request.Context(), s.log).Errorw("Recovered from panic",
			"panic", recovered,
			logging.FieldPath, c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	})
}

// traceRequests opens one span per request. 5xx responses end it with an error.
func (s *Server) traceRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := s.tracer.Start(c.Request.Context(), "http."+c.Request.Method,
			tracing.String("http.method", c.Request.Method),
			tracing.String("http.route", route(c)),
			tracing.String("pizzeria.request_id", logging.RequestID(c.Request.Context())),
		)
		c.Request = c.Request.WithContext(ctx)
		c.Next()

		var err error
		if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			err = errors.Newf("http status %d", status)
			if last := c.Errors.Last(); last != nil {
				err = last.Err
			}
		}
		span.End(err)
	}
}

// observeRequests writes the access log and request metrics.
func (s *Server) observeRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)
		status := c.Writer.Status()

		s.collector.RecordRequest(c.Request.Method, route(c), status, elapsed)
		logging.FromContext(c.Request.Context(), s.log).Infow("HTTP request",
			logging.FieldMethod, c.Request.Method,
			logging.FieldRoute, route(c),
			logging.FieldPath, c.Request.URL.Path,
			logging.FieldStatus, status,
			logging.FieldDurationMS, elapsed.Milliseconds(),
		)
	}
}

// route is the matched route pattern, or the raw path when nothing matched.
func route(c *gin.Context) string {
	if r := c.FullPath(); r != "" {
		return r
	}
	return c.Request.URL.Path
}
