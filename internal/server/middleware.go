package server

import (
	"net/http"
	"time"

	"github.com/danmuck/grassroots/internal/logging"
	"github.com/danmuck/grassroots/internal/observability"
	"github.com/gin-gonic/gin"
)

const unmatchedRoute = "unmatched"

// routeLabel names a request by its registered route. The snapshot routes
// carry the requested encoding, so /image?format=png and /image are
// counted apart. Unknown paths share one label to keep metric cardinality
// bounded.
func routeLabel(c *gin.Context) string {
	route := c.FullPath()
	if route == "" {
		return unmatchedRoute
	}
	if route != "/image" && route != "/series" {
		return route
	}
	switch f := c.Query("format"); f {
	case "":
		return route
	case formatJSON, formatCBOR, formatPNG:
		return route + "?format=" + f
	default:
		return route + "?format=other"
	}
}

// accessLog writes one line per collaborator request. Selections change
// what every collaborator sees, so they log at info; reads stay at debug.
func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		logger := logging.Logger()
		event := logger.Debug()
		switch {
		case status >= http.StatusInternalServerError:
			event = logger.Error()
		case status >= http.StatusBadRequest:
			event = logger.Warn()
		case c.Request.Method == http.MethodPost:
			event = logger.Info()
		}

		event.
			Str("station", s.name).
			Str("method", c.Request.Method).
			Str("route", routeLabel(c)).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Int("bytes", c.Writer.Size()).
			Msg("collaborator request")
	}
}

func (s *Server) requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		observability.RecordHTTPRequest(s.name, c.Request.Method, routeLabel(c), c.Writer.Status(), time.Since(start))
	}
}
