package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"studydocs-backend/internal/shared/metrics"
	"studydocs-backend/internal/shared/server/respond"
	"studydocs-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into the generic 500 body. The log line
// carries the same request, user and document identifiers as request.complete.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			metrics.IncPanicRecovered()

			fields := map[string]any{
				"request_id": RequestIDFromContext(c),
				"method":     c.Request.Method,
				"path":       c.Request.URL.Path,
				"route":      c.FullPath(),
				"user_id":    UserIDFromContext(c),
				"error":      fmt.Sprint(rec),
				"stack":      string(debug.Stack()),
			}
			if documentID := c.GetString("documentId"); documentID != "" {
				fields["document_id"] = documentID
			}
			telemetry.Error("request.panic", fields)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, "Server error")
			c.Abort()
		}()
		c.Next()
	}
}
