package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Recovery turns a handler panic into a 500 carrying the request id. The
// stack is logged, never returned. http.ErrAbortHandler is re-raised so the
// server can drop the connection as net/http intends.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if err, ok := r.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(r)
			}

			event := log.Error().
				Interface("error", r).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Str("request_id", RequestIDFrom(c)).
				Str("stack", string(debug.Stack()))
			if p, ok := CurrentPrincipal(c); ok {
				event = event.Str("principal_id", p.ID)
			}
			event.Msg("panic recovered")

			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":      "internal_server_error",
				"request_id": RequestIDFrom(c),
			})
		}()
		c.Next()
	}
}
