package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"contesthub/internal/middleware"
	"contesthub/internal/service"
)

// respondError maps service errors to HTTP. Internal detail is logged, never
// returned.
func (h HandlerSet) respondError(c *gin.Context, err error) {
	var limited *service.RateLimitedError
	switch {
	case errors.As(err, &limited):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "rate_limited",
			"message":     "too many login attempts, try again later",
			"lockedUntil": limited.LockedUntil.UTC().Format(time.RFC3339),
		})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "invalid_credentials",
			"message": service.ErrInvalidCredentials.Error(),
		})
	case service.IsUnauthorized(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	default:
		h.log.Error().Err(err).
			Str("path", c.FullPath()).
			Str("request_id", middleware.RequestIDFrom(c)).
			Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
	}
}
