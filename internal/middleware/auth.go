package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"contesthub/internal/models"
	"contesthub/internal/service"
)

const (
	ctxPrincipal = "current_principal"
	ctxSession   = "current_session"
	ctxToken     = "session_token"
)

type SessionValidator interface {
	Validate(ctx context.Context, token string, expected models.SessionType) (service.ValidatedSession, error)
}

// Auth resolves the session token of the request against the expected session
// type. Every token or session failure is answered with the same 401; the
// specific cause is only logged.
func Auth(validator SessionValidator, expected models.SessionType, cookieName string, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c, cookieName)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		validated, err := validator.Validate(c.Request.Context(), token, expected)
		if err != nil {
			if service.IsUnauthorized(err) {
				log.Debug().Err(err).
					Str("session_type", string(expected)).
					Str("client_ip", c.ClientIP()).
					Msg("session rejected")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}
			log.Error().Err(err).
				Str("request_id", RequestIDFrom(c)).
				Msg("session validation failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
			return
		}

		c.Set(ctxToken, token)
		c.Set(ctxPrincipal, validated.Principal)
		c.Set(ctxSession, validated.Session)

		c.Next()
	}
}

// TokenFromRequest reads the session cookie, falling back to a bearer
// Authorization header.
func TokenFromRequest(c *gin.Context, cookieName string) string {
	if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
		return cookie
	}
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

func CurrentPrincipal(c *gin.Context) (models.Principal, bool) {
	v, ok := c.Get(ctxPrincipal)
	if !ok {
		return models.Principal{}, false
	}
	p, ok := v.(models.Principal)
	return p, ok
}

func CurrentSession(c *gin.Context) (models.Session, bool) {
	v, ok := c.Get(ctxSession)
	if !ok {
		return models.Session{}, false
	}
	s, ok := v.(models.Session)
	return s, ok
}
