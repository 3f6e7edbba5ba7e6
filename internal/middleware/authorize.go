package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"contesthub/internal/models"
)

// RequireCapability lets the request through only when the authenticated
// principal holds every listed capability.
func RequireCapability(caps ...models.Capability) gin.HandlerFunc {
	required := models.NewCapabilitySet(caps...)

	return func(c *gin.Context) {
		principal, ok := CurrentPrincipal(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		granted := principal.EffectiveCapabilities()
		if granted&required != required {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		c.Next()
	}
}
