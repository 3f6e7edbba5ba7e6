package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"contesthub/internal/middleware"
	"contesthub/internal/models"
	"contesthub/internal/service"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 500
)

// SetPrincipalActive toggles a team or admin account. Admins cannot
// deactivate themselves.
func (h HandlerSet) SetPrincipalActive(typ models.SessionType) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req toggleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}

		id := c.Param("id")
		actor, _ := middleware.CurrentPrincipal(c)
		if typ == actor.Type && id == actor.ID && !*req.Active {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot_deactivate_self"})
			return
		}

		err := h.deps.Principals.SetActive(c.Request.Context(), service.SetActiveInput{
			Actor:     actor,
			Type:      typ,
			ID:        id,
			Active:    *req.Active,
			IPAddress: c.ClientIP(),
		})
		if err != nil {
			h.respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"id": id, "type": typ, "active": *req.Active})
	}
}

func (h HandlerSet) ListAudit(c *gin.Context) {
	limit := defaultAuditLimit
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= maxAuditLimit {
			limit = v
		}
	}

	events, err := h.deps.Audit.List(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if events == nil {
		events = []models.AuditEvent{}
	}

	c.JSON(http.StatusOK, gin.H{
		"items": events,
	})
}
