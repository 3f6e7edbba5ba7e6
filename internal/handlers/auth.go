package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"contesthub/internal/middleware"
	"contesthub/internal/models"
	"contesthub/internal/service"
)

type adminLoginRequest struct {
	Username string `json:"username" binding:"required,loginid"`
	Password string `json:"password" binding:"required,max=256"`
}

type teamLoginRequest struct {
	TeamName string `json:"teamName" binding:"required,loginid"`
	Password string `json:"password" binding:"required,max=256"`
}

type principalResponse struct {
	ID           string     `json:"id"`
	LoginID      string     `json:"loginId"`
	Type         string     `json:"type"`
	Role         string     `json:"role"`
	Capabilities []string   `json:"capabilities"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

func toPrincipalResponse(p models.Principal) principalResponse {
	return principalResponse{
		ID:           p.ID,
		LoginID:      p.LoginID,
		Type:         string(p.Type),
		Role:         string(p.Role),
		Capabilities: p.EffectiveCapabilities().Names(),
		LastLoginAt:  p.LastLoginAt,
	}
}

func (h HandlerSet) AdminLogin(c *gin.Context) {
	var req adminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	h.signIn(c, models.SessionTypeAdmin, req.Username, req.Password, h.adminCookie)
}

func (h HandlerSet) TeamLogin(c *gin.Context) {
	var req teamLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	h.signIn(c, models.SessionTypeTeam, req.TeamName, req.Password, h.teamCookie)
}

func (h HandlerSet) signIn(c *gin.Context, typ models.SessionType, loginID, password string, cookie sessionCookie) {
	result, err := h.deps.Auth.SignIn(c.Request.Context(), service.SignInInput{
		Type:      typ,
		LoginID:   loginID,
		Password:  password,
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	cookie.set(c, result.Token)
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"token":     result.Token,
		"expiresAt": result.ExpiresAt.UTC(),
		"principal": toPrincipalResponse(result.Principal),
	})
}

// Logout always reports success and clears the cookie, whatever state the
// presented token is in.
func (h HandlerSet) Logout(cookie sessionCookie) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := middleware.TokenFromRequest(c, cookie.name); token != "" {
			h.deps.Auth.Revoke(c.Request.Context(), token, c.ClientIP())
		}
		cookie.clear(c)
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func (h HandlerSet) Me(c *gin.Context) {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	resp := gin.H{"principal": toPrincipalResponse(principal)}
	if session, ok := middleware.CurrentSession(c); ok {
		resp["expiresAt"] = session.ExpiresAt.UTC()
	}
	c.JSON(http.StatusOK, resp)
}

type sessionResponse struct {
	ID           string    `json:"id"`
	IPAddress    string    `json:"ipAddress"`
	UserAgent    string    `json:"userAgent"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Current      bool      `json:"current"`
}

func (h HandlerSet) ListSessions(c *gin.Context) {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	current, _ := middleware.CurrentSession(c)

	sessions, err := h.deps.Auth.Sessions(c.Request.Context(), principal.Type, principal.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]sessionResponse, 0, len(sessions))
	for _, session := range sessions {
		resp = append(resp, sessionResponse{
			ID:           session.ID,
			IPAddress:    session.IPAddress,
			UserAgent:    session.UserAgent,
			CreatedAt:    session.CreatedAt,
			LastActivity: session.LastActivity,
			ExpiresAt:    session.ExpiresAt,
			Current:      session.ID == current.ID,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": resp,
	})
}
