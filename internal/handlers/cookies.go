package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	AdminCookieName = "admin_session"
	TeamCookieName  = "team_session"
)

type sessionCookie struct {
	name     string
	path     string
	sameSite http.SameSite
	ttl      time.Duration
	secure   bool
}

func adminCookie(ttl time.Duration, secure bool) sessionCookie {
	return sessionCookie{name: AdminCookieName, path: "/api/v1/admin", sameSite: http.SameSiteStrictMode, ttl: ttl, secure: secure}
}

func teamCookie(ttl time.Duration, secure bool) sessionCookie {
	return sessionCookie{name: TeamCookieName, path: "/api/v1/team", sameSite: http.SameSiteLaxMode, ttl: ttl, secure: secure}
}

func (sc sessionCookie) set(c *gin.Context, token string) {
	c.SetSameSite(sc.sameSite)
	c.SetCookie(sc.name, token, int(sc.ttl.Seconds()), sc.path, "", sc.secure, true)
}

func (sc sessionCookie) clear(c *gin.Context) {
	c.SetSameSite(sc.sameSite)
	c.SetCookie(sc.name, "", -1, sc.path, "", sc.secure, true)
}
