package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"contesthub/internal/middleware"
	"contesthub/internal/models"
	"contesthub/internal/service"
)

type AuthAPI interface {
	middleware.SessionValidator
	SignIn(ctx context.Context, input service.SignInInput) (service.SignInResult, error)
	Revoke(ctx context.Context, token string, ipAddress string)
	Sessions(ctx context.Context, typ models.SessionType, principalID string) ([]models.Session, error)
}

type ContestAPI interface {
	State(ctx context.Context) (models.ContestState, error)
	SetQuizActive(ctx context.Context, input service.ToggleInput) (models.ContestState, error)
	SetVotingActive(ctx context.Context, input service.ToggleInput) (models.ContestState, error)
}

type PrincipalAPI interface {
	SetActive(ctx context.Context, input service.SetActiveInput) error
}

type AuditLister interface {
	List(ctx context.Context, limit int) ([]models.AuditEvent, error)
}

type TaskLister interface {
	ListByStatus(ctx context.Context, kind models.TaskKind, status models.TaskStatus) ([]models.ScheduledTask, error)
}

type PingFunc func(ctx context.Context) error

type Dependencies struct {
	Auth          AuthAPI
	Contest       ContestAPI
	Principals    PrincipalAPI
	Audit         AuditLister
	Tasks         TaskLister
	Throttle      *middleware.IPThrottle
	PingDB        PingFunc
	PingCache     PingFunc
	Environment   string
	SecureCookies bool
	AdminTTL      time.Duration
	TeamTTL       time.Duration
}

type HandlerSet struct {
	log         zerolog.Logger
	deps        Dependencies
	adminCookie sessionCookie
	teamCookie  sessionCookie
}

func NewHandlerSet(log zerolog.Logger, deps Dependencies) HandlerSet {
	registerValidators()

	return HandlerSet{
		log:         log,
		deps:        deps,
		adminCookie: adminCookie(deps.AdminTTL, deps.SecureCookies),
		teamCookie:  teamCookie(deps.TeamTTL, deps.SecureCookies),
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")

	admin := v1.Group("/admin")
	{
		admin.POST("/auth/login", h.loginChain(h.AdminLogin)...)
		admin.POST("/auth/logout", h.Logout(h.adminCookie))

		protected := admin.Group("")
		protected.Use(middleware.Auth(h.deps.Auth, models.SessionTypeAdmin, h.adminCookie.name, h.log))
		protected.GET("/auth/me", h.Me)
		protected.GET("/auth/sessions", h.ListSessions)

		protected.GET("/contest", h.ContestState)
		protected.POST("/contest/quiz", middleware.RequireCapability(models.CapManageContest), h.SetQuizActive)
		protected.POST("/contest/voting", middleware.RequireCapability(models.CapManageContest), h.SetVotingActive)
		protected.GET("/contest/tasks", middleware.RequireCapability(models.CapManageContest), h.ListTasks)

		protected.PATCH("/teams/:id/active", middleware.RequireCapability(models.CapManageTeams), h.SetPrincipalActive(models.SessionTypeTeam))
		protected.PATCH("/admins/:id/active", middleware.RequireCapability(models.CapManageAdmins), h.SetPrincipalActive(models.SessionTypeAdmin))

		protected.GET("/audit", middleware.RequireCapability(models.CapViewAudit), h.ListAudit)
	}

	team := v1.Group("/team")
	{
		team.POST("/auth/login", h.loginChain(h.TeamLogin)...)
		team.POST("/auth/logout", h.Logout(h.teamCookie))

		protected := team.Group("")
		protected.Use(middleware.Auth(h.deps.Auth, models.SessionTypeTeam, h.teamCookie.name, h.log))
		protected.GET("/auth/me", h.Me)
		protected.GET("/contest", h.ContestState)
	}
}

func (h HandlerSet) loginChain(handler gin.HandlerFunc) []gin.HandlerFunc {
	if h.deps.Throttle == nil {
		return []gin.HandlerFunc{handler}
	}
	return []gin.HandlerFunc{h.deps.Throttle.Middleware(), handler}
}
