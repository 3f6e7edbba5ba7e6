package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type healthResponse struct {
	Status      string `json:"status"`
	Database    string `json:"database"`
	Cache       string `json:"cache"`
	Environment string `json:"environment"`
}

func (h HandlerSet) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:      "ok",
		Database:    h.ping(ctx, "database", h.deps.PingDB),
		Cache:       h.ping(ctx, "redis", h.deps.PingCache),
		Environment: h.deps.Environment,
	}

	status := http.StatusOK
	if resp.Database != "ok" {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

func (h HandlerSet) ping(ctx context.Context, name string, fn PingFunc) string {
	if fn == nil {
		return "disabled"
	}
	if err := fn(ctx); err != nil {
		h.log.Error().Err(err).Msgf("%s ping failed", name)
		return "error"
	}
	return "ok"
}
