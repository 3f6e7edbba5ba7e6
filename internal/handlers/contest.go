package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"contesthub/internal/middleware"
	"contesthub/internal/models"
	"contesthub/internal/service"
)

type contestStateResponse struct {
	QuizActive   bool       `json:"quizActive"`
	VotingActive bool       `json:"votingActive"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

func toContestStateResponse(state models.ContestState) contestStateResponse {
	resp := contestStateResponse{QuizActive: state.QuizActive, VotingActive: state.VotingActive}
	if !state.UpdatedAt.IsZero() {
		at := state.UpdatedAt.UTC()
		resp.UpdatedAt = &at
	}
	return resp
}

type toggleRequest struct {
	Active *bool `json:"active" binding:"required"`
}

func (h HandlerSet) ContestState(c *gin.Context) {
	state, err := h.deps.Contest.State(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toContestStateResponse(state))
}

func (h HandlerSet) SetQuizActive(c *gin.Context) {
	h.toggle(c, h.deps.Contest.SetQuizActive)
}

func (h HandlerSet) SetVotingActive(c *gin.Context) {
	h.toggle(c, h.deps.Contest.SetVotingActive)
}

func (h HandlerSet) toggle(c *gin.Context, apply func(ctx context.Context, input service.ToggleInput) (models.ContestState, error)) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	actor, _ := middleware.CurrentPrincipal(c)
	state, err := apply(c.Request.Context(), service.ToggleInput{
		Actor:     actor,
		Active:    *req.Active,
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toContestStateResponse(state))
}

type taskResponse struct {
	ID           string            `json:"id"`
	Kind         models.TaskKind   `json:"kind"`
	Status       models.TaskStatus `json:"status"`
	DueAt        time.Time         `json:"dueAt"`
	Attempts     int               `json:"attempts"`
	LastError    *string           `json:"lastError,omitempty"`
	DispatchedAt *time.Time        `json:"dispatchedAt,omitempty"`
	CompletedAt  *time.Time        `json:"completedAt,omitempty"`
}

// ListTasks shows scheduled tasks of one kind and status, by default the
// auto-submits still waiting to run.
func (h HandlerSet) ListTasks(c *gin.Context) {
	kind := models.TaskKind(c.DefaultQuery("kind", string(models.TaskQuizAutoSubmit)))
	status := models.TaskStatus(c.DefaultQuery("status", string(models.TaskStatusPending)))
	if !kind.Valid() || !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	tasks, err := h.deps.Tasks.ListByStatus(c.Request.Context(), kind, status)
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, taskResponse{
			ID:           t.ID,
			Kind:         t.Kind,
			Status:       t.Status,
			DueAt:        t.DueAt.UTC(),
			Attempts:     t.Attempts,
			LastError:    t.LastError,
			DispatchedAt: t.DispatchedAt,
			CompletedAt:  t.CompletedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
