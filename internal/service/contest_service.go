package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"contesthub/internal/audit"
	"contesthub/internal/ids"
	"contesthub/internal/models"
	"contesthub/internal/repository"
)

type ContestStore interface {
	GetState(ctx context.Context) (models.ContestState, error)
	SetQuizActive(ctx context.Context, active bool, by string, at time.Time) error
	SetVotingActive(ctx context.Context, active bool, by string, at time.Time) error
	RunAutoSubmit(ctx context.Context, taskID string, at time.Time) (int64, bool, error)
}

type TaskScheduler interface {
	Schedule(ctx context.Context, task models.ScheduledTask) error
	CancelPending(ctx context.Context, kind models.TaskKind) (int64, error)
}

// ContestService owns the quiz and voting switches. Stopping the quiz
// schedules a durable auto-submit task instead of an in-process timer.
type ContestService struct {
	store           ContestStore
	tasks           TaskScheduler
	audit           audit.Recorder
	autoSubmitDelay time.Duration
	log             zerolog.Logger
	now             func() time.Time
}

func NewContestService(store ContestStore, tasks TaskScheduler, recorder audit.Recorder, autoSubmitDelay time.Duration, log zerolog.Logger) *ContestService {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &ContestService{
		store:           store,
		tasks:           tasks,
		audit:           recorder,
		autoSubmitDelay: autoSubmitDelay,
		log:             log,
		now:             time.Now,
	}
}

func (s *ContestService) WithClock(now func() time.Time) *ContestService {
	s.now = now
	return s
}

func (s *ContestService) State(ctx context.Context) (models.ContestState, error) {
	state, err := s.store.GetState(ctx)
	if err != nil {
		return models.ContestState{}, storageError("load contest state", err)
	}
	return state, nil
}

type ToggleInput struct {
	Actor     models.Principal
	Active    bool
	IPAddress string
}

// SetQuizActive flips the quiz switch. Starting the quiz cancels any pending
// auto-submit; stopping it replaces the pending one with a task due after the
// grace delay.
func (s *ContestService) SetQuizActive(ctx context.Context, input ToggleInput) (models.ContestState, error) {
	now := s.now()
	if err := s.store.SetQuizActive(ctx, input.Active, input.Actor.ID, now); err != nil {
		return models.ContestState{}, storageError("set quiz active", err)
	}

	cancelled, err := s.tasks.CancelPending(ctx, models.TaskQuizAutoSubmit)
	if err != nil {
		return models.ContestState{}, storageError("cancel auto-submit", err)
	}

	details := map[string]any{}
	if cancelled > 0 {
		details["cancelledTasks"] = cancelled
	}
	action := models.AuditQuizStarted

	if !input.Active {
		action = models.AuditQuizStopped
		task := models.ScheduledTask{
			ID:        ids.New(),
			Kind:      models.TaskQuizAutoSubmit,
			DueAt:     now.Add(s.autoSubmitDelay),
			Status:    models.TaskStatusPending,
			CreatedAt: now,
		}
		if err := s.tasks.Schedule(ctx, task); err != nil {
			return models.ContestState{}, storageError("schedule auto-submit", err)
		}
		details["autoSubmitTask"] = task.ID
		details["autoSubmitDue"] = task.DueAt.UTC()
	}

	s.audit.Record(ctx, models.AuditEvent{
		Action:        action,
		PrincipalID:   input.Actor.ID,
		PrincipalType: input.Actor.Type,
		IPAddress:     input.IPAddress,
		Details:       details,
	})

	return s.State(ctx)
}

func (s *ContestService) SetVotingActive(ctx context.Context, input ToggleInput) (models.ContestState, error) {
	if err := s.store.SetVotingActive(ctx, input.Active, input.Actor.ID, s.now()); err != nil {
		return models.ContestState{}, storageError("set voting active", err)
	}

	action := models.AuditVotingStarted
	if !input.Active {
		action = models.AuditVotingStopped
	}
	s.audit.Record(ctx, models.AuditEvent{
		Action:        action,
		PrincipalID:   input.Actor.ID,
		PrincipalType: input.Actor.Type,
		IPAddress:     input.IPAddress,
	})

	return s.State(ctx)
}

// RunAutoSubmit executes a dispatched auto-submit task. ran is false when the
// task had been cancelled or already completed.
func (s *ContestService) RunAutoSubmit(ctx context.Context, taskID string) (submitted int64, ran bool, err error) {
	submitted, ran, err = s.store.RunAutoSubmit(ctx, taskID, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return 0, false, ErrNotFound
		}
		return 0, false, storageError("auto-submit", err)
	}
	if !ran {
		s.log.Info().Str("task_id", taskID).Msg("auto-submit skipped, task no longer dispatched")
		return 0, false, nil
	}

	s.audit.Record(ctx, models.AuditEvent{
		Action:  models.AuditAutoSubmitExecuted,
		Details: map[string]any{"taskId": taskID, "submitted": submitted},
	})
	return submitted, true, nil
}
