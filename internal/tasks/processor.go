package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"contesthub/internal/models"
	"contesthub/internal/repository"
)

type TaskStore interface {
	Get(ctx context.Context, id string) (models.ScheduledTask, error)
	Complete(ctx context.Context, id string, at time.Time) (bool, error)
	Fail(ctx context.Context, id, reason string, retryAt time.Time, maxAttempts int) error
}

type AutoSubmitter interface {
	RunAutoSubmit(ctx context.Context, taskID string) (int64, bool, error)
}

type SessionReaper interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type AuditArchiver interface {
	ArchiveDay(ctx context.Context, day time.Time) (string, int, error)
}

type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Backoff doubles BaseDelay per attempt already made, capped at MaxDelay.
func (p RetryPolicy) Backoff(attempts int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < attempts && delay < p.MaxDelay; i++ {
		delay *= 2
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// Processor executes scheduled tasks delivered on the stream. The task row is
// the source of truth: a message whose task is no longer dispatched is acked
// without doing anything.
type Processor struct {
	tasks      TaskStore
	autoSubmit AutoSubmitter
	sessions   SessionReaper
	archiver   AuditArchiver
	retry      RetryPolicy
	logger     zerolog.Logger
	now        func() time.Time
}

type TaskPayload struct {
	TaskID string `json:"taskId"`
	Kind   string `json:"kind"`
}

func NewProcessor(tasks TaskStore, autoSubmit AutoSubmitter, sessions SessionReaper, archiver AuditArchiver, retry RetryPolicy, logger zerolog.Logger) *Processor {
	return &Processor{
		tasks:      tasks,
		autoSubmit: autoSubmit,
		sessions:   sessions,
		archiver:   archiver,
		retry:      retry,
		logger:     logger,
		now:        time.Now,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	var payload TaskPayload
	if err := decodePayload(msg.Values, &payload); err != nil || payload.TaskID == "" {
		p.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("dropping malformed task message")
		return nil
	}

	task, err := p.tasks.Get(ctx, payload.TaskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			p.logger.Warn().Str("task_id", payload.TaskID).Msg("task row missing")
			return nil
		}
		return fmt.Errorf("load task %s: %w", payload.TaskID, err)
	}
	if task.Status != models.TaskStatusDispatched {
		p.logger.Debug().Str("task_id", task.ID).Str("status", string(task.Status)).Msg("task not dispatched, skipping")
		return nil
	}

	log := p.logger.With().Str("task_id", task.ID).Str("kind", string(task.Kind)).Int("attempt", task.Attempts).Logger()

	if err := p.execute(ctx, task, log); err != nil {
		retryAt := p.now().Add(p.retry.Backoff(task.Attempts))
		log.Error().Err(err).Time("retry_at", retryAt).Msg("task failed")
		if ferr := p.tasks.Fail(ctx, task.ID, err.Error(), retryAt, p.retry.MaxAttempts); ferr != nil {
			return fmt.Errorf("record task failure: %w", ferr)
		}
	}
	return nil
}

func (p *Processor) execute(ctx context.Context, task models.ScheduledTask, log zerolog.Logger) error {
	switch task.Kind {
	case models.TaskQuizAutoSubmit:
		return p.handleAutoSubmit(ctx, task, log)
	case models.TaskSessionCleanup:
		return p.handleSessionCleanup(ctx, task, log)
	case models.TaskAuditArchive:
		return p.handleAuditArchive(ctx, task, log)
	default:
		return fmt.Errorf("unknown task kind %q", task.Kind)
	}
}

// handleAutoSubmit completes the task itself, atomically with the update.
func (p *Processor) handleAutoSubmit(ctx context.Context, task models.ScheduledTask, log zerolog.Logger) error {
	submitted, ran, err := p.autoSubmit.RunAutoSubmit(ctx, task.ID)
	if err != nil {
		return err
	}
	if ran {
		log.Info().Int64("submitted", submitted).Msg("quiz attempts auto-submitted")
	}
	return nil
}

func (p *Processor) handleSessionCleanup(ctx context.Context, task models.ScheduledTask, log zerolog.Logger) error {
	removed, err := p.sessions.DeleteExpired(ctx, p.now())
	if err != nil {
		return err
	}
	log.Info().Int64("removed", removed).Msg("expired sessions removed")
	return p.complete(ctx, task)
}

// handleAuditArchive archives the day before the task was due, so a retry
// on a later day still writes the same object.
func (p *Processor) handleAuditArchive(ctx context.Context, task models.ScheduledTask, log zerolog.Logger) error {
	key, count, err := p.archiver.ArchiveDay(ctx, task.DueAt.UTC().AddDate(0, 0, -1))
	if err != nil {
		return err
	}
	log.Info().Str("key", key).Int("events", count).Msg("audit day archived")
	return p.complete(ctx, task)
}

func (p *Processor) complete(ctx context.Context, task models.ScheduledTask) error {
	ok, err := p.tasks.Complete(ctx, task.ID, p.now())
	if err != nil {
		return err
	}
	if !ok {
		p.logger.Info().Str("task_id", task.ID).Msg("task changed state while running")
	}
	return nil
}

func decodePayload(values map[string]interface{}, out *TaskPayload) error {
	bytes, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, out)
}
