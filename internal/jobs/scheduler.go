package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"contesthub/internal/ids"
	"contesthub/internal/models"
)

type TaskClaimer interface {
	ClaimDue(ctx context.Context, now, staleBefore time.Time, limit, maxAttempts int) ([]models.ScheduledTask, error)
	Schedule(ctx context.Context, task models.ScheduledTask) error
}

type Publisher interface {
	Publish(ctx context.Context, task models.ScheduledTask) error
}

type Config struct {
	DispatchSchedule string
	MaintenanceCron  string
	RedispatchAfter  time.Duration
	BatchSize        int
	MaxAttempts      int
}

// Scheduler runs in the API process. It never executes tasks itself: it moves
// due rows from scheduled_tasks onto the stream and enqueues the nightly
// maintenance rows.
type Scheduler struct {
	cron      *cron.Cron
	tasks     TaskClaimer
	publisher Publisher
	cfg       Config
	log       zerolog.Logger
	now       func() time.Time
}

func NewScheduler(tasks TaskClaimer, publisher Publisher, cfg Config, log zerolog.Logger) *Scheduler {
	cronLog := log.With().Str("component", "cron").Logger()
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(&cronLog))),
	)
	return &Scheduler{
		cron:      c,
		tasks:     tasks,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.DispatchSchedule, s.dispatch); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.MaintenanceCron, s.enqueueMaintenance); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts the cron and returns a context done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) dispatch() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.DispatchDue(ctx); err != nil {
		s.log.Error().Err(err).Msg("dispatch due tasks failed")
	}
}

// DispatchDue claims due tasks and publishes them. A task whose publish fails
// stays dispatched and is claimed again after RedispatchAfter, until it has
// been dispatched MaxAttempts times.
func (s *Scheduler) DispatchDue(ctx context.Context) (int, error) {
	now := s.now()
	claimed, err := s.tasks.ClaimDue(ctx, now, now.Add(-s.cfg.RedispatchAfter), s.cfg.BatchSize, s.cfg.MaxAttempts)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, task := range claimed {
		if err := s.publisher.Publish(ctx, task); err != nil {
			s.log.Error().Err(err).Str("task_id", task.ID).Str("kind", string(task.Kind)).Msg("publish task failed")
			continue
		}
		published++
	}

	if len(claimed) > 0 {
		s.log.Info().Int("claimed", len(claimed)).Int("published", published).Msg("scheduled tasks dispatched")
	}
	return published, nil
}

func (s *Scheduler) enqueueMaintenance() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.EnqueueMaintenance(ctx); err != nil {
		s.log.Error().Err(err).Msg("enqueue maintenance failed")
	}
}

// EnqueueMaintenance schedules one session cleanup and one audit archive,
// both due immediately.
func (s *Scheduler) EnqueueMaintenance(ctx context.Context) error {
	now := s.now()
	for _, kind := range []models.TaskKind{models.TaskSessionCleanup, models.TaskAuditArchive} {
		task := models.ScheduledTask{
			ID:        ids.New(),
			Kind:      kind,
			DueAt:     now,
			Status:    models.TaskStatusPending,
			CreatedAt: now,
		}
		if err := s.tasks.Schedule(ctx, task); err != nil {
			return err
		}
	}
	return nil
}
