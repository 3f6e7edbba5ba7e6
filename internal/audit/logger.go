// Package audit records security-relevant actions. Recording is best-effort:
// a failed write is logged and never reaches the caller.
package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"contesthub/internal/ids"
	"contesthub/internal/models"
)

type Repository interface {
	Create(ctx context.Context, event models.AuditEvent) error
}

// Recorder is what services depend on.
type Recorder interface {
	Record(ctx context.Context, event models.AuditEvent)
}

type Logger struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewLogger(repo Repository, logger zerolog.Logger) *Logger {
	return &Logger{repo: repo, logger: logger, now: time.Now}
}

func (l *Logger) WithClock(now func() time.Time) *Logger {
	clone := *l
	clone.now = now
	return &clone
}

// Record fills in ID and CreatedAt when absent and persists the event. The
// write runs detached from ctx cancellation so an aborted request still
// leaves its trail.
func (l *Logger) Record(ctx context.Context, event models.AuditEvent) {
	if l == nil || l.repo == nil {
		return
	}
	if event.ID == "" {
		event.ID = ids.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = l.now().UTC()
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := l.repo.Create(writeCtx, event); err != nil {
		l.logger.Error().Err(err).
			Str("action", string(event.Action)).
			Str("principal_id", event.PrincipalID).
			Msg("record audit event")
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) Record(context.Context, models.AuditEvent) {}
