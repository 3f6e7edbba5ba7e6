package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"contesthub/internal/models"
)

type AuditSource interface {
	ListBetween(ctx context.Context, from, to time.Time) ([]models.AuditEvent, error)
}

type ObjectWriter interface {
	PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
}

// AuditArchiver copies one UTC day of audit events to object storage as
// newline-delimited JSON.
type AuditArchiver struct {
	source AuditSource
	store  ObjectWriter
	log    zerolog.Logger
}

func NewAuditArchiver(source AuditSource, store ObjectWriter, log zerolog.Logger) *AuditArchiver {
	return &AuditArchiver{source: source, store: store, log: log}
}

func ArchiveKey(day time.Time) string {
	day = day.UTC()
	return fmt.Sprintf("audit/%04d/%02d/%02d.ndjson", day.Year(), int(day.Month()), day.Day())
}

// ArchiveDay writes the events of the UTC day containing day. Re-running it
// overwrites the same object.
func (a *AuditArchiver) ArchiveDay(ctx context.Context, day time.Time) (string, int, error) {
	day = day.UTC()
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	events, err := a.source.ListBetween(ctx, from, to)
	if err != nil {
		return "", 0, storageError("list audit events", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, event := range events {
		if err := enc.Encode(event); err != nil {
			return "", 0, fmt.Errorf("encode audit event %s: %w", event.ID, err)
		}
	}

	key := ArchiveKey(from)
	if err := a.store.PutObject(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), "application/x-ndjson"); err != nil {
		return "", 0, storageError("put audit archive", err)
	}

	a.log.Info().Str("key", key).Int("events", len(events)).Msg("audit archive written")
	return key, len(events), nil
}
