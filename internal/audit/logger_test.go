package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contesthub/internal/models"
)

type mockAuditRepo struct {
	entries   []models.AuditEvent
	createErr error
	ctxErr    error
}

func (m *mockAuditRepo) Create(ctx context.Context, event models.AuditEvent) error {
	m.ctxErr = ctx.Err()
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, event)
	return nil
}

func TestLogger_Record_FillsDefaults(t *testing.T) {
	repo := &mockAuditRepo{}
	fixed := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	logger := NewLogger(repo, zerolog.Nop()).WithClock(func() time.Time { return fixed })

	logger.Record(context.Background(), models.AuditEvent{
		Action:        models.AuditLoginSuccess,
		PrincipalID:   "adm_1",
		PrincipalType: models.SessionTypeAdmin,
		IPAddress:     "10.0.0.7",
		Details:       map[string]any{"login": "admin"},
	})

	require.Len(t, repo.entries, 1)
	entry := repo.entries[0]
	assert.NotEmpty(t, entry.ID)
	assert.True(t, entry.CreatedAt.Equal(fixed))
	assert.Equal(t, models.AuditLoginSuccess, entry.Action)
	assert.Equal(t, "10.0.0.7", entry.IPAddress)
	assert.Equal(t, "admin", entry.Details["login"])
}

func TestLogger_Record_KeepsExplicitFields(t *testing.T) {
	repo := &mockAuditRepo{}
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	NewLogger(repo, zerolog.Nop()).Record(context.Background(), models.AuditEvent{
		ID:        "evt_fixed",
		Action:    models.AuditLogout,
		CreatedAt: at,
	})

	require.Len(t, repo.entries, 1)
	assert.Equal(t, "evt_fixed", repo.entries[0].ID)
	assert.True(t, repo.entries[0].CreatedAt.Equal(at))
}

func TestLogger_Record_SwallowsRepositoryError(t *testing.T) {
	repo := &mockAuditRepo{createErr: errors.New("connection refused")}

	assert.NotPanics(t, func() {
		NewLogger(repo, zerolog.Nop()).Record(context.Background(), models.AuditEvent{Action: models.AuditLoginFailed})
	})
	assert.Empty(t, repo.entries)
}

func TestLogger_Record_SurvivesCancelledRequest(t *testing.T) {
	repo := &mockAuditRepo{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	NewLogger(repo, zerolog.Nop()).Record(ctx, models.AuditEvent{Action: models.AuditLogout})

	require.Len(t, repo.entries, 1)
	assert.NoError(t, repo.ctxErr)
}

func TestLogger_Record_NilRepository(t *testing.T) {
	var logger *Logger
	assert.NotPanics(t, func() {
		logger.Record(context.Background(), models.AuditEvent{Action: models.AuditLogout})
	})
	assert.NotPanics(t, func() {
		NewLogger(nil, zerolog.Nop()).Record(context.Background(), models.AuditEvent{Action: models.AuditLogout})
	})
}
