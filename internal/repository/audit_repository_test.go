package repository_test

import (
	"time"

	"contesthub/internal/models"
	"contesthub/internal/repository"
)

func (s *RepositorySuite) TestAudit_CreateAndList() {
	repo := repository.NewAuditRepository(s.pool)

	s.Require().NoError(repo.Create(s.ctx, models.AuditEvent{
		ID:        "evt_1",
		Action:    models.AuditLoginFailed,
		Details:   map[string]any{"loginId": "admin", "attemptsLeft": float64(4)},
		IPAddress: "203.0.113.7",
		CreatedAt: s.now,
	}))
	s.Require().NoError(repo.Create(s.ctx, models.AuditEvent{
		ID:            "evt_2",
		Action:        models.AuditLoginSuccess,
		PrincipalID:   "adm_1",
		PrincipalType: models.SessionTypeAdmin,
		CreatedAt:     s.now.Add(time.Minute),
	}))

	events, err := repo.List(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal("evt_2", events[0].ID)
	s.Equal(models.SessionTypeAdmin, events[0].PrincipalType)
	s.Empty(events[0].IPAddress)
	s.Empty(events[0].Details)

	s.Equal("evt_1", events[1].ID)
	s.Empty(events[1].PrincipalID, "an empty principal is stored as NULL and read back empty")
	s.Equal("admin", events[1].Details["loginId"])
	s.Equal(float64(4), events[1].Details["attemptsLeft"])

	limited, err := repo.List(s.ctx, 1)
	s.Require().NoError(err)
	s.Len(limited, 1)
}

func (s *RepositorySuite) TestAudit_ListBetweenIsHalfOpen() {
	repo := repository.NewAuditRepository(s.pool)
	day := time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)
	for id, at := range map[string]time.Time{
		"before": day.Add(-time.Microsecond),
		"start":  day,
		"late":   day.Add(24*time.Hour - time.Microsecond),
		"next":   day.Add(24 * time.Hour),
	} {
		s.Require().NoError(repo.Create(s.ctx, models.AuditEvent{ID: id, Action: models.AuditLogout, CreatedAt: at}))
	}

	events, err := repo.ListBetween(s.ctx, day, day.Add(24*time.Hour))
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal("start", events[0].ID)
	s.Equal("late", events[1].ID)
}
