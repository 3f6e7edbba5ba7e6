package repository_test

import (
	"time"

	"contesthub/internal/models"
	"contesthub/internal/repository"
)

func (s *RepositorySuite) newSession(id, ref, principalID string, expiresAt time.Time) models.Session {
	return models.Session{
		ID:           id,
		TokenRef:     ref,
		PrincipalID:  principalID,
		Type:         models.SessionTypeAdmin,
		IPAddress:    "203.0.113.7",
		UserAgent:    "test-agent",
		CreatedAt:    s.now,
		LastActivity: s.now,
		ExpiresAt:    expiresAt,
	}
}

func (s *RepositorySuite) TestSession_CreateFindRevoke() {
	repo := repository.NewSessionRepository(s.pool)
	s.Require().NoError(repo.Create(s.ctx, s.newSession("sess_1", "ref_1", "adm_1", s.now.Add(8*time.Hour))))

	got, err := repo.FindByTokenRef(s.ctx, "ref_1")
	s.Require().NoError(err)
	s.Equal("sess_1", got.ID)
	s.Equal(models.SessionTypeAdmin, got.Type)
	s.Equal("203.0.113.7", got.IPAddress)
	s.True(got.ExpiresAt.Equal(s.now.Add(8 * time.Hour)))

	s.Require().NoError(repo.DeleteByTokenRef(s.ctx, "ref_1"))
	_, err = repo.FindByTokenRef(s.ctx, "ref_1")
	s.ErrorIs(err, repository.ErrSessionNotFound)

	// revoking twice, or a token that never existed, is fine
	s.NoError(repo.DeleteByTokenRef(s.ctx, "ref_1"))
	s.NoError(repo.DeleteByTokenRef(s.ctx, "never-issued"))
}

func (s *RepositorySuite) TestSession_Touch() {
	repo := repository.NewSessionRepository(s.pool)
	s.Require().NoError(repo.Create(s.ctx, s.newSession("sess_1", "ref_1", "adm_1", s.now.Add(time.Hour))))

	later := s.now.Add(5 * time.Minute)
	s.Require().NoError(repo.Touch(s.ctx, "sess_1", later))

	got, err := repo.FindByTokenRef(s.ctx, "ref_1")
	s.Require().NoError(err)
	s.True(got.LastActivity.Equal(later))
	s.True(got.CreatedAt.Equal(s.now))
}

func (s *RepositorySuite) TestSession_ExpiryFiltering() {
	repo := repository.NewSessionRepository(s.pool)
	s.Require().NoError(repo.Create(s.ctx, s.newSession("live_old", "ref_a", "adm_1", s.now.Add(time.Hour))))
	s.Require().NoError(repo.Create(s.ctx, s.newSession("expired", "ref_b", "adm_1", s.now.Add(-time.Second))))
	s.Require().NoError(repo.Create(s.ctx, s.newSession("at_edge", "ref_c", "adm_1", s.now)))
	s.Require().NoError(repo.Create(s.ctx, s.newSession("other", "ref_d", "adm_2", s.now.Add(time.Hour))))

	live := s.newSession("live_new", "ref_e", "adm_1", s.now.Add(2*time.Hour))
	live.LastActivity = s.now.Add(time.Minute)
	s.Require().NoError(repo.Create(s.ctx, live))

	sessions, err := repo.ListByPrincipal(s.ctx, models.SessionTypeAdmin, "adm_1", s.now)
	s.Require().NoError(err)
	s.Require().Len(sessions, 2)
	s.Equal("live_new", sessions[0].ID)
	s.Equal("live_old", sessions[1].ID)

	none, err := repo.ListByPrincipal(s.ctx, models.SessionTypeTeam, "adm_1", s.now)
	s.Require().NoError(err)
	s.Empty(none)

	deleted, err := repo.DeleteExpired(s.ctx, s.now)
	s.Require().NoError(err)
	s.Equal(int64(2), deleted)

	_, err = repo.FindByTokenRef(s.ctx, "ref_b")
	s.ErrorIs(err, repository.ErrSessionNotFound)
	_, err = repo.FindByTokenRef(s.ctx, "ref_a")
	s.NoError(err)
}

func (s *RepositorySuite) TestSession_DeleteByPrincipal() {
	repo := repository.NewSessionRepository(s.pool)
	s.Require().NoError(repo.Create(s.ctx, s.newSession("s1", "ref_1", "adm_1", s.now.Add(time.Hour))))
	s.Require().NoError(repo.Create(s.ctx, s.newSession("s2", "ref_2", "adm_1", s.now.Add(time.Hour))))
	s.Require().NoError(repo.Create(s.ctx, s.newSession("s3", "ref_3", "adm_2", s.now.Add(time.Hour))))

	n, err := repo.DeleteByPrincipal(s.ctx, models.SessionTypeAdmin, "adm_1")
	s.Require().NoError(err)
	s.Equal(int64(2), n)

	n, err = repo.DeleteByPrincipal(s.ctx, models.SessionTypeTeam, "adm_2")
	s.Require().NoError(err)
	s.Zero(n)
}
