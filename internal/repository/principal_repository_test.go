package repository_test

import (
	"contesthub/internal/models"
	"contesthub/internal/repository"
)

func (s *RepositorySuite) seedPrincipals() {
	s.exec(`
		INSERT INTO admin_users (id, username, password_hash, role, capabilities, is_active, created_at)
		VALUES ('adm_1', 'Admin', 'hash-a', 'superadmin', 0, TRUE, $1),
		       ('adm_2', 'retired', 'hash-b', 'moderator', 1, FALSE, $1)
	`, s.now)
	s.exec(`
		INSERT INTO teams (id, team_name, password_hash, is_active, created_at)
		VALUES ('team_1', 'Byte Busters', 'hash-t', TRUE, $1)
	`, s.now)
}

func (s *RepositorySuite) TestPrincipal_FindActiveIgnoresCase() {
	s.seedPrincipals()
	repo := repository.NewPrincipalRepository(s.pool)

	admin, err := repo.FindActive(s.ctx, models.SessionTypeAdmin, "ADMIN")
	s.Require().NoError(err)
	s.Equal("adm_1", admin.ID)
	s.Equal("Admin", admin.LoginID)
	s.Equal(models.RoleSuperAdmin, admin.Role)
	s.Equal(models.SessionTypeAdmin, admin.Type)
	s.Equal([]byte("hash-a"), admin.PasswordHash)
	s.Nil(admin.LastLoginAt)

	team, err := repo.FindActive(s.ctx, models.SessionTypeTeam, "byte busters")
	s.Require().NoError(err)
	s.Equal("team_1", team.ID)
	s.Equal(models.RoleTeam, team.Role)
}

func (s *RepositorySuite) TestPrincipal_FindActiveSkipsInactiveAndOtherTable() {
	s.seedPrincipals()
	repo := repository.NewPrincipalRepository(s.pool)

	_, err := repo.FindActive(s.ctx, models.SessionTypeAdmin, "retired")
	s.ErrorIs(err, repository.ErrPrincipalNotFound)

	_, err = repo.FindActive(s.ctx, models.SessionTypeTeam, "admin")
	s.ErrorIs(err, repository.ErrPrincipalNotFound)

	_, err = repo.FindActive(s.ctx, models.SessionType("judge"), "admin")
	s.Error(err)
}

func (s *RepositorySuite) TestPrincipal_GetByIDReturnsInactive() {
	s.seedPrincipals()
	repo := repository.NewPrincipalRepository(s.pool)

	p, err := repo.GetByID(s.ctx, models.SessionTypeAdmin, "adm_2")
	s.Require().NoError(err)
	s.False(p.Active)
	s.Equal(models.NewCapabilitySet(models.CapManageContest), p.Capabilities)

	_, err = repo.GetByID(s.ctx, models.SessionTypeTeam, "adm_2")
	s.ErrorIs(err, repository.ErrPrincipalNotFound)
}

func (s *RepositorySuite) TestPrincipal_UpdateLastLoginAndSetActive() {
	s.seedPrincipals()
	repo := repository.NewPrincipalRepository(s.pool)

	s.Require().NoError(repo.UpdateLastLogin(s.ctx, models.SessionTypeTeam, "team_1", s.now))
	s.Require().NoError(repo.SetActive(s.ctx, models.SessionTypeTeam, "team_1", false))

	team, err := repo.GetByID(s.ctx, models.SessionTypeTeam, "team_1")
	s.Require().NoError(err)
	s.False(team.Active)
	s.Require().NotNil(team.LastLoginAt)
	s.True(team.LastLoginAt.Equal(s.now))

	_, err = repo.FindActive(s.ctx, models.SessionTypeTeam, "Byte Busters")
	s.ErrorIs(err, repository.ErrPrincipalNotFound)

	s.ErrorIs(repo.SetActive(s.ctx, models.SessionTypeTeam, "team_9", true), repository.ErrPrincipalNotFound)
}
