package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contesthub/internal/models"
)

func TestPrincipalService_DeactivateDropsSessions(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	res, err := f.svc.SignIn(ctx, SignInInput{Type: models.SessionTypeTeam, LoginID: "Byte Busters", Password: "team-pass"})
	require.NoError(t, err)
	require.Equal(t, 1, f.sessions.Len())

	svc := NewPrincipalService(f.principals, f.sessions, f.audit, zerolog.Nop())
	err = svc.SetActive(ctx, SetActiveInput{
		Actor:  models.Principal{ID: "adm_1", Type: models.SessionTypeAdmin},
		Type:   models.SessionTypeTeam,
		ID:     "team_1",
		Active: false,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, f.sessions.Len())
	_, err = f.svc.Validate(ctx, res.Token, models.SessionTypeTeam)
	assert.True(t, IsUnauthorized(err))

	last := f.audit.events[len(f.audit.events)-1]
	assert.Equal(t, models.AuditPrincipalDeactivated, last.Action)
	assert.Equal(t, "team_1", last.Details["targetId"])
	assert.Equal(t, int64(1), last.Details["sessionsRemoved"])
}

func TestPrincipalService_Activate(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	svc := NewPrincipalService(f.principals, f.sessions, f.audit, zerolog.Nop())

	require.NoError(t, svc.SetActive(ctx, SetActiveInput{Type: models.SessionTypeAdmin, ID: "adm_1", Active: false}))
	_, err := f.signIn("admin", "correct horse")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, svc.SetActive(ctx, SetActiveInput{Type: models.SessionTypeAdmin, ID: "adm_1", Active: true}))
	_, err = f.signIn("admin", "correct horse")
	require.NoError(t, err)
}

func TestPrincipalService_Unknown(t *testing.T) {
	f := newAuthFixture(t)
	svc := NewPrincipalService(f.principals, f.sessions, nil, zerolog.Nop())

	err := svc.SetActive(context.Background(), SetActiveInput{Type: models.SessionTypeTeam, ID: "adm_1", Active: false})
	assert.ErrorIs(t, err, ErrNotFound)
}
