package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"contesthub/internal/audit"
	"contesthub/internal/models"
	"contesthub/internal/repository"
)

type PrincipalAdmin interface {
	SetActive(ctx context.Context, typ models.SessionType, id string, active bool) error
}

type SessionPurger interface {
	DeleteByPrincipal(ctx context.Context, typ models.SessionType, principalID string) (int64, error)
}

// PrincipalService toggles admin and team accounts. Deactivation also drops
// every session of the principal; validation would reject them anyway, the
// delete just keeps the session list honest.
type PrincipalService struct {
	principals PrincipalAdmin
	sessions   SessionPurger
	audit      audit.Recorder
	log        zerolog.Logger
}

func NewPrincipalService(principals PrincipalAdmin, sessions SessionPurger, recorder audit.Recorder, log zerolog.Logger) *PrincipalService {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &PrincipalService{principals: principals, sessions: sessions, audit: recorder, log: log}
}

type SetActiveInput struct {
	Actor     models.Principal
	Type      models.SessionType
	ID        string
	Active    bool
	IPAddress string
}

func (s *PrincipalService) SetActive(ctx context.Context, input SetActiveInput) error {
	if err := s.principals.SetActive(ctx, input.Type, input.ID, input.Active); err != nil {
		if errors.Is(err, repository.ErrPrincipalNotFound) {
			return ErrNotFound
		}
		return storageError("set principal active", err)
	}

	details := map[string]any{"targetId": input.ID, "targetType": string(input.Type)}
	action := models.AuditPrincipalActivated
	if !input.Active {
		action = models.AuditPrincipalDeactivated
		removed, err := s.sessions.DeleteByPrincipal(ctx, input.Type, input.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("principal_id", input.ID).Msg("purge sessions failed")
		}
		details["sessionsRemoved"] = removed
	}

	s.audit.Record(ctx, models.AuditEvent{
		Action:        action,
		PrincipalID:   input.Actor.ID,
		PrincipalType: input.Actor.Type,
		IPAddress:     input.IPAddress,
		Details:       details,
	})
	return nil
}
