package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"contesthub/internal/audit"
	"contesthub/internal/ids"
	"contesthub/internal/models"
	"contesthub/internal/ratelimit"
	"contesthub/internal/repository"
	"contesthub/internal/security"
)

type PrincipalStore interface {
	FindActive(ctx context.Context, typ models.SessionType, loginID string) (models.Principal, error)
	GetByID(ctx context.Context, typ models.SessionType, id string) (models.Principal, error)
	UpdateLastLogin(ctx context.Context, typ models.SessionType, id string, at time.Time) error
}

type SessionStore interface {
	Create(ctx context.Context, session models.Session) error
	FindByTokenRef(ctx context.Context, tokenRef string) (models.Session, error)
	DeleteByTokenRef(ctx context.Context, tokenRef string) error
	Touch(ctx context.Context, sessionID string, at time.Time) error
	ListByPrincipal(ctx context.Context, typ models.SessionType, principalID string, now time.Time) ([]models.Session, error)
}

type LoginLimiter interface {
	Check(ctx context.Context, identifier string) (ratelimit.Decision, error)
	Reset(ctx context.Context, identifier string) error
}

type AuthConfig struct {
	AdminSessionTTL time.Duration
	TeamSessionTTL  time.Duration
}

func (c AuthConfig) ttlFor(typ models.SessionType) time.Duration {
	if typ == models.SessionTypeAdmin {
		return c.AdminSessionTTL
	}
	return c.TeamSessionTTL
}

type AuthService struct {
	principals PrincipalStore
	sessions   SessionStore
	limiter    LoginLimiter
	signer     *security.TokenSigner
	audit      audit.Recorder
	cfg        AuthConfig
	log        zerolog.Logger
	now        func() time.Time
}

func NewAuthService(
	principals PrincipalStore,
	sessions SessionStore,
	limiter LoginLimiter,
	signer *security.TokenSigner,
	recorder audit.Recorder,
	cfg AuthConfig,
	log zerolog.Logger,
) *AuthService {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &AuthService{
		principals: principals,
		sessions:   sessions,
		limiter:    limiter,
		signer:     signer,
		audit:      recorder,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
	}
}

// WithClock replaces the time source of the service and its signer.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	if s.signer != nil {
		s.signer = s.signer.WithClock(now)
	}
	return s
}

type SignInInput struct {
	Type      models.SessionType
	LoginID   string
	Password  string
	IPAddress string
	UserAgent string
}

type SignInResult struct {
	Token     string
	ExpiresAt time.Time
	Principal models.Principal
}

// SignIn runs rate limit, credential lookup, password check and session
// issuance in that order. Unknown identifiers and wrong passwords both yield
// ErrInvalidCredentials.
func (s *AuthService) SignIn(ctx context.Context, input SignInInput) (SignInResult, error) {
	loginID := strings.TrimSpace(input.LoginID)
	if !input.Type.Valid() {
		return SignInResult{}, fmt.Errorf("%w: unknown session type %q", ErrConfiguration, input.Type)
	}
	if loginID == "" || input.Password == "" {
		return SignInResult{}, ErrInvalidCredentials
	}

	limitKey := RateLimitKey(input.Type, loginID)
	decision, err := s.limiter.Check(ctx, limitKey)
	if err != nil {
		return SignInResult{}, storageError("check rate limit", err)
	}
	if !decision.Allowed {
		s.audit.Record(ctx, models.AuditEvent{
			Action:        models.AuditLoginRateLimited,
			PrincipalType: input.Type,
			IPAddress:     input.IPAddress,
			Details:       map[string]any{"login": loginID, "lockedUntil": decision.LockedUntil.UTC()},
		})
		return SignInResult{}, &RateLimitedError{LockedUntil: decision.LockedUntil}
	}

	principal, err := s.principals.FindActive(ctx, input.Type, loginID)
	if err != nil {
		if !errors.Is(err, repository.ErrPrincipalNotFound) {
			return SignInResult{}, storageError("find principal", err)
		}
		security.BurnPasswordCheck(input.Password)
		s.recordFailure(ctx, input, loginID, "", "not_found", decision.AttemptsLeft)
		return SignInResult{}, ErrInvalidCredentials
	}

	ok, err := security.VerifyPassword(input.Password, principal.PasswordHash)
	if err != nil {
		s.log.Warn().Err(err).Str("principal_id", principal.ID).Msg("stored password digest unreadable")
	}
	if !ok {
		s.recordFailure(ctx, input, loginID, principal.ID, "bad_password", decision.AttemptsLeft)
		return SignInResult{}, ErrInvalidCredentials
	}

	issued, err := s.Issue(ctx, IssueInput{
		Principal: principal,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
	})
	if err != nil {
		return SignInResult{}, err
	}

	if err := s.limiter.Reset(ctx, limitKey); err != nil {
		s.log.Warn().Err(err).Str("key", limitKey).Msg("reset rate limit failed")
	}

	now := s.now()
	if err := s.principals.UpdateLastLogin(ctx, principal.Type, principal.ID, now); err != nil {
		s.log.Warn().Err(err).Str("principal_id", principal.ID).Msg("update last login failed")
	} else {
		principal.LastLoginAt = &now
	}

	s.audit.Record(ctx, models.AuditEvent{
		Action:        models.AuditLoginSuccess,
		PrincipalID:   principal.ID,
		PrincipalType: principal.Type,
		IPAddress:     input.IPAddress,
		Details:       map[string]any{"sessionId": issued.Session.ID, "userAgent": input.UserAgent},
	})

	principal.PasswordHash = nil
	return SignInResult{
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt,
		Principal: principal,
	}, nil
}

func (s *AuthService) recordFailure(ctx context.Context, input SignInInput, loginID, principalID, reason string, attemptsLeft int) {
	s.audit.Record(ctx, models.AuditEvent{
		Action:        models.AuditLoginFailed,
		PrincipalID:   principalID,
		PrincipalType: input.Type,
		IPAddress:     input.IPAddress,
		Details: map[string]any{
			"login":        loginID,
			"reason":       reason,
			"attemptsLeft": attemptsLeft,
		},
	})
}

type IssueInput struct {
	Principal models.Principal
	IPAddress string
	UserAgent string
	// TTL overrides the configured lifetime for the principal's session type.
	TTL time.Duration
}

type IssuedSession struct {
	Token     string
	ExpiresAt time.Time
	Session   models.Session
}

// Issue signs a token for the principal and persists exactly one session row
// bound to it. The token and the row share the same expiry.
func (s *AuthService) Issue(ctx context.Context, input IssueInput) (IssuedSession, error) {
	if s.signer == nil {
		return IssuedSession{}, fmt.Errorf("%w: %w", ErrConfiguration, security.ErrSigningKey)
	}
	principal := input.Principal
	if !principal.Type.Valid() {
		return IssuedSession{}, fmt.Errorf("%w: unknown session type %q", ErrConfiguration, principal.Type)
	}

	ttl := input.TTL
	if ttl <= 0 {
		ttl = s.cfg.ttlFor(principal.Type)
	}
	if ttl <= 0 {
		return IssuedSession{}, fmt.Errorf("%w: session ttl for %s not set", ErrConfiguration, principal.Type)
	}

	now := s.now()
	token, expiresAt, err := s.signer.Sign(security.SessionClaims{
		PrincipalID: principal.ID,
		LoginID:     principal.LoginID,
		Role:        principal.Role,
		SessionType: principal.Type,
	}, now, ttl)
	if err != nil {
		return IssuedSession{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	session := models.Session{
		ID:           ids.New(),
		TokenRef:     security.TokenReference(token),
		PrincipalID:  principal.ID,
		Type:         principal.Type,
		IPAddress:    input.IPAddress,
		UserAgent:    input.UserAgent,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    expiresAt,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return IssuedSession{}, storageError("create session", err)
	}

	return IssuedSession{Token: token, ExpiresAt: expiresAt, Session: session}, nil
}

type ValidatedSession struct {
	Principal models.Principal
	Session   models.Session
}

// Validate resolves token to a live principal. The signature and embedded
// expiry must hold, the token must be of the expected type, its session row
// must exist and be unexpired, and the principal must still be active.
func (s *AuthService) Validate(ctx context.Context, token string, expected models.SessionType) (ValidatedSession, error) {
	if s.signer == nil {
		return ValidatedSession{}, fmt.Errorf("%w: %w", ErrConfiguration, security.ErrSigningKey)
	}

	claims, err := s.signer.Parse(token)
	if err != nil {
		switch {
		case errors.Is(err, security.ErrTokenExpired):
			return ValidatedSession{}, ErrExpiredToken
		case errors.Is(err, security.ErrSigningKey):
			return ValidatedSession{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
		default:
			return ValidatedSession{}, ErrInvalidToken
		}
	}
	if claims.SessionType != expected {
		return ValidatedSession{}, ErrWrongSessionType
	}

	session, err := s.sessions.FindByTokenRef(ctx, security.TokenReference(token))
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return ValidatedSession{}, ErrSessionRevokedOrExpired
		}
		return ValidatedSession{}, storageError("find session", err)
	}
	now := s.now()
	if session.Expired(now) {
		return ValidatedSession{}, ErrSessionRevokedOrExpired
	}
	if session.PrincipalID != claims.PrincipalID || session.Type != claims.SessionType {
		return ValidatedSession{}, ErrInvalidToken
	}

	principal, err := s.principals.GetByID(ctx, claims.SessionType, claims.PrincipalID)
	if err != nil {
		if errors.Is(err, repository.ErrPrincipalNotFound) {
			return ValidatedSession{}, ErrPrincipalInactive
		}
		return ValidatedSession{}, storageError("load principal", err)
	}
	if !principal.Active {
		return ValidatedSession{}, ErrPrincipalInactive
	}

	if err := s.sessions.Touch(ctx, session.ID, now); err != nil {
		s.log.Debug().Err(err).Str("session_id", session.ID).Msg("touch session failed")
	} else {
		session.LastActivity = now
	}

	principal.PasswordHash = nil
	return ValidatedSession{Principal: principal, Session: session}, nil
}

// Revoke deletes the session bound to token. It never fails: malformed,
// expired and unknown tokens are handled as a no-op delete.
func (s *AuthService) Revoke(ctx context.Context, token string, ipAddress string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}

	if err := s.sessions.DeleteByTokenRef(ctx, security.TokenReference(token)); err != nil {
		s.log.Warn().Err(err).Msg("revoke session failed")
	}

	if s.signer == nil {
		return
	}
	claims, err := s.signer.Parse(token)
	if err != nil {
		return
	}
	s.audit.Record(ctx, models.AuditEvent{
		Action:        models.AuditLogout,
		PrincipalID:   claims.PrincipalID,
		PrincipalType: claims.SessionType,
		IPAddress:     ipAddress,
	})
}

// Sessions lists the live sessions of a principal, newest activity first.
func (s *AuthService) Sessions(ctx context.Context, typ models.SessionType, principalID string) ([]models.Session, error) {
	sessions, err := s.sessions.ListByPrincipal(ctx, typ, principalID, s.now())
	if err != nil {
		return nil, storageError("list sessions", err)
	}
	return sessions, nil
}

// RateLimitKey namespaces identifiers per session type so an admin and a
// team with the same name do not share a counter.
func RateLimitKey(typ models.SessionType, loginID string) string {
	return string(typ) + ":" + strings.ToLower(strings.TrimSpace(loginID))
}
