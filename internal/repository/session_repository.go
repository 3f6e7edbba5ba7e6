package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"contesthub/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

const sessionColumns = `id, token_ref, principal_id, principal_type, ip_address, user_agent, created_at, last_activity, expires_at`

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Create(ctx context.Context, session models.Session) error {
	const query = `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		session.ID,
		session.TokenRef,
		session.PrincipalID,
		session.Type,
		session.IPAddress,
		session.UserAgent,
		session.CreatedAt,
		session.LastActivity,
		session.ExpiresAt,
	)
	return err
}

func (r *SessionRepository) FindByTokenRef(ctx context.Context, tokenRef string) (models.Session, error) {
	const query = `SELECT ` + sessionColumns + ` FROM sessions WHERE token_ref = $1`

	session, err := scanSession(r.pool.QueryRow(ctx, query, tokenRef))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, ErrSessionNotFound
		}
		return models.Session{}, err
	}
	return session, nil
}

// DeleteByTokenRef removes the session bound to tokenRef. Deleting a missing
// row is not an error.
func (r *SessionRepository) DeleteByTokenRef(ctx context.Context, tokenRef string) error {
	const query = `DELETE FROM sessions WHERE token_ref = $1`
	_, err := r.pool.Exec(ctx, query, tokenRef)
	return err
}

func (r *SessionRepository) DeleteByPrincipal(ctx context.Context, typ models.SessionType, principalID string) (int64, error) {
	const query = `DELETE FROM sessions WHERE principal_type = $1 AND principal_id = $2`
	cmd, err := r.pool.Exec(ctx, query, typ, principalID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM sessions WHERE expires_at <= $1`
	cmd, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *SessionRepository) ListByPrincipal(ctx context.Context, typ models.SessionType, principalID string, now time.Time) ([]models.Session, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE principal_type = $1 AND principal_id = $2 AND expires_at > $3
		ORDER BY last_activity DESC
	`

	rows, err := r.pool.Query(ctx, query, typ, principalID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// Touch bumps last_activity. Last writer wins.
func (r *SessionRepository) Touch(ctx context.Context, sessionID string, at time.Time) error {
	const query = `UPDATE sessions SET last_activity = $2 WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, sessionID, at)
	return err
}

func scanSession(row pgx.Row) (models.Session, error) {
	var session models.Session
	err := row.Scan(
		&session.ID,
		&session.TokenRef,
		&session.PrincipalID,
		&session.Type,
		&session.IPAddress,
		&session.UserAgent,
		&session.CreatedAt,
		&session.LastActivity,
		&session.ExpiresAt,
	)
	return session, err
}
