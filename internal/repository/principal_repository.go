package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"contesthub/internal/models"
)

var ErrPrincipalNotFound = errors.New("principal not found")

// Admins and teams live in separate tables; every query is selected by
// session type so callers never build table names themselves.
var principalQueries = map[models.SessionType]struct {
	findActive      string
	getByID         string
	updateLastLogin string
	setActive       string
}{
	models.SessionTypeAdmin: {
		findActive: `
			SELECT id, username, password_hash, role, capabilities, is_active, created_at, last_login_at
			FROM admin_users
			WHERE lower(username) = lower($1) AND is_active = TRUE
		`,
		getByID: `
			SELECT id, username, password_hash, role, capabilities, is_active, created_at, last_login_at
			FROM admin_users
			WHERE id = $1
		`,
		updateLastLogin: `UPDATE admin_users SET last_login_at = $2 WHERE id = $1`,
		setActive:       `UPDATE admin_users SET is_active = $2, updated_at = NOW() WHERE id = $1`,
	},
	models.SessionTypeTeam: {
		findActive: `
			SELECT id, team_name, password_hash, 'team', capabilities, is_active, created_at, last_login_at
			FROM teams
			WHERE lower(team_name) = lower($1) AND is_active = TRUE
		`,
		getByID: `
			SELECT id, team_name, password_hash, 'team', capabilities, is_active, created_at, last_login_at
			FROM teams
			WHERE id = $1
		`,
		updateLastLogin: `UPDATE teams SET last_login_at = $2 WHERE id = $1`,
		setActive:       `UPDATE teams SET is_active = $2, updated_at = NOW() WHERE id = $1`,
	},
}

type PrincipalRepository struct {
	pool *pgxpool.Pool
}

func NewPrincipalRepository(pool *pgxpool.Pool) *PrincipalRepository {
	return &PrincipalRepository{pool: pool}
}

func (r *PrincipalRepository) FindActive(ctx context.Context, typ models.SessionType, loginID string) (models.Principal, error) {
	q, ok := principalQueries[typ]
	if !ok {
		return models.Principal{}, fmt.Errorf("unknown principal type %q", typ)
	}
	return scanPrincipal(typ, r.pool.QueryRow(ctx, q.findActive, loginID))
}

func (r *PrincipalRepository) GetByID(ctx context.Context, typ models.SessionType, id string) (models.Principal, error) {
	q, ok := principalQueries[typ]
	if !ok {
		return models.Principal{}, fmt.Errorf("unknown principal type %q", typ)
	}
	return scanPrincipal(typ, r.pool.QueryRow(ctx, q.getByID, id))
}

func (r *PrincipalRepository) UpdateLastLogin(ctx context.Context, typ models.SessionType, id string, at time.Time) error {
	q, ok := principalQueries[typ]
	if !ok {
		return fmt.Errorf("unknown principal type %q", typ)
	}
	_, err := r.pool.Exec(ctx, q.updateLastLogin, id, at)
	return err
}

func (r *PrincipalRepository) SetActive(ctx context.Context, typ models.SessionType, id string, active bool) error {
	q, ok := principalQueries[typ]
	if !ok {
		return fmt.Errorf("unknown principal type %q", typ)
	}
	cmd, err := r.pool.Exec(ctx, q.setActive, id, active)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPrincipalNotFound
	}
	return nil
}

func scanPrincipal(typ models.SessionType, row pgx.Row) (models.Principal, error) {
	p := models.Principal{Type: typ}
	var caps int64
	if err := row.Scan(
		&p.ID,
		&p.LoginID,
		&p.PasswordHash,
		&p.Role,
		&caps,
		&p.Active,
		&p.CreatedAt,
		&p.LastLoginAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Principal{}, ErrPrincipalNotFound
		}
		return models.Principal{}, err
	}
	p.Capabilities = models.CapabilitySet(caps)
	return p, nil
}
