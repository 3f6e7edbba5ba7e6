package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"contesthub/internal/models"
)

const auditColumns = `id, action, principal_id, principal_type, details, ip_address, created_at`

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Create(ctx context.Context, event models.AuditEvent) error {
	const query = `
		INSERT INTO audit_events (` + auditColumns + `)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, NULLIF($6, ''), $7)
	`

	details := event.Details
	if details == nil {
		details = map[string]any{}
	}

	_, err := r.pool.Exec(ctx, query,
		event.ID,
		event.Action,
		event.PrincipalID,
		string(event.PrincipalType),
		details,
		event.IPAddress,
		event.CreatedAt,
	)
	return err
}

// List returns the newest events first.
func (r *AuditRepository) List(ctx context.Context, limit int) ([]models.AuditEvent, error) {
	const query = `
		SELECT ` + auditColumns + `
		FROM audit_events
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return collectAuditEvents(rows)
}

// ListBetween returns events in [from, to) in chronological order.
func (r *AuditRepository) ListBetween(ctx context.Context, from, to time.Time) ([]models.AuditEvent, error) {
	const query = `
		SELECT ` + auditColumns + `
		FROM audit_events
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	return collectAuditEvents(rows)
}

func collectAuditEvents(rows pgx.Rows) ([]models.AuditEvent, error) {
	defer rows.Close()

	var events []models.AuditEvent
	for rows.Next() {
		var (
			event         models.AuditEvent
			principalID   *string
			principalType *string
			ip            *string
		)
		if err := rows.Scan(
			&event.ID,
			&event.Action,
			&principalID,
			&principalType,
			&event.Details,
			&ip,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		if principalID != nil {
			event.PrincipalID = *principalID
		}
		if principalType != nil {
			event.PrincipalType = models.SessionType(*principalType)
		}
		if ip != nil {
			event.IPAddress = *ip
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
