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

type ContestRepository struct {
	pool *pgxpool.Pool
}

func NewContestRepository(pool *pgxpool.Pool) *ContestRepository {
	return &ContestRepository{pool: pool}
}

// GetState reads the single contest_state row. A missing row is reported as
// an idle contest.
func (r *ContestRepository) GetState(ctx context.Context) (models.ContestState, error) {
	const query = `
		SELECT quiz_active, voting_active, updated_at, COALESCE(updated_by, '')
		FROM contest_state WHERE id = 1
	`

	var state models.ContestState
	err := r.pool.QueryRow(ctx, query).Scan(
		&state.QuizActive,
		&state.VotingActive,
		&state.UpdatedAt,
		&state.UpdatedBy,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ContestState{}, nil
	}
	return state, err
}

func (r *ContestRepository) SetQuizActive(ctx context.Context, active bool, by string, at time.Time) error {
	const query = `
		INSERT INTO contest_state (id, quiz_active, voting_active, updated_at, updated_by)
		VALUES (1, $1, FALSE, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET quiz_active = EXCLUDED.quiz_active, updated_at = EXCLUDED.updated_at, updated_by = EXCLUDED.updated_by
	`
	_, err := r.pool.Exec(ctx, query, active, at, by)
	return err
}

func (r *ContestRepository) SetVotingActive(ctx context.Context, active bool, by string, at time.Time) error {
	const query = `
		INSERT INTO contest_state (id, quiz_active, voting_active, updated_at, updated_by)
		VALUES (1, FALSE, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET voting_active = EXCLUDED.voting_active, updated_at = EXCLUDED.updated_at, updated_by = EXCLUDED.updated_by
	`
	_, err := r.pool.Exec(ctx, query, active, at, by)
	return err
}

// RunAutoSubmit submits every in-progress quiz attempt on behalf of taskID
// and completes the task in the same transaction. The task row is locked
// first, so a concurrent cancellation either lands before (nothing runs,
// ran=false) or waits until the submission is committed.
func (r *ContestRepository) RunAutoSubmit(ctx context.Context, taskID string, at time.Time) (submitted int64, ran bool, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var status models.TaskStatus
	err = tx.QueryRow(ctx, `SELECT status FROM scheduled_tasks WHERE id = $1 FOR UPDATE`, taskID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, ErrTaskNotFound
		}
		return 0, false, fmt.Errorf("lock task: %w", err)
	}
	if status != models.TaskStatusDispatched {
		return 0, false, tx.Rollback(ctx)
	}

	cmd, err := tx.Exec(ctx, `
		UPDATE quiz_attempts
		SET status = 'submitted', submitted_at = $1, auto_submitted = TRUE
		WHERE status = 'in_progress'
	`, at)
	if err != nil {
		return 0, false, fmt.Errorf("submit attempts: %w", err)
	}

	if _, err = tx.Exec(ctx, `
		UPDATE scheduled_tasks
		SET status = 'done', completed_at = $2, last_error = NULL
		WHERE id = $1
	`, taskID, at); err != nil {
		return 0, false, fmt.Errorf("complete task: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, false, err
	}
	return cmd.RowsAffected(), true, nil
}
