package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"contesthub/internal/models"
)

var ErrTaskNotFound = errors.New("scheduled task not found")

const taskColumns = `id, kind, due_at, status, attempts, last_error, dispatched_at, completed_at, created_at`

type TaskRepository struct {
	pool *pgxpool.Pool
}

func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

func (r *TaskRepository) Schedule(ctx context.Context, task models.ScheduledTask) error {
	const query = `
		INSERT INTO scheduled_tasks (id, kind, due_at, status, attempts, created_at)
		VALUES ($1, $2, $3, 'pending', 0, $4)
	`
	_, err := r.pool.Exec(ctx, query, task.ID, task.Kind, task.DueAt, task.CreatedAt)
	return err
}

// CancelPending cancels every task of kind that has not finished yet,
// including ones already handed to a worker.
func (r *TaskRepository) CancelPending(ctx context.Context, kind models.TaskKind) (int64, error) {
	const query = `
		UPDATE scheduled_tasks
		SET status = 'cancelled'
		WHERE kind = $1 AND status IN ('pending', 'dispatched')
	`
	cmd, err := r.pool.Exec(ctx, query, kind)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// ClaimDue marks up to limit due tasks as dispatched and returns them. Tasks
// dispatched before staleBefore without completing are claimed again, which
// makes delivery at-least-once across worker crashes. A stale task that has
// already been dispatched maxAttempts times is marked failed instead and is
// not returned. SKIP LOCKED keeps concurrent dispatchers from claiming the
// same row.
func (r *TaskRepository) ClaimDue(ctx context.Context, now, staleBefore time.Time, limit, maxAttempts int) ([]models.ScheduledTask, error) {
	const query = `
		WITH due AS (
			SELECT id FROM scheduled_tasks
			WHERE (status = 'pending' AND due_at <= $1)
			   OR (status = 'dispatched' AND dispatched_at <= $2)
			ORDER BY due_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		), claimed AS (
			UPDATE scheduled_tasks t
			SET status = CASE WHEN t.status = 'dispatched' AND t.attempts >= $4 THEN 'failed' ELSE 'dispatched' END,
			    dispatched_at = CASE WHEN t.status = 'dispatched' AND t.attempts >= $4 THEN t.dispatched_at ELSE $1 END,
			    attempts = CASE WHEN t.status = 'dispatched' AND t.attempts >= $4 THEN t.attempts ELSE t.attempts + 1 END,
			    last_error = CASE WHEN t.status = 'dispatched' AND t.attempts >= $4
			                      THEN format('not completed after %s dispatches', t.attempts)
			                      ELSE t.last_error END
			FROM due
			WHERE t.id = due.id
			RETURNING t.id, t.kind, t.due_at, t.status, t.attempts, t.last_error, t.dispatched_at, t.completed_at, t.created_at
		)
		SELECT ` + taskColumns + ` FROM claimed WHERE status = 'dispatched' ORDER BY due_at
	`

	rows, err := r.pool.Query(ctx, query, now, staleBefore, limit, maxAttempts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.ScheduledTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (r *TaskRepository) Get(ctx context.Context, id string) (models.ScheduledTask, error) {
	const query = `SELECT ` + taskColumns + ` FROM scheduled_tasks WHERE id = $1`

	task, err := scanTask(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ScheduledTask{}, ErrTaskNotFound
		}
		return models.ScheduledTask{}, err
	}
	return task, nil
}

// Complete marks a dispatched task done. It reports false when the task was
// cancelled or already finished in the meantime.
func (r *TaskRepository) Complete(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `
		UPDATE scheduled_tasks
		SET status = 'done', completed_at = $2, last_error = NULL
		WHERE id = $1 AND status = 'dispatched'
	`
	cmd, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

// Fail records a failed execution. The task goes back to pending with a new
// due time, or to failed once maxAttempts executions have been made.
func (r *TaskRepository) Fail(ctx context.Context, id, reason string, retryAt time.Time, maxAttempts int) error {
	const query = `
		UPDATE scheduled_tasks
		SET status = CASE WHEN attempts >= $4 THEN 'failed' ELSE 'pending' END,
		    due_at = CASE WHEN attempts >= $4 THEN due_at ELSE $3 END,
		    last_error = $2,
		    dispatched_at = NULL
		WHERE id = $1 AND status = 'dispatched'
	`
	_, err := r.pool.Exec(ctx, query, id, reason, retryAt, maxAttempts)
	return err
}

// ListByStatus returns the tasks of kind in status, earliest due first.
func (r *TaskRepository) ListByStatus(ctx context.Context, kind models.TaskKind, status models.TaskStatus) ([]models.ScheduledTask, error) {
	const query = `
		SELECT ` + taskColumns + `
		FROM scheduled_tasks
		WHERE kind = $1 AND status = $2
		ORDER BY due_at
	`
	rows, err := r.pool.Query(ctx, query, kind, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.ScheduledTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func scanTask(row pgx.Row) (models.ScheduledTask, error) {
	var task models.ScheduledTask
	err := row.Scan(
		&task.ID,
		&task.Kind,
		&task.DueAt,
		&task.Status,
		&task.Attempts,
		&task.LastError,
		&task.DispatchedAt,
		&task.CompletedAt,
		&task.CreatedAt,
	)
	return task, err
}
