package repository_test

import (
	"time"

	"contesthub/internal/models"
	"contesthub/internal/repository"
)

const maxDispatches = 3

func (s *RepositorySuite) schedule(repo *repository.TaskRepository, id string, kind models.TaskKind, dueAt time.Time) {
	s.Require().NoError(repo.Schedule(s.ctx, models.ScheduledTask{
		ID:        id,
		Kind:      kind,
		DueAt:     dueAt,
		CreatedAt: s.now,
	}))
}

func taskIDs(tasks []models.ScheduledTask) []string {
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	return ids
}

func (s *RepositorySuite) TestTask_ClaimDueOnlyTakesDueRowsOnce() {
	repo := repository.NewTaskRepository(s.pool)
	s.schedule(repo, "due_2", models.TaskQuizAutoSubmit, s.now.Add(-time.Second))
	s.schedule(repo, "due_1", models.TaskSessionCleanup, s.now.Add(-time.Minute))
	s.schedule(repo, "later", models.TaskQuizAutoSubmit, s.now.Add(time.Minute))

	claimed, err := repo.ClaimDue(s.ctx, s.now, s.now.Add(-2*time.Minute), 10, maxDispatches)
	s.Require().NoError(err)
	s.Equal([]string{"due_1", "due_2"}, taskIDs(claimed))
	for _, t := range claimed {
		s.Equal(models.TaskStatusDispatched, t.Status)
		s.Equal(1, t.Attempts)
		s.Require().NotNil(t.DispatchedAt)
		s.True(t.DispatchedAt.Equal(s.now))
	}

	again, err := repo.ClaimDue(s.ctx, s.now.Add(time.Second), s.now.Add(-2*time.Minute), 10, maxDispatches)
	s.Require().NoError(err)
	s.Empty(again)
}

func (s *RepositorySuite) TestTask_ClaimDueRespectsLimit() {
	repo := repository.NewTaskRepository(s.pool)
	s.schedule(repo, "a", models.TaskSessionCleanup, s.now.Add(-3*time.Second))
	s.schedule(repo, "b", models.TaskSessionCleanup, s.now.Add(-2*time.Second))
	s.schedule(repo, "c", models.TaskSessionCleanup, s.now.Add(-time.Second))

	claimed, err := repo.ClaimDue(s.ctx, s.now, s.now.Add(-time.Minute), 2, maxDispatches)
	s.Require().NoError(err)
	s.Equal([]string{"a", "b"}, taskIDs(claimed))
}

func (s *RepositorySuite) TestTask_StaleDispatchIsReclaimedThenFailed() {
	repo := repository.NewTaskRepository(s.pool)
	s.schedule(repo, "stuck", models.TaskQuizAutoSubmit, s.now)

	at := s.now
	for attempt := 1; attempt <= maxDispatches; attempt++ {
		claimed, err := repo.ClaimDue(s.ctx, at, at.Add(-2*time.Minute), 10, maxDispatches)
		s.Require().NoError(err)
		s.Require().Len(claimed, 1, "dispatch %d", attempt)
		s.Equal(attempt, claimed[0].Attempts)

		// the worker never reports back
		at = at.Add(3 * time.Minute)
	}

	claimed, err := repo.ClaimDue(s.ctx, at, at.Add(-2*time.Minute), 10, maxDispatches)
	s.Require().NoError(err)
	s.Empty(claimed)

	task, err := repo.Get(s.ctx, "stuck")
	s.Require().NoError(err)
	s.Equal(models.TaskStatusFailed, task.Status)
	s.Equal(maxDispatches, task.Attempts)
	s.Require().NotNil(task.LastError)
	s.Contains(*task.LastError, "not completed")

	claimed, err = repo.ClaimDue(s.ctx, at.Add(time.Hour), at.Add(time.Hour), 10, maxDispatches)
	s.Require().NoError(err)
	s.Empty(claimed)
}

func (s *RepositorySuite) TestTask_CancelWinsOverComplete() {
	repo := repository.NewTaskRepository(s.pool)
	s.schedule(repo, "auto", models.TaskQuizAutoSubmit, s.now)
	s.schedule(repo, "pending", models.TaskQuizAutoSubmit, s.now.Add(time.Hour))
	s.schedule(repo, "cleanup", models.TaskSessionCleanup, s.now)

	_, err := repo.ClaimDue(s.ctx, s.now, s.now.Add(-time.Minute), 10, maxDispatches)
	s.Require().NoError(err)

	n, err := repo.CancelPending(s.ctx, models.TaskQuizAutoSubmit)
	s.Require().NoError(err)
	s.Equal(int64(2), n)

	done, err := repo.Complete(s.ctx, "auto", s.now.Add(time.Second))
	s.Require().NoError(err)
	s.False(done)

	task, err := repo.Get(s.ctx, "auto")
	s.Require().NoError(err)
	s.Equal(models.TaskStatusCancelled, task.Status)
	s.Nil(task.CompletedAt)

	done, err = repo.Complete(s.ctx, "cleanup", s.now.Add(time.Second))
	s.Require().NoError(err)
	s.True(done)

	done, err = repo.Complete(s.ctx, "cleanup", s.now.Add(2*time.Second))
	s.Require().NoError(err)
	s.False(done, "completing twice is a no-op")
}

func (s *RepositorySuite) TestTask_FailRetriesUntilMaxAttempts() {
	repo := repository.NewTaskRepository(s.pool)
	s.schedule(repo, "archive", models.TaskAuditArchive, s.now)

	retryAt := s.now.Add(30 * time.Second)
	_, err := repo.ClaimDue(s.ctx, s.now, s.now.Add(-time.Minute), 10, 2)
	s.Require().NoError(err)
	s.Require().NoError(repo.Fail(s.ctx, "archive", "bucket missing", retryAt, 2))

	task, err := repo.Get(s.ctx, "archive")
	s.Require().NoError(err)
	s.Equal(models.TaskStatusPending, task.Status)
	s.True(task.DueAt.Equal(retryAt))
	s.Nil(task.DispatchedAt)
	s.Require().NotNil(task.LastError)
	s.Equal("bucket missing", *task.LastError)

	pending, err := repo.ListByStatus(s.ctx, models.TaskAuditArchive, models.TaskStatusPending)
	s.Require().NoError(err)
	s.Equal([]string{"archive"}, taskIDs(pending))

	claimed, err := repo.ClaimDue(s.ctx, retryAt, retryAt.Add(-time.Minute), 10, 2)
	s.Require().NoError(err)
	s.Require().Len(claimed, 1)
	s.Equal(2, claimed[0].Attempts)
	s.Require().NoError(repo.Fail(s.ctx, "archive", "bucket missing", retryAt.Add(time.Minute), 2))

	failed, err := repo.ListByStatus(s.ctx, models.TaskAuditArchive, models.TaskStatusFailed)
	s.Require().NoError(err)
	s.Equal([]string{"archive"}, taskIDs(failed))
}

func (s *RepositorySuite) TestTask_GetMissing() {
	_, err := repository.NewTaskRepository(s.pool).Get(s.ctx, "nope")
	s.ErrorIs(err, repository.ErrTaskNotFound)
}
