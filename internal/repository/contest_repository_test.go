package repository_test

import (
	"time"

	"contesthub/internal/models"
	"contesthub/internal/repository"
)

func (s *RepositorySuite) TestContest_StateUpserts() {
	repo := repository.NewContestRepository(s.pool)

	state, err := repo.GetState(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.ContestState{}, state)

	s.Require().NoError(repo.SetQuizActive(s.ctx, true, "adm_1", s.now))
	s.Require().NoError(repo.SetVotingActive(s.ctx, true, "adm_2", s.now.Add(time.Minute)))

	state, err = repo.GetState(s.ctx)
	s.Require().NoError(err)
	s.True(state.QuizActive, "voting toggle keeps the quiz flag")
	s.True(state.VotingActive)
	s.Equal("adm_2", state.UpdatedBy)
	s.True(state.UpdatedAt.Equal(s.now.Add(time.Minute)))
}

func (s *RepositorySuite) seedAttempts() {
	s.exec(`
		INSERT INTO quiz_attempts (id, team_id, status, submitted_at)
		VALUES ('att_1', 'team_1', 'in_progress', NULL),
		       ('att_2', 'team_2', 'in_progress', NULL),
		       ('att_3', 'team_3', 'submitted', $1)
	`, s.now.Add(-time.Minute))
}

func (s *RepositorySuite) countAutoSubmitted() int {
	var n int
	s.Require().NoError(s.pool.QueryRow(s.ctx,
		`SELECT count(*) FROM quiz_attempts WHERE auto_submitted`).Scan(&n))
	return n
}

func (s *RepositorySuite) TestContest_RunAutoSubmit() {
	s.seedAttempts()
	tasks := repository.NewTaskRepository(s.pool)
	repo := repository.NewContestRepository(s.pool)
	s.schedule(tasks, "auto", models.TaskQuizAutoSubmit, s.now)
	_, err := tasks.ClaimDue(s.ctx, s.now, s.now.Add(-time.Minute), 10, maxDispatches)
	s.Require().NoError(err)

	submitted, ran, err := repo.RunAutoSubmit(s.ctx, "auto", s.now.Add(time.Second))
	s.Require().NoError(err)
	s.True(ran)
	s.Equal(int64(2), submitted)
	s.Equal(2, s.countAutoSubmitted())

	task, err := tasks.Get(s.ctx, "auto")
	s.Require().NoError(err)
	s.Equal(models.TaskStatusDone, task.Status)

	submitted, ran, err = repo.RunAutoSubmit(s.ctx, "auto", s.now.Add(2*time.Second))
	s.Require().NoError(err)
	s.False(ran, "a finished task does not run again")
	s.Zero(submitted)
}

func (s *RepositorySuite) TestContest_RunAutoSubmitAfterCancel() {
	s.seedAttempts()
	tasks := repository.NewTaskRepository(s.pool)
	repo := repository.NewContestRepository(s.pool)
	s.schedule(tasks, "auto", models.TaskQuizAutoSubmit, s.now)
	_, err := tasks.ClaimDue(s.ctx, s.now, s.now.Add(-time.Minute), 10, maxDispatches)
	s.Require().NoError(err)

	_, err = tasks.CancelPending(s.ctx, models.TaskQuizAutoSubmit)
	s.Require().NoError(err)

	submitted, ran, err := repo.RunAutoSubmit(s.ctx, "auto", s.now.Add(time.Second))
	s.Require().NoError(err)
	s.False(ran)
	s.Zero(submitted)
	s.Zero(s.countAutoSubmitted())

	_, _, err = repo.RunAutoSubmit(s.ctx, "missing", s.now)
	s.ErrorIs(err, repository.ErrTaskNotFound)
}
