package service

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"contesthub/internal/models"
	"contesthub/internal/repository"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakePrincipals struct {
	mu         sync.Mutex
	byID       map[string]*models.Principal
	findErr    error
	lastLogins map[string]time.Time
}

func newFakePrincipals(principals ...models.Principal) *fakePrincipals {
	f := &fakePrincipals{byID: map[string]*models.Principal{}, lastLogins: map[string]time.Time{}}
	for i := range principals {
		p := principals[i]
		f.byID[p.ID] = &p
	}
	return f
}

func (f *fakePrincipals) FindActive(_ context.Context, typ models.SessionType, loginID string) (models.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return models.Principal{}, f.findErr
	}
	for _, p := range f.byID {
		if p.Type == typ && p.Active && strings.EqualFold(p.LoginID, loginID) {
			return *p, nil
		}
	}
	return models.Principal{}, repository.ErrPrincipalNotFound
}

func (f *fakePrincipals) GetByID(_ context.Context, typ models.SessionType, id string) (models.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok || p.Type != typ {
		return models.Principal{}, repository.ErrPrincipalNotFound
	}
	return *p, nil
}

func (f *fakePrincipals) UpdateLastLogin(_ context.Context, _ models.SessionType, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLogins[id] = at
	return nil
}

func (f *fakePrincipals) SetActive(_ context.Context, typ models.SessionType, id string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok || p.Type != typ {
		return repository.ErrPrincipalNotFound
	}
	p.Active = active
	return nil
}

type fakeSessions struct {
	mu        sync.Mutex
	rows      map[string]models.Session
	createErr error
	touchErr  error
	deletes   int
	touches   int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{rows: map[string]models.Session{}}
}

func (f *fakeSessions) Create(_ context.Context, session models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.rows[session.TokenRef] = session
	return nil
}

func (f *fakeSessions) FindByTokenRef(_ context.Context, tokenRef string) (models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[tokenRef]
	if !ok {
		return models.Session{}, repository.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeSessions) DeleteByTokenRef(_ context.Context, tokenRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	delete(f.rows, tokenRef)
	return nil
}

func (f *fakeSessions) Touch(_ context.Context, sessionID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.touchErr != nil {
		return f.touchErr
	}
	f.touches++
	for ref, s := range f.rows {
		if s.ID == sessionID {
			s.LastActivity = at
			f.rows[ref] = s
		}
	}
	return nil
}

func (f *fakeSessions) ListByPrincipal(_ context.Context, typ models.SessionType, principalID string, now time.Time) ([]models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Session
	for _, s := range f.rows {
		if s.Type == typ && s.PrincipalID == principalID && !s.Expired(now) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSessions) DeleteByPrincipal(_ context.Context, typ models.SessionType, principalID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for ref, s := range f.rows {
		if s.Type == typ && s.PrincipalID == principalID {
			delete(f.rows, ref)
			n++
		}
	}
	return n, nil
}

func (f *fakeSessions) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeAudit struct {
	mu     sync.Mutex
	events []models.AuditEvent
}

func (f *fakeAudit) Record(_ context.Context, event models.AuditEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeAudit) Actions() []models.AuditAction {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.AuditAction, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Action)
	}
	return out
}

type fakeContest struct {
	mu           sync.Mutex
	state        models.ContestState
	tasks        map[string]models.ScheduledTask
	inProgress   int64
	setErr       error
	autoSubmitAt time.Time
}

func newFakeContest() *fakeContest {
	return &fakeContest{tasks: map[string]models.ScheduledTask{}}
}

func (f *fakeContest) GetState(context.Context) (models.ContestState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, nil
}

func (f *fakeContest) SetQuizActive(_ context.Context, active bool, by string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.state.QuizActive = active
	f.state.UpdatedBy = by
	f.state.UpdatedAt = at
	return nil
}

func (f *fakeContest) SetVotingActive(_ context.Context, active bool, by string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.state.VotingActive = active
	f.state.UpdatedBy = by
	f.state.UpdatedAt = at
	return nil
}

func (f *fakeContest) RunAutoSubmit(_ context.Context, taskID string, at time.Time) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok {
		return 0, false, repository.ErrTaskNotFound
	}
	if task.Status != models.TaskStatusDispatched {
		return 0, false, nil
	}
	submitted := f.inProgress
	f.inProgress = 0
	f.autoSubmitAt = at
	task.Status = models.TaskStatusDone
	task.CompletedAt = &at
	f.tasks[taskID] = task
	return submitted, true, nil
}

func (f *fakeContest) Schedule(_ context.Context, task models.ScheduledTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[task.ID] = task
	return nil
}

func (f *fakeContest) CancelPending(_ context.Context, kind models.TaskKind) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, task := range f.tasks {
		if task.Kind == kind && (task.Status == models.TaskStatusPending || task.Status == models.TaskStatusDispatched) {
			task.Status = models.TaskStatusCancelled
			f.tasks[id] = task
			n++
		}
	}
	return n, nil
}

func (f *fakeContest) dispatch(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task := f.tasks[id]
	task.Status = models.TaskStatusDispatched
	f.tasks[id] = task
}

func (f *fakeContest) tasksWithStatus(status models.TaskStatus) []models.ScheduledTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ScheduledTask
	for _, task := range f.tasks {
		if task.Status == status {
			out = append(out, task)
		}
	}
	return out
}

type fakeObjects struct {
	key         string
	body        string
	contentType string
	putErr      error
}

func (f *fakeObjects) PutObject(_ context.Context, key string, body io.Reader, size int64, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return io.ErrShortWrite
	}
	f.key = key
	f.body = string(data)
	f.contentType = contentType
	return nil
}
