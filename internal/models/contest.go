package models

import "time"

type ContestState struct {
	QuizActive   bool
	VotingActive bool
	UpdatedAt    time.Time
	UpdatedBy    string
}

type TaskKind string

const (
	TaskQuizAutoSubmit TaskKind = "quiz_auto_submit"
	TaskSessionCleanup TaskKind = "session_cleanup"
	TaskAuditArchive   TaskKind = "audit_archive"
)

func (k TaskKind) Valid() bool {
	switch k {
	case TaskQuizAutoSubmit, TaskSessionCleanup, TaskAuditArchive:
		return true
	}
	return false
}

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusDispatched TaskStatus = "dispatched"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusCancelled  TaskStatus = "cancelled"
	TaskStatusFailed     TaskStatus = "failed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusDispatched, TaskStatusDone, TaskStatusCancelled, TaskStatusFailed:
		return true
	}
	return false
}

// ScheduledTask is a durable "run this at due_at" marker. It survives process
// restarts; dispatch and execution are driven from the row, never from an
// in-memory timer.
type ScheduledTask struct {
	ID           string
	Kind         TaskKind
	DueAt        time.Time
	Status       TaskStatus
	Attempts     int
	LastError    *string
	DispatchedAt *time.Time
	CompletedAt  *time.Time
	CreatedAt    time.Time
}
