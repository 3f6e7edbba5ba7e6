package models

import "time"

type AuditAction string

const (
	AuditLoginSuccess         AuditAction = "login_success"
	AuditLoginFailed          AuditAction = "login_failed"
	AuditLoginRateLimited     AuditAction = "login_rate_limited"
	AuditLogout               AuditAction = "logout"
	AuditPrincipalActivated   AuditAction = "principal_activated"
	AuditPrincipalDeactivated AuditAction = "principal_deactivated"
	AuditQuizStarted          AuditAction = "quiz_started"
	AuditQuizStopped          AuditAction = "quiz_stopped"
	AuditVotingStarted        AuditAction = "voting_started"
	AuditVotingStopped        AuditAction = "voting_stopped"
	AuditAutoSubmitExecuted   AuditAction = "auto_submit_executed"
)

type AuditEvent struct {
	ID            string         `json:"id"`
	Action        AuditAction    `json:"action"`
	PrincipalID   string         `json:"principalId,omitempty"`
	PrincipalType SessionType    `json:"principalType,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
	IPAddress     string         `json:"ip,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}
