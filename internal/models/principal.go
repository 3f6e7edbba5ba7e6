package models

import "time"

// SessionType discriminates the two principal populations. It is embedded in
// every token and each HTTP route tree accepts exactly one type.
type SessionType string

const (
	SessionTypeAdmin SessionType = "admin"
	SessionTypeTeam  SessionType = "team"
)

func (t SessionType) Valid() bool {
	return t == SessionTypeAdmin || t == SessionTypeTeam
}

type Role string

const (
	RoleSuperAdmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleModerator  Role = "moderator"
	RoleTeam       Role = "team"
)

// Principal is an authenticatable identity: an admin user or a team.
type Principal struct {
	ID           string
	Type         SessionType
	LoginID      string
	PasswordHash []byte
	Role         Role
	Capabilities CapabilitySet
	Active       bool
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// EffectiveCapabilities returns the stored capability set, falling back to
// the role defaults when none is stored.
func (p Principal) EffectiveCapabilities() CapabilitySet {
	if p.Capabilities != 0 {
		return p.Capabilities
	}
	return DefaultCapabilities(p.Role)
}

type Session struct {
	ID           string
	TokenRef     string
	PrincipalID  string
	Type         SessionType
	IPAddress    string
	UserAgent    string
	CreatedAt    time.Time
	LastActivity time.Time
	ExpiresAt    time.Time
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
