package models

import (
	"fmt"
	"math/bits"
	"strings"
)

// Capability is one named permission. The set is closed: adding a capability
// means adding a constant here and a case in String and ParseCapability.
type Capability uint8

const (
	CapManageContest Capability = iota
	CapManageQuestions
	CapManageTeams
	CapManageAdmins
	CapViewAudit
	CapPlayQuiz
	CapCastVote

	capabilityCount
)

func (c Capability) String() string {
	switch c {
	case CapManageContest:
		return "manage_contest"
	case CapManageQuestions:
		return "manage_questions"
	case CapManageTeams:
		return "manage_teams"
	case CapManageAdmins:
		return "manage_admins"
	case CapViewAudit:
		return "view_audit"
	case CapPlayQuiz:
		return "play_quiz"
	case CapCastVote:
		return "cast_vote"
	default:
		return fmt.Sprintf("capability(%d)", uint8(c))
	}
}

func ParseCapability(name string) (Capability, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "manage_contest":
		return CapManageContest, nil
	case "manage_questions":
		return CapManageQuestions, nil
	case "manage_teams":
		return CapManageTeams, nil
	case "manage_admins":
		return CapManageAdmins, nil
	case "view_audit":
		return CapViewAudit, nil
	case "play_quiz":
		return CapPlayQuiz, nil
	case "cast_vote":
		return CapCastVote, nil
	default:
		return 0, fmt.Errorf("unknown capability %q", name)
	}
}

// CapabilitySet is a bitset of capabilities, persisted as a BIGINT.
type CapabilitySet uint64

func NewCapabilitySet(caps ...Capability) CapabilitySet {
	var set CapabilitySet
	return set.With(caps...)
}

func (s CapabilitySet) With(caps ...Capability) CapabilitySet {
	for _, c := range caps {
		s |= 1 << c
	}
	return s
}

func (s CapabilitySet) Has(c Capability) bool {
	if c >= capabilityCount {
		return false
	}
	return s&(1<<c) != 0
}

func (s CapabilitySet) Len() int {
	return bits.OnesCount64(uint64(s & allCapabilities))
}

func (s CapabilitySet) Names() []string {
	names := make([]string, 0, s.Len())
	for c := Capability(0); c < capabilityCount; c++ {
		if s.Has(c) {
			names = append(names, c.String())
		}
	}
	return names
}

func ParseCapabilitySet(names []string) (CapabilitySet, error) {
	var set CapabilitySet
	for _, name := range names {
		c, err := ParseCapability(name)
		if err != nil {
			return 0, err
		}
		set = set.With(c)
	}
	return set, nil
}

const allCapabilities = CapabilitySet(1<<capabilityCount - 1)

var roleDefaults = map[Role]CapabilitySet{
	RoleSuperAdmin: NewCapabilitySet(CapManageContest, CapManageQuestions, CapManageTeams, CapManageAdmins, CapViewAudit),
	RoleAdmin:      NewCapabilitySet(CapManageContest, CapManageQuestions, CapManageTeams, CapViewAudit),
	RoleModerator:  NewCapabilitySet(CapManageContest),
	RoleTeam:       NewCapabilitySet(CapPlayQuiz, CapCastVote),
}

func DefaultCapabilities(role Role) CapabilitySet {
	return roleDefaults[role]
}
