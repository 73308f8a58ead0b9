package types

import (
	"time"
)

// VoteValue is the choice a voter records against a decision.
type VoteValue string

const (
	VoteFor     VoteValue = "FOR"
	VoteAgainst VoteValue = "AGAINST"
	VoteAbstain VoteValue = "ABSTAIN"
)

func (v VoteValue) Valid() bool {
	switch v {
	case VoteFor, VoteAgainst, VoteAbstain:
		return true
	}
	return false
}

// MeetingStatus is the lifecycle state of a meeting. The authoritative
// copy lives in the database; the gateway reads and writes it but never
// caches it.
type MeetingStatus string

const (
	StatusScheduled  MeetingStatus = "SCHEDULED"
	StatusInProgress MeetingStatus = "IN_PROGRESS"
	StatusCompleted  MeetingStatus = "COMPLETED"
	StatusCancelled  MeetingStatus = "CANCELLED"
)

func (s MeetingStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is a legal successor state.
// COMPLETED and CANCELLED are terminal.
func (s MeetingStatus) CanTransitionTo(next MeetingStatus) bool {
	switch s {
	case StatusScheduled:
		return next == StatusInProgress || next == StatusCancelled
	case StatusInProgress:
		return next == StatusCompleted
	}
	return false
}

// MemberRole is a member's role within a company.
type MemberRole string

const (
	RoleOwner  MemberRole = "OWNER"
	RoleAdmin  MemberRole = "ADMIN"
	RoleMember MemberRole = "MEMBER"
)

func (r MemberRole) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// CanManageMeeting reports whether the role may transition meeting
// status and create decisions.
func (r MemberRole) CanManageMeeting() bool {
	return r == RoleOwner || r == RoleAdmin
}

// Tally is the per-outcome vote count for one decision, derived on
// demand from the vote store. Outcomes with no votes report zero.
type Tally struct {
	For     int `json:"for"`
	Against int `json:"against"`
	Abstain int `json:"abstain"`
}

func NewTally(counts map[VoteValue]int) Tally {
	return Tally{
		For:     counts[VoteFor],
		Against: counts[VoteAgainst],
		Abstain: counts[VoteAbstain],
	}
}

func (t Tally) Total() int {
	return t.For + t.Against + t.Abstain
}

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

type Company struct {
	Id         int       `json:"id"`
	ExternalId string    `json:"external_id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

type Membership struct {
	Id        int        `json:"id"`
	CompanyId int        `json:"company_id"`
	UserId    int        `json:"user_id"`
	Role      MemberRole `json:"role"`
	CreatedAt time.Time  `json:"created_at,omitempty"`
}

type Meeting struct {
	Id          int           `json:"id"`
	ExternalId  string        `json:"external_id"`
	CompanyId   int           `json:"company_id"`
	Title       string        `json:"title"`
	Status      MeetingStatus `json:"status"`
	ScheduledAt time.Time     `json:"scheduled_at"`
	CreatedAt   time.Time     `json:"created_at,omitempty"`
	UpdatedAt   time.Time     `json:"updated_at,omitempty"`
}

type Decision struct {
	Id         int       `json:"id"`
	ExternalId string    `json:"external_id"`
	MeetingId  int       `json:"meeting_id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

type Vote struct {
	Id         int       `json:"id"`
	DecisionId int       `json:"decision_id"`
	VoterId    int       `json:"voter_id"`
	Value      VoteValue `json:"value"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

type Attendance struct {
	Id        int       `json:"id"`
	MeetingId int       `json:"meeting_id"`
	UserId    int       `json:"user_id"`
	Present   bool      `json:"present"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}
