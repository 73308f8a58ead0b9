package database

import (
	"time"

	"github.com/quorumhq/boardroom/internal/types"
)

type User struct {
	Id           int
	Username     string
	EmailAddress string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Company struct {
	Id         int
	ExternalId string
	Name       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Membership struct {
	Id        int
	CompanyId int
	AccountId int
	Role      types.MemberRole
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Meeting struct {
	Id          int
	ExternalId  string
	CompanyId   int
	Title       string
	Status      types.MeetingStatus
	ScheduledAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Decision struct {
	Id         int
	ExternalId string
	MeetingId  int
	Title      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DecisionWithMeeting carries a decision together with its owning
// meeting, so a single lookup answers both the not-found and the
// voting-liveness checks.
type DecisionWithMeeting struct {
	Decision
	Meeting Meeting
}

type Vote struct {
	Id         int
	DecisionId int
	VoterId    int
	Value      types.VoteValue
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Attendance struct {
	Id        int
	MeetingId int
	AccountId int
	Present   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
}

type CreateCompanyParams struct {
	ExternalId string
	Name       string
}

type CreateMembershipParams struct {
	CompanyId int
	AccountId int
	Role      types.MemberRole
}

type CreateMeetingParams struct {
	ExternalId  string
	CompanyId   int
	Title       string
	ScheduledAt time.Time
}

type CreateDecisionParams struct {
	ExternalId string
	MeetingId  int
	Title      string
}

type UpsertVoteParams struct {
	DecisionId int
	VoterId    int
	Value      types.VoteValue
}

type UpsertAttendanceParams struct {
	MeetingId int
	AccountId int
	Present   bool
}
