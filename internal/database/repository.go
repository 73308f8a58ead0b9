package database

import "github.com/quorumhq/boardroom/internal/types"

type BoardRepository interface {
	Ping() error
	CreateAccount(params CreateAccountParams) (User, error)
	GetAccountById(accountId int) (User, error)
	CreateCompany(params CreateCompanyParams) (Company, error)
	GetCompanyByExternalId(externalId string) (Company, error)
	ListCompaniesForAccount(accountId int) ([]Company, error)
	CreateMembership(params CreateMembershipParams) (Membership, error)
	GetMembership(accountId, companyId int) (Membership, error)
	ListMemberships(companyId int) ([]Membership, error)
	CreateMeeting(params CreateMeetingParams) (Meeting, error)
	GetMeetingByExternalId(externalId string) (Meeting, error)
	ListMeetings(companyId int) ([]Meeting, error)
	UpdateMeetingStatus(meetingId int, status types.MeetingStatus) (Meeting, error)
	CreateDecision(params CreateDecisionParams) (Decision, error)
	GetDecisionByExternalId(externalId string) (DecisionWithMeeting, error)
	ListDecisions(meetingId int) ([]Decision, error)
	UpsertVote(params UpsertVoteParams) (Vote, error)
	CountVotesByValue(decisionId int) (map[types.VoteValue]int, error)
	UpsertAttendance(params UpsertAttendanceParams) (Attendance, error)
	ListAttendance(meetingId int) ([]Attendance, error)
}
