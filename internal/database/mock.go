package database

import (
	"github.com/stretchr/testify/mock"

	"github.com/quorumhq/boardroom/internal/types"
)

type MockBoardRepository struct {
	mock.Mock
}

func (m *MockBoardRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockBoardRepository) CreateAccount(params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockBoardRepository) GetAccountById(accountId int) (User, error) {
	args := m.Called(accountId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockBoardRepository) CreateCompany(params CreateCompanyParams) (Company, error) {
	args := m.Called(params)
	return args.Get(0).(Company), args.Error(1)
}
func (m *MockBoardRepository) GetCompanyByExternalId(externalId string) (Company, error) {
	args := m.Called(externalId)
	return args.Get(0).(Company), args.Error(1)
}
func (m *MockBoardRepository) ListCompaniesForAccount(accountId int) ([]Company, error) {
	args := m.Called(accountId)
	return args.Get(0).([]Company), args.Error(1)
}
func (m *MockBoardRepository) CreateMembership(params CreateMembershipParams) (Membership, error) {
	args := m.Called(params)
	return args.Get(0).(Membership), args.Error(1)
}
func (m *MockBoardRepository) GetMembership(accountId, companyId int) (Membership, error) {
	args := m.Called(accountId, companyId)
	return args.Get(0).(Membership), args.Error(1)
}
func (m *MockBoardRepository) ListMemberships(companyId int) ([]Membership, error) {
	args := m.Called(companyId)
	return args.Get(0).([]Membership), args.Error(1)
}
func (m *MockBoardRepository) CreateMeeting(params CreateMeetingParams) (Meeting, error) {
	args := m.Called(params)
	return args.Get(0).(Meeting), args.Error(1)
}
func (m *MockBoardRepository) GetMeetingByExternalId(externalId string) (Meeting, error) {
	args := m.Called(externalId)
	return args.Get(0).(Meeting), args.Error(1)
}
func (m *MockBoardRepository) ListMeetings(companyId int) ([]Meeting, error) {
	args := m.Called(companyId)
	return args.Get(0).([]Meeting), args.Error(1)
}
func (m *MockBoardRepository) UpdateMeetingStatus(meetingId int, status types.MeetingStatus) (Meeting, error) {
	args := m.Called(meetingId, status)
	return args.Get(0).(Meeting), args.Error(1)
}
func (m *MockBoardRepository) CreateDecision(params CreateDecisionParams) (Decision, error) {
	args := m.Called(params)
	return args.Get(0).(Decision), args.Error(1)
}
func (m *MockBoardRepository) GetDecisionByExternalId(externalId string) (DecisionWithMeeting, error) {
	args := m.Called(externalId)
	return args.Get(0).(DecisionWithMeeting), args.Error(1)
}
func (m *MockBoardRepository) ListDecisions(meetingId int) ([]Decision, error) {
	args := m.Called(meetingId)
	return args.Get(0).([]Decision), args.Error(1)
}
func (m *MockBoardRepository) UpsertVote(params UpsertVoteParams) (Vote, error) {
	args := m.Called(params)
	return args.Get(0).(Vote), args.Error(1)
}
func (m *MockBoardRepository) CountVotesByValue(decisionId int) (map[types.VoteValue]int, error) {
	args := m.Called(decisionId)
	if counts, ok := args.Get(0).(map[types.VoteValue]int); ok {
		return counts, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockBoardRepository) UpsertAttendance(params UpsertAttendanceParams) (Attendance, error) {
	args := m.Called(params)
	return args.Get(0).(Attendance), args.Error(1)
}
func (m *MockBoardRepository) ListAttendance(meetingId int) ([]Attendance, error) {
	args := m.Called(meetingId)
	return args.Get(0).([]Attendance), args.Error(1)
}
