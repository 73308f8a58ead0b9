package server

import (
	"net/http"
	"time"

	"github.com/quorumhq/boardroom/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ClientMessage struct {
	BaseMessage
	Join       *JoinMeeting      `json:"join,omitempty"`
	Leave      *LeaveMeeting     `json:"leave,omitempty"`
	Vote       *CastVote         `json:"vote,omitempty"`
	Attendance *UpdateAttendance `json:"attendance,omitempty"`
	Status     *UpdateStatus     `json:"status,omitempty"`
	UserId     int               `json:"-"`
	client     *Client
}

type JoinMeeting struct {
	MeetingId string `json:"meeting_id"`
}

type LeaveMeeting struct {
	MeetingId string `json:"meeting_id"`
}

type CastVote struct {
	DecisionId string          `json:"decision_id"`
	Value      types.VoteValue `json:"value"`
}

type UpdateAttendance struct {
	MeetingId string `json:"meeting_id"`
	Present   bool   `json:"present"`
}

type UpdateStatus struct {
	MeetingId string              `json:"meeting_id"`
	Status    types.MeetingStatus `json:"status"`
}

type ServerMessage struct {
	BaseMessage
	Response   *Response `json:"response,omitempty"`
	Event      *Event    `json:"event,omitempty"`
	SkipClient *Client   `json:"-"`
}

type Response struct {
	ResponseCode int            `json:"response_code"`
	Error        string         `json:"error,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

// Event is a server-initiated broadcast to the members of a room.
type Event struct {
	AttendeeJoined    *AttendeeJoined    `json:"attendee_joined,omitempty"`
	AttendeeLeft      *AttendeeLeft      `json:"attendee_left,omitempty"`
	VoteUpdated       *VoteUpdated       `json:"vote_updated,omitempty"`
	AttendanceUpdated *AttendanceUpdated `json:"attendance_updated,omitempty"`
	StatusUpdated     *StatusUpdated     `json:"meeting_status_updated,omitempty"`
}

type AttendeeJoined struct {
	MeetingId string `json:"meeting_id"`
	UserId    int    `json:"user_id"`
}

type AttendeeLeft struct {
	MeetingId string `json:"meeting_id"`
	UserId    int    `json:"user_id"`
}

type VoteUpdated struct {
	DecisionId string      `json:"decision_id"`
	VoterId    int         `json:"voter_id"`
	Vote       types.Vote  `json:"vote"`
	Tally      types.Tally `json:"tally"`
}

type AttendanceUpdated struct {
	MeetingId string `json:"meeting_id"`
	UserId    int    `json:"user_id"`
	Present   bool   `json:"present"`
}

type StatusUpdated struct {
	MeetingId string              `json:"meeting_id"`
	Status    types.MeetingStatus `json:"status"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func NoErrOK(id int, data map[string]any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func ErrNotAuthenticated(id int) *ServerMessage {
	return errResponse(id, http.StatusUnauthorized, "not authenticated")
}

func ErrAccessDenied(id int) *ServerMessage {
	return errResponse(id, http.StatusForbidden, "access denied to this meeting")
}

func ErrInsufficientRole(id int) *ServerMessage {
	return errResponse(id, http.StatusForbidden, "insufficient role for this action")
}

func ErrNotFound(id int, what string) *ServerMessage {
	return errResponse(id, http.StatusNotFound, what+" not found")
}

func ErrVotingNotAllowed(id int) *ServerMessage {
	return errResponse(id, http.StatusPreconditionFailed, "voting is only allowed during live meetings")
}

func ErrInvalidTransition(id int) *ServerMessage {
	return errResponse(id, http.StatusPreconditionFailed, "invalid meeting status transition")
}

func ErrInternalError(id int) *ServerMessage {
	return errResponse(id, http.StatusInternalServerError, "internal server error")
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return errResponse(id, http.StatusServiceUnavailable, "service unavailable")
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := errResponse(0, http.StatusBadRequest, "invalid message format")
	if id > 0 {
		msg.Id = id
	}
	return msg
}

func errResponse(id, code int, errMsg string) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: code,
			Error:        errMsg,
		},
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
