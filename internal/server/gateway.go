package server

import (
	"database/sql"
	"errors"

	"github.com/quorumhq/boardroom/internal/database"
	"github.com/quorumhq/boardroom/internal/types"
)

// handleJoin admits an authenticated member into a meeting's room. The
// caller gets a snapshot of the current attendees; everyone already in
// the room is told the user appeared, but only when this is the user's
// first live connection.
func (ms *MeetingServer) handleJoin(msg *ClientMessage) {
	c := msg.client
	if !ms.authenticated(msg) {
		return
	}

	meeting, ok := ms.lookupMeeting(msg, msg.Join.MeetingId)
	if !ok {
		return
	}

	if _, ok := ms.requireMembership(msg, meeting.CompanyId); !ok {
		return
	}

	// a connection holds at most one registry reference per room, so
	// disconnect cleanup releases exactly what join acquired
	if !c.hasMeeting(meeting.ExternalId) {
		ms.addToRoom(c, meeting.ExternalId)
		c.addMeeting(meeting.ExternalId)

		if first := ms.registry.Join(meeting.ExternalId, c.user.Id); first {
			ms.broadcastToRoom(meeting.ExternalId, &ServerMessage{
				BaseMessage: BaseMessage{Timestamp: Now()},
				Event: &Event{
					AttendeeJoined: &AttendeeJoined{
						MeetingId: meeting.ExternalId,
						UserId:    c.user.Id,
					},
				},
				SkipClient: c,
			})
		}
	}

	c.queueMessage(NoErrOK(msg.Id, map[string]any{
		"meeting_id":        meeting.ExternalId,
		"current_attendees": ms.registry.MembersOf(meeting.ExternalId),
	}))
}

// handleLeave removes the connection from a room it previously joined.
func (ms *MeetingServer) handleLeave(msg *ClientMessage) {
	c := msg.client
	if !ms.authenticated(msg) {
		return
	}

	meetingId := msg.Leave.MeetingId
	if !c.hasMeeting(meetingId) {
		c.queueMessage(ErrNotFound(msg.Id, "meeting"))
		return
	}

	ms.leaveRoom(c, meetingId)
	c.queueMessage(NoErrOK(msg.Id, nil))
}

// handleVote casts or replaces the caller's vote on a decision. Votes
// are only accepted while the owning meeting is in progress, and the
// store keeps at most one vote per (decision, voter) pair.
func (ms *MeetingServer) handleVote(msg *ClientMessage) {
	c := msg.client
	if !ms.authenticated(msg) {
		return
	}

	if !msg.Vote.Value.Valid() {
		c.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	dm, err := ms.db.GetDecisionByExternalId(msg.Vote.DecisionId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.queueMessage(ErrNotFound(msg.Id, "decision"))
		} else {
			ms.log.Println("GetDecisionByExternalId:", err)
			c.queueMessage(ErrInternalError(msg.Id))
		}
		return
	}

	if _, ok := ms.requireMembership(msg, dm.Meeting.CompanyId); !ok {
		return
	}

	if dm.Meeting.Status != types.StatusInProgress {
		c.queueMessage(ErrVotingNotAllowed(msg.Id))
		return
	}

	vote, err := ms.db.UpsertVote(database.UpsertVoteParams{
		DecisionId: dm.Decision.Id,
		VoterId:    c.user.Id,
		Value:      msg.Vote.Value,
	})
	if err != nil {
		ms.log.Println("UpsertVote:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}

	counts, err := ms.db.CountVotesByValue(dm.Decision.Id)
	if err != nil {
		ms.log.Println("CountVotesByValue:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}
	tally := types.NewTally(counts)

	ms.stats.Incr(metricNumVotesCast)

	wireVote := voteToWire(vote)
	// everyone in the room sees the authoritative tally, including the
	// voter, so clients never rely on an optimistic local guess
	ms.broadcastToRoom(dm.Meeting.ExternalId, &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Event: &Event{
			VoteUpdated: &VoteUpdated{
				DecisionId: dm.Decision.ExternalId,
				VoterId:    c.user.Id,
				Vote:       wireVote,
				Tally:      tally,
			},
		},
	})

	c.queueMessage(NoErrOK(msg.Id, map[string]any{
		"vote":  wireVote,
		"tally": tally,
	}))
}

// handleAttendance upserts the caller's durable roll-call flag for a
// meeting. This is independent of live presence in the room registry.
func (ms *MeetingServer) handleAttendance(msg *ClientMessage) {
	c := msg.client
	if !ms.authenticated(msg) {
		return
	}

	meeting, ok := ms.lookupMeeting(msg, msg.Attendance.MeetingId)
	if !ok {
		return
	}

	if _, ok := ms.requireMembership(msg, meeting.CompanyId); !ok {
		return
	}

	record, err := ms.db.UpsertAttendance(database.UpsertAttendanceParams{
		MeetingId: meeting.Id,
		AccountId: c.user.Id,
		Present:   msg.Attendance.Present,
	})
	if err != nil {
		ms.log.Println("UpsertAttendance:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}

	ms.broadcastToRoom(meeting.ExternalId, &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Event: &Event{
			AttendanceUpdated: &AttendanceUpdated{
				MeetingId: meeting.ExternalId,
				UserId:    record.AccountId,
				Present:   record.Present,
			},
		},
	})

	c.queueMessage(NoErrOK(msg.Id, nil))
}

// handleStatus transitions the meeting state machine. It requires an
// elevated role, and only the legal transitions are accepted:
// SCHEDULED may start or cancel, IN_PROGRESS may complete.
func (ms *MeetingServer) handleStatus(msg *ClientMessage) {
	c := msg.client
	if !ms.authenticated(msg) {
		return
	}

	if !msg.Status.Status.Valid() {
		c.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	meeting, ok := ms.lookupMeeting(msg, msg.Status.MeetingId)
	if !ok {
		return
	}

	membership, ok := ms.requireMembership(msg, meeting.CompanyId)
	if !ok {
		return
	}

	if !membership.Role.CanManageMeeting() {
		c.queueMessage(ErrInsufficientRole(msg.Id))
		return
	}

	if !meeting.Status.CanTransitionTo(msg.Status.Status) {
		c.queueMessage(ErrInvalidTransition(msg.Id))
		return
	}

	updated, err := ms.db.UpdateMeetingStatus(meeting.Id, msg.Status.Status)
	if err != nil {
		ms.log.Println("UpdateMeetingStatus:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}

	ms.broadcastToRoom(updated.ExternalId, &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Event: &Event{
			StatusUpdated: &StatusUpdated{
				MeetingId: updated.ExternalId,
				Status:    updated.Status,
				UpdatedAt: updated.UpdatedAt,
			},
		},
	})

	c.queueMessage(NoErrOK(msg.Id, map[string]any{
		"meeting": meetingToWire(updated),
	}))
}

func (ms *MeetingServer) authenticated(msg *ClientMessage) bool {
	if msg.client.user.Id == 0 {
		msg.client.queueMessage(ErrNotAuthenticated(msg.Id))
		return false
	}
	return true
}

func (ms *MeetingServer) lookupMeeting(msg *ClientMessage, externalId string) (database.Meeting, bool) {
	meeting, err := ms.db.GetMeetingByExternalId(externalId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			msg.client.queueMessage(ErrNotFound(msg.Id, "meeting"))
		} else {
			ms.log.Println("GetMeetingByExternalId:", err)
			msg.client.queueMessage(ErrInternalError(msg.Id))
		}
		return database.Meeting{}, false
	}

	return meeting, true
}

// requireMembership verifies the caller belongs to the company that
// owns the meeting. A missing membership row is an access-denied, not
// a not-found: non-members learn nothing about the company's records.
func (ms *MeetingServer) requireMembership(msg *ClientMessage, companyId int) (database.Membership, bool) {
	membership, err := ms.db.GetMembership(msg.client.user.Id, companyId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			msg.client.queueMessage(ErrAccessDenied(msg.Id))
		} else {
			ms.log.Println("GetMembership:", err)
			msg.client.queueMessage(ErrInternalError(msg.Id))
		}
		return database.Membership{}, false
	}

	return membership, true
}

func voteToWire(v database.Vote) types.Vote {
	return types.Vote{
		Id:         v.Id,
		DecisionId: v.DecisionId,
		VoterId:    v.VoterId,
		Value:      v.Value,
		CreatedAt:  v.CreatedAt,
		UpdatedAt:  v.UpdatedAt,
	}
}

func meetingToWire(m database.Meeting) types.Meeting {
	return types.Meeting{
		Id:          m.Id,
		ExternalId:  m.ExternalId,
		CompanyId:   m.CompanyId,
		Title:       m.Title,
		Status:      m.Status,
		ScheduledAt: m.ScheduledAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
