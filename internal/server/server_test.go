package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/quorumhq/boardroom/internal/database"
	"github.com/quorumhq/boardroom/internal/stats"
	"github.com/quorumhq/boardroom/internal/testutil"
	"github.com/quorumhq/boardroom/internal/types"
)

// newTestMeetingServer creates a MeetingServer instance for testing purposes
func newTestMeetingServer(t *testing.T, db database.BoardRepository, su *stats.MockStatsUpdater) *MeetingServer {
	su.On("RegisterMetric", mock.Anything).Return(nil).Times(4)

	logger := testutil.TestLogger(t)
	ms, err := NewMeetingServer(logger, db, su)
	if err != nil {
		t.Fatalf("failed to create test MeetingServer: %v", err)
	}
	return ms
}

func newTestClient(t *testing.T, ms *MeetingServer, user types.User) *Client {
	return &Client{
		server:   ms,
		log:      testutil.TestLogger(t),
		user:     user,
		send:     make(chan *ServerMessage, 16),
		meetings: make(map[string]struct{}),
		stop:     make(chan struct{}),
	}
}

// expectMessage pops the next queued message off the client's send
// channel, failing the test if none was queued.
func expectMessage(t *testing.T, c *Client) *ServerMessage {
	t.Helper()
	select {
	case msg := <-c.send:
		assert.NotNil(t, msg, "expected queued message to be non-nil")
		return msg
	default:
		t.Fatal("expected message to be queued to client, but none was sent")
		return nil
	}
}

func expectNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Fatalf("expected no message to be queued to client, got %+v", msg)
	default:
	}
}

func TestNewMeetingServer(t *testing.T) {
	db := &database.MockBoardRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("RegisterMetric", mock.Anything).Return(nil).Times(4)

	logger := testutil.TestLogger(t)
	ms, err := NewMeetingServer(logger, db, su)
	assert.NoError(t, err, "expected no error creating MeetingServer")
	assert.NotNil(t, ms, "expected MeetingServer to be non-nil")
	assert.Equal(t, logger, ms.log, "expected logger to be set")
	assert.Equal(t, db, ms.db, "expected database repository to be set")
	assert.NotNil(t, ms.registry, "expected registry to be initialized")
	assert.NotNil(t, ms.clients, "expected clients map to be initialized")
	assert.NotNil(t, ms.rooms, "expected rooms map to be initialized")
	assert.NotNil(t, ms.RegisterChan, "expected RegisterChan to be initialized")
	assert.NotNil(t, ms.deRegisterChan, "expected deRegisterChan to be initialized")
	assert.NotNil(t, ms.stop, "expected stop channel to be initialized")
}

func TestMeetingServerShutdown(t *testing.T) {
	t.Run("successful shutdown", func(t *testing.T) {
		ms := newTestMeetingServer(t, &database.MockBoardRepository{}, &stats.MockStatsUpdater{})

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		go func() {
			select {
			case req := <-ms.stop:
				assert.NotNil(t, req.done, "expected done channel in stop request")
				close(req.done)
			case <-time.After(100 * time.Millisecond):
				t.Error("expected signal on stop chan")
			}
		}()

		err := ms.Shutdown(ctx)
		assert.NoError(t, err, "expected successful shutdown without error")
	})

	t.Run("fails with context deadline exceeded", func(t *testing.T) {
		ms := newTestMeetingServer(t, &database.MockBoardRepository{}, &stats.MockStatsUpdater{})

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		go func() {
			select {
			case <-ms.stop:
				// do not close req.done to simulate a hang
			case <-time.After(100 * time.Millisecond):
				t.Error("expected signal on stop chan")
			}
		}()

		err := ms.Shutdown(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded, "expected context deadline exceeded error, got %v", err)
	})
}

func TestMeetingServerShutdown_Integration(t *testing.T) {
	t.Run("successful shutdown with no clients", func(t *testing.T) {
		ms := newTestMeetingServer(t, &database.MockBoardRepository{}, &stats.MockStatsUpdater{})
		go ms.Run()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		err := ms.Shutdown(ctx)
		assert.NoError(t, err, "expected successful shutdown without error")
	})

	t.Run("successful shutdown with connected clients", func(t *testing.T) {
		su := &stats.MockStatsUpdater{}
		su.On("Incr", "NumConnections").Once()
		defer su.AssertExpectations(t)

		ms := newTestMeetingServer(t, &database.MockBoardRepository{}, su)
		go ms.Run()

		client := newTestClient(t, ms, types.User{Id: 1, Username: "testuser"})
		ms.RegisterClient(client)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		err := ms.Shutdown(ctx)
		assert.NoError(t, err, "expected successful shutdown with connected clients")

		select {
		case <-client.stop:
			// client was stopped during shutdown
		case <-time.After(100 * time.Millisecond):
			t.Error("expected client to be stopped during shutdown")
		}
	})
}

func TestMeetingServer_addClient_removeClient(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", "NumConnections").Once()
	su.On("Decr", "NumConnections").Once()
	defer su.AssertExpectations(t)

	ms := newTestMeetingServer(t, &database.MockBoardRepository{}, su)
	client := newTestClient(t, ms, types.User{Id: 1, Username: "testuser"})

	ms.addClient(client)
	assert.Len(t, ms.clients, 1, "expected 1 client after adding")
	assert.Contains(t, ms.clients, client, "expected client to be added to clients map")

	ms.removeClient(client)
	assert.Len(t, ms.clients, 0, "expected 0 clients after removing")
	assert.NotContains(t, ms.clients, client, "expected client to be removed from clients map")
}

func TestMeetingServer_removeClient_unknownClient(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)

	ms := newTestMeetingServer(t, &database.MockBoardRepository{}, su)
	client := newTestClient(t, ms, types.User{Id: 1, Username: "testuser"})

	// no Decr expected for a client that was never added
	ms.removeClient(client)
	assert.Len(t, ms.clients, 0, "expected clients map to remain empty")
}

func TestMeetingServer_removeClient_leavesJoinedRooms(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", "NumConnections").Twice()
	su.On("Decr", "NumConnections").Once()
	su.On("Incr", "NumLiveMeetings").Twice()
	su.On("Decr", "NumLiveMeetings").Once()
	// mtg2 empties before the attendee_left broadcast, so only the
	// mtg1 broadcast reaches a room
	su.On("Incr", "NumEventsBroadcast").Once()
	defer su.AssertExpectations(t)

	ms := newTestMeetingServer(t, &database.MockBoardRepository{}, su)
	leaver := newTestClient(t, ms, types.User{Id: 1, Username: "leaver"})
	watcher := newTestClient(t, ms, types.User{Id: 2, Username: "watcher"})

	ms.addClient(leaver)
	ms.addClient(watcher)

	// leaver is in two rooms, watcher only observes the first
	for _, meetingId := range []string{"mtg1", "mtg2"} {
		ms.addToRoom(leaver, meetingId)
		ms.registry.Join(meetingId, leaver.user.Id)
		leaver.addMeeting(meetingId)
	}
	ms.addToRoom(watcher, "mtg1")
	ms.registry.Join("mtg1", watcher.user.Id)
	watcher.addMeeting("mtg1")

	ms.removeClient(leaver)

	assert.Empty(t, leaver.joinedMeetings(), "expected leaver to have no joined meetings")
	assert.Equal(t, []int{2}, ms.registry.MembersOf("mtg1"), "expected only watcher to remain in mtg1")
	assert.Empty(t, ms.registry.MembersOf("mtg2"), "expected mtg2 to be empty")

	msg := expectMessage(t, watcher)
	assert.NotNil(t, msg.Event, "expected event message")
	assert.NotNil(t, msg.Event.AttendeeLeft, "expected attendee_left event")
	assert.Equal(t, "mtg1", msg.Event.AttendeeLeft.MeetingId, "expected attendee_left for mtg1")
	assert.Equal(t, leaver.user.Id, msg.Event.AttendeeLeft.UserId, "expected attendee_left for leaver")
}

func TestMeetingServer_leaveRoom_notLastConnection(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", "NumLiveMeetings").Once()
	defer su.AssertExpectations(t)

	ms := newTestMeetingServer(t, &database.MockBoardRepository{}, su)
	tab1 := newTestClient(t, ms, types.User{Id: 1, Username: "testuser"})
	tab2 := newTestClient(t, ms, types.User{Id: 1, Username: "testuser"})

	for _, c := range []*Client{tab1, tab2} {
		ms.addToRoom(c, "mtg1")
		ms.registry.Join("mtg1", c.user.Id)
		c.addMeeting("mtg1")
	}

	// closing one of two tabs must not broadcast attendee_left
	ms.leaveRoom(tab1, "mtg1")
	expectNoMessage(t, tab2)
	assert.Equal(t, []int{1}, ms.registry.MembersOf("mtg1"), "expected user still present via second tab")
}

func TestMeetingServer_addToRoom_removeFromRoom(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", "NumLiveMeetings").Once()
	su.On("Decr", "NumLiveMeetings").Once()
	defer su.AssertExpectations(t)

	ms := newTestMeetingServer(t, &database.MockBoardRepository{}, su)
	client1 := newTestClient(t, ms, types.User{Id: 1})
	client2 := newTestClient(t, ms, types.User{Id: 2})

	ms.addToRoom(client1, "mtg1")
	ms.addToRoom(client2, "mtg1")
	assert.Len(t, ms.rooms["mtg1"], 2, "expected 2 connections in room")

	ms.removeFromRoom(client1, "mtg1")
	assert.Len(t, ms.rooms["mtg1"], 1, "expected 1 connection after removal")

	ms.removeFromRoom(client2, "mtg1")
	assert.NotContains(t, ms.rooms, "mtg1", "expected empty room to be dropped")

	// removing from an unknown room is a no-op
	ms.removeFromRoom(client1, "nosuchroom")
}

func TestMeetingServer_broadcastToRoom(t *testing.T) {
	t.Run("broadcast to all members", func(t *testing.T) {
		su := &stats.MockStatsUpdater{}
		su.On("Incr", "NumLiveMeetings").Once()
		su.On("Incr", "NumEventsBroadcast").Once()
		defer su.AssertExpectations(t)

		ms := newTestMeetingServer(t, &database.MockBoardRepository{}, su)
		client1 := newTestClient(t, ms, types.User{Id: 1})
		client2 := newTestClient(t, ms, types.User{Id: 2})
		ms.addToRoom(client1, "mtg1")
		ms.addToRoom(client2, "mtg1")

		msg := &ServerMessage{
			BaseMessage: BaseMessage{Timestamp: Now()},
			Event:       &Event{AttendanceUpdated: &AttendanceUpdated{MeetingId: "mtg1", UserId: 1, Present: true}},
		}
		ms.broadcastToRoom("mtg1", msg)

		assert.Equal(t, msg, expectMessage(t, client1), "expected message queued to client1")
		assert.Equal(t, msg, expectMessage(t, client2), "expected message queued to client2")
	})

	t.Run("broadcast skips the originating client", func(t *testing.T) {
		su := &stats.MockStatsUpdater{}
		su.On("Incr", "NumLiveMeetings").Once()
		su.On("Incr", "NumEventsBroadcast").Once()
		defer su.AssertExpectations(t)

		ms := newTestMeetingServer(t, &database.MockBoardRepository{}, su)
		client1 := newTestClient(t, ms, types.User{Id: 1})
		client2 := newTestClient(t, ms, types.User{Id: 2})
		ms.addToRoom(client1, "mtg1")
		ms.addToRoom(client2, "mtg1")

		msg := &ServerMessage{
			BaseMessage: BaseMessage{Timestamp: Now()},
			Event:       &Event{AttendeeJoined: &AttendeeJoined{MeetingId: "mtg1", UserId: 1}},
			SkipClient:  client1,
		}
		ms.broadcastToRoom("mtg1", msg)

		expectNoMessage(t, client1)
		assert.Equal(t, msg, expectMessage(t, client2), "expected message queued to client2")
	})

	t.Run("broadcast to unknown room is a no-op", func(t *testing.T) {
		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)

		ms := newTestMeetingServer(t, &database.MockBoardRepository{}, su)
		ms.broadcastToRoom("nosuchroom", &ServerMessage{})
	})
}

func TestMeetingServerRegisterClient(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", "NumConnections").Once()
	defer su.AssertExpectations(t)

	ms := newTestMeetingServer(t, &database.MockBoardRepository{}, su)
	go ms.Run()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, ms.Shutdown(ctx), "expected clean shutdown")
	}()

	client := newTestClient(t, ms, types.User{Id: 1, Username: "testuser"})
	ms.RegisterClient(client)

	assert.Eventually(t, func() bool {
		ms.clientsLock.Lock()
		defer ms.clientsLock.Unlock()
		_, ok := ms.clients[client]
		return ok
	}, time.Second, 10*time.Millisecond, "expected client to be registered")
}
