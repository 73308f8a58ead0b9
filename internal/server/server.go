package server

import (
	"context"
	"log"
	"sync"

	"github.com/quorumhq/boardroom/internal/database"
	"github.com/quorumhq/boardroom/internal/stats"
)

const (
	metricNumConnections     = "NumConnections"
	metricNumLiveMeetings    = "NumLiveMeetings"
	metricNumVotesCast       = "NumVotesCast"
	metricNumEventsBroadcast = "NumEventsBroadcast"
)

type stopReq struct {
	done chan struct{}
}

// MeetingServer is the live-meeting gateway: it owns the connected
// client set, the room registry, and the per-meeting broadcast groups,
// and executes every room-scoped event against the database.
type MeetingServer struct {
	log            *log.Logger
	db             database.BoardRepository
	stats          stats.StatsProvider
	registry       *RoomRegistry
	clients        map[*Client]struct{}
	clientsLock    sync.Mutex
	rooms          map[string]map[*Client]struct{}
	roomsLock      sync.RWMutex
	RegisterChan   chan *Client
	deRegisterChan chan *Client
	stop           chan stopReq
}

func NewMeetingServer(logger *log.Logger, db database.BoardRepository, sp stats.StatsProvider) (*MeetingServer, error) {
	ms := &MeetingServer{
		log:            logger,
		db:             db,
		stats:          sp,
		registry:       NewRoomRegistry(),
		clients:        make(map[*Client]struct{}),
		rooms:          make(map[string]map[*Client]struct{}),
		RegisterChan:   make(chan *Client),
		deRegisterChan: make(chan *Client),
		stop:           make(chan stopReq),
	}

	sp.RegisterMetric(metricNumConnections)
	sp.RegisterMetric(metricNumLiveMeetings)
	sp.RegisterMetric(metricNumVotesCast)
	sp.RegisterMetric(metricNumEventsBroadcast)

	return ms, nil
}

func (ms *MeetingServer) Run() {
	for {
		select {
		case client := <-ms.RegisterChan:
			ms.log.Printf("adding connection from %q", client.user.Username)
			ms.addClient(client)
		case client := <-ms.deRegisterChan:
			ms.log.Printf("removing connection from %q", client.user.Username)
			ms.removeClient(client)
		case req := <-ms.stop:
			ms.log.Println("closing client connections")
			ms.clientsLock.Lock()
			for c := range ms.clients {
				c.stopClient()
			}
			ms.clientsLock.Unlock()

			close(req.done)
			return
		}
	}
}

func (ms *MeetingServer) RegisterClient(c *Client) {
	ms.RegisterChan <- c
}

func (ms *MeetingServer) addClient(c *Client) {
	ms.clientsLock.Lock()
	defer ms.clientsLock.Unlock()
	ms.clients[c] = struct{}{}
	ms.stats.Incr(metricNumConnections)
}

// removeClient tears down a disconnected client: it is dropped from
// the client set and from every room it joined, broadcasting
// attendee_left wherever its user's presence ended.
func (ms *MeetingServer) removeClient(c *Client) {
	ms.clientsLock.Lock()
	if _, ok := ms.clients[c]; !ok {
		ms.clientsLock.Unlock()
		return
	}
	delete(ms.clients, c)
	ms.clientsLock.Unlock()
	ms.stats.Decr(metricNumConnections)

	for _, meetingId := range c.joinedMeetings() {
		ms.leaveRoom(c, meetingId)
	}
}

// leaveRoom removes one connection from a room and, when it was the
// user's last connection there, tells the remaining members.
func (ms *MeetingServer) leaveRoom(c *Client, meetingId string) {
	ms.removeFromRoom(c, meetingId)
	c.delMeeting(meetingId)

	if last := ms.registry.Leave(meetingId, c.user.Id); last {
		ms.broadcastToRoom(meetingId, &ServerMessage{
			BaseMessage: BaseMessage{Timestamp: Now()},
			Event: &Event{
				AttendeeLeft: &AttendeeLeft{
					MeetingId: meetingId,
					UserId:    c.user.Id,
				},
			},
		})
	}
}

func (ms *MeetingServer) addToRoom(c *Client, meetingId string) {
	ms.roomsLock.Lock()
	defer ms.roomsLock.Unlock()

	room, ok := ms.rooms[meetingId]
	if !ok {
		room = make(map[*Client]struct{})
		ms.rooms[meetingId] = room
		ms.stats.Incr(metricNumLiveMeetings)
	}
	room[c] = struct{}{}
}

func (ms *MeetingServer) removeFromRoom(c *Client, meetingId string) {
	ms.roomsLock.Lock()
	defer ms.roomsLock.Unlock()

	room, ok := ms.rooms[meetingId]
	if !ok {
		return
	}

	delete(room, c)
	if len(room) == 0 {
		delete(ms.rooms, meetingId)
		ms.stats.Decr(metricNumLiveMeetings)
	}
}

// broadcastToRoom queues msg for every connection in the room, except
// msg.SkipClient when set.
func (ms *MeetingServer) broadcastToRoom(meetingId string, msg *ServerMessage) {
	ms.roomsLock.RLock()
	defer ms.roomsLock.RUnlock()

	room, ok := ms.rooms[meetingId]
	if !ok {
		return
	}

	for client := range room {
		if client == msg.SkipClient {
			continue
		}

		client.queueMessage(msg)
	}

	ms.stats.Incr(metricNumEventsBroadcast)
}

func (ms *MeetingServer) Shutdown(ctx context.Context) error {
	req := stopReq{done: make(chan struct{})}

	select {
	case ms.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
