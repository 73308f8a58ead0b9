package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quorumhq/boardroom/internal/stats"
	"github.com/quorumhq/boardroom/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 1024
)

// Client is one authenticated websocket connection. The user and
// session id are attached before the connection is registered; an
// unverified socket never reaches this type.
type Client struct {
	conn         *websocket.Conn
	server       *MeetingServer
	log          *log.Logger
	stats        stats.StatsProvider
	user         types.User
	sessionId    string
	send         chan *ServerMessage
	meetings     map[string]struct{}
	meetingsLock sync.RWMutex
	stop         chan struct{}
}

func NewClient(user types.User, sessionId string, conn *websocket.Conn, ms *MeetingServer, l *log.Logger, sp stats.StatsProvider) *Client {
	return &Client{
		conn:      conn,
		server:    ms,
		log:       l,
		stats:     sp,
		user:      user,
		sessionId: sessionId,
		send:      make(chan *ServerMessage, 256),
		meetings:  make(map[string]struct{}),
		stop:      make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := serializeMessage(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		msg.client = c
		msg.UserId = c.user.Id
		msg.Timestamp = Now()

		c.dispatch(&msg)
	}
}

// dispatch routes one inbound event to its gateway handler. Handlers
// run on the read goroutine, so a single connection's events are
// processed strictly in arrival order.
func (c *Client) dispatch(msg *ClientMessage) {
	select {
	case <-c.stop:
		// the connection is being torn down and its rooms are gone or
		// going, so the event cannot be honored
		c.queueMessage(ErrServiceUnavailable(msg.Id))
		return
	default:
	}

	switch {
	case msg.Join != nil:
		c.server.handleJoin(msg)
	case msg.Leave != nil:
		c.server.handleLeave(msg)
	case msg.Vote != nil:
		c.server.handleVote(msg)
	case msg.Attendance != nil:
		c.server.handleAttendance(msg)
	case msg.Status != nil:
		c.server.handleStatus(msg)
	default:
		c.queueMessage(ErrInvalidMessage(msg.Id))
	}
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Println("failed to send message to client, channel is full")
		return false
	}

	return true
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	close(c.stop)
}

// cleanup runs on every disconnect path. Deregistration removes the
// connection from every room it joined, so no stale presence survives
// a tab close, crash, or network drop.
func (c *Client) cleanup() {
	select {
	case c.server.deRegisterChan <- c:
		c.stopClient()
	case <-c.stop:
		// the server stopped this client during shutdown and has
		// already exited its run loop
	}
}

func (c *Client) addMeeting(meetingId string) {
	c.meetingsLock.Lock()
	defer c.meetingsLock.Unlock()

	c.meetings[meetingId] = struct{}{}
}

func (c *Client) delMeeting(meetingId string) {
	c.meetingsLock.Lock()
	defer c.meetingsLock.Unlock()

	delete(c.meetings, meetingId)
}

func (c *Client) hasMeeting(meetingId string) bool {
	c.meetingsLock.RLock()
	defer c.meetingsLock.RUnlock()

	_, ok := c.meetings[meetingId]
	return ok
}

// joinedMeetings returns a snapshot of the meeting ids this connection
// has joined.
func (c *Client) joinedMeetings() []string {
	c.meetingsLock.RLock()
	defer c.meetingsLock.RUnlock()

	ids := make([]string, 0, len(c.meetings))
	for id := range c.meetings {
		ids = append(ids, id)
	}
	return ids
}
