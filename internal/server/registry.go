package server

import (
	"sort"
	"sync"
)

// RoomRegistry tracks which users are currently live in which meeting.
// It is process-local and rebuilt empty on restart: it answers "who is
// connected right now", never roll-call attendance. In a horizontally
// scaled deployment each process holds only its own shard of presence.
//
// Presence is counted per connection, so a user with two tabs open
// stays present until the last one leaves.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]map[int]int
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms: make(map[string]map[int]int),
	}
}

// Join records one connection for userId in the meeting's room and
// reports whether this is the user's first live connection there.
func (r *RoomRegistry) Join(meetingId string, userId int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[meetingId]
	if !ok {
		room = make(map[int]int)
		r.rooms[meetingId] = room
	}

	room[userId]++
	return room[userId] == 1
}

// Leave drops one connection for userId and reports whether the user
// now has no remaining connections in the room. Leaving a room the
// user never joined is a no-op.
func (r *RoomRegistry) Leave(meetingId string, userId int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[meetingId]
	if !ok {
		return false
	}

	if _, ok := room[userId]; !ok {
		return false
	}

	room[userId]--
	if room[userId] > 0 {
		return false
	}

	delete(room, userId)
	if len(room) == 0 {
		delete(r.rooms, meetingId)
	}
	return true
}

// MembersOf returns a sorted snapshot of the user ids live in the
// meeting's room.
func (r *RoomRegistry) MembersOf(meetingId string) []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[meetingId]
	members := make([]int, 0, len(room))
	for userId := range room {
		members = append(members, userId)
	}

	sort.Ints(members)
	return members
}

// NumRooms returns the number of rooms with at least one live user.
func (r *RoomRegistry) NumRooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms)
}
