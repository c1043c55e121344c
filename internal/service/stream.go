package service

import (
	"sync"

	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/domain"
)

// RoomState tracks a room's position in the Closed → Joining → Joined
// machine. There is no reverse transition; disconnects are transient from
// the stream's point of view.
type RoomState int

const (
	RoomClosed RoomState = iota
	RoomJoining
	RoomJoined
)

type roomLog struct {
	state RoomState
	msgs  []*domain.Message
}

// MessageStream holds the per-room ordered message logs. Appends follow
// event-arrival order and entries are never reordered; the only in-place
// mutation is the documented optimistic-replace on echo.
type MessageStream struct {
	mu    sync.Mutex
	rooms map[string]*roomLog
}

func NewMessageStream() *MessageStream {
	return &MessageStream{rooms: make(map[string]*roomLog)}
}

func (s *MessageStream) room(name string) *roomLog {
	r, ok := s.rooms[name]
	if !ok {
		r = &roomLog{}
		s.rooms[name] = r
	}
	return r
}

func (s *MessageStream) State(roomName string) RoomState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[roomName]; ok {
		return r.state
	}
	return RoomClosed
}

// MarkJoining records a membership request for the room.
func (s *MessageStream) MarkJoining(roomName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.room(roomName)
	if r.state == RoomClosed {
		r.state = RoomJoining
	}
}

func (s *MessageStream) MarkJoined(roomName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room(roomName).state = RoomJoined
}

// SetBackfill replaces the room's log wholesale with the server's history
// and completes the join.
func (s *MessageStream) SetBackfill(roomName string, msgs []*domain.Message) {
	log := make([]*domain.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Empty() {
			continue
		}
		log = append(log, m)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.room(roomName)
	r.msgs = log
	r.state = RoomJoined
}

// Prime fills an empty room log from the local cache without touching
// the join state. A later backfill still replaces it wholesale.
func (s *MessageStream) Prime(roomName string, msgs []*domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.room(roomName)
	if len(r.msgs) > 0 {
		return
	}
	for _, m := range msgs {
		if m.Empty() {
			continue
		}
		r.msgs = append(r.msgs, m)
	}
}

// Append adds an inbound message to its room's log in arrival order. It
// refuses messages for rooms with no membership and empty bookkeeping
// frames; past entries are never touched.
func (s *MessageStream) Append(msg *domain.Message) bool {
	if msg.Empty() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[msg.RoomName]
	if !ok || r.state == RoomClosed {
		return false
	}
	r.msgs = append(r.msgs, msg)
	return true
}

// AppendLocal adds an optimistic entry at send time, creating the room
// log if the conversation has not been opened yet. The entry is ordered
// exactly like a confirmed message.
func (s *MessageStream) AppendLocal(msg *domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.room(msg.RoomName)
	r.msgs = append(r.msgs, msg)
}

// Reconcile matches an authoritative echo against a pending optimistic
// entry by correlation tag and replaces it in place, keeping its position
// in the log. Returns false when nothing matched; the caller then treats
// the echo as a regular inbound message.
func (s *MessageStream) Reconcile(msg *domain.Message) bool {
	if msg.ClientTag == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[msg.RoomName]
	if !ok {
		return false
	}
	for i, existing := range r.msgs {
		if existing.Pending && existing.ClientTag == msg.ClientTag {
			confirmed := *msg
			confirmed.Pending = false
			confirmed.IsFromMe = true
			r.msgs[i] = &confirmed
			return true
		}
	}
	return false
}

// Messages returns a snapshot copy of the room's log.
func (s *MessageStream) Messages(roomName string) []*domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomName]
	if !ok {
		return nil
	}
	out := make([]*domain.Message, len(r.msgs))
	copy(out, r.msgs)
	return out
}

func (s *MessageStream) Len(roomName string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[roomName]; ok {
		return len(r.msgs)
	}
	return 0
}
