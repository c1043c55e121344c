package service

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/channel"
	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/domain"
	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/logger"
)

// RoomMembership issues one join per connection room. Joins requested
// while the channel is down are queued and flushed exactly once, on the
// next connect, through a single-shot subscription that is always
// deregistered on Close whether or not it fired.
type RoomMembership struct {
	ch  Channel
	log zerolog.Logger

	mu         sync.Mutex
	joined     map[string]struct{}
	pending    map[string]channel.JoinRoomPayload
	offConnect func()
	closed     bool
}

func NewRoomMembership(ch Channel) *RoomMembership {
	return &RoomMembership{
		ch:      ch,
		log:     logger.Module("membership"),
		joined:  make(map[string]struct{}),
		pending: make(map[string]channel.JoinRoomPayload),
	}
}

// EnsureJoined requests membership for every room derived from the given
// connections. Rooms already joined or queued this session are suppressed,
// so repeated calls emit at most one join per room.
func (m *RoomMembership) EnsureJoined(conns []domain.Connection) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}

	var batch []channel.JoinRoomPayload
	connected := m.ch.Connected()
	for i := range conns {
		room := conns[i].Room()
		if _, ok := m.joined[room]; ok {
			continue
		}
		if _, ok := m.pending[room]; ok {
			continue
		}

		payload := channel.JoinRoomPayload{ConnectionID: conns[i].ID, RoomName: room}
		if connected {
			m.joined[room] = struct{}{}
			batch = append(batch, payload)
		} else {
			m.pending[room] = payload
		}
	}

	if len(m.pending) > 0 && m.offConnect == nil {
		m.offConnect = m.ch.Once(channel.EventConnect, func(json.RawMessage) { m.flush() })
	}
	m.mu.Unlock()

	for _, p := range batch {
		m.join(p)
	}
}

// flush moves every queued join onto the wire. The connect registration
// is cleared first: it has been consumed and must not fire again.
func (m *RoomMembership) flush() {
	m.mu.Lock()
	m.offConnect = nil
	batch := make([]channel.JoinRoomPayload, 0, len(m.pending))
	for room, p := range m.pending {
		m.joined[room] = struct{}{}
		batch = append(batch, p)
		delete(m.pending, room)
	}
	m.mu.Unlock()

	for _, p := range batch {
		m.join(p)
	}
}

func (m *RoomMembership) join(p channel.JoinRoomPayload) {
	if err := m.ch.Emit(channel.EventJoinPrivateRoom, p); err != nil {
		joinErr := &ChannelJoinError{RoomName: p.RoomName, Err: err}
		m.log.Warn().Err(joinErr).Str("room", p.RoomName).Msg("join failed")

		// Retry happens on the next directory reload, not automatically.
		m.mu.Lock()
		delete(m.joined, p.RoomName)
		m.mu.Unlock()
	}
}

// Joined reports whether a join has been issued for the room this session.
func (m *RoomMembership) Joined(roomName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.joined[roomName]
	return ok
}

// Reset forgets issued joins. Server-side membership is per socket, so
// the sync layer calls this when the channel drops.
func (m *RoomMembership) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.joined = make(map[string]struct{})
}

// Close deregisters the pending connect subscription, fired or not, and
// stops accepting requests. Safe across remounts of the consuming view.
func (m *RoomMembership) Close() {
	m.mu.Lock()
	off := m.offConnect
	m.offConnect = nil
	m.closed = true
	m.mu.Unlock()

	if off != nil {
		off()
	}
}
