package service

import (
	"sort"
	"sync"
	"time"

	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/domain"
)

// TypingWindow is how long a typing signal stays visible after its most
// recent refresh. There is no explicit "stopped typing" event; expiry is
// the only way out.
const TypingWindow = 2000 * time.Millisecond

type typingKey struct {
	room   string
	sender string
}

// TypingTracker keeps a time-bounded set of currently-typing peers per
// room. One timer per key, reset on refresh rather than stacked.
type TypingTracker struct {
	selfID string
	window time.Duration
	bus    domain.EventBus

	mu     sync.Mutex
	timers map[typingKey]*time.Timer
	closed bool
}

func NewTypingTracker(selfID string, window time.Duration, bus domain.EventBus) *TypingTracker {
	if window <= 0 {
		window = TypingWindow
	}
	return &TypingTracker{
		selfID: selfID,
		window: window,
		bus:    bus,
		timers: make(map[typingKey]*time.Timer),
	}
}

// Observe inserts or refreshes the signal for (room, sender). Signals
// from the current user are dropped; the indicator never shows one's own
// typing.
func (t *TypingTracker) Observe(roomName, senderID string) {
	if senderID == "" || senderID == t.selfID {
		return
	}

	key := typingKey{room: roomName, sender: senderID}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	if timer, ok := t.timers[key]; ok {
		timer.Reset(t.window)
		t.mu.Unlock()
		return
	}
	t.timers[key] = time.AfterFunc(t.window, func() { t.expire(key) })
	t.mu.Unlock()

	if t.bus != nil {
		t.bus.Publish(domain.TypingEvent{
			RoomName:  roomName,
			SenderID:  senderID,
			EventTime: time.Now(),
		})
	}
}

func (t *TypingTracker) expire(key typingKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.timers, key)
}

// IsTyping reports whether any peer has a non-expired signal in the room.
func (t *TypingTracker) IsTyping(roomName string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key := range t.timers {
		if key.room == roomName {
			return true
		}
	}
	return false
}

// Peers returns the peers currently typing in the room, sorted.
func (t *TypingTracker) Peers(roomName string) []string {
	t.mu.Lock()
	var peers []string
	for key := range t.timers {
		if key.room == roomName {
			peers = append(peers, key.sender)
		}
	}
	t.mu.Unlock()

	sort.Strings(peers)
	return peers
}

// Close stops every pending timer. Further observations are dropped.
func (t *TypingTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for key, timer := range t.timers {
		timer.Stop()
		delete(t.timers, key)
	}
}
