package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/domain"
	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/logger"
	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/repository"
)

// readMarker is the slice of the HTTP client the reconciler needs.
type readMarker interface {
	MarkAsRead(ctx context.Context, session domain.Session, roomName string) error
}

// UnreadReconciler merges server-reported unread counts with locally
// observed message events. Counts are zeroed the moment a room is opened;
// the server-side mark-as-read is fire-and-forget and never rolled back.
type UnreadReconciler struct {
	marker readMarker
	repo   repository.ConnectionRepository
	bus    domain.EventBus
	log    zerolog.Logger

	mu       sync.Mutex
	counts   map[string]int
	openRoom string
}

func NewUnreadReconciler(marker readMarker, repo repository.ConnectionRepository, bus domain.EventBus) *UnreadReconciler {
	return &UnreadReconciler{
		marker: marker,
		repo:   repo,
		bus:    bus,
		log:    logger.Module("unread"),
		counts: make(map[string]int),
	}
}

// Seed replaces the counters with the server's aggregate, typically after
// a directory load.
func (u *UnreadReconciler) Seed(counts map[string]int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.counts = make(map[string]int, len(counts))
	for room, n := range counts {
		if n > 0 {
			u.counts[room] = n
		}
	}
}

// OnInbound bumps the room's counter for a peer message arriving while
// the room is not open. Returns whether the counter changed.
func (u *UnreadReconciler) OnInbound(msg *domain.Message) bool {
	if msg.IsFromMe {
		return false
	}

	u.mu.Lock()
	if msg.RoomName == u.openRoom {
		u.mu.Unlock()
		return false
	}
	u.counts[msg.RoomName]++
	u.mu.Unlock()

	if err := u.repo.IncrementUnreadCount(context.Background(), msg.RoomName); err != nil {
		u.log.Warn().Err(err).Str("room", msg.RoomName).Msg("failed to bump cached unread count")
	}
	return true
}

// OnRoomOpened zeroes the room's counter locally and issues the
// server-side mark-as-read in the background. A failure there is logged
// and accepted; the local zero stands.
func (u *UnreadReconciler) OnRoomOpened(ctx context.Context, session domain.Session, roomName string) {
	u.mu.Lock()
	u.openRoom = roomName
	u.counts[roomName] = 0
	u.mu.Unlock()

	if err := u.repo.UpdateUnreadCount(ctx, roomName, 0); err != nil {
		u.log.Warn().Err(err).Str("room", roomName).Msg("failed to zero cached unread count")
	}

	go func() {
		if err := u.marker.MarkAsRead(context.Background(), session, roomName); err != nil {
			u.log.Warn().Err(err).Str("room", roomName).Msg("mark-as-read failed")
		}
	}()

	if u.bus != nil {
		u.bus.Publish(domain.MessageReadEvent{RoomName: roomName, EventTime: time.Now()})
	}
}

// OnRoomClosed clears the open-room marker so later arrivals count again.
func (u *UnreadReconciler) OnRoomClosed(roomName string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.openRoom == roomName {
		u.openRoom = ""
	}
}

func (u *UnreadReconciler) OpenRoom() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.openRoom
}

func (u *UnreadReconciler) Count(roomName string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.counts[roomName]
}

// Counts returns a snapshot of every non-zero counter.
func (u *UnreadReconciler) Counts() map[string]int {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make(map[string]int, len(u.counts))
	for room, n := range u.counts {
		if n > 0 {
			out[room] = n
		}
	}
	return out
}
