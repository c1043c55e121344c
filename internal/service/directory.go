package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/api"
	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/domain"
	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/logger"
	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/repository"
)

// directoryAPI is the slice of the HTTP client the directory needs.
type directoryAPI interface {
	Connections(ctx context.Context, session domain.Session) (*api.DirectoryPayload, error)
	UnreadCounts(ctx context.Context, session domain.Session) (map[string]int, error)
}

// ConnectionDirectory holds the current user's connection list and its
// unread counts. Every load replaces the list wholesale; callers
// re-derive room membership afterwards. It never retries; refresh is the
// caller's pull-to-refresh decision.
type ConnectionDirectory struct {
	api  directoryAPI
	repo repository.ConnectionRepository
	bus  domain.EventBus
	log  zerolog.Logger

	mu    sync.Mutex
	conns []domain.Connection
}

func NewConnectionDirectory(apiClient directoryAPI, repo repository.ConnectionRepository, bus domain.EventBus) *ConnectionDirectory {
	return &ConnectionDirectory{
		api:  apiClient,
		repo: repo,
		bus:  bus,
		log:  logger.Module("directory"),
	}
}

// Load fetches the directory and the aggregate unread counts. AuthError
// and NetworkError propagate untouched; a failure of the counts endpoint
// alone is non-fatal because the directory payload carries its own map.
func (d *ConnectionDirectory) Load(ctx context.Context, session domain.Session) ([]domain.Connection, map[string]int, error) {
	payload, err := d.api.Connections(ctx, session)
	if err != nil {
		return nil, nil, err
	}

	unread := make(map[string]int, len(payload.UnreadByRoom))
	for room, n := range payload.UnreadByRoom {
		unread[room] = n
	}
	if counts, err := d.api.UnreadCounts(ctx, session); err != nil {
		d.log.Warn().Err(err).Msg("unread counts fetch failed, using directory payload")
	} else {
		for room, n := range counts {
			unread[room] = n
		}
	}

	conns := make([]domain.Connection, 0, len(payload.Connections))
	for _, p := range payload.Connections {
		c := domain.Connection{
			ID:              p.ConnectionID,
			PeerUserID:      p.PartnerID,
			PeerName:        p.PartnerName,
			PeerAvatarURL:   p.Avatar,
			Status:          domain.ConnectionStatus(p.Status),
			RoomName:        p.RoomName,
			LastMessageText: p.LastMessageText,
			LastMessageTime: p.LastMessageAt,
			CreatedAt:       p.CreatedAt,
		}
		c.UnreadCount = unread[c.Room()]
		conns = append(conns, c)
	}
	sortConnections(conns)

	d.mu.Lock()
	d.conns = conns
	d.mu.Unlock()

	if err := d.repo.ReplaceAll(ctx, conns); err != nil {
		d.log.Warn().Err(err).Msg("failed to cache directory")
	}

	d.publishUpdate(conns)
	return d.snapshot(), unread, nil
}

// ApplyInbound updates a connection's preview after a new message and
// resorts so higher-unread rooms surface first.
func (d *ConnectionDirectory) ApplyInbound(roomName, text string, at time.Time, unread map[string]int) {
	d.mu.Lock()
	for i := range d.conns {
		if d.conns[i].Room() == roomName {
			d.conns[i].LastMessageText = text
			d.conns[i].LastMessageTime = at
			break
		}
	}
	d.applyCountsLocked(unread)
	conns := d.snapshotLocked()
	d.mu.Unlock()

	d.publishUpdate(conns)
}

// ApplyUnread resorts the directory under new unread counts, e.g. after
// a room is opened and zeroed.
func (d *ConnectionDirectory) ApplyUnread(unread map[string]int) {
	d.mu.Lock()
	d.applyCountsLocked(unread)
	conns := d.snapshotLocked()
	d.mu.Unlock()

	d.publishUpdate(conns)
}

func (d *ConnectionDirectory) applyCountsLocked(unread map[string]int) {
	for i := range d.conns {
		d.conns[i].UnreadCount = unread[d.conns[i].Room()]
	}
	sortConnections(d.conns)
}

// Connections returns the current sorted snapshot.
func (d *ConnectionDirectory) Connections() []domain.Connection {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

// ByRoom finds the connection owning the given room.
func (d *ConnectionDirectory) ByRoom(roomName string) (*domain.Connection, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.conns {
		if d.conns[i].Room() == roomName {
			c := d.conns[i]
			return &c, true
		}
	}
	return nil, false
}

func (d *ConnectionDirectory) snapshot() []domain.Connection {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

func (d *ConnectionDirectory) snapshotLocked() []domain.Connection {
	out := make([]domain.Connection, len(d.conns))
	copy(out, d.conns)
	return out
}

func (d *ConnectionDirectory) publishUpdate(conns []domain.Connection) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(domain.DirectoryUpdatedEvent{
		Connections: conns,
		EventTime:   time.Now(),
	})
}

// sortConnections orders by unread count descending, then most recent
// message, then connection id. The triple makes the order total, so
// repeated resorts are stable.
func sortConnections(conns []domain.Connection) {
	sort.SliceStable(conns, func(i, j int) bool {
		if conns[i].UnreadCount != conns[j].UnreadCount {
			return conns[i].UnreadCount > conns[j].UnreadCount
		}
		if !conns[i].LastMessageTime.Equal(conns[j].LastMessageTime) {
			return conns[i].LastMessageTime.After(conns[j].LastMessageTime)
		}
		return conns[i].ID < conns[j].ID
	})
}
