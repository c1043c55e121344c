package service

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/api"
	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/channel"
	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/domain"
)

// fakeChannel implements Channel in-process: emitted frames are recorded
// and server events are injected with fire.
type fakeChannel struct {
	mu        sync.Mutex
	connected bool
	emitErr   error
	emitted   []emittedFrame
	nextID    int
	handlers  map[string][]*fakeHandler
}

type emittedFrame struct {
	event   string
	payload interface{}
}

type fakeHandler struct {
	id   int
	fn   channel.Handler
	once bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{handlers: make(map[string][]*fakeHandler)}
}

func (c *fakeChannel) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	c.fire(channel.EventConnect, nil)
	return nil
}

func (c *fakeChannel) Disconnect() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.fire(channel.EventDisconnect, nil)
}

func (c *fakeChannel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeChannel) Emit(event string, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return channel.ErrNotConnected
	}
	if c.emitErr != nil {
		return c.emitErr
	}
	c.emitted = append(c.emitted, emittedFrame{event: event, payload: payload})
	return nil
}

func (c *fakeChannel) On(event string, h channel.Handler) func() {
	return c.register(event, h, false)
}

func (c *fakeChannel) Once(event string, h channel.Handler) func() {
	return c.register(event, h, true)
}

func (c *fakeChannel) register(event string, h channel.Handler, once bool) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	fh := &fakeHandler{id: c.nextID, fn: h, once: once}
	c.handlers[event] = append(c.handlers[event], fh)

	id := fh.id
	return func() { c.remove(event, id) }
}

func (c *fakeChannel) remove(event string, id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	hs := c.handlers[event]
	for i, fh := range hs {
		if fh.id == id {
			c.handlers[event] = append(hs[:i], hs[i+1:]...)
			return
		}
	}
}

// fire dispatches an event synchronously. Once-handlers are removed
// before invocation, matching the real client.
func (c *fakeChannel) fire(event string, data []byte) {
	c.mu.Lock()
	hs := c.handlers[event]
	batch := make([]*fakeHandler, len(hs))
	copy(batch, hs)
	remaining := hs[:0]
	for _, fh := range hs {
		if !fh.once {
			remaining = append(remaining, fh)
		}
	}
	c.handlers[event] = remaining
	c.mu.Unlock()

	for _, fh := range batch {
		fh.fn(data)
	}
}

func (c *fakeChannel) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func (c *fakeChannel) emittedFrames(event string) []emittedFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []emittedFrame
	for _, f := range c.emitted {
		if f.event == event {
			out = append(out, f)
		}
	}
	return out
}

func (c *fakeChannel) handlerCount(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handlers[event])
}

// fakeConnRepo records mutations; reads return nothing.
type fakeConnRepo struct {
	mu         sync.Mutex
	replaced   [][]domain.Connection
	increments map[string]int
	zeroed     []string
	previews   map[string]string
}

func newFakeConnRepo() *fakeConnRepo {
	return &fakeConnRepo{
		increments: make(map[string]int),
		previews:   make(map[string]string),
	}
}

func (r *fakeConnRepo) ReplaceAll(ctx context.Context, conns []domain.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replaced = append(r.replaced, conns)
	return nil
}

func (r *fakeConnRepo) GetAll(ctx context.Context) ([]domain.Connection, error) { return nil, nil }

func (r *fakeConnRepo) GetByRoom(ctx context.Context, roomName string) (*domain.Connection, error) {
	return nil, nil
}

func (r *fakeConnRepo) UpdateLastMessage(ctx context.Context, roomName, text string, timestamp time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.previews[roomName] = text
	return nil
}

func (r *fakeConnRepo) UpdateUnreadCount(ctx context.Context, roomName string, count int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if count == 0 {
		r.zeroed = append(r.zeroed, roomName)
	}
	return nil
}

func (r *fakeConnRepo) IncrementUnreadCount(ctx context.Context, roomName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.increments[roomName]++
	return nil
}

// fakeMsgRepo stores created messages keyed by id.
type fakeMsgRepo struct {
	mu      sync.Mutex
	created []*domain.Message
	byRoom  map[string][]*domain.Message
}

func newFakeMsgRepo() *fakeMsgRepo {
	return &fakeMsgRepo{byRoom: make(map[string][]*domain.Message)}
}

func (r *fakeMsgRepo) CreateOrIgnore(ctx context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, msg)
	return nil
}

func (r *fakeMsgRepo) ReplaceRoom(ctx context.Context, roomName string, msgs []*domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byRoom[roomName] = msgs
	return nil
}

func (r *fakeMsgRepo) GetByRoom(ctx context.Context, roomName string, limit, offset int) ([]*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byRoom[roomName], nil
}

func (r *fakeMsgRepo) MarkRoomRead(ctx context.Context, roomName string) error { return nil }

func (r *fakeMsgRepo) Search(ctx context.Context, query string, limit int) ([]*domain.Message, error) {
	return nil, nil
}

func (r *fakeMsgRepo) DeleteByRoom(ctx context.Context, roomName string) error { return nil }

// fakeAPI substitutes the HTTP client with canned responses.
type fakeAPI struct {
	mu           sync.Mutex
	directory    *api.DirectoryPayload
	directoryErr error
	counts       map[string]int
	countsErr    error
	markedRead   []string
	markReadErr  error
	markedCh     chan string
	uploadURL    string
	uploadErr    error
}

func (a *fakeAPI) Connections(ctx context.Context, session domain.Session) (*api.DirectoryPayload, error) {
	if a.directoryErr != nil {
		return nil, a.directoryErr
	}
	return a.directory, nil
}

func (a *fakeAPI) UnreadCounts(ctx context.Context, session domain.Session) (map[string]int, error) {
	if a.countsErr != nil {
		return nil, a.countsErr
	}
	return a.counts, nil
}

func (a *fakeAPI) MarkAsRead(ctx context.Context, session domain.Session, roomName string) error {
	a.mu.Lock()
	a.markedRead = append(a.markedRead, roomName)
	ch := a.markedCh
	a.mu.Unlock()

	if ch != nil {
		ch <- roomName
	}
	return a.markReadErr
}

func (a *fakeAPI) UploadAttachment(ctx context.Context, session domain.Session, filename string, content io.Reader) (string, error) {
	if a.uploadErr != nil {
		return "", a.uploadErr
	}
	return a.uploadURL, nil
}
