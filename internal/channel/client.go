package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// Event names used on the channel. connect and disconnect are synthetic:
// the server never sends them, the client dispatches them on dial success
// and on read failure.
const (
	EventConnect            = "connect"
	EventDisconnect         = "disconnect"
	EventConnectError       = "connect_error"
	EventJoinPrivateRoom    = "joinPrivateRoom"
	EventPrivateMessage     = "privateMessage"
	EventNewPrivateMessage  = "newPrivateMessage"
	EventTyping             = "typing"
	EventExistingMessages   = "existingMessages"
	EventMarkMessagesAsRead = "markMessagesAsRead"
)

var ErrNotConnected = errors.New("channel not connected")

// Handler receives the raw data of a dispatched event.
type Handler func(data json.RawMessage)

// frame is the wire envelope: one JSON object per websocket text message.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type handlerEntry struct {
	id   int
	fn   Handler
	once bool
}

// Client maintains a single websocket connection to the realtime channel
// and dispatches inbound events to registered handlers. Reconnect policy
// is the caller's concern; Connect may be called again after a disconnect.
type Client struct {
	url    string
	dialer *websocket.Dialer
	log    zerolog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	send      chan frame
	done      chan struct{}
	nextID    int
	handlers  map[string][]*handlerEntry
}

func NewClient(url string) *Client {
	return &Client{
		url:      url,
		dialer:   websocket.DefaultDialer,
		log:      logger.Module("channel"),
		handlers: make(map[string][]*handlerEntry),
	}
}

// Connect dials the channel and starts the read and write pumps. It is a
// no-op if already connected. A successful dial dispatches the synthetic
// connect event after the pumps are running.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.mu.Unlock()
		c.dispatch(EventConnectError, mustMarshal(map[string]string{"message": err.Error()}))
		return fmt.Errorf("failed to dial channel: %w", err)
	}

	c.conn = conn
	c.connected = true
	c.send = make(chan frame, sendBuffer)
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.writePump(conn, c.send, c.done)
	go c.readPump(conn)

	c.dispatch(EventConnect, nil)
	return nil
}

// Disconnect tears the connection down locally. In-flight inbound events
// already dispatched are allowed to complete.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return
	}
	c.connected = false
	conn := c.conn
	c.conn = nil
	close(c.done)
	c.mu.Unlock()

	conn.Close()
	c.dispatch(EventDisconnect, mustMarshal(map[string]string{"reason": "client disconnect"}))
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Emit queues an event for delivery. It fails fast when the channel is
// down or the write queue is full; nothing is buffered across connections.
func (c *Client) Emit(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}

	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	send := c.send
	c.mu.Unlock()

	select {
	case send <- frame{Event: event, Data: data}:
		return nil
	default:
		return fmt.Errorf("send queue full, dropping %s", event)
	}
}

// On registers a handler for an event and returns its deregistration
// function. The returned func is idempotent.
func (c *Client) On(event string, h Handler) func() {
	return c.register(event, h, false)
}

// Once registers a handler that fires at most once; it is removed before
// it is invoked. The returned func deregisters it if it has not fired,
// so teardown is safe either way.
func (c *Client) Once(event string, h Handler) func() {
	return c.register(event, h, true)
}

func (c *Client) register(event string, h Handler, once bool) func() {
	c.mu.Lock()
	c.nextID++
	entry := &handlerEntry{id: c.nextID, fn: h, once: once}
	c.handlers[event] = append(c.handlers[event], entry)
	c.mu.Unlock()

	id := entry.id
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.removeHandler(event, id)
	}
}

// removeHandler must be called with c.mu held.
func (c *Client) removeHandler(event string, id int) {
	entries := c.handlers[event]
	for i, e := range entries {
		if e.id == id {
			c.handlers[event] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// dispatch invokes handlers for an event. Once-handlers are removed
// before invocation so they cannot fire twice even across reconnects.
func (c *Client) dispatch(event string, data json.RawMessage) {
	c.mu.Lock()
	entries := c.handlers[event]
	fns := make([]Handler, 0, len(entries))
	for _, e := range entries {
		fns = append(fns, e.fn)
	}
	for _, e := range entries {
		if e.once {
			c.removeHandler(event, e.id)
		}
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(data)
	}
}

func (c *Client) readPump(conn *websocket.Conn) {
	defer func() {
		c.mu.Lock()
		wasConnected := c.connected && c.conn == conn
		if wasConnected {
			c.connected = false
			c.conn = nil
			close(c.done)
		}
		c.mu.Unlock()

		conn.Close()
		if wasConnected {
			c.dispatch(EventDisconnect, mustMarshal(map[string]string{"reason": "read error"}))
		}
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("channel read failed")
			}
			return
		}

		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			c.log.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}
		if f.Event == "" {
			c.log.Warn().Msg("dropping frame without event name")
			continue
		}

		c.dispatch(f.Event, f.Data)
	}
}

func (c *Client) writePump(conn *websocket.Conn, send <-chan frame, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case f := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(f); err != nil {
				c.log.Warn().Err(err).Str("event", f.Event).Msg("channel write failed")
				return
			}
		case <-done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func mustMarshal(v interface{}) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}
