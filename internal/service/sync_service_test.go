package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/api"
	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/channel"
	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/domain"
)

type syncFixture struct {
	svc      *SyncService
	ch       *fakeChannel
	api      *fakeAPI
	connRepo *fakeConnRepo
	msgRepo  *fakeMsgRepo
	bus      *domain.SimpleEventBus
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()

	f := &syncFixture{
		ch:       newFakeChannel(),
		api:      &fakeAPI{directory: directoryPayload(), counts: map[string]int{}},
		connRepo: newFakeConnRepo(),
		msgRepo:  newFakeMsgRepo(),
		bus:      domain.NewEventBus(),
	}
	f.svc = NewSyncService(
		f.ch, f.bus, f.api, f.connRepo, f.msgRepo,
		domain.Session{UserID: "me", Token: "tok"},
	)
	t.Cleanup(f.svc.Close)
	return f
}

func (f *syncFixture) connectAndRefresh(t *testing.T) {
	t.Helper()
	assert.NoError(t, f.svc.Connect(context.Background()), "expected connect to succeed")
	_, err := f.svc.RefreshDirectory(context.Background())
	assert.NoError(t, err, "expected directory refresh to succeed")
}

func TestSendMessageEmitsOneFrame(t *testing.T) {
	f := newSyncFixture(t)
	f.connectAndRefresh(t)

	msg, err := f.svc.SendMessage(context.Background(), "private-a", Draft{Text: "hello"})
	assert.NoError(t, err, "expected send to succeed")
	assert.True(t, msg.Pending, "expected optimistic entry pending")
	assert.NotEmpty(t, msg.ClientTag, "expected correlation tag assigned")

	frames := f.ch.emittedFrames(channel.EventPrivateMessage)
	assert.Lenf(t, frames, 1, "expected exactly one private message frame, got %d", len(frames))

	payload, ok := frames[0].payload.(channel.PrivateMessagePayload)
	assert.True(t, ok, "expected a private message payload")
	assert.Equal(t, "hello", payload.Text, "expected draft text on the wire")
	assert.Equal(t, msg.ClientTag, payload.ClientTag, "expected payload tagged for echo reconciliation")
	assert.Nil(t, payload.FileURL, "expected explicit null file url without attachment")
	assert.Equal(t, "pa", payload.RecipientID, "expected recipient from the connection")

	msgs := f.svc.Stream().Messages("private-a")
	assert.Len(t, msgs, 1, "expected optimistic entry in the room log")
	assert.Empty(t, f.msgRepo.created, "expected optimistic entry not cached")
}

func TestSendMessageEmitFailureKeepsOptimisticEntry(t *testing.T) {
	f := newSyncFixture(t)
	f.connectAndRefresh(t)
	f.ch.setConnected(false)

	msg, err := f.svc.SendMessage(context.Background(), "private-a", Draft{Text: "hello"})
	assert.ErrorIs(t, err, channel.ErrNotConnected, "expected emit failure surfaced")
	assert.NotNil(t, msg, "expected the optimistic entry returned with the error")
	assert.Len(t, f.svc.Stream().Messages("private-a"), 1, "expected optimistic entry to survive the failure")
}

func TestSendMessageAttachmentCarriedOnWire(t *testing.T) {
	f := newSyncFixture(t)
	f.api.uploadURL = "https://cdn.example.com/resume.pdf"
	f.connectAndRefresh(t)

	path := filepath.Join(t.TempDir(), "resume.pdf")
	assert.NoError(t, os.WriteFile(path, []byte("file-bytes"), 0644), "expected test file written")

	msg, err := f.svc.SendMessage(context.Background(), "private-a", Draft{Text: "my resume", AttachmentPath: path})
	assert.NoError(t, err, "expected send with attachment to succeed")
	assert.Equal(t, "https://cdn.example.com/resume.pdf", msg.FileURL, "expected uploaded url on the message")
	assert.Equal(t, domain.FileTypeDocument, msg.FileType, "expected pdf classified as document")

	frames := f.ch.emittedFrames(channel.EventPrivateMessage)
	assert.Lenf(t, frames, 1, "expected one private message frame, got %d", len(frames))
	payload := frames[0].payload.(channel.PrivateMessagePayload)
	assert.NotNil(t, payload.FileURL, "expected file url on the wire")
	assert.Equal(t, "https://cdn.example.com/resume.pdf", *payload.FileURL, "expected uploaded url on the wire")
	assert.NotNil(t, payload.FileType, "expected file type on the wire")
	assert.Equal(t, "document", *payload.FileType, "expected classification on the wire")
}

func TestSendMessageUploadFailureAbortsSend(t *testing.T) {
	f := newSyncFixture(t)
	f.api.uploadErr = errors.New("upload rejected")
	f.connectAndRefresh(t)

	path := filepath.Join(t.TempDir(), "photo.jpg")
	assert.NoError(t, os.WriteFile(path, []byte("jpeg-bytes"), 0644), "expected test file written")

	_, err := f.svc.SendMessage(context.Background(), "private-a", Draft{Text: "look", AttachmentPath: path})

	var uploadErr *api.AttachmentUploadError
	assert.ErrorAs(t, err, &uploadErr, "expected upload failure classified")
	assert.Zero(t, f.svc.Stream().Len("private-a"), "expected no optimistic entry after an aborted send")
	assert.Empty(t, f.ch.emittedFrames(channel.EventPrivateMessage), "expected no frame for an aborted send")
}

func TestSendMessageMissingAttachmentAbortsSend(t *testing.T) {
	f := newSyncFixture(t)
	f.connectAndRefresh(t)

	_, err := f.svc.SendMessage(context.Background(), "private-a", Draft{
		Text:           "look",
		AttachmentPath: filepath.Join(t.TempDir(), "does-not-exist.png"),
	})

	var uploadErr *api.AttachmentUploadError
	assert.ErrorAs(t, err, &uploadErr, "expected unreadable attachment classified as upload failure")
	assert.Zero(t, f.svc.Stream().Len("private-a"), "expected no optimistic entry after an aborted send")
	assert.Empty(t, f.ch.emittedFrames(channel.EventPrivateMessage), "expected no frame for an aborted send")
}

func TestSendMessageRejectsEmptyDraft(t *testing.T) {
	f := newSyncFixture(t)
	f.connectAndRefresh(t)

	_, err := f.svc.SendMessage(context.Background(), "private-a", Draft{Text: "   "})
	assert.Error(t, err, "expected whitespace-only draft rejected")

	_, err = f.svc.SendMessage(context.Background(), "private-x", Draft{Text: "hello"})
	assert.Error(t, err, "expected send to unknown room rejected")
}

func TestEchoReconciliation(t *testing.T) {
	f := newSyncFixture(t)
	f.connectAndRefresh(t)

	msg, err := f.svc.SendMessage(context.Background(), "private-a", Draft{Text: "hello"})
	assert.NoError(t, err, "expected send to succeed")

	echo := fmt.Sprintf(
		`{"_id":"server-1","roomName":"private-a","senderId":"me","text":"hello","clientTag":%q,"createdAt":"2026-03-10T14:00:00Z"}`,
		msg.ClientTag,
	)
	f.ch.fire(channel.EventNewPrivateMessage, []byte(echo))

	msgs := f.svc.Stream().Messages("private-a")
	assert.Len(t, msgs, 1, "expected echo to replace, not duplicate")
	assert.Equal(t, "server-1", msgs[0].ID, "expected server id after reconciliation")
	assert.False(t, msgs[0].Pending, "expected pending cleared")

	assert.Len(t, f.msgRepo.created, 1, "expected confirmed message cached")
	assert.Zero(t, f.svc.Unread().Count("private-a"), "expected own echo not to touch unread")

	// The confirmed send is the room's newest message; the directory
	// preview and ordering must follow it without a refresh.
	conns := f.svc.Directory().Connections()
	assert.Equal(t, "a", conns[0].ID, "expected the sent-to room to surface by recency")
	assert.Equal(t, "hello", conns[0].LastMessageText, "expected preview updated from the echo")
	assert.Equal(t, "hello", f.connRepo.previews["private-a"], "expected cached preview updated")
}

func TestInboundPeerMessage(t *testing.T) {
	f := newSyncFixture(t)
	f.connectAndRefresh(t)

	events := f.bus.Subscribe([]domain.EventType{domain.EventTypeMessageReceived})

	inbound := `{"_id":"m-1","roomName":"private-b","senderId":"pb","text":"are you free?","createdAt":"2026-03-10T12:00:00Z"}`
	f.ch.fire(channel.EventNewPrivateMessage, []byte(inbound))

	assert.Equal(t, 1, f.svc.Stream().Len("private-b"), "expected message appended to the joined room")
	assert.Equal(t, 1, f.svc.Unread().Count("private-b"), "expected unread bumped for closed room")
	assert.Len(t, f.msgRepo.created, 1, "expected message cached")

	conns := f.svc.Directory().Connections()
	assert.Equal(t, "b", conns[0].ID, "expected room with the new unread to surface first")
	assert.Equal(t, "are you free?", conns[0].LastMessageText, "expected preview updated")

	select {
	case ev := <-events:
		received, ok := ev.(domain.MessageReceivedEvent)
		assert.True(t, ok, "expected a message received event")
		assert.Equal(t, "m-1", received.Message.ID, "expected event to carry the message")
	default:
		t.Fatal("expected a message received event")
	}
}

func TestInboundMessageForUnjoinedRoomDropped(t *testing.T) {
	f := newSyncFixture(t)
	f.connectAndRefresh(t)

	inbound := `{"_id":"m-1","roomName":"private-x","senderId":"px","text":"hi","createdAt":"2026-03-10T12:00:00Z"}`
	f.ch.fire(channel.EventNewPrivateMessage, []byte(inbound))

	assert.Zero(t, f.svc.Stream().Len("private-x"), "expected message for unjoined room dropped")
	assert.Empty(t, f.msgRepo.created, "expected dropped message not cached")
}

func TestOpenRoomZeroesUnreadAndReportsRead(t *testing.T) {
	f := newSyncFixture(t)
	f.api.counts = map[string]int{"private-a": 3}
	f.api.markedCh = make(chan string, 1)
	f.connectAndRefresh(t)

	assert.Equal(t, 3, f.svc.Unread().Count("private-a"), "expected seeded unread")

	_, err := f.svc.OpenRoom(context.Background(), "private-a")
	assert.NoError(t, err, "expected open to succeed")
	assert.Zero(t, f.svc.Unread().Count("private-a"), "expected open to zero unread")
	assert.Equal(t, "private-a", <-f.api.markedCh, "expected server mark-as-read")

	reads := f.ch.emittedFrames(channel.EventMarkMessagesAsRead)
	assert.Len(t, reads, 1, "expected channel mark-as-read emitted")

	_, err = f.svc.OpenRoom(context.Background(), "private-x")
	assert.Error(t, err, "expected unknown room rejected")
}

func TestOpenRoomPrimesFromCache(t *testing.T) {
	f := newSyncFixture(t)
	f.connectAndRefresh(t)

	cached := []*domain.Message{{ID: "old-1", RoomName: "private-a", Text: "from cache"}}
	f.msgRepo.byRoom["private-a"] = cached

	msgs, err := f.svc.OpenRoom(context.Background(), "private-a")
	assert.NoError(t, err, "expected open to succeed")
	assert.Len(t, msgs, 1, "expected cached history until backfill arrives")
	assert.Equal(t, "old-1", msgs[0].ID, "expected the cached message")
}

func TestBackfillReplacesRoomLog(t *testing.T) {
	f := newSyncFixture(t)
	f.connectAndRefresh(t)

	backfill := `[
		{"_id":"h-1","roomName":"private-a","senderId":"pa","text":"first","createdAt":"2026-03-10T11:00:00Z"},
		{"_id":"h-2","roomName":"private-a","senderId":"me","text":"second","createdAt":"2026-03-10T11:05:00Z"}
	]`
	f.ch.fire(channel.EventExistingMessages, []byte(backfill))

	msgs := f.svc.Stream().Messages("private-a")
	assert.Len(t, msgs, 2, "expected history installed")
	assert.Equal(t, "h-1", msgs[0].ID, "expected history order preserved")
	assert.True(t, msgs[1].IsFromMe, "expected ownership derived from sender id")
	assert.Len(t, f.msgRepo.byRoom["private-a"], 2, "expected history cached wholesale")
}

func TestDisconnectResetsMembershipAndRejoins(t *testing.T) {
	f := newSyncFixture(t)
	f.connectAndRefresh(t)

	joins := f.ch.emittedFrames(channel.EventJoinPrivateRoom)
	assert.Lenf(t, joins, 3, "expected a join per connection, got %d", len(joins))

	f.ch.Disconnect()
	assert.False(t, f.svc.IsConnected(), "expected disconnected state")

	f.ch.Connect(context.Background())
	assert.True(t, f.svc.IsConnected(), "expected connected state")

	joins = f.ch.emittedFrames(channel.EventJoinPrivateRoom)
	assert.Lenf(t, joins, 6, "expected all rooms rejoined after reconnect, got %d", len(joins))
}

func TestTypingEventsFlowToTracker(t *testing.T) {
	f := newSyncFixture(t)
	f.connectAndRefresh(t)

	f.ch.fire(channel.EventTyping, []byte(`{"roomName":"private-a","senderId":"pa"}`))
	assert.True(t, f.svc.Typing().IsTyping("private-a"), "expected peer signal tracked")

	f.ch.fire(channel.EventTyping, []byte(`{"roomName":"private-a","senderId":"me"}`))
	assert.Equal(t, []string{"pa"}, f.svc.Typing().Peers("private-a"), "expected own signal filtered")
}

func TestSendTypingSwallowsDisconnect(t *testing.T) {
	f := newSyncFixture(t)

	assert.NoError(t, f.svc.SendTyping("private-a"), "expected typing while disconnected to be dropped silently")

	f.connectAndRefresh(t)
	assert.NoError(t, f.svc.SendTyping("private-a"), "expected typing emit to succeed")
	assert.Len(t, f.ch.emittedFrames(channel.EventTyping), 1, "expected one typing frame")
}

func TestMarkRoomReadWithoutOpening(t *testing.T) {
	f := newSyncFixture(t)
	f.api.counts = map[string]int{"private-a": 4}
	f.connectAndRefresh(t)

	assert.NoError(t, f.svc.MarkRoomRead(context.Background(), "private-a"), "expected mark read to succeed")
	assert.Zero(t, f.svc.Unread().Count("private-a"), "expected counter cleared")
	assert.Contains(t, f.api.markedRead, "private-a", "expected synchronous server mark-as-read")
	assert.Empty(t, f.svc.Unread().OpenRoom(), "expected mark read not to open the room")
}
