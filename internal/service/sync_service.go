package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/api"
	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/channel"
	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/domain"
	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/logger"
	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/repository"
)

// syncAPI is the full HTTP surface the sync layer uses.
type syncAPI interface {
	directoryAPI
	readMarker
	UploadAttachment(ctx context.Context, session domain.Session, filename string, content io.Reader) (string, error)
}

// Draft is an outbound message before it is sent. AttachmentPath, when
// set, is uploaded first; the send is aborted if the upload fails.
type Draft struct {
	Text           string
	AttachmentPath string
}

// SyncService coordinates the conversation state against the channel and
// the HTTP API: directory loads, room membership, message logs, typing
// signals and unread counters all hang off its event handlers.
type SyncService struct {
	ch       Channel
	bus      domain.EventBus
	api      syncAPI
	connRepo repository.ConnectionRepository
	msgRepo  repository.MessageRepository
	session  domain.Session
	log      zerolog.Logger

	directory  *ConnectionDirectory
	membership *RoomMembership
	stream     *MessageStream
	typing     *TypingTracker
	unread     *UnreadReconciler

	mu        sync.RWMutex
	connected bool
	offs      []func()
}

func NewSyncService(
	ch Channel,
	bus domain.EventBus,
	apiClient syncAPI,
	connRepo repository.ConnectionRepository,
	msgRepo repository.MessageRepository,
	session domain.Session,
) *SyncService {
	s := &SyncService{
		ch:         ch,
		bus:        bus,
		api:        apiClient,
		connRepo:   connRepo,
		msgRepo:    msgRepo,
		session:    session,
		log:        logger.Module("sync"),
		directory:  NewConnectionDirectory(apiClient, connRepo, bus),
		membership: NewRoomMembership(ch),
		stream:     NewMessageStream(),
		typing:     NewTypingTracker(session.UserID, TypingWindow, bus),
		unread:     NewUnreadReconciler(apiClient, connRepo, bus),
	}
	s.registerHandlers()
	return s
}

func (s *SyncService) registerHandlers() {
	s.offs = append(s.offs,
		s.ch.On(channel.EventConnect, s.handleConnect),
		s.ch.On(channel.EventDisconnect, s.handleDisconnect),
		s.ch.On(channel.EventConnectError, s.handleConnectError),
		s.ch.On(channel.EventNewPrivateMessage, s.handleInboundMessage),
		s.ch.On(channel.EventTyping, s.handleTyping),
		s.ch.On(channel.EventExistingMessages, s.handleBackfill),
	)
}

func (s *SyncService) Connect(ctx context.Context) error {
	return s.ch.Connect(ctx)
}

func (s *SyncService) Disconnect() {
	s.ch.Disconnect()
}

func (s *SyncService) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Close deregisters every channel handler and stops the trackers.
// In-flight requests complete and their results are discarded.
func (s *SyncService) Close() {
	for _, off := range s.offs {
		off()
	}
	s.offs = nil
	s.membership.Close()
	s.typing.Close()
}

// RefreshDirectory reloads the connection list, reseeds unread counters
// and re-derives room membership. Pull-to-refresh semantics: the caller
// decides when, nothing retries internally.
func (s *SyncService) RefreshDirectory(ctx context.Context) ([]domain.Connection, error) {
	conns, unread, err := s.directory.Load(ctx, s.session)
	if err != nil {
		return nil, err
	}

	s.unread.Seed(unread)
	s.ensureMembership(conns)
	return conns, nil
}

func (s *SyncService) ensureMembership(conns []domain.Connection) {
	s.membership.EnsureJoined(conns)
	connected := s.ch.Connected()
	for i := range conns {
		room := conns[i].Room()
		if connected {
			s.stream.MarkJoined(room)
		} else {
			s.stream.MarkJoining(room)
		}
	}
}

// OpenRoom opens a conversation: membership is ensured, the unread
// counter zeroes, read state is reported both over HTTP and the channel,
// and the current log snapshot is returned. The authoritative backfill
// arrives asynchronously via existingMessages and replaces it.
func (s *SyncService) OpenRoom(ctx context.Context, roomName string) ([]*domain.Message, error) {
	conn, ok := s.directory.ByRoom(roomName)
	if !ok {
		return nil, fmt.Errorf("unknown room %s", roomName)
	}

	s.ensureMembership([]domain.Connection{*conn})
	s.unread.OnRoomOpened(ctx, s.session, roomName)
	s.directory.ApplyUnread(s.unread.Counts())

	if err := s.ch.Emit(channel.EventMarkMessagesAsRead, channel.MarkReadPayload{RoomName: roomName}); err != nil {
		s.log.Warn().Err(err).Str("room", roomName).Msg("channel mark-as-read not sent")
	}
	if err := s.msgRepo.MarkRoomRead(ctx, roomName); err != nil {
		s.log.Warn().Err(err).Str("room", roomName).Msg("failed to mark cached messages read")
	}

	if s.stream.Len(roomName) == 0 {
		cached, err := s.msgRepo.GetByRoom(ctx, roomName, 0, 0)
		if err != nil {
			s.log.Warn().Err(err).Str("room", roomName).Msg("failed to load cached history")
		} else {
			s.stream.Prime(roomName, cached)
		}
	}

	return s.stream.Messages(roomName), nil
}

// CloseRoom marks the conversation left; arrivals count as unread again.
// Channel listeners stay registered, they belong to the service lifetime.
func (s *SyncService) CloseRoom(roomName string) {
	s.unread.OnRoomClosed(roomName)
}

// SendMessage uploads the draft's attachment if any, appends an
// optimistic entry to the room log and emits exactly one privateMessage.
// The optimistic entry survives an emit failure; it is replaced only when
// the authoritative echo reconciles against its correlation tag.
func (s *SyncService) SendMessage(ctx context.Context, roomName string, draft Draft) (*domain.Message, error) {
	if strings.TrimSpace(draft.Text) == "" && draft.AttachmentPath == "" {
		return nil, fmt.Errorf("empty draft")
	}

	conn, ok := s.directory.ByRoom(roomName)
	if !ok {
		return nil, fmt.Errorf("unknown room %s", roomName)
	}

	var fileURL, fileType *string
	if draft.AttachmentPath != "" {
		url, kind, err := s.uploadAttachment(ctx, draft.AttachmentPath)
		if err != nil {
			return nil, err
		}
		fileURL, fileType = &url, &kind
	}

	msg := domain.NewOptimisticMessage(
		uuid.NewString(), roomName, s.session.UserID, conn.PeerUserID, draft.Text, time.Now(),
	)
	if fileURL != nil {
		msg.FileURL = *fileURL
		msg.FileType = domain.FileType(*fileType)
	}

	s.stream.AppendLocal(msg)

	payload := channel.PrivateMessagePayload{
		RoomName:     roomName,
		Text:         msg.Text,
		SenderID:     msg.SenderID,
		RecipientID:  msg.RecipientID,
		FileURL:      fileURL,
		FileType:     fileType,
		ConnectionID: conn.ID,
		ClientTag:    msg.ClientTag,
		Token:        s.session.Token,
	}
	if err := s.ch.Emit(channel.EventPrivateMessage, payload); err != nil {
		// The optimistic entry stays; local state is never rolled back
		// for channel errors.
		return msg, err
	}

	s.bus.Publish(domain.MessageSentEvent{Message: msg, EventTime: time.Now()})
	return msg, nil
}

func (s *SyncService) uploadAttachment(ctx context.Context, path string) (string, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", &api.AttachmentUploadError{Err: err}
	}
	defer f.Close()

	url, err := s.api.UploadAttachment(ctx, s.session, filepath.Base(path), f)
	if err != nil {
		return "", "", &api.AttachmentUploadError{Err: err}
	}
	return url, string(classifyAttachment(path)), nil
}

func classifyAttachment(path string) domain.FileType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return domain.FileTypeImage
	default:
		return domain.FileTypeDocument
	}
}

// SendTyping tells the room's peer the local user is typing. Dropped
// silently when the channel is down; typing is best-effort.
func (s *SyncService) SendTyping(roomName string) error {
	err := s.ch.Emit(channel.EventTyping, channel.TypingPayload{
		RoomName: roomName,
		SenderID: s.session.UserID,
	})
	if err == channel.ErrNotConnected {
		return nil
	}
	return err
}

// MarkRoomRead reports the room read without opening it.
func (s *SyncService) MarkRoomRead(ctx context.Context, roomName string) error {
	if err := s.api.MarkAsRead(ctx, s.session, roomName); err != nil {
		return err
	}
	if err := s.connRepo.UpdateUnreadCount(ctx, roomName, 0); err != nil {
		s.log.Warn().Err(err).Str("room", roomName).Msg("failed to zero cached unread count")
	}
	if err := s.msgRepo.MarkRoomRead(ctx, roomName); err != nil {
		s.log.Warn().Err(err).Str("room", roomName).Msg("failed to mark cached messages read")
	}

	counts := s.unread.Counts()
	delete(counts, roomName)
	s.unread.Seed(counts)
	s.directory.ApplyUnread(counts)
	return nil
}

func (s *SyncService) Directory() *ConnectionDirectory { return s.directory }
func (s *SyncService) Stream() *MessageStream          { return s.stream }
func (s *SyncService) Typing() *TypingTracker          { return s.typing }
func (s *SyncService) Unread() *UnreadReconciler       { return s.unread }
func (s *SyncService) EventBus() domain.EventBus       { return s.bus }

func (s *SyncService) handleConnect(json.RawMessage) {
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()

	// Server-side membership is per socket: re-derive it for the
	// directory we already hold.
	if conns := s.directory.Connections(); len(conns) > 0 {
		s.ensureMembership(conns)
	}

	s.bus.Publish(domain.ConnectionStatusEvent{Connected: true, EventTime: time.Now()})
}

func (s *SyncService) handleDisconnect(data json.RawMessage) {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()

	s.membership.Reset()

	var payload struct {
		Reason string `json:"reason"`
	}
	json.Unmarshal(data, &payload)

	s.bus.Publish(domain.ConnectionStatusEvent{
		Connected: false,
		Reason:    payload.Reason,
		EventTime: time.Now(),
	})
}

func (s *SyncService) handleConnectError(data json.RawMessage) {
	var payload struct {
		Message string `json:"message"`
	}
	json.Unmarshal(data, &payload)
	s.log.Warn().Str("reason", payload.Message).Msg("channel connect error")
}

func (s *SyncService) handleInboundMessage(data json.RawMessage) {
	var wire channel.InboundMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		s.log.Warn().Err(err).Msg("dropping malformed message event")
		return
	}

	msg := wire.ToDomain(s.session.UserID)
	if msg.Empty() {
		return
	}

	ctx := context.Background()

	preview := msg.Text
	if preview == "" {
		preview = "[" + string(msg.FileType) + "]"
	}

	if msg.IsFromMe && s.stream.Reconcile(msg) {
		confirmed := *msg
		confirmed.IsFromMe = true
		if err := s.msgRepo.CreateOrIgnore(ctx, &confirmed); err != nil {
			s.log.Warn().Err(err).Msg("failed to cache confirmed message")
		}

		// The confirmed send is the room's newest message; the directory
		// preview and ordering follow it like any other arrival.
		if err := s.connRepo.UpdateLastMessage(ctx, msg.RoomName, preview, msg.CreatedAt); err != nil {
			s.log.Warn().Err(err).Msg("failed to update connection preview")
		}
		s.directory.ApplyInbound(msg.RoomName, preview, msg.CreatedAt, s.unread.Counts())
		return
	}

	if !s.stream.Append(msg) {
		s.log.Debug().Str("room", msg.RoomName).Msg("message for unjoined room dropped")
		return
	}

	if err := s.msgRepo.CreateOrIgnore(ctx, msg); err != nil {
		s.log.Warn().Err(err).Msg("failed to cache message")
	}

	if err := s.connRepo.UpdateLastMessage(ctx, msg.RoomName, preview, msg.CreatedAt); err != nil {
		s.log.Warn().Err(err).Msg("failed to update connection preview")
	}

	s.unread.OnInbound(msg)
	s.directory.ApplyInbound(msg.RoomName, preview, msg.CreatedAt, s.unread.Counts())

	s.bus.Publish(domain.MessageReceivedEvent{Message: msg, EventTime: time.Now()})
}

func (s *SyncService) handleTyping(data json.RawMessage) {
	var payload channel.TypingPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		s.log.Warn().Err(err).Msg("dropping malformed typing event")
		return
	}
	s.typing.Observe(payload.RoomName, payload.SenderID)
}

func (s *SyncService) handleBackfill(data json.RawMessage) {
	var wire []channel.InboundMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		s.log.Warn().Err(err).Msg("dropping malformed backfill")
		return
	}
	if len(wire) == 0 {
		return
	}

	roomName := wire[0].RoomName
	msgs := make([]*domain.Message, 0, len(wire))
	for i := range wire {
		msgs = append(msgs, wire[i].ToDomain(s.session.UserID))
	}

	s.stream.SetBackfill(roomName, msgs)

	if err := s.msgRepo.ReplaceRoom(context.Background(), roomName, msgs); err != nil {
		s.log.Warn().Err(err).Str("room", roomName).Msg("failed to cache backfill")
	}
}
