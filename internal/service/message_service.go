package service

import (
	"context"

	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/domain"
	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/repository"
)

// MessageService is the query facade over the live room logs and the
// local cache, plus send passthroughs for the CLI surfaces.
type MessageService struct {
	msgRepo  repository.MessageRepository
	connRepo repository.ConnectionRepository
	syncSvc  *SyncService
}

func NewMessageService(
	msgRepo repository.MessageRepository,
	connRepo repository.ConnectionRepository,
	syncSvc *SyncService,
) *MessageService {
	return &MessageService{
		msgRepo:  msgRepo,
		connRepo: connRepo,
		syncSvc:  syncSvc,
	}
}

// GetConnections returns the live directory when one has been loaded,
// falling back to the cached copy from a previous run.
func (s *MessageService) GetConnections(ctx context.Context) ([]domain.Connection, error) {
	if conns := s.syncSvc.Directory().Connections(); len(conns) > 0 {
		return conns, nil
	}
	return s.connRepo.GetAll(ctx)
}

// GetMessages returns the room's log, up to limit messages: the tail of
// the live in-memory log when the room has been opened this session, the
// cache otherwise.
func (s *MessageService) GetMessages(ctx context.Context, roomName string, limit int) ([]*domain.Message, error) {
	if live := s.syncSvc.Stream().Messages(roomName); len(live) > 0 {
		if limit > 0 && len(live) > limit {
			live = live[len(live)-limit:]
		}
		return live, nil
	}
	return s.msgRepo.GetByRoom(ctx, roomName, limit, 0)
}

func (s *MessageService) SearchMessages(ctx context.Context, query string, limit int) ([]*domain.Message, error) {
	return s.msgRepo.Search(ctx, query, limit)
}

func (s *MessageService) OpenRoom(ctx context.Context, roomName string) ([]*domain.Message, error) {
	return s.syncSvc.OpenRoom(ctx, roomName)
}

func (s *MessageService) CloseRoom(roomName string) {
	s.syncSvc.CloseRoom(roomName)
}

func (s *MessageService) SendMessage(ctx context.Context, roomName string, draft Draft) (*domain.Message, error) {
	return s.syncSvc.SendMessage(ctx, roomName, draft)
}

func (s *MessageService) SendTyping(roomName string) error {
	return s.syncSvc.SendTyping(roomName)
}

func (s *MessageService) MarkRoomRead(ctx context.Context, roomName string) error {
	return s.syncSvc.MarkRoomRead(ctx, roomName)
}

func (s *MessageService) TypingPeers(roomName string) []string {
	return s.syncSvc.Typing().Peers(roomName)
}

func (s *MessageService) UnreadCount(roomName string) int {
	return s.syncSvc.Unread().Count(roomName)
}
