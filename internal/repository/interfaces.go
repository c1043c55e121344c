package repository

import (
	"context"
	"time"

	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/domain"
)

// MessageRepository caches server-confirmed messages. Optimistic entries
// never reach it; they live only in the in-memory room log until their
// echo arrives.
type MessageRepository interface {
	CreateOrIgnore(ctx context.Context, msg *domain.Message) error
	ReplaceRoom(ctx context.Context, roomName string, msgs []*domain.Message) error
	GetByRoom(ctx context.Context, roomName string, limit, offset int) ([]*domain.Message, error)
	MarkRoomRead(ctx context.Context, roomName string) error
	Search(ctx context.Context, query string, limit int) ([]*domain.Message, error)
	DeleteByRoom(ctx context.Context, roomName string) error
}

type ConnectionRepository interface {
	ReplaceAll(ctx context.Context, conns []domain.Connection) error
	GetAll(ctx context.Context) ([]domain.Connection, error)
	GetByRoom(ctx context.Context, roomName string) (*domain.Connection, error)
	UpdateLastMessage(ctx context.Context, roomName, text string, timestamp time.Time) error
	UpdateUnreadCount(ctx context.Context, roomName string, count int) error
	IncrementUnreadCount(ctx context.Context, roomName string) error
}
