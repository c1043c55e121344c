package repository

import (
	"time"

	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/domain"
)

type MessageModel struct {
	ID          string    `gorm:"primaryKey;column:id"`
	ClientTag   string    `gorm:"column:client_tag"`
	RoomName    string    `gorm:"column:room_name;index:idx_room_created"`
	SenderID    string    `gorm:"column:sender_id"`
	RecipientID string    `gorm:"column:recipient_id"`
	Text        string    `gorm:"column:text"`
	FileURL     string    `gorm:"column:file_url"`
	FileType    string    `gorm:"column:file_type"`
	CreatedAt   time.Time `gorm:"column:created_at;index:idx_room_created"`
	IsFromMe    bool      `gorm:"column:is_from_me"`
	IsRead      bool      `gorm:"column:is_read;index"`
	CachedAt    time.Time `gorm:"column:cached_at"`
}

func (MessageModel) TableName() string { return "messages" }

type ConnectionModel struct {
	ID              string    `gorm:"primaryKey;column:id"`
	PeerUserID      string    `gorm:"column:peer_user_id"`
	PeerName        string    `gorm:"column:peer_name"`
	PeerAvatarURL   string    `gorm:"column:peer_avatar_url"`
	Status          string    `gorm:"column:status"`
	RoomName        string    `gorm:"column:room_name;uniqueIndex"`
	LastMessageText string    `gorm:"column:last_message_text"`
	LastMessageTime time.Time `gorm:"column:last_message_time;index"`
	UnreadCount     int       `gorm:"column:unread_count"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (ConnectionModel) TableName() string { return "connections" }

// Conversion functions

func MessageModelToDomain(m *MessageModel) *domain.Message {
	if m == nil {
		return nil
	}
	return &domain.Message{
		ID:          m.ID,
		ClientTag:   m.ClientTag,
		RoomName:    m.RoomName,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Text:        m.Text,
		FileURL:     m.FileURL,
		FileType:    domain.FileType(m.FileType),
		CreatedAt:   m.CreatedAt,
		IsFromMe:    m.IsFromMe,
		IsRead:      m.IsRead,
	}
}

func MessageDomainToModel(msg *domain.Message) *MessageModel {
	if msg == nil {
		return nil
	}
	return &MessageModel{
		ID:          msg.ID,
		ClientTag:   msg.ClientTag,
		RoomName:    msg.RoomName,
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
		Text:        msg.Text,
		FileURL:     msg.FileURL,
		FileType:    string(msg.FileType),
		CreatedAt:   msg.CreatedAt,
		IsFromMe:    msg.IsFromMe,
		IsRead:      msg.IsRead,
		CachedAt:    time.Now(),
	}
}

func ConnectionModelToDomain(m *ConnectionModel) *domain.Connection {
	if m == nil {
		return nil
	}
	return &domain.Connection{
		ID:              m.ID,
		PeerUserID:      m.PeerUserID,
		PeerName:        m.PeerName,
		PeerAvatarURL:   m.PeerAvatarURL,
		Status:          domain.ConnectionStatus(m.Status),
		RoomName:        m.RoomName,
		LastMessageText: m.LastMessageText,
		LastMessageTime: m.LastMessageTime,
		UnreadCount:     m.UnreadCount,
		CreatedAt:       m.CreatedAt,
	}
}

func ConnectionDomainToModel(c *domain.Connection) *ConnectionModel {
	if c == nil {
		return nil
	}
	return &ConnectionModel{
		ID:              c.ID,
		PeerUserID:      c.PeerUserID,
		PeerName:        c.PeerName,
		PeerAvatarURL:   c.PeerAvatarURL,
		Status:          string(c.Status),
		RoomName:        c.Room(),
		LastMessageText: c.LastMessageText,
		LastMessageTime: c.LastMessageTime,
		UnreadCount:     c.UnreadCount,
		CreatedAt:       c.CreatedAt,
	}
}
