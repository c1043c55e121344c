package channel

import (
	"time"

	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/domain"
)

// JoinRoomPayload is the data of an outbound joinPrivateRoom event.
type JoinRoomPayload struct {
	ConnectionID string `json:"connectionId"`
	RoomName     string `json:"roomName"`
}

// PrivateMessagePayload is the data of an outbound privateMessage event.
// FileURL and FileType are pointers so an attachment-less send carries
// explicit nulls on the wire.
type PrivateMessagePayload struct {
	RoomName     string  `json:"roomName"`
	Text         string  `json:"text"`
	SenderID     string  `json:"senderId"`
	RecipientID  string  `json:"recipientId"`
	FileURL      *string `json:"fileUrl"`
	FileType     *string `json:"fileType"`
	ConnectionID string  `json:"connectionId"`
	ClientTag    string  `json:"clientTag"`
	Token        string  `json:"token"`
}

// TypingPayload is the data of a typing event, both directions.
type TypingPayload struct {
	RoomName string `json:"roomName"`
	SenderID string `json:"senderId"`
}

// MarkReadPayload is the data of an outbound markMessagesAsRead event.
type MarkReadPayload struct {
	RoomName string `json:"roomName"`
}

// InboundMessage is a message as delivered by newPrivateMessage and
// existingMessages events.
type InboundMessage struct {
	ID        string    `json:"_id"`
	RoomName  string    `json:"roomName"`
	SenderID  string    `json:"senderId"`
	Text      string    `json:"text"`
	FileURL   string    `json:"fileUrl"`
	FileType  string    `json:"fileType"`
	ClientTag string    `json:"clientTag"`
	CreatedAt time.Time `json:"createdAt"`
}

// ToDomain converts a wire message, marking ownership relative to the
// given user id.
func (m *InboundMessage) ToDomain(selfID string) *domain.Message {
	return &domain.Message{
		ID:        m.ID,
		ClientTag: m.ClientTag,
		RoomName:  m.RoomName,
		SenderID:  m.SenderID,
		Text:      m.Text,
		FileURL:   m.FileURL,
		FileType:  domain.FileType(m.FileType),
		CreatedAt: m.CreatedAt,
		IsFromMe:  m.SenderID == selfID,
	}
}
