package domain

import "time"

type FileType string

const (
	FileTypeImage    FileType = "image"
	FileTypeDocument FileType = "document"
)

// Message is a single chat event. A message sent locally starts as an
// optimistic entry with no server id; ClientTag correlates it with the
// authoritative echo from the channel.
type Message struct {
	ID          string
	ClientTag   string
	RoomName    string
	SenderID    string
	RecipientID string
	Text        string
	FileURL     string
	FileType    FileType
	CreatedAt   time.Time
	IsFromMe    bool
	IsRead      bool
	Pending     bool
}

func (m *Message) HasAttachment() bool {
	return m.FileURL != ""
}

// Empty reports whether the message carries neither text nor a file.
// The channel delivers occasional bookkeeping frames with no payload;
// those never enter a room log.
func (m *Message) Empty() bool {
	return m.Text == "" && m.FileURL == ""
}

func NewOptimisticMessage(clientTag, roomName, senderID, recipientID, text string, at time.Time) *Message {
	return &Message{
		ClientTag:   clientTag,
		RoomName:    roomName,
		SenderID:    senderID,
		RecipientID: recipientID,
		Text:        text,
		CreatedAt:   at,
		IsFromMe:    true,
		Pending:     true,
	}
}
