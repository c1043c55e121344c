package domain

import "time"

type ConnectionStatus string

const (
	ConnectionStatusPending  ConnectionStatus = "pending"
	ConnectionStatusApproved ConnectionStatus = "approved"
)

// Connection is a relationship between the current user and a peer. Each
// approved connection owns exactly one private room.
type Connection struct {
	ID              string
	PeerUserID      string
	PeerName        string
	PeerAvatarURL   string
	Status          ConnectionStatus
	RoomName        string
	LastMessageText string
	LastMessageTime time.Time
	UnreadCount     int
	CreatedAt       time.Time
}

// Room returns the connection's room name, deriving it from the
// connection id when the server did not supply one. Both participants
// derive the same value independently.
func (c *Connection) Room() string {
	if c.RoomName != "" {
		return c.RoomName
	}
	return DeriveRoomName(c.ID)
}

func DeriveRoomName(connectionID string) string {
	return "private-" + connectionID
}
