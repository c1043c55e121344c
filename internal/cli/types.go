package cli

import "time"

// Mode represents the CLI operation mode
type Mode string

const (
	ModeInteractive Mode = "interactive"
	ModeHeadless    Mode = "headless"
)

// Request represents a JSON request in headless mode
type Request struct {
	ID      string                 `json:"id,omitempty"`
	Command string                 `json:"command"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// Response represents a JSON response in headless mode
type Response struct {
	ID      string      `json:"id,omitempty"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Event represents a real-time event in headless mode
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// ConnectionInfo represents a directory entry for responses
type ConnectionInfo struct {
	ConnectionID    string    `json:"connection_id"`
	RoomName        string    `json:"room_name"`
	PeerName        string    `json:"peer_name"`
	Status          string    `json:"status"`
	UnreadCount     int       `json:"unread_count"`
	LastMessageText string    `json:"last_message_text,omitempty"`
	LastMessageTime time.Time `json:"last_message_time,omitempty"`
}

// MessageInfo represents message information for responses
type MessageInfo struct {
	ID        string    `json:"id,omitempty"`
	RoomName  string    `json:"room_name"`
	SenderID  string    `json:"sender_id"`
	Text      string    `json:"text,omitempty"`
	FileURL   string    `json:"file_url,omitempty"`
	FileType  string    `json:"file_type,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	IsFromMe  bool      `json:"is_from_me"`
	Pending   bool      `json:"pending,omitempty"`
}

// ConnectionStatus represents channel status for responses
type ConnectionStatus struct {
	Connected bool   `json:"connected"`
	Status    string `json:"status"`
}
