package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/domain"
	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/service"
)

// CommandHandler handles CLI commands
type CommandHandler struct {
	syncSvc *service.SyncService
	msgSvc  *service.MessageService
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(syncSvc *service.SyncService, msgSvc *service.MessageService) *CommandHandler {
	return &CommandHandler{
		syncSvc: syncSvc,
		msgSvc:  msgSvc,
	}
}

// Command represents a parsed command
type Command struct {
	Name string
	Args []string
}

// ParseCommand parses a command string (e.g., "/send private-abc123 Hello")
func ParseCommand(input string) (*Command, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("empty command")
	}

	if !strings.HasPrefix(input, "/") {
		return nil, fmt.Errorf("commands must start with /")
	}

	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	name := strings.TrimPrefix(parts[0], "/")
	args := parts[1:]

	return &Command{Name: name, Args: args}, nil
}

// Execute executes a command and returns the result
func (h *CommandHandler) Execute(ctx context.Context, cmd *Command) (interface{}, error) {
	switch cmd.Name {
	case "help", "h":
		return h.cmdHelp()
	case "status", "s":
		return h.cmdStatus()
	case "connect", "c":
		return h.cmdConnect(ctx)
	case "disconnect", "d":
		return h.cmdDisconnect()
	case "refresh", "r":
		return h.cmdRefresh(ctx)
	case "chats", "ls":
		return h.cmdChats(ctx)
	case "open", "o":
		return h.cmdOpen(ctx, cmd.Args)
	case "close":
		return h.cmdClose(cmd.Args)
	case "messages", "msg":
		return h.cmdMessages(ctx, cmd.Args)
	case "send":
		return h.cmdSend(ctx, cmd.Args)
	case "send-file", "file":
		return h.cmdSendFile(ctx, cmd.Args)
	case "typing", "t":
		return h.cmdTyping(cmd.Args)
	case "read":
		return h.cmdRead(ctx, cmd.Args)
	case "search":
		return h.cmdSearch(ctx, cmd.Args)
	case "quit", "exit", "q":
		return map[string]bool{"quit": true}, nil
	default:
		return nil, fmt.Errorf("unknown command: %s. Type /help for available commands", cmd.Name)
	}
}

func (h *CommandHandler) cmdHelp() (interface{}, error) {
	help := `Available commands:

Connection:
  /status, /s              Show channel status
  /connect, /c             Connect the realtime channel
  /disconnect, /d          Disconnect the realtime channel
  /refresh, /r             Reload the connection directory

Conversations:
  /chats, /ls              List connections with unread counts
  /open, /o <room>         Open a conversation (zeroes its unread count)
  /close <room>            Leave a conversation
  /messages, /msg <room> [limit]  Show a room's message log
  /send <room> <text>      Send a text message
  /send-file, /file <room> <path> [caption]  Send a file
  /typing, /t <room>       Signal typing in a room
  /read <room>             Mark a room read without opening it
  /search <query> [limit]  Search cached messages

Other:
  /help, /h                Show this help
  /quit, /exit, /q         Exit the CLI`

	return map[string]string{"help": help}, nil
}

func (h *CommandHandler) cmdStatus() (interface{}, error) {
	connected := h.syncSvc.IsConnected()

	status := "disconnected"
	if connected {
		status = "connected"
	}

	return ConnectionStatus{
		Connected: connected,
		Status:    status,
	}, nil
}

func (h *CommandHandler) cmdConnect(ctx context.Context) (interface{}, error) {
	if err := h.syncSvc.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return map[string]string{"message": "Channel connected"}, nil
}

func (h *CommandHandler) cmdDisconnect() (interface{}, error) {
	h.syncSvc.Disconnect()
	return map[string]string{"message": "Channel disconnected"}, nil
}

func (h *CommandHandler) cmdRefresh(ctx context.Context) (interface{}, error) {
	conns, err := h.syncSvc.RefreshDirectory(ctx)
	if err != nil {
		return nil, fmt.Errorf("directory refresh failed: %w", err)
	}
	return map[string]interface{}{
		"connections": toConnectionInfos(conns),
		"count":       len(conns),
	}, nil
}

func (h *CommandHandler) cmdChats(ctx context.Context) (interface{}, error) {
	conns, err := h.msgSvc.GetConnections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connections: %w", err)
	}
	return map[string]interface{}{
		"connections": toConnectionInfos(conns),
		"count":       len(conns),
	}, nil
}

func (h *CommandHandler) cmdOpen(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /open <room>")
	}

	msgs, err := h.msgSvc.OpenRoom(ctx, args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to open room: %w", err)
	}

	return map[string]interface{}{
		"room":     args[0],
		"messages": toMessageInfos(msgs),
		"count":    len(msgs),
	}, nil
}

func (h *CommandHandler) cmdClose(args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /close <room>")
	}
	h.msgSvc.CloseRoom(args[0])
	return map[string]string{"message": "Left " + args[0]}, nil
}

func (h *CommandHandler) cmdMessages(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /messages <room> [limit]")
	}

	limit := 50
	if len(args) > 1 {
		if l, err := strconv.Atoi(args[1]); err == nil && l > 0 {
			limit = l
		}
	}

	messages, err := h.msgSvc.GetMessages(ctx, args[0], limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	return map[string]interface{}{
		"room":     args[0],
		"messages": toMessageInfos(messages),
		"count":    len(messages),
		"typing":   h.msgSvc.TypingPeers(args[0]),
	}, nil
}

func (h *CommandHandler) cmdSend(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("usage: /send <room> <text>")
	}

	text := strings.Join(args[1:], " ")
	msg, err := h.msgSvc.SendMessage(ctx, args[0], service.Draft{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	return toMessageInfo(msg), nil
}

func (h *CommandHandler) cmdSendFile(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("usage: /send-file <room> <path> [caption]")
	}

	draft := service.Draft{AttachmentPath: args[1]}
	if len(args) > 2 {
		draft.Text = strings.Join(args[2:], " ")
	}

	msg, err := h.msgSvc.SendMessage(ctx, args[0], draft)
	if err != nil {
		return nil, fmt.Errorf("failed to send file: %w", err)
	}

	return toMessageInfo(msg), nil
}

func (h *CommandHandler) cmdTyping(args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /typing <room>")
	}

	if err := h.msgSvc.SendTyping(args[0]); err != nil {
		return nil, fmt.Errorf("failed to signal typing: %w", err)
	}
	return map[string]string{"message": "Typing signalled in " + args[0]}, nil
}

func (h *CommandHandler) cmdRead(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /read <room>")
	}

	if err := h.msgSvc.MarkRoomRead(ctx, args[0]); err != nil {
		return nil, fmt.Errorf("failed to mark as read: %w", err)
	}
	return map[string]string{"message": "Marked " + args[0] + " as read"}, nil
}

func (h *CommandHandler) cmdSearch(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /search <query> [limit]")
	}

	query := args[0]
	limit := 20

	// Check if last arg is a number (limit)
	if len(args) > 1 {
		if l, err := strconv.Atoi(args[len(args)-1]); err == nil && l > 0 {
			limit = l
			query = strings.Join(args[:len(args)-1], " ")
		} else {
			query = strings.Join(args, " ")
		}
	}

	messages, err := h.msgSvc.SearchMessages(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	return map[string]interface{}{
		"query":    query,
		"messages": toMessageInfos(messages),
		"count":    len(messages),
	}, nil
}

// SubscribeEvents subscribes to sync events for streaming into a CLI mode
func (h *CommandHandler) SubscribeEvents(eventTypes []domain.EventType) <-chan Event {
	if len(eventTypes) == 0 {
		eventTypes = []domain.EventType{
			domain.EventTypeMessageReceived,
			domain.EventTypeMessageSent,
			domain.EventTypeTyping,
			domain.EventTypeConnectionStatus,
		}
	}

	eventBus := h.syncSvc.EventBus()
	domainChan := eventBus.Subscribe(eventTypes)

	resultChan := make(chan Event)

	go func() {
		defer close(resultChan)
		for evt := range domainChan {
			var eventType string
			var data interface{}

			switch e := evt.(type) {
			case domain.MessageReceivedEvent:
				eventType = "message_received"
				data = toMessageInfo(e.Message)
			case domain.MessageSentEvent:
				eventType = "message_sent"
				data = toMessageInfo(e.Message)
			case domain.TypingEvent:
				eventType = "typing"
				data = map[string]string{
					"room":      e.RoomName,
					"sender_id": e.SenderID,
				}
			case domain.DirectoryUpdatedEvent:
				eventType = "directory_updated"
				data = toConnectionInfos(e.Connections)
			case domain.MessageReadEvent:
				eventType = "message_read"
				data = map[string]string{"room": e.RoomName}
			case domain.ConnectionStatusEvent:
				eventType = "connection_status"
				data = map[string]interface{}{
					"connected": e.Connected,
					"reason":    e.Reason,
				}
			default:
				continue
			}

			resultChan <- Event{
				Type:      eventType,
				Timestamp: time.Now(),
				Data:      data,
			}
		}
	}()

	return resultChan
}

func toConnectionInfos(conns []domain.Connection) []ConnectionInfo {
	result := make([]ConnectionInfo, len(conns))
	for i, c := range conns {
		result[i] = ConnectionInfo{
			ConnectionID:    c.ID,
			RoomName:        c.Room(),
			PeerName:        c.PeerName,
			Status:          string(c.Status),
			UnreadCount:     c.UnreadCount,
			LastMessageText: c.LastMessageText,
			LastMessageTime: c.LastMessageTime,
		}
	}
	return result
}

func toMessageInfo(msg *domain.Message) MessageInfo {
	return MessageInfo{
		ID:        msg.ID,
		RoomName:  msg.RoomName,
		SenderID:  msg.SenderID,
		Text:      msg.Text,
		FileURL:   msg.FileURL,
		FileType:  string(msg.FileType),
		Timestamp: msg.CreatedAt,
		IsFromMe:  msg.IsFromMe,
		Pending:   msg.Pending,
	}
}

func toMessageInfos(msgs []*domain.Message) []MessageInfo {
	result := make([]MessageInfo, len(msgs))
	for i, msg := range msgs {
		result[i] = toMessageInfo(msg)
	}
	return result
}
