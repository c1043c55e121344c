package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/domain"
)

// InteractiveCLI handles interactive command-line interface
type InteractiveCLI struct {
	handler *CommandHandler
	reader  *bufio.Reader
	writer  io.Writer
}

// NewInteractiveCLI creates a new interactive CLI
func NewInteractiveCLI(handler *CommandHandler) *InteractiveCLI {
	return &InteractiveCLI{
		handler: handler,
		reader:  bufio.NewReader(os.Stdin),
		writer:  os.Stdout,
	}
}

// Run starts the interactive CLI loop
func (cli *InteractiveCLI) Run(ctx context.Context) error {
	cli.printWelcome()

	// Subscribe to events in background
	eventChan := cli.handler.SubscribeEvents([]domain.EventType{
		domain.EventTypeMessageReceived,
		domain.EventTypeTyping,
		domain.EventTypeConnectionStatus,
	})

	go cli.handleEvents(eventChan)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			cli.print("\n> ")
			line, err := cli.reader.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}

			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			if err := cli.processCommand(ctx, line); err != nil {
				if err.Error() == "quit" {
					cli.println("Goodbye!")
					return nil
				}
				cli.printf("Error: %s\n", err)
			}
		}
	}
}

func (cli *InteractiveCLI) printWelcome() {
	cli.println("===========================================")
	cli.println("  JobJar Messaging Bridge CLI")
	cli.println("===========================================")
	cli.println("Type /help for available commands")
	cli.println("")

	// Show current status
	status, _ := cli.handler.cmdStatus()
	if s, ok := status.(ConnectionStatus); ok {
		cli.printf("Status: %s\n", s.Status)
	}
}

func (cli *InteractiveCLI) processCommand(ctx context.Context, input string) error {
	cmd, err := ParseCommand(input)
	if err != nil {
		return err
	}

	result, err := cli.handler.Execute(ctx, cmd)
	if err != nil {
		return err
	}

	// Check for quit command
	if m, ok := result.(map[string]bool); ok && m["quit"] {
		return fmt.Errorf("quit")
	}

	// Format and display result
	cli.displayResult(cmd.Name, result)
	return nil
}

func (cli *InteractiveCLI) displayResult(cmdName string, result interface{}) {
	switch cmdName {
	case "help", "h":
		if m, ok := result.(map[string]string); ok {
			cli.println(m["help"])
		}

	case "status", "s":
		if s, ok := result.(ConnectionStatus); ok {
			cli.printf("Channel: %s\n", s.Status)
		}

	case "chats", "ls", "refresh", "r":
		if m, ok := result.(map[string]interface{}); ok {
			conns, _ := m["connections"].([]ConnectionInfo)
			cli.printf("Found %d connection(s):\n\n", len(conns))
			for i, conn := range conns {
				unread := ""
				if conn.UnreadCount > 0 {
					unread = fmt.Sprintf(" [%d unread]", conn.UnreadCount)
				}
				cli.printf("%d. %s (%s)%s\n", i+1, conn.PeerName, conn.Status, unread)
				cli.printf("   Room: %s\n", conn.RoomName)
				if conn.LastMessageText != "" {
					preview := conn.LastMessageText
					if len(preview) > 50 {
						preview = preview[:50] + "..."
					}
					cli.printf("   Last: %s\n", preview)
				}
			}
		}

	case "messages", "msg", "open", "o":
		if m, ok := result.(map[string]interface{}); ok {
			messages, _ := m["messages"].([]MessageInfo)
			cli.printf("Found %d message(s):\n\n", len(messages))
			now := time.Now()
			for _, msg := range messages {
				sender := "Me"
				if !msg.IsFromMe {
					sender = msg.SenderID
				}
				cli.printf("[%s] %s:\n", domain.RelativeTime(msg.Timestamp, now), sender)
				if msg.FileURL != "" {
					cli.printf("  [%s] %s\n", msg.FileType, msg.FileURL)
				}
				if msg.Text != "" {
					cli.printf("  %s\n", msg.Text)
				}
				if msg.Pending {
					cli.println("  (sending...)")
				}
			}
			if typing, ok := m["typing"].([]string); ok && len(typing) > 0 {
				cli.printf("Typing: %s\n", strings.Join(typing, ", "))
			}
		}

	case "send", "send-file", "file":
		if msg, ok := result.(MessageInfo); ok {
			cli.printf("Message sent!\n")
			cli.printf("  Room: %s\n", msg.RoomName)
			cli.printf("  Time: %s\n", msg.Timestamp.Format("2006-01-02 15:04:05"))
		}

	case "search":
		if m, ok := result.(map[string]interface{}); ok {
			query, _ := m["query"].(string)
			messages, _ := m["messages"].([]MessageInfo)
			cli.printf("Search results for '%s' (%d found):\n\n", query, len(messages))
			for i, msg := range messages {
				sender := "Me"
				if !msg.IsFromMe {
					sender = msg.SenderID
				}
				cli.printf("%d. [%s] %s:\n", i+1, msg.Timestamp.Format("2006-01-02 15:04"), sender)
				text := msg.Text
				if len(text) > 80 {
					text = text[:80] + "..."
				}
				cli.printf("   %s\n", text)
				cli.printf("   Room: %s\n\n", msg.RoomName)
			}
		}

	default:
		// Generic JSON output for other commands
		if m, ok := result.(map[string]string); ok {
			if msg, exists := m["message"]; exists {
				cli.println(msg)
				return
			}
		}
		// Pretty print JSON
		data, _ := json.MarshalIndent(result, "", "  ")
		cli.println(string(data))
	}
}

func (cli *InteractiveCLI) handleEvents(eventChan <-chan Event) {
	for event := range eventChan {
		switch event.Type {
		case "message_received":
			if msg, ok := event.Data.(MessageInfo); ok {
				cli.printf("\n[New Message] %s in %s:\n", msg.SenderID, msg.RoomName)
				if msg.Text != "" {
					cli.printf("  %s\n", msg.Text)
				} else {
					cli.printf("  [%s]\n", msg.FileType)
				}
				cli.print("> ")
			}
		case "typing":
			if data, ok := event.Data.(map[string]string); ok {
				cli.printf("\n[%s is typing in %s]\n> ", data["sender_id"], data["room"])
			}
		case "connection_status":
			if data, ok := event.Data.(map[string]interface{}); ok {
				connected, _ := data["connected"].(bool)
				if connected {
					cli.println("\n[Channel connected]")
				} else {
					reason, _ := data["reason"].(string)
					cli.printf("\n[Channel disconnected: %s]\n", reason)
				}
				cli.print("> ")
			}
		}
	}
}

func (cli *InteractiveCLI) print(s string) {
	fmt.Fprint(cli.writer, s)
}

func (cli *InteractiveCLI) println(s string) {
	fmt.Fprintln(cli.writer, s)
}

func (cli *InteractiveCLI) printf(format string, args ...interface{}) {
	fmt.Fprintf(cli.writer, format, args...)
}
