package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/domain"
	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/repository"
)

// Seeds a local cache database with fake connections and message history
// so the CLI can be exercised without a live backend.
func main() {
	dbPath := "seed_messaging.db"
	if len(os.Args) > 1 {
		dbPath = os.Args[1]
	}

	fmt.Printf("Using database at: %s\n", dbPath)

	db, err := initDatabase(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	ctx := context.Background()
	if err := db.WithContext(ctx).Exec("DELETE FROM messages").Error; err != nil {
		log.Fatalf("Failed to delete messages: %v", err)
	}
	fmt.Println("Deleted all cached messages")

	if err := seedCache(db); err != nil {
		log.Fatalf("Failed to seed cache: %v", err)
	}

	fmt.Println("Successfully seeded connections and messages")
	fmt.Printf("Database location: %s\n", dbPath)
}

func initDatabase(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	db.Exec("PRAGMA journal_mode=WAL")

	err = db.AutoMigrate(
		&repository.MessageModel{},
		&repository.ConnectionModel{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

func seedCache(db *gorm.DB) error {
	peerNames := []string{
		"Alice Johnson",
		"Bob Smith",
		"Charlie Brown",
		"Diana Prince",
		"Eve Wilson",
		"Frank Miller",
		"Grace Lee",
		"Henry Davis",
	}

	sampleTexts := []string{
		"Hey! Is the position still open?",
		"Thanks for reaching out!",
		"Can we schedule a call tomorrow?",
		"I've attached my updated resume",
		"That shift works for me",
		"Looking forward to the interview!",
		"What time works for you?",
		"Perfect, I'll be there",
		"Let me check with the manager",
		"Sounds good, talk soon",
		"Do you have availability this week?",
		"Thanks for your time today",
	}

	selfID := "seed-user"
	now := time.Now()

	connRepo := repository.NewConnectionRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	ctx := context.Background()

	conns := make([]domain.Connection, 0, len(peerNames))
	for i, name := range peerNames {
		connID := fmt.Sprintf("conn-%04d", 1000+i)
		status := domain.ConnectionStatusApproved
		if rand.Float32() < 0.2 {
			status = domain.ConnectionStatusPending
		}
		conns = append(conns, domain.Connection{
			ID:         connID,
			PeerUserID: fmt.Sprintf("user-%04d", 2000+i),
			PeerName:   name,
			Status:     status,
			RoomName:   domain.DeriveRoomName(connID),
			CreatedAt:  now.Add(-time.Duration(7+i) * 24 * time.Hour),
		})
	}

	for i := range conns {
		conn := &conns[i]
		room := conn.Room()

		// 8-15 messages per room, spread over the last couple of days
		numMessages := 8 + rand.Intn(8)
		daysAgo := 1 + rand.Intn(2)
		at := now.Add(-time.Duration(daysAgo) * 24 * time.Hour)

		var last *domain.Message
		unread := 0

		for j := 0; j < numMessages; j++ {
			if j > 0 {
				at = at.Add(time.Duration(10+rand.Intn(50)) * time.Minute)
				if at.After(now) {
					at = now.Add(-time.Duration(rand.Intn(30)) * time.Minute)
				}
			}

			isFromMe := rand.Float32() < 0.4
			msg := &domain.Message{
				ID:        uuid.NewString(),
				RoomName:  room,
				Text:      sampleTexts[rand.Intn(len(sampleTexts))],
				CreatedAt: at,
				IsFromMe:  isFromMe,
				IsRead:    true,
			}
			if isFromMe {
				msg.SenderID = selfID
				msg.RecipientID = conn.PeerUserID
			} else {
				msg.SenderID = conn.PeerUserID
				msg.RecipientID = selfID
				// Trailing peer messages stay unread now and then
				if j >= numMessages-2 && rand.Float32() < 0.5 {
					msg.IsRead = false
					unread++
				}
			}

			if err := msgRepo.CreateOrIgnore(ctx, msg); err != nil {
				return fmt.Errorf("failed to create message: %w", err)
			}
			last = msg
		}

		conn.LastMessageText = last.Text
		conn.LastMessageTime = last.CreatedAt
		conn.UnreadCount = unread
	}

	if err := connRepo.ReplaceAll(ctx, conns); err != nil {
		return fmt.Errorf("failed to store connections: %w", err)
	}

	for _, conn := range conns {
		fmt.Printf("Seeded %s (%s) unread=%d\n", conn.PeerName, conn.Room(), conn.UnreadCount)
	}

	return nil
}
