package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/api"
	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/channel"
	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/cli"
	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/config"
	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/domain"
	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/logger"
	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/repository"
	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/service"
)

func main() {
	cfg := config.Load()

	// Quiet structured logs in interactive mode so they don't fight the prompt
	level := cfg.LogLevel
	if cli.Mode(cfg.Mode) == cli.ModeInteractive && level == "info" {
		level = "warn"
	}
	logger.Init(level)
	log := logger.Module("main")

	session := domain.Session{UserID: cfg.UserID, Token: cfg.AuthToken}
	if !session.Valid() {
		fmt.Fprintln(os.Stderr, "missing credentials: set JJ_USER_ID and JJ_AUTH_TOKEN (or -user/-token)")
		os.Exit(1)
	}

	db, err := initDatabase(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}

	connRepo := repository.NewConnectionRepository(db)
	msgRepo := repository.NewMessageRepository(db)

	eventBus := domain.NewEventBus()
	apiClient := api.NewClient(cfg.APIBaseURL)
	ch := channel.NewClient(cfg.SocketURL)

	syncSvc := service.NewSyncService(ch, eventBus, apiClient, connRepo, msgRepo, session)
	defer syncSvc.Close()

	msgSvc := service.NewMessageService(msgRepo, connRepo, syncSvc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// Connect the channel and pull the directory before handing over to
	// the CLI. Either may fail; the CLI's /connect and /refresh retry.
	connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := syncSvc.Connect(connectCtx); err != nil {
		log.Warn().Err(err).Msg("initial channel connect failed")
	}
	if _, err := syncSvc.RefreshDirectory(connectCtx); err != nil {
		log.Warn().Err(err).Msg("initial directory load failed")
	}
	connectCancel()

	handler := cli.NewCommandHandler(syncSvc, msgSvc)

	var runErr error
	switch cli.Mode(cfg.Mode) {
	case cli.ModeHeadless:
		runErr = cli.NewHeadlessCLI(handler).Run(ctx)
	default:
		runErr = cli.NewInteractiveCLI(handler).Run(ctx)
	}
	if runErr != nil && runErr != context.Canceled {
		log.Error().Err(runErr).Msg("cli error")
	}

	syncSvc.Disconnect()
}

func initDatabase(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.NewGormLogger("gorm"),
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
