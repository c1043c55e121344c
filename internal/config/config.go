package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
)

type Config struct {
	Mode         string
	APIBaseURL   string
	SocketURL    string
	DatabasePath string
	LogLevel     string
	AuthToken    string
	UserID       string
}

func Load() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".jobjar-bridge")

	cfg := &Config{}

	flag.StringVar(&cfg.Mode, "mode", "interactive", "Run mode: interactive or headless")
	flag.StringVar(&cfg.APIBaseURL, "api", getEnv("JJ_API_BASE_URL", "https://jobjar.ai:3001/api"), "Platform HTTP API base URL")
	flag.StringVar(&cfg.SocketURL, "socket", getEnv("JJ_SOCKET_URL", "wss://jobjar.ai:3001/socket"), "Realtime channel URL")
	flag.StringVar(&cfg.DatabasePath, "db", getEnv("JJ_DATABASE_PATH", filepath.Join(dataDir, "messaging.db")), "Cache database file path")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("JJ_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	flag.StringVar(&cfg.AuthToken, "token", os.Getenv("JJ_AUTH_TOKEN"), "Bearer auth token (or path via JJ_AUTH_TOKEN_FILE)")
	flag.StringVar(&cfg.UserID, "user", os.Getenv("JJ_USER_ID"), "Current user id")

	flag.Parse()

	if cfg.AuthToken == "" {
		if path := os.Getenv("JJ_AUTH_TOKEN_FILE"); path != "" {
			if data, err := os.ReadFile(path); err == nil {
				cfg.AuthToken = strings.TrimSpace(string(data))
			}
		}
	}

	// Ensure directories exist
	os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755)

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
