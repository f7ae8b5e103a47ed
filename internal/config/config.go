package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	ModePolling = "polling"
	ModeWebhook = "webhook"

	RepoPostgres = "postgres"
	RepoSheets   = "sheets"
	RepoMemory   = "memory"

	StateFile   = "file"
	StateSheets = "sheets"
)

type Config struct {
	BotToken string

	// Mode selects how updates arrive: long polling or a webhook server.
	// It only affects delivery, not how events are handled.
	Mode        string
	WebhookAddr string
	WebhookPath string

	RepoBackend string

	// StateBackend selects where session and dedup snapshots live. The
	// engine only sees the opaque load/save contract either way.
	StateBackend string

	DBUser     string
	DBPassword string
	DBName     string
	DBHost     string
	DBPort     string

	SheetsCredentialsPath string
	SpreadsheetID         string

	DataDir            string
	TicketsDir         string
	GuardCapacity      int
	GuardSnapshotEvery int

	LogLevel string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("config.Load: no .env file found - using env variables")
	}

	cfg := &Config{
		BotToken:              os.Getenv("BOT_TOKEN"),
		Mode:                  envStr("BOT_MODE", ModePolling),
		WebhookAddr:           envStr("WEBHOOK_ADDR", ":8080"),
		WebhookPath:           envStr("WEBHOOK_PATH", "/telegram/webhook"),
		RepoBackend:           envStr("REPO_BACKEND", RepoPostgres),
		StateBackend:          envStr("STATE_BACKEND", StateFile),
		DBUser:                os.Getenv("DB_USER"),
		DBPassword:            os.Getenv("DB_PASSWORD"),
		DBName:                os.Getenv("DB_NAME"),
		DBHost:                envStr("DB_HOST", "localhost"),
		DBPort:                envStr("DB_PORT", "5432"),
		SheetsCredentialsPath: os.Getenv("SHEETS_CREDENTIALS_PATH"),
		SpreadsheetID:         os.Getenv("SPREADSHEET_ID"),
		DataDir:               envStr("DATA_DIR", "data"),
		TicketsDir:            envStr("TICKETS_DIR", "tickets"),
		GuardCapacity:         envInt("GUARD_CAPACITY", 1000),
		GuardSnapshotEvery:    envInt("GUARD_SNAPSHOT_EVERY", 10),
		LogLevel:              envStr("LOG_LEVEL", "info"),
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("config.Load: BOT_TOKEN is required")
	}

	switch cfg.Mode {
	case ModePolling, ModeWebhook:
	default:
		return nil, fmt.Errorf("config.Load: BOT_MODE must be %q or %q", ModePolling, ModeWebhook)
	}

	switch cfg.RepoBackend {
	case RepoPostgres:
		if cfg.DBUser == "" || cfg.DBPassword == "" || cfg.DBName == "" {
			return nil, fmt.Errorf("config.Load: DB_USER, DB_PASSWORD, DB_NAME are required for the postgres backend")
		}
	case RepoSheets:
		if cfg.SheetsCredentialsPath == "" || cfg.SpreadsheetID == "" {
			return nil, fmt.Errorf("config.Load: SHEETS_CREDENTIALS_PATH and SPREADSHEET_ID are required for the sheets backend")
		}
	case RepoMemory:
	default:
		return nil, fmt.Errorf("config.Load: unknown REPO_BACKEND %q", cfg.RepoBackend)
	}

	switch cfg.StateBackend {
	case StateFile:
	case StateSheets:
		if cfg.SheetsCredentialsPath == "" || cfg.SpreadsheetID == "" {
			return nil, fmt.Errorf("config.Load: SHEETS_CREDENTIALS_PATH and SPREADSHEET_ID are required for the sheets state backend")
		}
	default:
		return nil, fmt.Errorf("config.Load: unknown STATE_BACKEND %q", cfg.StateBackend)
	}

	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
