package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/skyvolunteer/transferbot/internal/config"
	"github.com/skyvolunteer/transferbot/internal/dedup"
	"github.com/skyvolunteer/transferbot/internal/engine"
	"github.com/skyvolunteer/transferbot/internal/media"
	"github.com/skyvolunteer/transferbot/internal/records"
	"github.com/skyvolunteer/transferbot/internal/session"
	"github.com/skyvolunteer/transferbot/internal/storage"
	"github.com/skyvolunteer/transferbot/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	blobs, err := newStateBackend(ctx, cfg)
	if err != nil {
		slog.Error("failed to open state backend", "error", err)
		os.Exit(1)
	}

	repo, err := newRepository(ctx, cfg)
	if err != nil {
		slog.Error("failed to open record repository", "error", err)
		os.Exit(1)
	}

	sessions := session.NewStore(blobs)
	if err := sessions.Load(ctx); err != nil {
		slog.Error("failed to load sessions", "error", err)
		os.Exit(1)
	}
	go sessions.Run(ctx)

	primary := dedup.New(cfg.GuardCapacity, cfg.GuardSnapshotEvery, blobs, "dedup_primary")
	mediaGuard := dedup.New(cfg.GuardCapacity, cfg.GuardSnapshotEvery, blobs, "dedup_media")
	if err := primary.Load(ctx); err != nil {
		slog.Warn("could not restore primary dedup window", "error", err)
	}
	if err := mediaGuard.Load(ctx); err != nil {
		slog.Warn("could not restore media dedup window", "error", err)
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		slog.Error("failed to create telegram bot", "error", err)
		os.Exit(1)
	}

	transport := telegram.New(botAPI)
	eng := engine.New(sessions, records.NewResolver(repo), transport, primary, mediaGuard)
	transport.SetHandler(eng)

	fetcher, err := media.NewFetcher(botAPI, transport, cfg.TicketsDir)
	if err != nil {
		slog.Error("failed to create ticket fetcher", "error", err)
		os.Exit(1)
	}
	eng.SetMediaHandler(fetcher)

	slog.Info("bot started",
		"account", botAPI.Self.UserName,
		"mode", cfg.Mode,
		"repo_backend", cfg.RepoBackend,
		"state_backend", cfg.StateBackend,
	)

	switch cfg.Mode {
	case config.ModeWebhook:
		if err := transport.ServeWebhook(ctx, cfg.WebhookAddr, cfg.WebhookPath); err != nil {
			slog.Error("webhook server failed", "error", err)
			os.Exit(1)
		}
	default:
		transport.Poll(ctx)
	}

	slog.Info("bot stopped")
}

func newStateBackend(ctx context.Context, cfg *config.Config) (storage.Blobs, error) {
	if cfg.StateBackend == config.StateSheets {
		return storage.NewSheetsBlobs(ctx, cfg.SheetsCredentialsPath, cfg.SpreadsheetID, "state")
	}
	return storage.NewFileBlobs(cfg.DataDir)
}

func newRepository(ctx context.Context, cfg *config.Config) (records.Repository, error) {
	switch cfg.RepoBackend {
	case config.RepoSheets:
		return records.NewSheets(ctx, cfg.SheetsCredentialsPath, cfg.SpreadsheetID)
	case config.RepoMemory:
		return records.NewMemory(), nil
	default:
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
		db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("cannot connect to database: %w", err)
		}
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
		return records.NewPostgres(db), nil
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}
