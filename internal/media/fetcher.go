// Package media receives ticket uploads. It downloads the file and drops it
// where the ticket-processing pipeline picks it up; parsing the ticket itself
// happens outside the bot.
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/skyvolunteer/transferbot/internal/engine"
)

type Fetcher struct {
	api       *tgbotapi.BotAPI
	sender    engine.Sender
	ticketDir string
}

func NewFetcher(api *tgbotapi.BotAPI, sender engine.Sender, ticketDir string) (*Fetcher, error) {
	if err := os.MkdirAll(ticketDir, 0o755); err != nil {
		return nil, fmt.Errorf("Fetcher: cannot create dir %s: %w", ticketDir, err)
	}
	return &Fetcher{api: api, sender: sender, ticketDir: ticketDir}, nil
}

// HandleMedia implements engine.MediaHandler: the upload is saved under a
// fresh name and the user gets an acknowledgement.
func (f *Fetcher) HandleMedia(ctx context.Context, ev engine.Event) error {
	path, err := f.save(ctx, ev.FileID)
	if err != nil {
		return fmt.Errorf("Fetcher.HandleMedia: %w", err)
	}
	slog.Info("ticket stored", "chat_id", ev.ChatID, "path", path)

	return f.sender.SendMessage(ev.ChatID,
		"Got your ticket. We will process it and send you flight updates in this chat.")
}

func (f *Fetcher) save(ctx context.Context, fileID string) (string, error) {
	file, err := f.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("cannot get file: %w", err)
	}

	ext := filepath.Ext(file.FilePath)
	if ext == "" {
		ext = ".jpg"
	}
	path := filepath.Join(f.ticketDir, uuid.New().String()+ext)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(f.api.Token), nil)
	if err != nil {
		return "", fmt.Errorf("cannot build download request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("cannot download file: %w", err)
	}
	defer resp.Body.Close()

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("cannot create file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", fmt.Errorf("cannot save file: %w", err)
	}
	return path, nil
}
