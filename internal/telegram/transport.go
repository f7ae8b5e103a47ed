// Package telegram adapts the Telegram Bot API to the engine's event model.
// Updates may arrive by long polling or by webhook; both paths classify the
// update once and hand the engine an already-tagged event.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/skyvolunteer/transferbot/internal/engine"
)

// Handler consumes classified events; the engine implements it.
type Handler interface {
	HandleEvent(ctx context.Context, ev engine.Event)
}

type Transport struct {
	api     *tgbotapi.BotAPI
	handler Handler
}

func New(api *tgbotapi.BotAPI) *Transport {
	return &Transport{api: api}
}

// SetHandler wires the event consumer. The transport is also the engine's
// Sender, so construction is two-phase: transport first, engine second.
func (t *Transport) SetHandler(handler Handler) {
	t.handler = handler
}

// SendMessage implements engine.Sender.
func (t *Transport) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("Transport.SendMessage: %w", err)
	}
	return nil
}

// EditMessage implements engine.Sender.
func (t *Transport) EditMessage(chatID int64, messageID int, text string) error {
	msg := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("Transport.EditMessage: %w", err)
	}
	return nil
}

// Poll runs the long-polling loop until ctx is cancelled.
func (t *Transport) Poll(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			t.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			t.handleUpdate(ctx, update)
		}
	}
}

// ServeWebhook runs an HTTP server delivering webhook updates until ctx is
// cancelled. Telegram itself must be pointed at the public URL separately.
func (t *Transport) ServeWebhook(ctx context.Context, addr, path string) error {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Post(path, func(w http.ResponseWriter, req *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(req.Body).Decode(&update); err != nil {
			slog.Warn("bad webhook payload", "error", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		t.handleUpdate(req.Context(), update)
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("webhook server listening", "addr", addr, "path", path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("Transport.ServeWebhook: %w", err)
	}
	return nil
}

func (t *Transport) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if t.handler == nil {
		return
	}
	ev, ok := toEvent(update)
	if !ok {
		return
	}
	if update.CallbackQuery != nil {
		// Ack the callback so the client stops its spinner.
		_, _ = t.api.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, ""))
	}
	t.handler.HandleEvent(ctx, ev)
}

// toEvent classifies one update. Updates with no chat-addressable content
// (edited messages, channel posts and the like) are skipped.
func toEvent(update tgbotapi.Update) (engine.Event, bool) {
	if cb := update.CallbackQuery; cb != nil && cb.Message != nil {
		return engine.Event{
			ChatID:    cb.Message.Chat.ID,
			MessageID: cb.Message.MessageID,
			Kind:      engine.EventCallback,
			Text:      cb.Data,
		}, true
	}

	msg := update.Message
	if msg == nil {
		return engine.Event{}, false
	}

	if len(msg.Photo) > 0 {
		return engine.Event{
			ChatID:    msg.Chat.ID,
			MessageID: msg.MessageID,
			Kind:      engine.EventPhoto,
			FileID:    msg.Photo[len(msg.Photo)-1].FileID,
		}, true
	}
	if msg.Document != nil {
		return engine.Event{
			ChatID:    msg.Chat.ID,
			MessageID: msg.MessageID,
			Kind:      engine.EventDocument,
			FileID:    msg.Document.FileID,
		}, true
	}
	if msg.Text == "" {
		return engine.Event{}, false
	}

	return engine.ClassifyText(msg.Chat.ID, msg.MessageID, msg.Text), true
}
