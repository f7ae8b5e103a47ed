package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	"github.com/skyvolunteer/transferbot/internal/engine"
)

func TestToEventCommandMessage(t *testing.T) {
	update := tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1001,
		Chat:      &tgbotapi.Chat{ID: 42},
		Text:      "/register_passenger",
	}}

	ev, ok := toEvent(update)
	require.True(t, ok)
	require.Equal(t, engine.EventCommand, ev.Kind)
	require.Equal(t, "register_passenger", ev.Command)
	require.Equal(t, int64(42), ev.ChatID)
	require.Equal(t, 1001, ev.MessageID)
}

func TestToEventPhotoUsesLargestSize(t *testing.T) {
	update := tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1002,
		Chat:      &tgbotapi.Chat{ID: 42},
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small"},
			{FileID: "large"},
		},
	}}

	ev, ok := toEvent(update)
	require.True(t, ok)
	require.Equal(t, engine.EventPhoto, ev.Kind)
	require.Equal(t, "large", ev.FileID)
}

func TestToEventDocument(t *testing.T) {
	update := tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1003,
		Chat:      &tgbotapi.Chat{ID: 42},
		Document:  &tgbotapi.Document{FileID: "doc1"},
	}}

	ev, ok := toEvent(update)
	require.True(t, ok)
	require.Equal(t, engine.EventDocument, ev.Kind)
	require.Equal(t, "doc1", ev.FileID)
}

func TestToEventCallback(t *testing.T) {
	update := tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		Data: "/my_roles",
		Message: &tgbotapi.Message{
			MessageID: 1004,
			Chat:      &tgbotapi.Chat{ID: 42},
		},
	}}

	ev, ok := toEvent(update)
	require.True(t, ok)
	require.Equal(t, engine.EventCallback, ev.Kind)
	require.Equal(t, "/my_roles", ev.Text)
}

func TestToEventSkipsEmptyUpdates(t *testing.T) {
	_, ok := toEvent(tgbotapi.Update{})
	require.False(t, ok)

	_, ok = toEvent(tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1005,
		Chat:      &tgbotapi.Chat{ID: 42},
	}})
	require.False(t, ok)
}
