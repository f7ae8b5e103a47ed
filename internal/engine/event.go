package engine

import (
	"fmt"
	"strings"
)

// EventKind tags an inbound event after classification. Classification
// happens exactly once, at the transport boundary; downstream code never
// re-checks "is this a command".
type EventKind string

const (
	EventCommand  EventKind = "command"
	EventText     EventKind = "text"
	EventPhoto    EventKind = "photo"
	EventDocument EventKind = "document"
	EventCallback EventKind = "callback"
)

// Event is one inbound chat event, already classified.
type Event struct {
	ChatID    int64
	MessageID int
	Kind      EventKind
	Command   string // set when Kind == EventCommand, without leading slash
	Args      string
	Text      string
	FileID    string // set for photo/document events
}

// Key is the idempotency key: conversation plus platform message id. The
// media pipeline uses its own guard instance, so text and media events with
// the same key never collide.
func (e Event) Key() string {
	return fmt.Sprintf("%d:%d", e.ChatID, e.MessageID)
}

// ClassifyText turns a raw message text into a command or free-text event.
// A command is a leading-slash word; an "@botname" suffix on the command is
// stripped so group-style mentions dispatch the same way.
func ClassifyText(chatID int64, messageID int, text string) Event {
	ev := Event{ChatID: chatID, MessageID: messageID, Text: text}

	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		ev.Kind = EventText
		return ev
	}

	name := trimmed[1:]
	args := ""
	if i := strings.IndexAny(name, " \t"); i >= 0 {
		args = strings.TrimSpace(name[i+1:])
		name = name[:i]
	}
	if i := strings.Index(name, "@"); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		ev.Kind = EventText
		return ev
	}

	ev.Kind = EventCommand
	ev.Command = strings.ToLower(name)
	ev.Args = args
	return ev
}
