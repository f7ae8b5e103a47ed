// Package engine is the conversational core of the bot: it classifies
// inbound chat events, suppresses redeliveries, and drives the multi-step
// registration dialogs against the people registry.
package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/skyvolunteer/transferbot/internal/dedup"
	"github.com/skyvolunteer/transferbot/internal/records"
	"github.com/skyvolunteer/transferbot/internal/session"
)

// Sender delivers outbound replies. The Telegram adapter implements it; tests
// substitute a recorder.
type Sender interface {
	SendMessage(chatID int64, text string) error
	EditMessage(chatID int64, messageID int, text string) error
}

// MediaHandler is the external collaborator for photo/document uploads
// (ticket scans go to an OCR pipeline outside this engine). The engine only
// gates uploads through the media dedup guard before handing them over.
type MediaHandler interface {
	HandleMedia(ctx context.Context, ev Event) error
}

const lockShards = 16

// Engine processes one event at a time per chat. Different chats proceed
// concurrently; a sharded lock keyed by chat id keeps each conversation
// serialized even if the transport redelivers out of order.
type Engine struct {
	sessions *session.Store
	resolver *records.Resolver
	sender   Sender
	primary  *dedup.Guard
	media    *dedup.Guard

	mediaHandler MediaHandler
	commands     map[string]func(ctx context.Context, ev Event) error

	locks [lockShards]sync.Mutex
}

func New(sessions *session.Store, resolver *records.Resolver, sender Sender, primary, media *dedup.Guard) *Engine {
	e := &Engine{
		sessions: sessions,
		resolver: resolver,
		sender:   sender,
		primary:  primary,
		media:    media,
	}
	e.commands = map[string]func(ctx context.Context, ev Event) error{
		"start":                   e.cmdStart,
		"help":                    e.cmdHelp,
		"cancel":                  e.cmdCancel,
		"my_roles":                e.cmdMyRoles,
		"register_passenger":      e.beginDialog(session.DialogPassenger),
		"register_passenger_full": e.beginDialog(session.DialogPassengerLegacy),
		"register_volunteer":      e.beginDialog(session.DialogVolunteer),
		"register_volunteer_full": e.beginDialog(session.DialogVolunteerLegacy),
		"register_user":           e.beginDialog(session.DialogDashboardUser),
	}
	return e
}

// SetMediaHandler wires the upload collaborator. Without one, uploads get a
// polite brush-off instead of silence.
func (e *Engine) SetMediaHandler(h MediaHandler) {
	e.mediaHandler = h
}

// HandleEvent is the single entry point for the transport adapter. Duplicate
// deliveries are dropped before any side effect; everything else runs under
// the chat's lock.
func (e *Engine) HandleEvent(ctx context.Context, ev Event) {
	lock := &e.locks[uint64(ev.ChatID)%lockShards]
	lock.Lock()
	defer lock.Unlock()

	switch ev.Kind {
	case EventPhoto, EventDocument:
		if !e.media.Accept(ev.Key()) {
			return
		}
		e.handleMedia(ctx, ev)
	default:
		if !e.primary.Accept(ev.Key()) {
			return
		}
		if err := e.dispatch(ctx, ev); err != nil {
			// Fail closed: a half-applied step must not leave a session
			// whose collected fields disagree with what was persisted.
			slog.Error("event handling failed",
				"chat_id", ev.ChatID, "kind", ev.Kind, "error", err)
			e.sessions.Delete(ev.ChatID)
			e.reply(ev.ChatID, msgGenericFailure)
		}
	}
}

func (e *Engine) dispatch(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case EventCommand:
		handler, ok := e.commands[ev.Command]
		if !ok {
			e.reply(ev.ChatID, msgUnknownCommand)
			return nil
		}
		return handler(ctx, ev)
	case EventCallback:
		// Callback payloads carry the same command grammar as typed input.
		return e.dispatch(ctx, ClassifyText(ev.ChatID, ev.MessageID, ev.Text))
	default:
		return e.handleText(ctx, ev)
	}
}

func (e *Engine) handleMedia(ctx context.Context, ev Event) {
	if e.mediaHandler == nil {
		e.reply(ev.ChatID, msgMediaUnsupported)
		return
	}
	if err := e.mediaHandler.HandleMedia(ctx, ev); err != nil {
		slog.Error("media handling failed", "chat_id", ev.ChatID, "error", err)
		e.reply(ev.ChatID, msgMediaFailure)
	}
}

// reply sends best-effort; a failed outbound write is logged, not escalated,
// so it never triggers the fail-closed session teardown.
func (e *Engine) reply(chatID int64, text string) {
	if err := e.sender.SendMessage(chatID, text); err != nil {
		slog.Error("send failed", "chat_id", chatID, "error", err)
	}
}
