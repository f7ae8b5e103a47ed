package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/skyvolunteer/transferbot/internal/records"
	"github.com/skyvolunteer/transferbot/internal/session"
)

const (
	msgGenericFailure   = "Something went wrong and your registration was reset. Please start over with /register_passenger, /register_volunteer or /register_user."
	msgUnknownCommand   = "Unknown command. Send /help to see what I can do."
	msgMediaUnsupported = "I cannot process attachments in this chat. Send /help to see available commands."
	msgMediaFailure     = "Could not process your attachment. Please try sending it again later."
	msgNoActiveDialog   = "There is no registration in progress. Send /help to see available commands."
	msgCancelled        = "Registration cancelled. You can start again any time with /register_passenger, /register_volunteer or /register_user."
	msgNothingToCancel  = "Nothing to cancel - no registration in progress."

	msgAskFullName  = "Please send your full name: first and last, for example \"John Smith\"."
	msgBadFullName  = "That does not look like a full name. Please send at least a first and a last name, for example \"John Smith\"."
	msgAskLegalName = "Now send your legal name exactly as it appears in your ID documents."
	msgAskCity      = "Which city do you drive in?"
	msgBadCity      = "Please send the name of your city, for example \"Boston\"."
	msgAskPhone     = "Your phone number, for example +1 555 000-1122."
	msgBadPhone     = "That does not look like a phone number. Examples: +15550001122 or 8 (555) 000-11-22."
	msgAskUsername  = "Please send your dashboard username, for example ops_one."
	msgBadUsername  = "Please send a single username, for example ops_one."

	msgHelp = `I register passengers, volunteer drivers and dashboard users for the flight transfer service.

/register_passenger - register as a passenger
/register_volunteer - register as a volunteer driver
/register_user - link your dashboard account to this chat
/my_roles - show roles linked to this chat
/cancel - cancel an in-progress registration`
)

func roleTitle(kind records.Kind) string {
	switch kind {
	case records.KindPassenger:
		return "passenger"
	case records.KindVolunteer:
		return "volunteer driver"
	case records.KindDashboardUser:
		return "dashboard user"
	}
	return string(kind)
}

func (e *Engine) cmdStart(_ context.Context, ev Event) error {
	e.reply(ev.ChatID, "Welcome to the flight transfer service!\n\n"+msgHelp)
	return nil
}

func (e *Engine) cmdHelp(_ context.Context, ev Event) error {
	e.reply(ev.ChatID, msgHelp)
	return nil
}

func (e *Engine) cmdCancel(_ context.Context, ev Event) error {
	if _, ok := e.sessions.Get(ev.ChatID); !ok {
		e.reply(ev.ChatID, msgNothingToCancel)
		return nil
	}
	e.sessions.Delete(ev.ChatID)
	e.reply(ev.ChatID, msgCancelled)
	return nil
}

func (e *Engine) cmdMyRoles(ctx context.Context, ev Event) error {
	bound, err := e.resolver.BoundRoles(ctx, ev.ChatID)
	if err != nil {
		return fmt.Errorf("cmdMyRoles: %w", err)
	}
	if len(bound) == 0 {
		e.reply(ev.ChatID, "No roles are linked to this chat yet. Send /help to register.")
		return nil
	}

	lines := make([]string, 0, len(bound))
	for _, rec := range bound {
		lines = append(lines, fmt.Sprintf("- %s: %s", roleTitle(rec.Kind), rec.DisplayName))
	}
	e.reply(ev.ChatID, "Roles linked to this chat:\n"+strings.Join(lines, "\n"))
	return nil
}

// dialogKindOf maps each dialog to the record kind it registers.
func dialogKindOf(dialog session.DialogKind) records.Kind {
	switch dialog {
	case session.DialogPassenger, session.DialogPassengerLegacy:
		return records.KindPassenger
	case session.DialogVolunteer, session.DialogVolunteerLegacy:
		return records.KindVolunteer
	default:
		return records.KindDashboardUser
	}
}

func firstStepOf(dialog session.DialogKind) (session.Step, string) {
	if dialog == session.DialogDashboardUser {
		return session.StepUsername, msgAskUsername
	}
	return session.StepFullName, msgAskFullName
}

// beginDialog returns the command handler starting the given dialog. Starting
// over a live session overwrites it; collected fields are never merged.
func (e *Engine) beginDialog(dialog session.DialogKind) func(ctx context.Context, ev Event) error {
	return func(ctx context.Context, ev Event) error {
		kind := dialogKindOf(dialog)

		existing, bound, err := e.resolver.BoundRecord(ctx, kind, ev.ChatID)
		if err != nil {
			return fmt.Errorf("beginDialog: %w", err)
		}
		if bound {
			e.reply(ev.ChatID, fmt.Sprintf(
				"This chat is already registered as %s %q. Send /my_roles to see all your roles.",
				roleTitle(kind), existing.DisplayName))
			return nil
		}

		intro := ""
		others, err := e.resolver.BoundRoles(ctx, ev.ChatID)
		if err != nil {
			// The intro is cosmetic; the dialog still starts without it.
			slog.Warn("listing bound roles failed", "chat_id", ev.ChatID, "error", err)
		} else if len(others) > 0 {
			titles := make([]string, 0, len(others))
			for _, rec := range others {
				titles = append(titles, roleTitle(rec.Kind))
			}
			intro = fmt.Sprintf("This chat is already registered as: %s. Adding one more role.\n\n",
				strings.Join(titles, ", "))
		}

		step, prompt := firstStepOf(dialog)
		e.sessions.Put(session.New(ev.ChatID, dialog, step))
		e.reply(ev.ChatID, intro+prompt)
		return nil
	}
}

// handleText advances the chat's active dialog by one validated step.
// Invalid input re-prompts the same step without losing collected fields.
func (e *Engine) handleText(ctx context.Context, ev Event) error {
	ses, ok := e.sessions.Get(ev.ChatID)
	if !ok {
		e.reply(ev.ChatID, msgNoActiveDialog)
		return nil
	}

	text := strings.TrimSpace(ev.Text)

	switch ses.Step {
	case session.StepFullName:
		if !validFullName(text) {
			e.reply(ev.ChatID, msgBadFullName)
			return nil
		}
		ses.Fields.Set("full_name", text)
		switch ses.Dialog {
		case session.DialogPassenger:
			// The short flow reuses the full name as the legal name and
			// commits immediately.
			return e.finishRegistration(ctx, ses)
		case session.DialogPassengerLegacy, session.DialogVolunteerLegacy:
			return e.advance(ses, session.StepLegalName, msgAskLegalName)
		default:
			return e.advance(ses, session.StepCity, msgAskCity)
		}

	case session.StepLegalName:
		if !validFullName(text) {
			e.reply(ev.ChatID, msgBadFullName)
			return nil
		}
		ses.Fields.Set("legal_name", text)
		if ses.Dialog == session.DialogPassengerLegacy {
			return e.finishRegistration(ctx, ses)
		}
		return e.advance(ses, session.StepCity, msgAskCity)

	case session.StepCity:
		if !validCity(text) {
			e.reply(ev.ChatID, msgBadCity)
			return nil
		}
		ses.Fields.Set("city", text)
		return e.advance(ses, session.StepPhone, msgAskPhone)

	case session.StepPhone:
		if !validPhone(text) {
			e.reply(ev.ChatID, msgBadPhone)
			return nil
		}
		ses.Fields.Set("phone", text)
		return e.finishRegistration(ctx, ses)

	case session.StepUsername:
		if !validUsername(text) {
			e.reply(ev.ChatID, msgBadUsername)
			return nil
		}
		return e.linkDashboardUser(ctx, ses, text)
	}

	return fmt.Errorf("handleText: unknown step %q for chat %d", ses.Step, ses.ChatID)
}

func (e *Engine) advance(ses session.Session, step session.Step, prompt string) error {
	ses.Step = step
	e.sessions.Put(ses)
	e.reply(ses.ChatID, prompt)
	return nil
}

// finishRegistration commits the collected fields through role resolution
// and ends the dialog. Whatever the outcome, the session is gone afterwards.
func (e *Engine) finishRegistration(ctx context.Context, ses session.Session) error {
	fullName, _ := ses.Fields.Get("full_name")
	legalName, _ := ses.Fields.Get("legal_name")
	city, _ := ses.Fields.Get("city")
	phone, _ := ses.Fields.Get("phone")

	claimed := records.Record{
		Kind:        dialogKindOf(ses.Dialog),
		DisplayName: fullName,
		LegalName:   legalName,
		City:        city,
		Phone:       phone,
	}

	outcome, rec, err := e.resolver.Resolve(ctx, claimed, ses.ChatID)
	if err != nil {
		return fmt.Errorf("finishRegistration: %w", err)
	}

	e.sessions.Delete(ses.ChatID)

	title := roleTitle(claimed.Kind)
	switch outcome {
	case records.Conflict:
		e.reply(ses.ChatID, fmt.Sprintf(
			"A %s named %q is already linked to another chat. If that is you, contact the coordinators; otherwise check the spelling and run the registration command again.",
			title, rec.DisplayName))
	case records.BoundExisting:
		e.reply(ses.ChatID, fmt.Sprintf(
			"Welcome back, %s! This chat is now linked to your existing %s record.\n\nSend /my_roles to see your roles.",
			rec.DisplayName, title))
	default:
		e.reply(ses.ChatID, fmt.Sprintf(
			"Done! You are registered as %s %q.\n\nYou will get flight updates in this chat. Send /my_roles to see your roles, or /help for everything else.",
			title, rec.DisplayName))
	}
	return nil
}

func (e *Engine) linkDashboardUser(ctx context.Context, ses session.Session, username string) error {
	outcome, rec, err := e.resolver.LinkDashboardUser(ctx, username, ses.ChatID)
	if errors.Is(err, records.ErrUsernameNotFound) {
		e.sessions.Delete(ses.ChatID)
		e.reply(ses.ChatID, fmt.Sprintf(
			"Username %q was not found. Dashboard accounts are created by the coordinators - check the spelling or contact them, then run /register_user again.",
			username))
		return nil
	}
	if err != nil {
		return fmt.Errorf("linkDashboardUser: %w", err)
	}

	e.sessions.Delete(ses.ChatID)

	if outcome == records.Conflict {
		e.reply(ses.ChatID, fmt.Sprintf(
			"Dashboard account %q is already linked to another chat. If that is you, contact the coordinators.",
			rec.Username))
		return nil
	}

	airports := "all airports"
	if len(rec.AllowedAirports) > 0 {
		airports = strings.Join(rec.AllowedAirports, ", ")
	}
	e.reply(ses.ChatID, fmt.Sprintf(
		"Dashboard account %q is now linked to this chat (%s).\n\nSend /my_roles to see your roles.",
		rec.Username, airports))
	return nil
}
