package records

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AlekSi/pointer"
)

// Outcome of resolving a claimed identity against the registry.
type Outcome string

const (
	BoundExisting Outcome = "bound_existing"
	CreatedNew    Outcome = "created_new"
	Conflict      Outcome = "conflict"
)

var ErrUsernameNotFound = errors.New("records: username not found")

// Resolver reconciles claimed identities against existing records so the
// same person never ends up registered twice, and a record bound to one chat
// is never silently taken over by another.
//
// The fuzzy tier exists because the same matching is used for names
// extracted from ticket scans, where the text is rarely a byte-exact match.
type Resolver struct {
	repo Repository
}

func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve matches claimed.DisplayName against existing records of
// claimed.Kind. On a match bound to a different chat it returns Conflict and
// touches nothing. On an unbound match it binds chatID. With no match it
// creates claimed with chatID pre-bound.
func (r *Resolver) Resolve(ctx context.Context, claimed Record, chatID int64) (Outcome, Record, error) {
	existing, err := r.repo.FindByKind(ctx, claimed.Kind)
	if err != nil {
		return "", Record{}, fmt.Errorf("Resolver.Resolve: %w", err)
	}

	if match, ok := findMatch(existing, claimed.DisplayName); ok {
		if match.ChatID != nil && *match.ChatID != chatID {
			return Conflict, match, nil
		}
		if match.ChatID == nil {
			if err := r.repo.BindChat(ctx, claimed.Kind, match.ID, chatID); err != nil {
				return "", Record{}, fmt.Errorf("Resolver.Resolve: %w", err)
			}
			match.ChatID = pointer.To(chatID)
		}
		return BoundExisting, match, nil
	}

	claimed.DisplayName = collapseSpaces(claimed.DisplayName)
	if claimed.LegalName == "" {
		claimed.LegalName = claimed.DisplayName
	}
	claimed.ChatID = pointer.To(chatID)

	created, err := r.repo.Create(ctx, claimed)
	if err != nil {
		return "", Record{}, fmt.Errorf("Resolver.Resolve: %w", err)
	}
	return CreatedNew, created, nil
}

// LinkDashboardUser binds chatID to a pre-existing dashboard user found by
// username. Dashboard users are provisioned out of band and only ever
// linked, never created, from a chat.
func (r *Resolver) LinkDashboardUser(ctx context.Context, username string, chatID int64) (Outcome, Record, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")

	existing, err := r.repo.FindByKind(ctx, KindDashboardUser)
	if err != nil {
		return "", Record{}, fmt.Errorf("Resolver.LinkDashboardUser: %w", err)
	}

	for _, rec := range existing {
		if !strings.EqualFold(rec.Username, username) {
			continue
		}
		if rec.ChatID != nil && *rec.ChatID != chatID {
			return Conflict, rec, nil
		}
		if rec.ChatID == nil {
			if err := r.repo.BindChat(ctx, KindDashboardUser, rec.ID, chatID); err != nil {
				return "", Record{}, fmt.Errorf("Resolver.LinkDashboardUser: %w", err)
			}
			rec.ChatID = pointer.To(chatID)
		}
		return BoundExisting, rec, nil
	}
	return "", Record{}, ErrUsernameNotFound
}

// BoundRoles lists the kinds already bound to chatID, used for the roles
// summary shown when a chat starts another registration.
func (r *Resolver) BoundRoles(ctx context.Context, chatID int64) ([]Record, error) {
	var bound []Record
	for _, kind := range []Kind{KindPassenger, KindVolunteer, KindDashboardUser} {
		existing, err := r.repo.FindByKind(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("Resolver.BoundRoles: %w", err)
		}
		for _, rec := range existing {
			if rec.ChatID != nil && *rec.ChatID == chatID {
				bound = append(bound, rec)
			}
		}
	}
	return bound, nil
}

// BoundRecord returns the record of the given kind bound to chatID, if any.
func (r *Resolver) BoundRecord(ctx context.Context, kind Kind, chatID int64) (Record, bool, error) {
	existing, err := r.repo.FindByKind(ctx, kind)
	if err != nil {
		return Record{}, false, fmt.Errorf("Resolver.BoundRecord: %w", err)
	}
	for _, rec := range existing {
		if rec.ChatID != nil && *rec.ChatID == chatID {
			return rec, true, nil
		}
	}
	return Record{}, false, nil
}

// findMatch runs the tiered match: exact display name, exact legal name,
// then bidirectional substring for partial or nickname input.
func findMatch(existing []Record, claimedName string) (Record, bool) {
	claimed := NormalizeName(claimedName)
	if claimed == "" {
		return Record{}, false
	}

	for _, rec := range existing {
		if NormalizeName(rec.DisplayName) == claimed {
			return rec, true
		}
	}
	for _, rec := range existing {
		if rec.LegalName != "" && NormalizeName(rec.LegalName) == claimed {
			return rec, true
		}
	}
	for _, rec := range existing {
		display := NormalizeName(rec.DisplayName)
		if display == "" {
			continue
		}
		if strings.Contains(claimed, display) || strings.Contains(display, claimed) {
			return rec, true
		}
	}
	return Record{}, false
}

// NormalizeName case-folds, trims, collapses internal whitespace and
// rewrites the inverted "Last, First" form to "First Last".
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if i := strings.Index(name, ","); i >= 0 {
		name = name[i+1:] + " " + name[:i]
	}
	return collapseSpaces(name)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
