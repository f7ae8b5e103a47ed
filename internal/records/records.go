// Package records is the boundary to the people registry: passengers,
// volunteer drivers and dashboard users, plus the resolution logic that
// matches a claimed identity against existing entries.
package records

import "context"

type Kind string

const (
	KindPassenger     Kind = "passenger"
	KindVolunteer     Kind = "volunteer"
	KindDashboardUser Kind = "dashboard_user"
)

// Record is one registered person of a given kind. ChatID is nil until a
// chat has been bound to the record.
type Record struct {
	ID              string   `db:"id"`
	Kind            Kind     `db:"kind"`
	DisplayName     string   `db:"display_name"`
	LegalName       string   `db:"legal_name"`
	Username        string   `db:"username"`
	City            string   `db:"city"`
	Phone           string   `db:"phone"`
	AllowedAirports []string `db:"-"`
	ChatID          *int64   `db:"chat_id"`
}

// Repository is CRUD over the registry. Collections are read and matched as
// a whole; there is no optimistic concurrency over them (two chats creating
// the same new name at the same instant race last-write-wins).
type Repository interface {
	FindByKind(ctx context.Context, kind Kind) ([]Record, error)
	Create(ctx context.Context, rec Record) (Record, error)
	BindChat(ctx context.Context, kind Kind, recordID string, chatID int64) error
}
