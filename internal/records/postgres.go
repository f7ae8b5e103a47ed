package records

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Postgres stores the registry in a single records table, one row per
// person, discriminated by kind.
type Postgres struct {
	db *sqlx.DB
}

func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

type recordRow struct {
	ID              string         `db:"id"`
	Kind            string         `db:"kind"`
	DisplayName     string         `db:"display_name"`
	LegalName       string         `db:"legal_name"`
	Username        string         `db:"username"`
	City            string         `db:"city"`
	Phone           string         `db:"phone"`
	AllowedAirports pq.StringArray `db:"allowed_airports"`
	ChatID          *int64         `db:"chat_id"`
}

func (p *Postgres) FindByKind(ctx context.Context, kind Kind) ([]Record, error) {
	var rows []recordRow

	err := p.db.SelectContext(ctx, &rows, `
	    SELECT id, kind, display_name, legal_name, username, city, phone,
	           allowed_airports, chat_id
	    FROM records
	    WHERE kind = $1
	    ORDER BY created_at
	`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("Postgres.FindByKind: %w", err)
	}

	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toRecord())
	}
	return out, nil
}

func (p *Postgres) Create(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	_, err := p.db.ExecContext(ctx, `
	    INSERT INTO records
	    (id, kind, display_name, legal_name, username, city, phone,
	     allowed_airports, chat_id)
	    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		rec.ID,
		string(rec.Kind),
		rec.DisplayName,
		rec.LegalName,
		rec.Username,
		rec.City,
		rec.Phone,
		pq.StringArray(rec.AllowedAirports),
		rec.ChatID,
	)
	if err != nil {
		return Record{}, fmt.Errorf("Postgres.Create: %w", err)
	}
	return rec, nil
}

func (p *Postgres) BindChat(ctx context.Context, kind Kind, recordID string, chatID int64) error {
	res, err := p.db.ExecContext(ctx, `
	    UPDATE records
	    SET chat_id = $1, updated_at = NOW()
	    WHERE id = $2 AND kind = $3
	`, chatID, recordID, string(kind))
	if err != nil {
		return fmt.Errorf("Postgres.BindChat: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Postgres.BindChat: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("Postgres.BindChat: record %s/%s not found", kind, recordID)
	}
	return nil
}

func (r recordRow) toRecord() Record {
	return Record{
		ID:              r.ID,
		Kind:            Kind(r.Kind),
		DisplayName:     r.DisplayName,
		LegalName:       r.LegalName,
		Username:        r.Username,
		City:            r.City,
		Phone:           r.Phone,
		AllowedAirports: []string(r.AllowedAirports),
		ChatID:          r.ChatID,
	}
}
