package records

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Sheets keeps the registry in a spreadsheet, one tab per kind. Columns:
// id, display name, legal name, username, city, phone, allowed airports
// (comma separated), chat id.
type Sheets struct {
	service       *sheets.Service
	spreadsheetID string
}

func NewSheets(ctx context.Context, credentialsPath, spreadsheetID string) (*Sheets, error) {
	service, err := sheets.NewService(ctx, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("Sheets: cannot create sheets service: %w", err)
	}
	return &Sheets{
		service:       service,
		spreadsheetID: spreadsheetID,
	}, nil
}

func sheetName(kind Kind) string {
	switch kind {
	case KindPassenger:
		return "passengers"
	case KindVolunteer:
		return "volunteers"
	case KindDashboardUser:
		return "dashboard_users"
	}
	return string(kind)
}

func (s *Sheets) FindByKind(ctx context.Context, kind Kind) ([]Record, error) {
	resp, err := s.service.Spreadsheets.Values.Get(
		s.spreadsheetID,
		sheetName(kind)+"!A2:H",
	).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("Sheets.FindByKind: %w", err)
	}

	var out []Record
	for _, row := range resp.Values {
		rec := rowToRecord(kind, row)
		if rec.ID == "" {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Sheets) Create(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{recordToRow(rec)},
	}

	_, err := s.service.Spreadsheets.Values.Append(
		s.spreadsheetID,
		sheetName(rec.Kind)+"!A:H",
		valueRange,
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return Record{}, fmt.Errorf("Sheets.Create: %w", err)
	}
	return rec, nil
}

func (s *Sheets) BindChat(ctx context.Context, kind Kind, recordID string, chatID int64) error {
	resp, err := s.service.Spreadsheets.Values.Get(
		s.spreadsheetID,
		sheetName(kind)+"!A:A",
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("Sheets.BindChat: %w", err)
	}

	rowIdx := 0
	for i, row := range resp.Values {
		if len(row) > 0 && fmt.Sprint(row[0]) == recordID {
			rowIdx = i + 1
			break
		}
	}
	if rowIdx == 0 {
		return fmt.Errorf("Sheets.BindChat: record %s/%s not found", kind, recordID)
	}

	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{{strconv.FormatInt(chatID, 10)}},
	}
	_, err = s.service.Spreadsheets.Values.Update(
		s.spreadsheetID,
		fmt.Sprintf("%s!H%d", sheetName(kind), rowIdx),
		valueRange,
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("Sheets.BindChat: %w", err)
	}
	return nil
}

func rowToRecord(kind Kind, row []interface{}) Record {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(fmt.Sprint(row[i]))
		}
		return ""
	}

	rec := Record{
		ID:          cell(0),
		Kind:        kind,
		DisplayName: cell(1),
		LegalName:   cell(2),
		Username:    cell(3),
		City:        cell(4),
		Phone:       cell(5),
	}
	if airports := cell(6); airports != "" {
		for _, a := range strings.Split(airports, ",") {
			if a = strings.TrimSpace(a); a != "" {
				rec.AllowedAirports = append(rec.AllowedAirports, a)
			}
		}
	}
	if raw := cell(7); raw != "" {
		if chatID, err := strconv.ParseInt(raw, 10, 64); err == nil {
			rec.ChatID = &chatID
		}
	}
	return rec
}

func recordToRow(rec Record) []interface{} {
	chat := ""
	if rec.ChatID != nil {
		chat = strconv.FormatInt(*rec.ChatID, 10)
	}
	return []interface{}{
		rec.ID,
		rec.DisplayName,
		rec.LegalName,
		rec.Username,
		rec.City,
		rec.Phone,
		strings.Join(rec.AllowedAirports, ","),
		chat,
	}
}
