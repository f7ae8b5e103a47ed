package storage

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsBlobs keeps snapshots on a single "state" tab of a spreadsheet, one
// row per key with the payload in the second column. It exists so a
// deployment without a writable disk can still survive restarts.
type SheetsBlobs struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
}

func NewSheetsBlobs(ctx context.Context, credentialsPath, spreadsheetID, sheetName string) (*SheetsBlobs, error) {
	service, err := sheets.NewService(ctx, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("SheetsBlobs: cannot create sheets service: %w", err)
	}
	if sheetName == "" {
		sheetName = "state"
	}
	return &SheetsBlobs{
		service:       service,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

func (s *SheetsBlobs) Load(ctx context.Context, key string) ([]byte, bool, error) {
	resp, err := s.service.Spreadsheets.Values.Get(
		s.spreadsheetID,
		s.sheetName+"!A:B",
	).Context(ctx).Do()
	if err != nil {
		return nil, false, fmt.Errorf("SheetsBlobs.Load: %w", err)
	}

	for _, row := range resp.Values {
		if len(row) < 2 {
			continue
		}
		if fmt.Sprint(row[0]) == key {
			return []byte(fmt.Sprint(row[1])), true, nil
		}
	}
	return nil, false, nil
}

func (s *SheetsBlobs) Save(ctx context.Context, key string, data []byte) error {
	rowIdx, err := s.findRow(ctx, key)
	if err != nil {
		return err
	}

	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{{key, string(data)}},
	}

	if rowIdx == 0 {
		_, err = s.service.Spreadsheets.Values.Append(
			s.spreadsheetID,
			s.sheetName+"!A:B",
			valueRange,
		).ValueInputOption("RAW").Context(ctx).Do()
	} else {
		_, err = s.service.Spreadsheets.Values.Update(
			s.spreadsheetID,
			fmt.Sprintf("%s!A%d:B%d", s.sheetName, rowIdx, rowIdx),
			valueRange,
		).ValueInputOption("RAW").Context(ctx).Do()
	}
	if err != nil {
		return fmt.Errorf("SheetsBlobs.Save: %w", err)
	}
	return nil
}

// findRow returns the 1-based row holding key, or 0 when absent.
func (s *SheetsBlobs) findRow(ctx context.Context, key string) (int, error) {
	resp, err := s.service.Spreadsheets.Values.Get(
		s.spreadsheetID,
		s.sheetName+"!A:A",
	).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("SheetsBlobs.findRow: %w", err)
	}

	for i, row := range resp.Values {
		if len(row) > 0 && fmt.Sprint(row[0]) == key {
			return i + 1, nil
		}
	}
	return 0, nil
}
