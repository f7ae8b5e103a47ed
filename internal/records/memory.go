package records

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Repository used for local runs and tests.
type Memory struct {
	mu   sync.Mutex
	recs []Record
}

func NewMemory() *Memory {
	return &Memory{}
}

// Seed inserts records as-is, keeping any pre-set IDs and bindings.
func (m *Memory) Seed(recs ...Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range recs {
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		m.recs = append(m.recs, rec)
	}
}

func (m *Memory) FindByKind(_ context.Context, kind Kind) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, rec := range m.recs {
		if rec.Kind == kind {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *Memory) Create(_ context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	m.recs = append(m.recs, rec)
	return rec, nil
}

func (m *Memory) BindChat(_ context.Context, kind Kind, recordID string, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, rec := range m.recs {
		if rec.Kind == kind && rec.ID == recordID {
			id := chatID
			m.recs[i].ChatID = &id
			return nil
		}
	}
	return fmt.Errorf("Memory.BindChat: record %s/%s not found", kind, recordID)
}
