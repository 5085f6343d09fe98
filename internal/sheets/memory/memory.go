package memory

import (
	"context"
	"fmt"
	"sync"

	"fintrack/internal/sheets"
)

// Store keeps exported rows in memory. Used when no spreadsheet is
// configured and in tests.
type Store struct {
	mu   sync.Mutex
	rows []sheets.Row
}

var (
	_ sheets.LedgerExporter = (*Store)(nil)
	_ sheets.LedgerReader   = (*Store)(nil)
)

func New() *Store {
	return &Store{}
}

// AppendRow stores the row and returns a synthetic row reference.
func (s *Store) AppendRow(_ context.Context, r sheets.Row) (string, error) {
	if r.TransactionID == "" {
		return "", fmt.Errorf("row without transaction id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, r)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// ListRows returns the rows whose transaction occurred in year.
func (s *Store) ListRows(_ context.Context, year int) ([]sheets.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sheets.Row
	for _, r := range s.rows {
		if r.OccurredAt.Year() == year {
			out = append(out, r)
		}
	}
	return out, nil
}

// Rows returns every stored row.
func (s *Store) Rows() []sheets.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.Row(nil), s.rows...)
}
