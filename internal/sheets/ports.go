package sheets

import (
	"context"
	"time"

	"fintrack/internal/core"
)

// Header names the exported columns, in order.
var Header = []string{
	"Recorded At", "Action", "Transaction", "Owner", "Parent",
	"Kind", "Amount", "Currency", "Category", "Description", "Occurred At",
}

// Row is one line of the ledger export.
type Row struct {
	RecordedAt    time.Time
	Action        string
	TransactionID string
	OwnerID       string
	ParentID      string
	Kind          string
	Amount        string
	Currency      string
	CategoryID    string
	Description   string
	OccurredAt    time.Time
}

// RowFromTransaction renders t as an export row for the given action.
func RowFromTransaction(action string, t core.Transaction, recordedAt time.Time) Row {
	return Row{
		RecordedAt:    recordedAt,
		Action:        action,
		TransactionID: t.ID,
		OwnerID:       t.OwnerID,
		ParentID:      t.ParentID,
		Kind:          string(t.Kind),
		Amount:        t.Amount.String(),
		Currency:      t.Currency,
		CategoryID:    t.CategoryID,
		Description:   t.Description,
		OccurredAt:    t.OccurredAt,
	}
}

// Values returns the row's cells in Header order.
func (r Row) Values() []any {
	return []any{
		r.RecordedAt.UTC().Format(time.RFC3339),
		r.Action,
		r.TransactionID,
		r.OwnerID,
		r.ParentID,
		r.Kind,
		r.Amount,
		r.Currency,
		r.CategoryID,
		r.Description,
		r.OccurredAt.UTC().Format(time.RFC3339),
	}
}

// Ports for outbound adapters.
type (
	LedgerExporter interface {
		AppendRow(ctx context.Context, r Row) (rowRef string, err error)
	}

	// LedgerReader reads exported rows back for a given year.
	LedgerReader interface {
		ListRows(ctx context.Context, year int) ([]Row, error)
	}
)
