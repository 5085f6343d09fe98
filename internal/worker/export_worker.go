package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/sheets"
)

// TransactionReader is the slice of storage the export worker reads.
type TransactionReader interface {
	GetTransaction(ctx context.Context, ownerID, id string) (core.Transaction, error)
	ListTransactions(ctx context.Context, ownerID string, f core.TransactionFilter, opts core.ListOptions) ([]core.Transaction, error)
}

// ExportWorker appends one ledger export row per ledger event.
type ExportWorker struct {
	store     TransactionReader
	exporter  sheets.LedgerExporter
	batchSize int
	now       func() time.Time
}

func NewExportWorker(store TransactionReader, exporter sheets.LedgerExporter, batchSize int) *ExportWorker {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &ExportWorker{
		store:     store,
		exporter:  exporter,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// HandleLedgerEvent exports the transaction an event refers to. The stored
// row is preferred; the event snapshot is used for deletions and for rows
// deleted since the event was published.
func (w *ExportWorker) HandleLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"action", ev.Action,
		"transaction_id", ev.TransactionID)

	t, err := w.resolve(ctx, ev)
	if err != nil {
		return err
	}

	recordedAt := ev.Timestamp
	if recordedAt.IsZero() {
		recordedAt = w.now()
	}
	ref, err := w.exporter.AppendRow(ctx, sheets.RowFromTransaction(string(ev.Action), t, recordedAt))
	if err != nil {
		return fmt.Errorf("append export row: %w", err)
	}

	slog.InfoContext(ctx, "Successfully exported ledger event",
		"transaction_id", ev.TransactionID,
		"action", ev.Action,
		"sheets_ref", ref)
	return nil
}

func (w *ExportWorker) resolve(ctx context.Context, ev *amqp.LedgerEvent) (core.Transaction, error) {
	if ev.Action == amqp.ActionDeleted {
		return ev.Snapshot()
	}

	t, err := w.store.GetTransaction(ctx, ev.OwnerID, ev.TransactionID)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Transaction gone, exporting event snapshot",
			"transaction_id", ev.TransactionID)
		return ev.Snapshot()
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction from storage: %w", err)
	}
	return t, nil
}

// Backfill exports every stored transaction of an owner matching f. It is
// the recovery path for events lost while the broker was unreachable.
func (w *ExportWorker) Backfill(ctx context.Context, ownerID string, f core.TransactionFilter) (int, error) {
	exported := 0
	for start := 0; ; start += w.batchSize {
		batch, err := w.store.ListTransactions(ctx, ownerID, f, core.ListOptions{
			Start: start,
			Limit: w.batchSize,
			Order: "occurredAt",
		})
		if err != nil {
			return exported, fmt.Errorf("list transactions: %w", err)
		}

		for _, t := range batch {
			if _, err := w.exporter.AppendRow(ctx, sheets.RowFromTransaction("backfill", t, w.now())); err != nil {
				return exported, fmt.Errorf("export %s: %w", t.ID, err)
			}
			exported++
		}
		if len(batch) < w.batchSize {
			break
		}
	}

	slog.InfoContext(ctx, "Backfill completed",
		"owner_id", ownerID,
		"exported", exported)
	return exported, nil
}
