package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

// DefaultRecurringBatchSize bounds the sources handled by one run.
const DefaultRecurringBatchSize = 100

// RecurrenceStore is the slice of the transaction store the engine needs.
type RecurrenceStore interface {
	ListDueRecurring(ctx context.Context, now time.Time, limit int) ([]core.Transaction, error)
	InsertTransactions(ctx context.Context, ts []core.Transaction) error
	SaveRecurrence(ctx context.Context, id string, rec core.Recurrence, now time.Time) error
}

// RecurrenceDeps are the collaborators of a RecurrenceEngine. Publisher may
// be nil.
type RecurrenceDeps struct {
	Transactions RecurrenceStore
	Goals        GoalAdjuster
	Budgets      BudgetAdjuster
	Reports      ReportApplier
	Notices      *NotificationQueue
	Publisher    EventPublisher
	BatchSize    int
}

// RunResult summarises one engine run.
type RunResult struct {
	Sources      int
	Materialized int
	Failed       int
}

// RecurrenceEngine expands due recurring transactions into concrete ledger
// entries. Each occurrence carries its own cascade onto goal, budget and
// report; a failing source is logged and the rest of the batch proceeds.
type RecurrenceEngine struct {
	txs       RecurrenceStore
	goals     GoalAdjuster
	budgets   BudgetAdjuster
	reports   ReportApplier
	notices   *NotificationQueue
	publisher EventPublisher
	batchSize int
	now       func() time.Time
}

func NewRecurrenceEngine(deps RecurrenceDeps) *RecurrenceEngine {
	batch := deps.BatchSize
	if batch <= 0 {
		batch = DefaultRecurringBatchSize
	}
	return &RecurrenceEngine{
		txs:       deps.Transactions,
		goals:     deps.Goals,
		budgets:   deps.Budgets,
		reports:   deps.Reports,
		notices:   deps.Notices,
		publisher: deps.Publisher,
		batchSize: batch,
		now:       time.Now,
	}
}

type pointerUpdate struct {
	id  string
	rec core.Recurrence
}

// RunOnce processes one batch of due sources at the current time.
func (e *RecurrenceEngine) RunOnce(ctx context.Context) (RunResult, error) {
	logger := log.FromContext(ctx, log.ComponentRecurrence)
	now := e.now()

	var result RunResult
	due, err := e.txs.ListDueRecurring(ctx, now, e.batchSize)
	if err != nil {
		return result, fmt.Errorf("list due recurring: %w", err)
	}
	result.Sources = len(due)
	if len(due) == 0 {
		logger.DebugContext(ctx, "No recurring transactions due")
		return result, nil
	}

	var (
		materialized []core.Transaction
		updates      []pointerUpdate
	)
	for _, src := range due {
		copies, rec, err := e.expand(ctx, src, now)
		materialized = append(materialized, copies...)
		if len(copies) > 0 {
			updates = append(updates, pointerUpdate{id: src.ID, rec: rec})
		}
		if err != nil {
			result.Failed++
			logger.ErrorContext(ctx, "Failed to expand recurring transaction",
				log.FieldSourceID, src.ID, log.FieldOwnerID, src.OwnerID,
				log.FieldCount, len(copies), log.FieldError, err)
		}
	}

	if len(materialized) > 0 {
		if err := e.txs.InsertTransactions(ctx, materialized); err != nil {
			return result, fmt.Errorf("insert materialized transactions: %w", err)
		}
	}
	result.Materialized = len(materialized)

	for _, u := range updates {
		if err := e.txs.SaveRecurrence(ctx, u.id, u.rec, now); err != nil {
			result.Failed++
			logger.ErrorContext(ctx, "Failed to advance recurrence",
				log.FieldSourceID, u.id, log.FieldError, err)
		}
	}

	for _, m := range materialized {
		publishEvent(ctx, e.publisher, amqp.ActionMaterialized, m)
	}
	if e.notices != nil {
		e.notices.Flush(ctx)
	}

	logger.InfoContext(ctx, "Recurring transactions processed",
		"sources", result.Sources, "materialized", result.Materialized, "failed", result.Failed)
	return result, nil
}

// expand materializes every occurrence of src due at now. It returns the
// copies made and the recurrence advanced past them, even when a later
// occurrence fails.
func (e *RecurrenceEngine) expand(ctx context.Context, src core.Transaction, now time.Time) ([]core.Transaction, core.Recurrence, error) {
	rec := src.Recurrence
	var copies []core.Transaction

	for rec.DueAt(now) {
		m := src.Materialize(core.NewID(), *rec.NextOccurrence, now)
		if err := e.cascade(ctx, m); err != nil {
			return copies, rec, err
		}
		copies = append(copies, m)

		if e.notices != nil {
			e.notices.Enqueue(ctx, src.OwnerID, src.ID, Message{
				Description:   "New recurring transaction created: " + src.Description,
				TransactionID: m.ID,
			})
		}

		next, err := rec.Advance(src.CreatedAt)
		if err != nil {
			return copies, rec, err
		}
		rec = next
	}
	return copies, rec, nil
}

// cascade applies one occurrence to its goal, budget and report. A goal or
// budget that no longer exists is skipped.
func (e *RecurrenceEngine) cascade(ctx context.Context, m core.Transaction) error {
	logger := log.FromContext(ctx, log.ComponentRecurrence)

	if m.GoalID != "" {
		if _, err := e.goals.Adjust(ctx, m.OwnerID, m.GoalID, m.Amount); err != nil {
			if !errors.Is(err, core.ErrNotFound) {
				return err
			}
			logger.WarnContext(ctx, "Goal referenced by recurring transaction is gone",
				log.FieldSourceID, m.ParentID, log.FieldGoalID, m.GoalID)
		}
	}
	if m.BudgetID != "" {
		if _, err := e.budgets.Adjust(ctx, m.OwnerID, m.BudgetID, m.Amount); err != nil {
			if !errors.Is(err, core.ErrNotFound) {
				return err
			}
			logger.WarnContext(ctx, "Budget referenced by recurring transaction is gone",
				log.FieldSourceID, m.ParentID, log.FieldBudgetID, m.BudgetID)
		}
	}
	_, err := e.reports.ApplyDelta(ctx, m.OwnerID, m.ReportDelta())
	return err
}
