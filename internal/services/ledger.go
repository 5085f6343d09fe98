package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/currency"
	"fintrack/internal/log"
)

// LedgerDeps are the collaborators of a Ledger. Publisher may be nil.
type LedgerDeps struct {
	Transactions TransactionStore
	Users        UserStore
	References   ReferenceStore
	Converter    currency.Converter
	Goals        GoalAdjuster
	Budgets      BudgetAdjuster
	Reports      ReportApplier
	Publisher    EventPublisher
}

// Ledger records transactions and drives their cascade onto goals, budgets
// and the owner's report. A failing step aborts the operation without undoing
// the steps already applied.
type Ledger struct {
	txs       TransactionStore
	users     UserStore
	refs      ReferenceStore
	converter currency.Converter
	goals     GoalAdjuster
	budgets   BudgetAdjuster
	reports   ReportApplier
	publisher EventPublisher
	now       func() time.Time
}

func NewLedger(deps LedgerDeps) *Ledger {
	return &Ledger{
		txs:       deps.Transactions,
		users:     deps.Users,
		refs:      deps.References,
		converter: deps.Converter,
		goals:     deps.Goals,
		budgets:   deps.Budgets,
		reports:   deps.Reports,
		publisher: deps.Publisher,
		now:       time.Now,
	}
}

// Create converts t into the owner's currency, applies the goal and budget
// adjustments, stores it and adds it to the owner's report.
func (l *Ledger) Create(ctx context.Context, ownerID string, t core.Transaction) (core.Transaction, error) {
	logger := log.FromContext(ctx, log.ComponentLedger)

	t.OwnerID = ownerID
	t.ParentID = ""
	t.Currency = core.NormalizeCurrency(t.Currency)
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	owner, err := l.users.GetUser(ctx, ownerID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("load owner: %w", err)
	}
	target := owner.Currency
	if target == "" {
		target = core.DefaultCurrency
	}
	amount, err := l.converter.Convert(ctx, t.Amount, t.Currency, target)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("convert %s %s to %s: %w", t.Amount, t.Currency, target, err)
	}
	t.Amount = amount
	t.Currency = target

	now := l.now()
	if t.ID == "" {
		t.ID = core.NewID()
	}
	t.CreatedAt, t.UpdatedAt = now, now
	if t.OccurredAt.IsZero() {
		t.OccurredAt = now
	}
	if t.Recurrence.Active() && t.Recurrence.NextOccurrence == nil {
		if t.Recurrence, err = t.Recurrence.Advance(now); err != nil {
			return core.Transaction{}, err
		}
	}

	if t.GoalID != "" {
		if _, err := l.goals.Adjust(ctx, ownerID, t.GoalID, t.Amount); err != nil {
			return core.Transaction{}, err
		}
	}
	if t.BudgetID != "" {
		if _, err := l.budgets.Adjust(ctx, ownerID, t.BudgetID, t.Amount); err != nil {
			return core.Transaction{}, err
		}
	}

	if err := l.txs.InsertTransaction(ctx, t); err != nil {
		return core.Transaction{}, err
	}
	if _, err := l.reports.ApplyDelta(ctx, ownerID, t.ReportDelta()); err != nil {
		return core.Transaction{}, err
	}

	logger.InfoContext(ctx, "Transaction created",
		log.NewFields().WithOperation(log.OpCreate).
			WithTransaction(ownerID, t.ID, string(t.Kind), t.Amount.String(), t.Currency).ToSlice()...)
	l.publish(ctx, amqp.ActionCreated, t)
	return t, nil
}

// Update patches one of the owner's transactions. An amount change is
// reflected in the report only while the kind stays the same.
func (l *Ledger) Update(ctx context.Context, ownerID, id string, patch core.TransactionPatch) (core.Transaction, error) {
	logger := log.FromContext(ctx, log.ComponentLedger)

	if err := patch.Validate(); err != nil {
		return core.Transaction{}, err
	}
	old, err := l.txs.GetTransaction(ctx, ownerID, id)
	if err != nil {
		return core.Transaction{}, err
	}

	now := l.now()
	updated := patch.Apply(old)
	updated.UpdatedAt = now
	// a transaction made recurring by this update starts one interval from now
	if updated.Recurrence.Active() && updated.Recurrence.NextOccurrence == nil {
		if updated.Recurrence, err = updated.Recurrence.Advance(now); err != nil {
			return core.Transaction{}, err
		}
	}
	if err := updated.Validate(); err != nil {
		return core.Transaction{}, err
	}

	var delta core.ReportDelta
	switch {
	case updated.Kind != old.Kind:
		logger.WarnContext(ctx, "Transaction kind changed, report not reconciled",
			log.FieldOwnerID, ownerID, log.FieldTransactionID, id,
			"old_kind", old.Kind, "new_kind", updated.Kind)
	case patch.Amount != nil:
		delta = core.DeltaFor(updated.Kind, updated.Amount.Sub(old.Amount))
	}
	if !delta.IsZero() {
		if _, err := l.reports.ApplyDelta(ctx, ownerID, delta); err != nil {
			return core.Transaction{}, err
		}
	}

	if err := l.txs.SaveTransaction(ctx, updated); err != nil {
		return core.Transaction{}, err
	}

	logger.InfoContext(ctx, "Transaction updated",
		log.NewFields().WithOperation(log.OpUpdate).
			WithTransaction(ownerID, id, string(updated.Kind), updated.Amount.String(), updated.Currency).ToSlice()...)
	l.publish(ctx, amqp.ActionUpdated, updated)
	return updated, nil
}

// Delete removes one of the owner's transactions and takes its amount back
// out of the report. Goal and budget adjustments stay as they are.
func (l *Ledger) Delete(ctx context.Context, ownerID, id string) error {
	old, err := l.txs.GetTransaction(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := l.txs.DeleteTransaction(ctx, ownerID, id); err != nil {
		return err
	}
	if _, err := l.reports.ApplyDelta(ctx, ownerID, old.ReportDelta().Negate()); err != nil {
		return err
	}

	log.FromContext(ctx, log.ComponentLedger).InfoContext(ctx, "Transaction deleted",
		log.NewFields().WithOperation(log.OpDelete).
			WithTransaction(ownerID, id, string(old.Kind), old.Amount.String(), old.Currency).ToSlice()...)
	l.publish(ctx, amqp.ActionDeleted, old)
	return nil
}

// Get returns one of the owner's transactions with its references expanded.
func (l *Ledger) Get(ctx context.Context, ownerID, id string) (core.TransactionView, error) {
	t, err := l.txs.GetTransaction(ctx, ownerID, id)
	if err != nil {
		return core.TransactionView{}, err
	}
	return newExpander(l.refs, ownerID).expand(ctx, t)
}

// List returns a window of the owner's transactions with category, tag, goal
// and budget expanded. Dangling references are left empty.
func (l *Ledger) List(ctx context.Context, ownerID string, f core.TransactionFilter, opts core.ListOptions) ([]core.TransactionView, error) {
	ts, err := l.txs.ListTransactions(ctx, ownerID, f, opts.Normalize())
	if err != nil {
		return nil, err
	}

	exp := newExpander(l.refs, ownerID)
	views := make([]core.TransactionView, 0, len(ts))
	for _, t := range ts {
		v, err := exp.expand(ctx, t)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (l *Ledger) publish(ctx context.Context, action amqp.Action, t core.Transaction) {
	publishEvent(ctx, l.publisher, action, t)
}

// publishEvent is best effort: the ledger is already written.
func publishEvent(ctx context.Context, p EventPublisher, action amqp.Action, t core.Transaction) {
	if p == nil {
		return
	}
	if err := p.PublishLedgerEvent(ctx, amqp.NewLedgerEvent(action, t)); err != nil {
		log.FromContext(ctx, log.ComponentLedger).ErrorContext(ctx, "Failed to publish ledger event",
			"action", action, log.FieldTransactionID, t.ID, log.FieldError, err)
	}
}

// expander resolves references once per listing.
type expander struct {
	refs       ReferenceStore
	ownerID    string
	categories map[string]*core.Category
	tags       map[string]*core.Tag
	goals      map[string]*core.Goal
	budgets    map[string]*core.Budget
}

func newExpander(refs ReferenceStore, ownerID string) *expander {
	return &expander{
		refs:       refs,
		ownerID:    ownerID,
		categories: make(map[string]*core.Category),
		tags:       make(map[string]*core.Tag),
		goals:      make(map[string]*core.Goal),
		budgets:    make(map[string]*core.Budget),
	}
}

func (e *expander) expand(ctx context.Context, t core.Transaction) (core.TransactionView, error) {
	v := core.TransactionView{Transaction: t}
	if e.refs == nil {
		return v, nil
	}

	var err error
	if v.Category, err = lookup(ctx, e.categories, t.CategoryID, func(ctx context.Context, id string) (core.Category, error) {
		return e.refs.GetCategory(ctx, id)
	}); err != nil {
		return v, err
	}
	if v.Tag, err = lookup(ctx, e.tags, t.TagID, func(ctx context.Context, id string) (core.Tag, error) {
		return e.refs.GetTag(ctx, e.ownerID, id)
	}); err != nil {
		return v, err
	}
	if v.Goal, err = lookup(ctx, e.goals, t.GoalID, func(ctx context.Context, id string) (core.Goal, error) {
		return e.refs.GetGoal(ctx, e.ownerID, id)
	}); err != nil {
		return v, err
	}
	if v.Budget, err = lookup(ctx, e.budgets, t.BudgetID, func(ctx context.Context, id string) (core.Budget, error) {
		return e.refs.GetBudget(ctx, e.ownerID, id)
	}); err != nil {
		return v, err
	}
	return v, nil
}

func lookup[T any](ctx context.Context, seen map[string]*T, id string, get func(context.Context, string) (T, error)) (*T, error) {
	if id == "" {
		return nil, nil
	}
	if v, ok := seen[id]; ok {
		return v, nil
	}
	v, err := get(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		seen[id] = nil
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	seen[id] = &v
	return &v, nil
}
