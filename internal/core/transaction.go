package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

type (
	// Transaction is a single ledger entry. Materialized copies of a recurring
	// transaction carry the source id in ParentID.
	Transaction struct {
		ID          string
		OwnerID     string
		ParentID    string
		Kind        Kind
		Amount      decimal.Decimal
		Currency    string
		CategoryID  string
		TagID       string
		BudgetID    string
		GoalID      string
		Description string
		OccurredAt  time.Time
		Recurrence  Recurrence
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// TransactionPatch lists the fields a caller may change on an existing
	// transaction. Nil fields are left untouched.
	TransactionPatch struct {
		Kind        *Kind
		Amount      *decimal.Decimal
		CategoryID  *string
		TagID       *string
		BudgetID    *string
		GoalID      *string
		Description *string
		OccurredAt  *time.Time
		Recurrence  *Recurrence
	}

	// TransactionFilter narrows a transaction listing. Zero values match all.
	TransactionFilter struct {
		Kind          Kind
		CategoryID    string
		TagID         string
		BudgetID      string
		GoalID        string
		ParentID      string
		RecurringOnly bool
		From          *time.Time
		To            *time.Time
	}

	// TransactionView is a transaction with its references expanded.
	TransactionView struct {
		Transaction
		Category *Category
		Tag      *Tag
		Goal     *Goal
		Budget   *Budget
	}
)

// Validate checks the fields required before a transaction enters the ledger.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.OwnerID) == "" {
		return ErrMissingOwner
	}
	if !t.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, t.Kind)
	}
	if t.Amount.IsNegative() {
		return fmt.Errorf("%w: %s is negative", ErrInvalidAmount, t.Amount)
	}
	if t.Currency != "" {
		if err := ValidateCurrency(t.Currency); err != nil {
			return err
		}
	}
	return t.Recurrence.Validate()
}

// ReportDelta is the effect this transaction has on its owner's report.
func (t Transaction) ReportDelta() ReportDelta {
	return DeltaFor(t.Kind, t.Amount)
}

// Materialize returns the concrete ledger entry for the occurrence at `at`.
// The copy is not itself recurring.
func (t Transaction) Materialize(id string, at, now time.Time) Transaction {
	return Transaction{
		ID:          id,
		OwnerID:     t.OwnerID,
		ParentID:    t.ID,
		Kind:        t.Kind,
		Amount:      t.Amount,
		Currency:    t.Currency,
		CategoryID:  t.CategoryID,
		TagID:       t.TagID,
		BudgetID:    t.BudgetID,
		GoalID:      t.GoalID,
		Description: t.Description,
		OccurredAt:  at,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (p TransactionPatch) Validate() error {
	if p.Kind != nil && !p.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, *p.Kind)
	}
	if p.Amount != nil && p.Amount.IsNegative() {
		return fmt.Errorf("%w: %s is negative", ErrInvalidAmount, *p.Amount)
	}
	if p.Recurrence != nil {
		return p.Recurrence.Validate()
	}
	return nil
}

// Apply returns a copy of t with the patch applied.
func (p TransactionPatch) Apply(t Transaction) Transaction {
	if p.Kind != nil {
		t.Kind = *p.Kind
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.CategoryID != nil {
		t.CategoryID = *p.CategoryID
	}
	if p.TagID != nil {
		t.TagID = *p.TagID
	}
	if p.BudgetID != nil {
		t.BudgetID = *p.BudgetID
	}
	if p.GoalID != nil {
		t.GoalID = *p.GoalID
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.OccurredAt != nil {
		t.OccurredAt = *p.OccurredAt
	}
	if p.Recurrence != nil {
		t.Recurrence = *p.Recurrence
	}
	return t
}
