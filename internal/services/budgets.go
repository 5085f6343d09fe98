package services

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"

	"github.com/shopspring/decimal"
)

// BudgetService manages budgets and is the budget adjuster of the ledger
// cascade. Every save that leaves total spend at or above the alert ratio
// notifies the owner.
type BudgetService struct {
	store    BudgetStore
	notifier Notifier
	retries  int
	now      func() time.Time
}

func NewBudgetService(store BudgetStore, notifier Notifier, retries int) *BudgetService {
	if retries < 1 {
		retries = DefaultConflictRetries
	}
	return &BudgetService{
		store:    store,
		notifier: notifier,
		retries:  retries,
		now:      time.Now,
	}
}

// Create stores a budget with a spending record for the current month.
func (s *BudgetService) Create(ctx context.Context, ownerID string, b core.Budget) (core.Budget, error) {
	b.OwnerID = ownerID
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	if b.ID == "" {
		b.ID = core.NewID()
	}
	now := s.now()
	b.EnsurePeriod(now)
	b.CreatedAt, b.UpdatedAt = now, now
	return s.store.CreateBudget(ctx, b)
}

func (s *BudgetService) Get(ctx context.Context, ownerID, id string) (core.Budget, error) {
	return s.store.GetBudget(ctx, ownerID, id)
}

func (s *BudgetService) List(ctx context.Context, ownerID string, opts core.ListOptions) ([]core.Budget, error) {
	return s.store.ListBudgets(ctx, ownerID, opts.Normalize())
}

// Update applies patch and re-evaluates the spending alert.
func (s *BudgetService) Update(ctx context.Context, ownerID, id string, patch core.BudgetPatch) (core.Budget, error) {
	if err := patch.Validate(); err != nil {
		return core.Budget{}, err
	}
	return s.modify(ctx, ownerID, id, "update budget", func(b core.Budget, now time.Time) core.Budget {
		b = patch.Apply(b)
		b.EnsurePeriod(now)
		return b
	})
}

func (s *BudgetService) Delete(ctx context.Context, ownerID, id string) error {
	return s.store.DeleteBudget(ctx, ownerID, id)
}

// Adjust adds delta to the current month's spend.
func (s *BudgetService) Adjust(ctx context.Context, ownerID, budgetID string, delta decimal.Decimal) (core.Budget, error) {
	return s.modify(ctx, ownerID, budgetID, "adjust budget", func(b core.Budget, now time.Time) core.Budget {
		b.AddSpend(now, delta)
		return b
	})
}

func (s *BudgetService) modify(ctx context.Context, ownerID, id, op string, change func(core.Budget, time.Time) core.Budget) (core.Budget, error) {
	var out core.Budget
	err := retryOnConflict(ctx, s.retries, func() error {
		b, err := s.store.GetBudget(ctx, ownerID, id)
		if err != nil {
			return err
		}
		now := s.now()
		b = change(b, now)
		b.UpdatedAt = now
		out, err = s.store.SaveBudget(ctx, b)
		return err
	})
	if err != nil {
		return core.Budget{}, fmt.Errorf("%s %s: %w", op, id, err)
	}

	if err := s.alert(ctx, out); err != nil {
		return out, err
	}
	return out, nil
}

func (s *BudgetService) alert(ctx context.Context, b core.Budget) error {
	if s.notifier == nil || !b.AlertReached() {
		return nil
	}
	log.FromContext(ctx, log.ComponentLedger).InfoContext(ctx, "Budget alert threshold reached",
		log.FieldOwnerID, b.OwnerID, log.FieldBudgetID, b.ID,
		"spent", b.TotalSpent().String(), log.FieldAmount, b.Amount.String())

	_, err := s.notifier.Notify(ctx, b.OwnerID, Message{
		Description: fmt.Sprintf("You have spent 90%% of your budget: %s", b.Name),
	})
	if err != nil {
		return fmt.Errorf("budget alert %s: %w", b.ID, err)
	}
	return nil
}
