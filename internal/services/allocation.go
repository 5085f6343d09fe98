package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"

	"golang.org/x/sync/errgroup"
)

// DefaultAllocationConcurrency bounds how many users are allocated at once.
const DefaultAllocationConcurrency = 4

type goalFinder interface {
	FindGoalByDescription(ctx context.Context, ownerID, description string) (core.Goal, error)
}

type transactionCreator interface {
	Create(ctx context.Context, ownerID string, t core.Transaction) (core.Transaction, error)
}

// AllocationResult summarises one allocation run.
type AllocationResult struct {
	Users     int
	Allocated int
	Skipped   int
	Failed    int
}

// SavingsAllocator moves each user's monthly contribution into their
// automatic-savings goal by recording an expense against it.
type SavingsAllocator struct {
	users       UserStore
	goals       goalFinder
	ledger      transactionCreator
	marker      string
	concurrency int
	now         func() time.Time
}

func NewSavingsAllocator(users UserStore, goals goalFinder, ledger transactionCreator, marker string, concurrency int) *SavingsAllocator {
	if marker == "" {
		marker = core.AutomaticSavingsMarker
	}
	if concurrency < 1 {
		concurrency = DefaultAllocationConcurrency
	}
	return &SavingsAllocator{
		users:       users,
		goals:       goals,
		ledger:      ledger,
		marker:      marker,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// RunOnce allocates for every user. A failure for one user is logged and
// counted; only failing to enumerate users aborts the run.
func (a *SavingsAllocator) RunOnce(ctx context.Context) (AllocationResult, error) {
	logger := log.FromContext(ctx, log.ComponentAllocation)

	ids, err := a.users.ListUserIDs(ctx)
	if err != nil {
		return AllocationResult{}, fmt.Errorf("list users: %w", err)
	}

	var (
		mu     sync.Mutex
		result = AllocationResult{Users: len(ids)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			allocated, err := a.allocate(gctx, id)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Failed++
				logger.ErrorContext(gctx, "Savings allocation failed",
					log.FieldOwnerID, id, log.FieldError, err)
			case allocated:
				result.Allocated++
			default:
				result.Skipped++
			}
			return nil
		})
	}
	_ = g.Wait()

	logger.InfoContext(ctx, "Savings allocation finished",
		"users", result.Users, "allocated", result.Allocated,
		"skipped", result.Skipped, "failed", result.Failed)
	return result, nil
}

func (a *SavingsAllocator) allocate(ctx context.Context, ownerID string) (bool, error) {
	goal, err := a.goals.FindGoalByDescription(ctx, ownerID, a.marker)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !goal.MonthlyContribution.IsPositive() {
		return false, nil
	}

	t, err := a.ledger.Create(ctx, ownerID, core.Transaction{
		Kind:        core.KindExpense,
		Amount:      goal.MonthlyContribution,
		GoalID:      goal.ID,
		Description: "Allocated savings for " + goal.Name,
		OccurredAt:  a.now(),
	})
	if err != nil {
		return false, fmt.Errorf("record allocation for goal %s: %w", goal.ID, err)
	}

	log.FromContext(ctx, log.ComponentAllocation).InfoContext(ctx, "Savings allocated",
		log.FieldOwnerID, ownerID, log.FieldGoalID, goal.ID,
		log.FieldTransactionID, t.ID, log.FieldAmount, t.Amount.String())
	return true, nil
}
