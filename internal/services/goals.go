package services

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/core"

	"github.com/shopspring/decimal"
)

// GoalService manages savings goals and is the goal adjuster of the ledger
// cascade.
type GoalService struct {
	store   GoalStore
	retries int
	now     func() time.Time
}

func NewGoalService(store GoalStore, retries int) *GoalService {
	if retries < 1 {
		retries = DefaultConflictRetries
	}
	return &GoalService{store: store, retries: retries, now: time.Now}
}

func (s *GoalService) Create(ctx context.Context, ownerID string, g core.Goal) (core.Goal, error) {
	g.OwnerID = ownerID
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	if g.CurrentAmount.IsNegative() {
		return core.Goal{}, core.ErrInvalidAmount
	}
	if g.ID == "" {
		g.ID = core.NewID()
	}
	now := s.now()
	g.CreatedAt, g.UpdatedAt = now, now
	return s.store.CreateGoal(ctx, g)
}

func (s *GoalService) Get(ctx context.Context, ownerID, id string) (core.Goal, error) {
	return s.store.GetGoal(ctx, ownerID, id)
}

func (s *GoalService) List(ctx context.Context, ownerID string, opts core.ListOptions) ([]core.Goal, error) {
	return s.store.ListGoals(ctx, ownerID, opts.Normalize())
}

func (s *GoalService) Update(ctx context.Context, ownerID, id string, patch core.GoalPatch) (core.Goal, error) {
	if err := patch.Validate(); err != nil {
		return core.Goal{}, err
	}
	return s.modify(ctx, ownerID, id, "update goal", func(g core.Goal) core.Goal {
		return patch.Apply(g)
	})
}

func (s *GoalService) Delete(ctx context.Context, ownerID, id string) error {
	return s.store.DeleteGoal(ctx, ownerID, id)
}

// Adjust adds delta to the goal's current amount.
func (s *GoalService) Adjust(ctx context.Context, ownerID, goalID string, delta decimal.Decimal) (core.Goal, error) {
	return s.modify(ctx, ownerID, goalID, "adjust goal", func(g core.Goal) core.Goal {
		g.CurrentAmount = g.CurrentAmount.Add(delta)
		return g
	})
}

func (s *GoalService) modify(ctx context.Context, ownerID, id, op string, change func(core.Goal) core.Goal) (core.Goal, error) {
	var out core.Goal
	err := retryOnConflict(ctx, s.retries, func() error {
		g, err := s.store.GetGoal(ctx, ownerID, id)
		if err != nil {
			return err
		}
		g = change(g)
		g.UpdatedAt = s.now()
		out, err = s.store.SaveGoal(ctx, g)
		return err
	})
	if err != nil {
		return core.Goal{}, fmt.Errorf("%s %s: %w", op, id, err)
	}
	return out, nil
}
