package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/core"

	"github.com/shopspring/decimal"
)

// ReportService is the single path through which report totals change.
type ReportService struct {
	store   ReportStore
	retries int
	now     func() time.Time
}

func NewReportService(store ReportStore, retries int) *ReportService {
	if retries < 1 {
		retries = DefaultConflictRetries
	}
	return &ReportService{
		store:   store,
		retries: retries,
		now:     time.Now,
	}
}

// Get returns the owner's report, or a zeroed one if nothing was recorded yet.
func (s *ReportService) Get(ctx context.Context, ownerID string) (core.Report, error) {
	rep, err := s.store.GetReport(ctx, ownerID)
	if errors.Is(err, core.ErrNotFound) {
		return zeroReport(ownerID, time.Time{}), nil
	}
	return rep, err
}

// ApplyDelta adds delta to the owner's totals, creating the report on first
// use. Lost updates are retried.
func (s *ReportService) ApplyDelta(ctx context.Context, ownerID string, delta core.ReportDelta) (core.Report, error) {
	if ownerID == "" {
		return core.Report{}, core.ErrMissingOwner
	}

	var out core.Report
	err := retryOnConflict(ctx, s.retries, func() error {
		rep, err := s.findOrCreate(ctx, ownerID)
		if err != nil {
			return err
		}
		rep.Apply(delta)
		rep.UpdatedAt = s.now()
		out, err = s.store.SaveReport(ctx, rep)
		return err
	})
	if err != nil {
		return core.Report{}, fmt.Errorf("apply report delta: %w", err)
	}
	return out, nil
}

func (s *ReportService) findOrCreate(ctx context.Context, ownerID string) (core.Report, error) {
	rep, err := s.store.GetReport(ctx, ownerID)
	if err == nil {
		return rep, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return core.Report{}, err
	}

	rep, err = s.store.CreateReport(ctx, zeroReport(ownerID, s.now()))
	if errors.Is(err, core.ErrConflict) {
		// another writer created it first
		return s.store.GetReport(ctx, ownerID)
	}
	return rep, err
}

func zeroReport(ownerID string, now time.Time) core.Report {
	rep := core.Report{
		OwnerID:      ownerID,
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
		TotalSavings: decimal.Zero,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if !now.IsZero() {
		rep.ID = core.NewID()
	}
	return rep
}
