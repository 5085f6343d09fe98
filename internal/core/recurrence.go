package core

import (
	"fmt"
	"time"
)

type Interval string

const (
	IntervalNone Interval = ""
	Daily        Interval = "daily"
	Weekly       Interval = "weekly"
	Monthly      Interval = "monthly"
	Yearly       Interval = "yearly"
)

// Recurrence describes how a transaction repeats. A zero Recurrence means the
// transaction is one-off.
type Recurrence struct {
	Interval       Interval
	NextOccurrence *time.Time
	EndDate        *time.Time
}

// Active reports whether the recurrence has an interval.
func (r Recurrence) Active() bool {
	return r.Interval != IntervalNone
}

// Exhausted reports whether the next occurrence lies past the end date.
func (r Recurrence) Exhausted() bool {
	return r.NextOccurrence != nil && r.EndDate != nil && r.NextOccurrence.After(*r.EndDate)
}

// DueAt reports whether an occurrence should be materialized at now.
func (r Recurrence) DueAt(now time.Time) bool {
	return r.Active() && r.NextOccurrence != nil && !r.NextOccurrence.After(now) && !r.Exhausted()
}

func (r Recurrence) Validate() error {
	if r.Interval == IntervalNone {
		return nil
	}
	if _, err := StepperFor(r.Interval); err != nil {
		return err
	}
	if r.NextOccurrence != nil && r.EndDate != nil && r.EndDate.Before(*r.NextOccurrence) {
		return ErrEndBeforeStart
	}
	return nil
}

// Advance moves the pointer one interval forward from the current next
// occurrence, or from base when the pointer was never set.
func (r Recurrence) Advance(base time.Time) (Recurrence, error) {
	step, err := StepperFor(r.Interval)
	if err != nil {
		return r, err
	}
	from := base
	if r.NextOccurrence != nil {
		from = *r.NextOccurrence
	}
	next := step.Next(from)
	r.NextOccurrence = &next
	return r, nil
}

// Stepper computes the occurrence following a given one.
type Stepper interface {
	Next(from time.Time) time.Time
}

type DailyStep struct{}

func (DailyStep) Next(from time.Time) time.Time { return from.AddDate(0, 0, 1) }

type WeeklyStep struct{}

func (WeeklyStep) Next(from time.Time) time.Time { return from.AddDate(0, 0, 7) }

// MonthlyStep adds one calendar month. Days past the end of the target month
// overflow into the following month, so Jan 31 steps to Mar 2 or 3.
type MonthlyStep struct{}

func (MonthlyStep) Next(from time.Time) time.Time { return from.AddDate(0, 1, 0) }

type YearlyStep struct{}

func (YearlyStep) Next(from time.Time) time.Time { return from.AddDate(1, 0, 0) }

var intervalSteps = map[Interval]Stepper{
	Daily:   DailyStep{},
	Weekly:  WeeklyStep{},
	Monthly: MonthlyStep{},
	Yearly:  YearlyStep{},
}

// StepperFor returns the stepping strategy for an interval.
func StepperFor(i Interval) (Stepper, error) {
	s, ok := intervalSteps[i]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidInterval, i)
	}
	return s, nil
}

// ParseInterval accepts the interval names plus "" and "none".
func ParseInterval(s string) (Interval, error) {
	if s == "" || s == "none" {
		return IntervalNone, nil
	}
	i := Interval(s)
	if _, err := StepperFor(i); err != nil {
		return IntervalNone, err
	}
	return i, nil
}
