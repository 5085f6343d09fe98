package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BudgetAlertRatio is the share of a budget's amount at which the owner is
// notified.
var BudgetAlertRatio = decimal.RequireFromString("0.9")

// AutomaticSavingsMarker is the goal description that opts a goal into the
// monthly savings allocation.
const AutomaticSavingsMarker = "Automatic savings allocation"

// ReportDelta is a signed change to a report's totals.
type ReportDelta struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// DeltaFor returns +amount on the side matching kind.
func DeltaFor(kind Kind, amount decimal.Decimal) ReportDelta {
	switch kind {
	case KindIncome:
		return ReportDelta{Income: amount}
	case KindExpense:
		return ReportDelta{Expense: amount}
	}
	return ReportDelta{}
}

func (d ReportDelta) Negate() ReportDelta {
	return ReportDelta{Income: d.Income.Neg(), Expense: d.Expense.Neg()}
}

func (d ReportDelta) IsZero() bool {
	return d.Income.IsZero() && d.Expense.IsZero()
}

// Report is the running income and expense aggregate of one owner.
type Report struct {
	ID           string
	OwnerID      string
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	TotalSavings decimal.Decimal
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Apply adds d to the totals and recomputes savings.
func (r *Report) Apply(d ReportDelta) {
	r.TotalIncome = r.TotalIncome.Add(d.Income)
	r.TotalExpense = r.TotalExpense.Add(d.Expense)
	r.TotalSavings = r.TotalIncome.Sub(r.TotalExpense)
}

type (
	MonthlySpend struct {
		YearMonth string          `json:"yearMonth"`
		Spent     decimal.Decimal `json:"spentAmount"`
	}

	Budget struct {
		ID          string
		OwnerID     string
		Name        string
		Amount      decimal.Decimal
		Spending    []MonthlySpend
		CategoryID  string
		Description string
		Version     int64
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	BudgetPatch struct {
		Name        *string
		Amount      *decimal.Decimal
		CategoryID  *string
		Description *string
	}
)

// YearMonth formats t as "YYYY-MM".
func YearMonth(t time.Time) string {
	return t.Format("2006-01")
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.OwnerID) == "" {
		return ErrMissingOwner
	}
	if strings.TrimSpace(b.Name) == "" {
		return ErrMissingName
	}
	if !b.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// EnsurePeriod makes sure a spending record exists for the month of now and
// returns its index. Records stay ordered by month.
func (b *Budget) EnsurePeriod(now time.Time) int {
	ym := YearMonth(now)
	for i, s := range b.Spending {
		if s.YearMonth == ym {
			return i
		}
	}
	at := len(b.Spending)
	for i, s := range b.Spending {
		if s.YearMonth > ym {
			at = i
			break
		}
	}
	b.Spending = append(b.Spending, MonthlySpend{})
	copy(b.Spending[at+1:], b.Spending[at:])
	b.Spending[at] = MonthlySpend{YearMonth: ym, Spent: decimal.Zero}
	return at
}

// AddSpend adds delta to the spend recorded for the month of now.
func (b *Budget) AddSpend(now time.Time, delta decimal.Decimal) {
	i := b.EnsurePeriod(now)
	b.Spending[i].Spent = b.Spending[i].Spent.Add(delta)
}

// TotalSpent sums spend across every recorded month.
func (b Budget) TotalSpent() decimal.Decimal {
	total := decimal.Zero
	for _, s := range b.Spending {
		total = total.Add(s.Spent)
	}
	return total
}

// AlertReached reports whether total spend is at or above the alert ratio.
func (b Budget) AlertReached() bool {
	if !b.Amount.IsPositive() {
		return false
	}
	return b.TotalSpent().GreaterThanOrEqual(b.Amount.Mul(BudgetAlertRatio))
}

func (p BudgetPatch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return ErrMissingName
	}
	if p.Amount != nil && !p.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

func (p BudgetPatch) Apply(b Budget) Budget {
	if p.Name != nil {
		b.Name = *p.Name
	}
	if p.Amount != nil {
		b.Amount = *p.Amount
	}
	if p.CategoryID != nil {
		b.CategoryID = *p.CategoryID
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
	return b
}

type (
	Goal struct {
		ID                  string
		OwnerID             string
		Name                string
		Amount              decimal.Decimal
		CurrentAmount       decimal.Decimal
		MonthlyContribution decimal.Decimal
		Description         string
		Version             int64
		CreatedAt           time.Time
		UpdatedAt           time.Time
	}

	// GoalPatch covers the user-editable goal fields. CurrentAmount only moves
	// through transaction cascades.
	GoalPatch struct {
		Name                *string
		Amount              *decimal.Decimal
		MonthlyContribution *decimal.Decimal
		Description         *string
	}
)

func (g Goal) Validate() error {
	if strings.TrimSpace(g.OwnerID) == "" {
		return ErrMissingOwner
	}
	if strings.TrimSpace(g.Name) == "" {
		return ErrMissingName
	}
	if g.Amount.IsNegative() || g.MonthlyContribution.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// IsAutomaticSavings reports whether the goal carries the given marker.
func (g Goal) IsAutomaticSavings(marker string) bool {
	return strings.TrimSpace(g.Description) == marker
}

func (p GoalPatch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return ErrMissingName
	}
	if p.Amount != nil && p.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if p.MonthlyContribution != nil && p.MonthlyContribution.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

func (p GoalPatch) Apply(g Goal) Goal {
	if p.Name != nil {
		g.Name = *p.Name
	}
	if p.Amount != nil {
		g.Amount = *p.Amount
	}
	if p.MonthlyContribution != nil {
		g.MonthlyContribution = *p.MonthlyContribution
	}
	if p.Description != nil {
		g.Description = *p.Description
	}
	return g
}
