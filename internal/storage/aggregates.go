package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"fintrack/internal/core"
)

const reportColumns = `id, owner_id, total_income, total_expense, total_savings, version, created_at, updated_at`

func scanReport(s scanner) (core.Report, error) {
	var (
		rep                     core.Report
		income, expense, saving string
		created, updated        int64
	)
	if err := s.Scan(&rep.ID, &rep.OwnerID, &income, &expense, &saving, &rep.Version, &created, &updated); err != nil {
		return core.Report{}, err
	}
	var err error
	if rep.TotalIncome, err = parseDecimal("total_income", income); err != nil {
		return core.Report{}, err
	}
	if rep.TotalExpense, err = parseDecimal("total_expense", expense); err != nil {
		return core.Report{}, err
	}
	if rep.TotalSavings, err = parseDecimal("total_savings", saving); err != nil {
		return core.Report{}, err
	}
	rep.CreatedAt = fromMillis(created)
	rep.UpdatedAt = fromMillis(updated)
	return rep, nil
}

func (r *SQLiteRepository) GetReport(ctx context.Context, ownerID string) (core.Report, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE owner_id = ?`, ownerID)
	rep, err := scanReport(row)
	if err != nil {
		return core.Report{}, persistErr("get report", err)
	}
	return rep, nil
}

// CreateReport inserts a report at version 1. A concurrent insert for the
// same owner surfaces as core.ErrConflict.
func (r *SQLiteRepository) CreateReport(ctx context.Context, rep core.Report) (core.Report, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	rep.Version = 1
	_, err := r.db.ExecContext(ctx, `INSERT INTO reports (`+reportColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.ID, rep.OwnerID, rep.TotalIncome.String(), rep.TotalExpense.String(), rep.TotalSavings.String(),
		rep.Version, toMillis(rep.CreatedAt), toMillis(rep.UpdatedAt))
	if isUniqueConstraintError(err) {
		return core.Report{}, fmt.Errorf("create report: %w", core.ErrConflict)
	}
	if err != nil {
		return core.Report{}, persistErr("create report", err)
	}
	return rep, nil
}

// SaveReport writes rep if its version is still current and bumps it.
func (r *SQLiteRepository) SaveReport(ctx context.Context, rep core.Report) (core.Report, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `UPDATE reports
		SET total_income = ?, total_expense = ?, total_savings = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND owner_id = ? AND version = ?`,
		rep.TotalIncome.String(), rep.TotalExpense.String(), rep.TotalSavings.String(), toMillis(rep.UpdatedAt),
		rep.ID, rep.OwnerID, rep.Version)
	if err != nil {
		return core.Report{}, persistErr("save report", err)
	}
	if err := expectOne(res, "save report", core.ErrConflict); err != nil {
		return core.Report{}, err
	}
	rep.Version++
	return rep, nil
}

const goalColumns = `id, owner_id, name, amount, current_amount, monthly_contribution, description,
	version, created_at, updated_at`

var goalOrder = map[string]string{
	"createdAt": "created_at",
	"name":      "name",
	"amount":    "CAST(amount AS REAL)",
}

func scanGoal(s scanner) (core.Goal, error) {
	var (
		g                        core.Goal
		amount, current, monthly string
		created, updated         int64
	)
	if err := s.Scan(&g.ID, &g.OwnerID, &g.Name, &amount, &current, &monthly, &g.Description,
		&g.Version, &created, &updated); err != nil {
		return core.Goal{}, err
	}
	var err error
	if g.Amount, err = parseDecimal("amount", amount); err != nil {
		return core.Goal{}, err
	}
	if g.CurrentAmount, err = parseDecimal("current_amount", current); err != nil {
		return core.Goal{}, err
	}
	if g.MonthlyContribution, err = parseDecimal("monthly_contribution", monthly); err != nil {
		return core.Goal{}, err
	}
	g.CreatedAt = fromMillis(created)
	g.UpdatedAt = fromMillis(updated)
	return g, nil
}

func (r *SQLiteRepository) CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	g.Version = 1
	_, err := r.db.ExecContext(ctx, `INSERT INTO goals (`+goalColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.OwnerID, g.Name, g.Amount.String(), g.CurrentAmount.String(), g.MonthlyContribution.String(),
		g.Description, g.Version, toMillis(g.CreatedAt), toMillis(g.UpdatedAt))
	if err != nil {
		return core.Goal{}, persistErr("create goal", err)
	}
	return g, nil
}

func (r *SQLiteRepository) GetGoal(ctx context.Context, ownerID, id string) (core.Goal, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ? AND owner_id = ?`, id, ownerID)
	g, err := scanGoal(row)
	if err != nil {
		return core.Goal{}, persistErr("get goal", err)
	}
	return g, nil
}

// FindGoalByDescription returns the oldest owned goal with the exact description.
func (r *SQLiteRepository) FindGoalByDescription(ctx context.Context, ownerID, description string) (core.Goal, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals
		WHERE owner_id = ? AND TRIM(description) = ?
		ORDER BY created_at ASC, id ASC LIMIT 1`, ownerID, description)
	g, err := scanGoal(row)
	if err != nil {
		return core.Goal{}, persistErr("find goal by description", err)
	}
	return g, nil
}

func (r *SQLiteRepository) ListGoals(ctx context.Context, ownerID string, opts core.ListOptions) ([]core.Goal, error) {
	opts = opts.Normalize()
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE owner_id = ?`+
		orderClause(opts, goalOrder, "createdAt")+` LIMIT ? OFFSET ?`, ownerID, opts.Limit, opts.Start)
	if err != nil {
		return nil, persistErr("list goals", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, persistErr("list goals", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list goals", err)
	}
	return out, nil
}

func (r *SQLiteRepository) SaveGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `UPDATE goals
		SET name = ?, amount = ?, current_amount = ?, monthly_contribution = ?, description = ?,
		    version = version + 1, updated_at = ?
		WHERE id = ? AND owner_id = ? AND version = ?`,
		g.Name, g.Amount.String(), g.CurrentAmount.String(), g.MonthlyContribution.String(), g.Description,
		toMillis(g.UpdatedAt), g.ID, g.OwnerID, g.Version)
	if err != nil {
		return core.Goal{}, persistErr("save goal", err)
	}
	if err := expectOne(res, "save goal", core.ErrConflict); err != nil {
		return core.Goal{}, err
	}
	g.Version++
	return g, nil
}

func (r *SQLiteRepository) DeleteGoal(ctx context.Context, ownerID, id string) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM goals WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return persistErr("delete goal", err)
	}
	return expectOne(res, "delete goal", core.ErrNotFound)
}

const budgetColumns = `id, owner_id, name, amount, spending, category_id, description, version, created_at, updated_at`

var budgetOrder = map[string]string{
	"createdAt": "created_at",
	"name":      "name",
	"amount":    "CAST(amount AS REAL)",
}

func scanBudget(s scanner) (core.Budget, error) {
	var (
		b                core.Budget
		amount, spending string
		created, updated int64
	)
	if err := s.Scan(&b.ID, &b.OwnerID, &b.Name, &amount, &spending, &b.CategoryID, &b.Description,
		&b.Version, &created, &updated); err != nil {
		return core.Budget{}, err
	}
	var err error
	if b.Amount, err = parseDecimal("amount", amount); err != nil {
		return core.Budget{}, err
	}
	if err := json.Unmarshal([]byte(spending), &b.Spending); err != nil {
		return core.Budget{}, fmt.Errorf("%w: decode spending: %w", core.ErrPersistence, err)
	}
	b.CreatedAt = fromMillis(created)
	b.UpdatedAt = fromMillis(updated)
	return b, nil
}

func encodeSpending(s []core.MonthlySpend) (string, error) {
	if s == nil {
		s = []core.MonthlySpend{}
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("%w: encode spending: %w", core.ErrPersistence, err)
	}
	return string(raw), nil
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	spending, err := encodeSpending(b.Spending)
	if err != nil {
		return core.Budget{}, err
	}
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	b.Version = 1
	_, err = r.db.ExecContext(ctx, `INSERT INTO budgets (`+budgetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.OwnerID, b.Name, b.Amount.String(), spending, b.CategoryID, b.Description,
		b.Version, toMillis(b.CreatedAt), toMillis(b.UpdatedAt))
	if err != nil {
		return core.Budget{}, persistErr("create budget", err)
	}
	return b, nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, ownerID, id string) (core.Budget, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ? AND owner_id = ?`, id, ownerID)
	b, err := scanBudget(row)
	if err != nil {
		return core.Budget{}, persistErr("get budget", err)
	}
	return b, nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, ownerID string, opts core.ListOptions) ([]core.Budget, error) {
	opts = opts.Normalize()
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE owner_id = ?`+
		orderClause(opts, budgetOrder, "createdAt")+` LIMIT ? OFFSET ?`, ownerID, opts.Limit, opts.Start)
	if err != nil {
		return nil, persistErr("list budgets", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, persistErr("list budgets", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list budgets", err)
	}
	return out, nil
}

func (r *SQLiteRepository) SaveBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	spending, err := encodeSpending(b.Spending)
	if err != nil {
		return core.Budget{}, err
	}
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `UPDATE budgets
		SET name = ?, amount = ?, spending = ?, category_id = ?, description = ?,
		    version = version + 1, updated_at = ?
		WHERE id = ? AND owner_id = ? AND version = ?`,
		b.Name, b.Amount.String(), spending, b.CategoryID, b.Description,
		toMillis(b.UpdatedAt), b.ID, b.OwnerID, b.Version)
	if err != nil {
		return core.Budget{}, persistErr("save budget", err)
	}
	if err := expectOne(res, "save budget", core.ErrConflict); err != nil {
		return core.Budget{}, err
	}
	b.Version++
	return b, nil
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, ownerID, id string) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return persistErr("delete budget", err)
	}
	return expectOne(res, "delete budget", core.ErrNotFound)
}
