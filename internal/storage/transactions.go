package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"fintrack/internal/core"
)

const transactionColumns = `id, owner_id, parent_id, kind, amount, currency, category_id, tag_id,
	budget_id, goal_id, description, recurrence_interval, next_occurrence, end_date,
	occurred_at, created_at, updated_at`

var transactionOrder = map[string]string{
	"occurredAt":  "occurred_at",
	"createdAt":   "created_at",
	"amount":      "CAST(amount AS REAL)",
	"description": "description",
	"type":        "kind",
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		t                          core.Transaction
		kind, amount, every        string
		next, end                  sql.NullInt64
		occurred, created, updated int64
	)
	err := s.Scan(&t.ID, &t.OwnerID, &t.ParentID, &kind, &amount, &t.Currency, &t.CategoryID, &t.TagID,
		&t.BudgetID, &t.GoalID, &t.Description, &every, &next, &end,
		&occurred, &created, &updated)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Kind = core.Kind(kind)
	if t.Amount, err = parseDecimal("amount", amount); err != nil {
		return core.Transaction{}, err
	}
	t.Recurrence = core.Recurrence{
		Interval:       core.Interval(every),
		NextOccurrence: fromNullMillis(next),
		EndDate:        fromNullMillis(end),
	}
	t.OccurredAt = fromMillis(occurred)
	t.CreatedAt = fromMillis(created)
	t.UpdatedAt = fromMillis(updated)
	return t, nil
}

func transactionArgs(t core.Transaction) []any {
	return []any{
		t.ID, t.OwnerID, t.ParentID, string(t.Kind), t.Amount.String(), t.Currency, t.CategoryID, t.TagID,
		t.BudgetID, t.GoalID, t.Description, string(t.Recurrence.Interval),
		nullMillis(t.Recurrence.NextOccurrence), nullMillis(t.Recurrence.EndDate),
		toMillis(t.OccurredAt), toMillis(t.CreatedAt), toMillis(t.UpdatedAt),
	}
}

const insertTransactionSQL = `INSERT INTO transactions (` + transactionColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (r *SQLiteRepository) InsertTransaction(ctx context.Context, t core.Transaction) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, insertTransactionSQL, transactionArgs(t)...); err != nil {
		return persistErr("insert transaction", err)
	}
	return nil
}

// InsertTransactions writes all rows in a single database transaction.
func (r *SQLiteRepository) InsertTransactions(ctx context.Context, ts []core.Transaction) error {
	if len(ts) == 0 {
		return nil
	}
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("begin batch insert", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertTransactionSQL)
	if err != nil {
		return persistErr("prepare batch insert", err)
	}
	defer stmt.Close()

	for _, t := range ts {
		if _, err := stmt.ExecContext(ctx, transactionArgs(t)...); err != nil {
			return persistErr(fmt.Sprintf("batch insert transaction %s", t.ID), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return persistErr("commit batch insert", err)
	}
	return nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND owner_id = ?`, id, ownerID)
	t, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, persistErr("get transaction", err)
	}
	return t, nil
}

// SaveTransaction overwrites the mutable columns of an owned transaction.
func (r *SQLiteRepository) SaveTransaction(ctx context.Context, t core.Transaction) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET
		kind = ?, amount = ?, currency = ?, category_id = ?, tag_id = ?, budget_id = ?, goal_id = ?,
		description = ?, recurrence_interval = ?, next_occurrence = ?, end_date = ?,
		occurred_at = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		string(t.Kind), t.Amount.String(), t.Currency, t.CategoryID, t.TagID, t.BudgetID, t.GoalID,
		t.Description, string(t.Recurrence.Interval),
		nullMillis(t.Recurrence.NextOccurrence), nullMillis(t.Recurrence.EndDate),
		toMillis(t.OccurredAt), toMillis(t.UpdatedAt),
		t.ID, t.OwnerID)
	if err != nil {
		return persistErr("save transaction", err)
	}
	return expectOne(res, "save transaction", core.ErrNotFound)
}

// SaveRecurrence stores the recurrence pointer of a source transaction.
func (r *SQLiteRepository) SaveRecurrence(ctx context.Context, id string, rec core.Recurrence, now time.Time) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `UPDATE transactions
		SET recurrence_interval = ?, next_occurrence = ?, end_date = ?, updated_at = ?
		WHERE id = ?`,
		string(rec.Interval), nullMillis(rec.NextOccurrence), nullMillis(rec.EndDate), toMillis(now), id)
	if err != nil {
		return persistErr("save recurrence", err)
	}
	return expectOne(res, "save recurrence", core.ErrNotFound)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return persistErr("delete transaction", err)
	}
	return expectOne(res, "delete transaction", core.ErrNotFound)
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, ownerID string, f core.TransactionFilter, opts core.ListOptions) ([]core.Transaction, error) {
	opts = opts.Normalize()
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	where := []string{"owner_id = ?"}
	args := []any{ownerID}
	eq := func(col, v string) {
		if v != "" {
			where = append(where, col+" = ?")
			args = append(args, v)
		}
	}
	eq("kind", string(f.Kind))
	eq("category_id", f.CategoryID)
	eq("tag_id", f.TagID)
	eq("budget_id", f.BudgetID)
	eq("goal_id", f.GoalID)
	eq("parent_id", f.ParentID)
	if f.RecurringOnly {
		where = append(where, "recurrence_interval != ''")
	}
	if f.From != nil {
		where = append(where, "occurred_at >= ?")
		args = append(args, toMillis(*f.From))
	}
	if f.To != nil {
		where = append(where, "occurred_at < ?")
		args = append(args, toMillis(*f.To))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` + strings.Join(where, " AND ") +
		orderClause(opts, transactionOrder, "occurredAt") + ` LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Start)

	return r.queryTransactions(ctx, "list transactions", query, args...)
}

// ListDueRecurring returns up to limit recurring transactions whose next
// occurrence is at or before now. Exhausted recurrences are skipped so they
// cannot fill the batch.
func (r *SQLiteRepository) ListDueRecurring(ctx context.Context, now time.Time, limit int) ([]core.Transaction, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	return r.queryTransactions(ctx, "list due recurring", `SELECT `+transactionColumns+` FROM transactions
		WHERE recurrence_interval != ''
		  AND next_occurrence IS NOT NULL
		  AND next_occurrence <= ?
		  AND (end_date IS NULL OR next_occurrence <= end_date)
		ORDER BY next_occurrence ASC, id ASC
		LIMIT ?`, toMillis(now), limit)
}

func (r *SQLiteRepository) queryTransactions(ctx context.Context, op, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistErr(op, err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, persistErr(op, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr(op, err)
	}
	return out, nil
}
