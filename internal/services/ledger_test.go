package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
)

var now = time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)

func TestLedger_Create_UpdatesReport(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t, now)
	h.seedUser(t, "alice")

	income, err := h.ledger.Create(ctx, "alice", core.Transaction{
		Kind:     core.KindIncome,
		Amount:   dec("100"),
		Currency: "eur",
	})
	if err != nil {
		t.Fatalf("create income: %v", err)
	}
	assertDecimal(t, "converted amount", income.Amount, dec("110"))
	if income.Currency != "USD" {
		t.Errorf("currency = %q, want USD", income.Currency)
	}
	if !income.OccurredAt.Equal(now) {
		t.Errorf("occurredAt = %v, want %v", income.OccurredAt, now)
	}

	rep := h.report(t, "alice")
	assertDecimal(t, "totalIncome", rep.TotalIncome, dec("110"))
	assertSavingsBalanced(t, rep)

	if _, err := h.ledger.Create(ctx, "alice", core.Transaction{Kind: core.KindExpense, Amount: dec("40"), Currency: "USD"}); err != nil {
		t.Fatalf("create expense: %v", err)
	}
	rep = h.report(t, "alice")
	assertDecimal(t, "totalIncome", rep.TotalIncome, dec("110"))
	assertDecimal(t, "totalExpense", rep.TotalExpense, dec("40"))
	assertDecimal(t, "totalSavings", rep.TotalSavings, dec("70"))

	if h.converter.calls != 1 {
		t.Errorf("converter calls = %d, want 1 (same currency is identity)", h.converter.calls)
	}
	got := h.publisher.actions()
	if len(got) != 2 || got[0] != amqp.ActionCreated || got[1] != amqp.ActionCreated {
		t.Errorf("published actions = %v", got)
	}
}

func TestLedger_Create_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		owner   string
		tx      core.Transaction
		convErr error
		wantErr error
	}{
		{
			name:    "invalid kind",
			owner:   "alice",
			tx:      core.Transaction{Kind: "transfer", Amount: dec("1")},
			wantErr: core.ErrValidation,
		},
		{
			name:    "unknown owner",
			owner:   "nobody",
			tx:      core.Transaction{Kind: core.KindIncome, Amount: dec("1")},
			wantErr: core.ErrNotFound,
		},
		{
			name:    "rate missing",
			owner:   "alice",
			tx:      core.Transaction{Kind: core.KindIncome, Amount: dec("1"), Currency: "JPY"},
			wantErr: core.ErrRateUnavailable,
		},
		{
			name:    "conversion service down",
			owner:   "alice",
			tx:      core.Transaction{Kind: core.KindIncome, Amount: dec("1"), Currency: "EUR"},
			convErr: core.ErrConversionService,
			wantErr: core.ErrConversionService,
		},
		{
			name:    "goal of another owner",
			owner:   "alice",
			tx:      core.Transaction{Kind: core.KindExpense, Amount: dec("1"), GoalID: "bob-goal"},
			wantErr: core.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			h := newHarness(t, now)
			h.seedUser(t, "alice")
			h.seedUser(t, "bob")
			if _, err := h.goals.Create(ctx, "bob", core.Goal{ID: "bob-goal", Name: "Car", Amount: dec("10")}); err != nil {
				t.Fatalf("seed goal: %v", err)
			}
			h.converter.err = tt.convErr

			_, err := h.ledger.Create(ctx, tt.owner, tt.tx)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}

			list, err := h.repo.ListTransactions(ctx, "alice", core.TransactionFilter{}, core.ListOptions{Limit: 10})
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(list) != 0 {
				t.Errorf("stored %d transactions after failure", len(list))
			}
			if rep := h.report(t, "alice"); !rep.TotalIncome.IsZero() || !rep.TotalExpense.IsZero() {
				t.Errorf("report changed after failure: %+v", rep)
			}
		})
	}
}

func TestLedger_Create_AdjustsGoalAndBudget(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t, now)
	h.seedUser(t, "alice")

	goal, err := h.goals.Create(ctx, "alice", core.Goal{Name: "Holiday", Amount: dec("1000")})
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}
	budget, err := h.budgets.Create(ctx, "alice", core.Budget{Name: "Food", Amount: dec("500")})
	if err != nil {
		t.Fatalf("create budget: %v", err)
	}

	_, err = h.ledger.Create(ctx, "alice", core.Transaction{
		Kind:     core.KindExpense,
		Amount:   dec("120"),
		GoalID:   goal.ID,
		BudgetID: budget.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	goal, _ = h.goals.Get(ctx, "alice", goal.ID)
	assertDecimal(t, "goal currentAmount", goal.CurrentAmount, dec("120"))

	budget, _ = h.budgets.Get(ctx, "alice", budget.ID)
	if len(budget.Spending) != 1 || budget.Spending[0].YearMonth != "2024-05" {
		t.Fatalf("spending = %+v", budget.Spending)
	}
	assertDecimal(t, "budget spent", budget.Spending[0].Spent, dec("120"))

	if got := h.inbox(t, "alice"); len(got) != 0 {
		t.Errorf("unexpected notifications below threshold: %+v", got)
	}
}

func TestLedger_Create_RecurringPointer(t *testing.T) {
	t.Parallel()
	h := newHarness(t, now)
	h.seedUser(t, "alice")

	got, err := h.ledger.Create(context.Background(), "alice", core.Transaction{
		Kind:       core.KindExpense,
		Amount:     dec("9.99"),
		Recurrence: core.Recurrence{Interval: core.Monthly},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	want := now.AddDate(0, 1, 0)
	if got.Recurrence.NextOccurrence == nil || !got.Recurrence.NextOccurrence.Equal(want) {
		t.Errorf("next occurrence = %v, want %v", got.Recurrence.NextOccurrence, want)
	}
}

func TestLedger_Update(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		patch       core.TransactionPatch
		wantIncome  string
		wantExpense string
	}{
		{
			name:        "amount raised",
			patch:       core.TransactionPatch{Amount: ptr(dec("80"))},
			wantIncome:  "0",
			wantExpense: "80",
		},
		{
			name:        "amount lowered",
			patch:       core.TransactionPatch{Amount: ptr(dec("20"))},
			wantIncome:  "0",
			wantExpense: "20",
		},
		{
			name:        "description only",
			patch:       core.TransactionPatch{Description: ptr("groceries")},
			wantIncome:  "0",
			wantExpense: "50",
		},
		{
			name:        "kind change is not reconciled",
			patch:       core.TransactionPatch{Kind: ptr(core.KindIncome), Amount: ptr(dec("70"))},
			wantIncome:  "0",
			wantExpense: "50",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			h := newHarness(t, now)
			h.seedUser(t, "alice")

			created, err := h.ledger.Create(ctx, "alice", core.Transaction{Kind: core.KindExpense, Amount: dec("50")})
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if _, err := h.ledger.Update(ctx, "alice", created.ID, tt.patch); err != nil {
				t.Fatalf("update: %v", err)
			}

			rep := h.report(t, "alice")
			assertDecimal(t, "totalIncome", rep.TotalIncome, dec(tt.wantIncome))
			assertDecimal(t, "totalExpense", rep.TotalExpense, dec(tt.wantExpense))
			assertSavingsBalanced(t, rep)
		})
	}
}

func TestLedger_Update_MakesRecurring(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t, now)
	h.seedUser(t, "alice")

	created, err := h.ledger.Create(ctx, "alice", core.Transaction{Kind: core.KindExpense, Amount: dec("15")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := h.ledger.Update(ctx, "alice", created.ID, core.TransactionPatch{
		Recurrence: &core.Recurrence{Interval: core.Weekly},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	want := now.AddDate(0, 0, 7)
	if got.Recurrence.NextOccurrence == nil || !got.Recurrence.NextOccurrence.Equal(want) {
		t.Fatalf("next occurrence = %v, want %v", got.Recurrence.NextOccurrence, want)
	}

	stored, err := h.repo.GetTransaction(ctx, "alice", created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Recurrence.NextOccurrence == nil || !stored.Recurrence.NextOccurrence.Equal(want) {
		t.Errorf("stored next occurrence = %v, want %v", stored.Recurrence.NextOccurrence, want)
	}
	due, err := h.repo.ListDueRecurring(ctx, want, 10)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 1 || due[0].ID != created.ID {
		t.Errorf("due = %+v, want the updated transaction", due)
	}
}

func TestLedger_Update_NotOwned(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t, now)
	h.seedUser(t, "alice")
	h.seedUser(t, "bob")

	created, err := h.ledger.Create(ctx, "alice", core.Transaction{Kind: core.KindExpense, Amount: dec("50")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = h.ledger.Update(ctx, "bob", created.ID, core.TransactionPatch{Amount: ptr(dec("1"))})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := h.ledger.Delete(ctx, "bob", created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("delete err = %v, want ErrNotFound", err)
	}
}

func TestLedger_Delete_ReversesReportOnly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t, now)
	h.seedUser(t, "alice")

	goal, err := h.goals.Create(ctx, "alice", core.Goal{Name: "Bike", Amount: dec("300")})
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}
	if _, err := h.ledger.Create(ctx, "alice", core.Transaction{Kind: core.KindExpense, Amount: dec("150")}); err != nil {
		t.Fatalf("create: %v", err)
	}
	fifty, err := h.ledger.Create(ctx, "alice", core.Transaction{Kind: core.KindExpense, Amount: dec("50"), GoalID: goal.ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	assertDecimal(t, "totalExpense before", h.report(t, "alice").TotalExpense, dec("200"))

	if err := h.ledger.Delete(ctx, "alice", fifty.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	rep := h.report(t, "alice")
	assertDecimal(t, "totalExpense", rep.TotalExpense, dec("150"))
	assertDecimal(t, "totalSavings", rep.TotalSavings, dec("-150"))

	goal, _ = h.goals.Get(ctx, "alice", goal.ID)
	assertDecimal(t, "goal currentAmount", goal.CurrentAmount, dec("50"))

	if _, err := h.repo.GetTransaction(ctx, "alice", fifty.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("deleted transaction still readable: %v", err)
	}
	actions := h.publisher.actions()
	if actions[len(actions)-1] != amqp.ActionDeleted {
		t.Errorf("last action = %v, want deleted", actions[len(actions)-1])
	}
}

func TestLedger_List_OwnerScopedAndExpanded(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t, now)
	h.seedUser(t, "alice")
	h.seedUser(t, "bob")

	if err := h.repo.CreateCategory(ctx, core.Category{ID: "food", Name: "Food"}); err != nil {
		t.Fatalf("create category: %v", err)
	}
	if err := h.repo.CreateTag(ctx, core.Tag{ID: "t1", OwnerID: "alice", Name: "weekly"}); err != nil {
		t.Fatalf("create tag: %v", err)
	}

	for _, amount := range []string{"30", "10", "20"} {
		_, err := h.ledger.Create(ctx, "alice", core.Transaction{
			Kind:       core.KindExpense,
			Amount:     dec(amount),
			CategoryID: "food",
			TagID:      "t1",
		})
		if err != nil {
			t.Fatalf("create alice: %v", err)
		}
	}
	if _, err := h.ledger.Create(ctx, "bob", core.Transaction{Kind: core.KindExpense, Amount: dec("5"), CategoryID: "food"}); err != nil {
		t.Fatalf("create bob: %v", err)
	}

	views, err := h.ledger.List(ctx, "alice", core.TransactionFilter{}, core.ListOptions{Start: 0, Limit: 10, Order: "amount"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 3 {
		t.Fatalf("got %d transactions, want 3", len(views))
	}
	for i, want := range []string{"10", "20", "30"} {
		v := views[i]
		if v.OwnerID != "alice" {
			t.Errorf("views[%d] owned by %s", i, v.OwnerID)
		}
		assertDecimal(t, "amount", v.Amount, dec(want))
		if v.Category == nil || v.Category.Name != "Food" {
			t.Errorf("views[%d].Category = %+v", i, v.Category)
		}
		if v.Tag == nil || v.Tag.Name != "weekly" {
			t.Errorf("views[%d].Tag = %+v", i, v.Tag)
		}
	}
}
