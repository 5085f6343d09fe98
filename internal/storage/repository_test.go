package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"fintrack/internal/core"

	"github.com/shopspring/decimal"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func openTempRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "fintrack.db"))
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func seedUser(t *testing.T, repo *SQLiteRepository, id string) {
	t.Helper()
	if err := repo.CreateUser(context.Background(), core.User{ID: id, Currency: "USD", CreatedAt: base}); err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
}

func tx(id, owner string, kind core.Kind, amount string, at time.Time) core.Transaction {
	return core.Transaction{
		ID:         id,
		OwnerID:    owner,
		Kind:       kind,
		Amount:     decimal.RequireFromString(amount),
		Currency:   "USD",
		CategoryID: "cat",
		OccurredAt: at,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
}

func TestTransactions_OwnerScoped(t *testing.T) {
	t.Parallel()
	repo := openTempRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "alice")
	seedUser(t, repo, "bob")

	if err := repo.InsertTransaction(ctx, tx("t1", "alice", core.KindExpense, "12.30", base)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := repo.GetTransaction(ctx, "alice", "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Amount.Equal(decimal.RequireFromString("12.3")) || !got.OccurredAt.Equal(base) {
		t.Errorf("round trip = %+v", got)
	}

	if _, err := repo.GetTransaction(ctx, "bob", "t1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("foreign get error = %v, want ErrNotFound", err)
	}
	if err := repo.DeleteTransaction(ctx, "bob", "t1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("foreign delete error = %v, want ErrNotFound", err)
	}
	got.OwnerID = "bob"
	if err := repo.SaveTransaction(ctx, got); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("foreign save error = %v, want ErrNotFound", err)
	}
	if err := repo.DeleteTransaction(ctx, "alice", "t1"); err != nil {
		t.Errorf("owner delete: %v", err)
	}
}

func TestListTransactions_FilterAndOrder(t *testing.T) {
	t.Parallel()
	repo := openTempRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "alice")
	seedUser(t, repo, "bob")

	rows := []core.Transaction{
		tx("a1", "alice", core.KindExpense, "9", base),
		tx("a2", "alice", core.KindExpense, "100", base.Add(time.Hour)),
		tx("a3", "alice", core.KindIncome, "20", base.Add(2*time.Hour)),
		tx("b1", "bob", core.KindExpense, "5", base),
	}
	if err := repo.InsertTransactions(ctx, rows); err != nil {
		t.Fatalf("batch insert: %v", err)
	}

	tests := []struct {
		name   string
		filter core.TransactionFilter
		opts   core.ListOptions
		want   []string
	}{
		{"default order", core.TransactionFilter{}, core.ListOptions{Limit: 10}, []string{"a1", "a2", "a3"}},
		{"numeric amount desc", core.TransactionFilter{}, core.ListOptions{Limit: 10, Order: "amount", Desc: true}, []string{"a2", "a3", "a1"}},
		{"kind filter", core.TransactionFilter{Kind: core.KindExpense}, core.ListOptions{Limit: 10}, []string{"a1", "a2"}},
		{"window", core.TransactionFilter{}, core.ListOptions{Start: 1, Limit: 1}, []string{"a2"}},
		{"unknown order falls back", core.TransactionFilter{}, core.ListOptions{Limit: 10, Order: "owner_id; DROP"}, []string{"a1", "a2", "a3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.ListTransactions(ctx, "alice", tt.filter, tt.opts)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d rows, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("row %d = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestListDueRecurring(t *testing.T) {
	t.Parallel()
	repo := openTempRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "alice")

	now := base.AddDate(0, 0, 10)
	past := now.AddDate(0, 0, -3)
	future := now.AddDate(0, 0, 1)
	endBeforePast := past.AddDate(0, 0, -1)

	due := tx("due", "alice", core.KindExpense, "1", base)
	due.Recurrence = core.Recurrence{Interval: core.Daily, NextOccurrence: &past}

	atNow := tx("at-now", "alice", core.KindExpense, "1", base)
	atNow.Recurrence = core.Recurrence{Interval: core.Weekly, NextOccurrence: &now}

	notYet := tx("not-yet", "alice", core.KindExpense, "1", base)
	notYet.Recurrence = core.Recurrence{Interval: core.Daily, NextOccurrence: &future}

	exhausted := tx("exhausted", "alice", core.KindExpense, "1", base)
	exhausted.Recurrence = core.Recurrence{Interval: core.Monthly, NextOccurrence: &past, EndDate: &endBeforePast}

	oneOff := tx("one-off", "alice", core.KindExpense, "1", base)

	if err := repo.InsertTransactions(ctx, []core.Transaction{due, atNow, notYet, exhausted, oneOff}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := repo.ListDueRecurring(ctx, now, 100)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(got) != 2 || got[0].ID != "due" || got[1].ID != "at-now" {
		ids := make([]string, len(got))
		for i, g := range got {
			ids[i] = g.ID
		}
		t.Fatalf("due = %v, want [due at-now]", ids)
	}

	next := now.AddDate(0, 0, 1)
	rec := got[0].Recurrence
	rec.NextOccurrence = &next
	if err := repo.SaveRecurrence(ctx, "due", rec, now); err != nil {
		t.Fatalf("save recurrence: %v", err)
	}
	if got, _ := repo.ListDueRecurring(ctx, now, 1); len(got) != 1 || got[0].ID != "at-now" {
		t.Errorf("after advance due = %+v", got)
	}
}

func TestReport_UniqueAndVersioned(t *testing.T) {
	t.Parallel()
	repo := openTempRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "alice")

	if _, err := repo.GetReport(ctx, "alice"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("missing report error = %v", err)
	}

	rep, err := repo.CreateReport(ctx, core.Report{ID: "r1", OwnerID: "alice", CreatedAt: base, UpdatedAt: base})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.CreateReport(ctx, core.Report{ID: "r2", OwnerID: "alice", CreatedAt: base, UpdatedAt: base}); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("second report error = %v, want ErrConflict", err)
	}

	stale := rep
	rep.Apply(core.DeltaFor(core.KindIncome, decimal.NewFromInt(100)))
	rep, err = repo.SaveReport(ctx, rep)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if rep.Version != 2 {
		t.Errorf("version = %d, want 2", rep.Version)
	}

	stale.Apply(core.DeltaFor(core.KindExpense, decimal.NewFromInt(5)))
	if _, err := repo.SaveReport(ctx, stale); !errors.Is(err, core.ErrConflict) {
		t.Errorf("stale save error = %v, want ErrConflict", err)
	}

	got, err := repo.GetReport(ctx, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.TotalIncome.Equal(decimal.NewFromInt(100)) || !got.TotalSavings.Equal(decimal.NewFromInt(100)) {
		t.Errorf("report = %+v", got)
	}
}

func TestBudget_SpendingRoundTrip(t *testing.T) {
	t.Parallel()
	repo := openTempRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "alice")

	b := core.Budget{ID: "b1", OwnerID: "alice", Name: "food", Amount: decimal.NewFromInt(300), CreatedAt: base, UpdatedAt: base}
	b.AddSpend(base, decimal.RequireFromString("42.5"))
	if _, err := repo.CreateBudget(ctx, b); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetBudget(ctx, "alice", "b1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Spending) != 1 || got.Spending[0].YearMonth != "2024-03" || !got.TotalSpent().Equal(decimal.RequireFromString("42.5")) {
		t.Errorf("spending = %+v", got.Spending)
	}
	if _, err := repo.GetBudget(ctx, "bob", "b1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("foreign budget error = %v", err)
	}
}

func TestGoals_ListScopedAndFindMarker(t *testing.T) {
	t.Parallel()
	repo := openTempRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "alice")
	seedUser(t, repo, "bob")

	goals := []core.Goal{
		{ID: "g1", OwnerID: "alice", Name: "car", Amount: decimal.NewFromInt(5000), CreatedAt: base},
		{ID: "g2", OwnerID: "alice", Name: "auto", Amount: decimal.NewFromInt(100), Description: core.AutomaticSavingsMarker, CreatedAt: base.Add(time.Minute)},
		{ID: "g3", OwnerID: "bob", Name: "bike", Amount: decimal.NewFromInt(10), Description: core.AutomaticSavingsMarker, CreatedAt: base},
	}
	for _, g := range goals {
		g.UpdatedAt = g.CreatedAt
		if _, err := repo.CreateGoal(ctx, g); err != nil {
			t.Fatalf("create %s: %v", g.ID, err)
		}
	}

	got, err := repo.ListGoals(ctx, "alice", core.ListOptions{Start: 0, Limit: 10, Order: "name"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "g2" || got[1].ID != "g1" {
		t.Errorf("goals = %+v", got)
	}

	marker, err := repo.FindGoalByDescription(ctx, "alice", core.AutomaticSavingsMarker)
	if err != nil || marker.ID != "g2" {
		t.Errorf("marker goal = %+v, %v", marker, err)
	}
}

func TestNotifications_Inbox(t *testing.T) {
	t.Parallel()
	repo := openTempRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "alice")

	for i, id := range []string{"n1", "n2"} {
		n := core.Notification{ID: id, OwnerID: "alice", Description: "hello", CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		n.UpdatedAt = n.CreatedAt
		if err := repo.InsertNotification(ctx, n); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	n, err := repo.GetNotification(ctx, "alice", "n1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	n.Read = true
	if err := repo.SaveNotification(ctx, n); err != nil {
		t.Fatalf("save: %v", err)
	}

	unread, err := repo.ListNotifications(ctx, "alice", core.NotificationFilter{UnreadOnly: true}, core.ListOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(unread) != 1 || unread[0].ID != "n2" {
		t.Errorf("unread = %+v", unread)
	}
	if err := repo.DeleteNotification(ctx, "mallory", "n2"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("foreign delete error = %v", err)
	}
}

func TestUsersCategoriesTags(t *testing.T) {
	t.Parallel()
	repo := openTempRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "bob")
	seedUser(t, repo, "alice")

	if err := repo.CreateUser(ctx, core.User{ID: "bob", CreatedAt: base}); !errors.Is(err, core.ErrConflict) {
		t.Errorf("duplicate user: err = %v, want ErrConflict", err)
	}
	ids, err := repo.ListUserIDs(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(ids) != 2 || ids[0] != "alice" || ids[1] != "bob" {
		t.Errorf("user ids = %v, want [alice bob]", ids)
	}
	if _, err := repo.GetUser(ctx, "carol"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing user: err = %v, want ErrNotFound", err)
	}

	for _, name := range []string{"Rent", "Groceries"} {
		if err := repo.CreateCategory(ctx, core.Category{ID: core.NewID(), Name: name}); err != nil {
			t.Fatalf("create category %s: %v", name, err)
		}
	}
	if err := repo.CreateCategory(ctx, core.Category{ID: core.NewID(), Name: "Rent"}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("duplicate category: err = %v, want ErrValidation", err)
	}
	cats, err := repo.ListCategories(ctx)
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(cats) != 2 || cats[0].Name != "Groceries" {
		t.Errorf("categories = %+v, want Groceries first", cats)
	}

	if err := repo.CreateTag(ctx, core.Tag{ID: "tg1", OwnerID: "alice", Name: "holiday"}); err != nil {
		t.Fatalf("create tag: %v", err)
	}
	if _, err := repo.GetTag(ctx, "bob", "tg1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("foreign tag: err = %v, want ErrNotFound", err)
	}
	tags, err := repo.ListTags(ctx, "alice", core.ListOptions{})
	if err != nil {
		t.Fatalf("list tags: %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "holiday" {
		t.Errorf("tags = %+v", tags)
	}
}
