package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"fintrack/internal/core"
)

func TestBudget_AlertOnCrossingThreshold(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t, now)
	h.seedUser(t, "alice")

	b, err := h.budgets.Create(ctx, "alice", core.Budget{Name: "Groceries", Amount: dec("100")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := h.budgets.Adjust(ctx, "alice", b.ID, dec("85")); err != nil {
		t.Fatalf("adjust below threshold: %v", err)
	}
	if got := h.inbox(t, "alice"); len(got) != 0 {
		t.Fatalf("notified below threshold: %+v", got)
	}

	if _, err := h.budgets.Adjust(ctx, "alice", b.ID, dec("10")); err != nil {
		t.Fatalf("adjust across threshold: %v", err)
	}
	got := h.inbox(t, "alice")
	if len(got) != 1 {
		t.Fatalf("got %d notifications, want 1", len(got))
	}
	if got[0].Description != "You have spent 90% of your budget: Groceries" {
		t.Errorf("description = %q", got[0].Description)
	}
	if got[0].Read {
		t.Error("new notification should be unread")
	}
}

func TestBudget_UpdateReevaluatesAlert(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t, now)
	h.seedUser(t, "alice")

	b, err := h.budgets.Create(ctx, "alice", core.Budget{Name: "Fuel", Amount: dec("200")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.budgets.Adjust(ctx, "alice", b.ID, dec("100")); err != nil {
		t.Fatalf("adjust: %v", err)
	}

	updated, err := h.budgets.Update(ctx, "alice", b.ID, core.BudgetPatch{Amount: ptr(dec("110"))})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	assertDecimal(t, "amount", updated.Amount, dec("110"))
	if got := h.inbox(t, "alice"); len(got) != 1 {
		t.Fatalf("got %d notifications, want 1", len(got))
	}
}

func TestBudget_Validation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t, now)
	h.seedUser(t, "alice")

	tests := []struct {
		name string
		call func() error
	}{
		{"missing name", func() error {
			_, err := h.budgets.Create(ctx, "alice", core.Budget{Amount: dec("10")})
			return err
		}},
		{"zero amount", func() error {
			_, err := h.budgets.Create(ctx, "alice", core.Budget{Name: "x"})
			return err
		}},
		{"blank patch name", func() error {
			_, err := h.budgets.Update(ctx, "alice", "any", core.BudgetPatch{Name: ptr("  ")})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, core.ErrValidation) {
				t.Errorf("err = %v, want validation error", err)
			}
		})
	}
}

func TestBudget_OwnerScoped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t, now)
	h.seedUser(t, "alice")
	h.seedUser(t, "bob")

	b, err := h.budgets.Create(ctx, "alice", core.Budget{Name: "Rent", Amount: dec("900")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.budgets.Adjust(ctx, "bob", b.ID, dec("1")); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("adjust err = %v, want ErrNotFound", err)
	}
	if err := h.budgets.Delete(ctx, "bob", b.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("delete err = %v, want ErrNotFound", err)
	}
	list, err := h.budgets.List(ctx, "bob", core.ListOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("bob sees %d budgets", len(list))
	}
}

func TestGoal_CRUD(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t, now)
	h.seedUser(t, "alice")
	h.seedUser(t, "bob")

	g, err := h.goals.Create(ctx, "alice", core.Goal{Name: "Laptop", Amount: dec("1500"), MonthlyContribution: dec("100")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.goals.Create(ctx, "bob", core.Goal{Name: "Boat", Amount: dec("9000")}); err != nil {
		t.Fatalf("create bob: %v", err)
	}

	g, err = h.goals.Update(ctx, "alice", g.ID, core.GoalPatch{Name: ptr("New laptop")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if g.Name != "New laptop" || !g.CurrentAmount.IsZero() {
		t.Errorf("updated goal = %+v", g)
	}

	g, err = h.goals.Adjust(ctx, "alice", g.ID, dec("250"))
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	assertDecimal(t, "currentAmount", g.CurrentAmount, dec("250"))

	list, err := h.goals.List(ctx, "alice", core.ListOptions{Start: 0, Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != g.ID {
		t.Fatalf("alice goals = %+v", list)
	}

	if _, err := h.goals.Update(ctx, "bob", g.ID, core.GoalPatch{Name: ptr("mine")}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("cross-owner update err = %v", err)
	}
	if err := h.goals.Delete(ctx, "alice", g.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := h.goals.Get(ctx, "alice", g.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("get after delete err = %v", err)
	}
}

func TestNotificationService(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t, now)
	h.seedUser(t, "alice")

	t.Run("missing owner is a no-op", func(t *testing.T) {
		ok, err := h.notifications.Notify(ctx, "ghost", Message{Description: "hello"})
		if err != nil || ok {
			t.Fatalf("Notify = %v, %v; want false, nil", ok, err)
		}
		if got := h.inbox(t, "ghost"); len(got) != 0 {
			t.Errorf("stored %d notifications for missing owner", len(got))
		}
	})

	t.Run("inbox lifecycle", func(t *testing.T) {
		ok, err := h.notifications.Notify(ctx, "alice", Message{Description: "hello", TransactionID: "tx-1"})
		if err != nil || !ok {
			t.Fatalf("Notify = %v, %v", ok, err)
		}
		got := h.inbox(t, "alice")
		if len(got) != 1 || got[0].TransactionID != "tx-1" {
			t.Fatalf("inbox = %+v", got)
		}

		n, err := h.notifications.Update(ctx, "alice", got[0].ID, core.NotificationPatch{Read: ptr(true)})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if !n.Read {
			t.Error("notification not marked read")
		}
		unread, err := h.notifications.List(ctx, "alice", core.NotificationFilter{UnreadOnly: true}, core.ListOptions{})
		if err != nil {
			t.Fatalf("list unread: %v", err)
		}
		if len(unread) != 0 {
			t.Errorf("unread = %d, want 0", len(unread))
		}

		if _, err := h.notifications.Update(ctx, "bob", got[0].ID, core.NotificationPatch{Read: ptr(false)}); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("cross-owner update err = %v", err)
		}
		if err := h.notifications.Delete(ctx, "alice", got[0].ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if err := h.notifications.Delete(ctx, "alice", got[0].ID); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("second delete err = %v", err)
		}
	})
}

func TestBudget_AlertMessageNamesBudget(t *testing.T) {
	t.Parallel()
	notifier := &recordingNotifier{}
	h := newHarness(t, now)
	h.seedUser(t, "alice")
	svc := NewBudgetService(h.repo, notifier, 1)
	svc.now = fixedClock(now)

	b, err := svc.Create(context.Background(), "alice", core.Budget{Name: "Travel", Amount: dec("10")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Adjust(context.Background(), "alice", b.ID, dec("9")); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	sent := notifier.all()
	if len(sent) != 1 || sent[0].ownerID != "alice" || !strings.HasSuffix(sent[0].msg.Description, ": Travel") {
		t.Errorf("sent = %+v", sent)
	}
}
