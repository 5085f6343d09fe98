package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/storage"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

func fixedClock(now time.Time) func() time.Time {
	return func() time.Time { return now }
}

type fakeConverter struct {
	mu    sync.Mutex
	rates map[string]decimal.Decimal
	err   error
	calls int
}

func (f *fakeConverter) Convert(_ context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from == "" || from == to {
		return amount, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return decimal.Zero, f.err
	}
	rate, ok := f.rates[from+">"+to]
	if !ok {
		return decimal.Zero, core.ErrRateUnavailable
	}
	return amount.Mul(rate), nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, event *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) actions() []amqp.Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.Action, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Action)
	}
	return out
}

type delivered struct {
	ownerID string
	msg     Message
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []delivered
}

func (n *recordingNotifier) Notify(_ context.Context, ownerID string, msg Message) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, delivered{ownerID: ownerID, msg: msg})
	return true, nil
}

func (n *recordingNotifier) all() []delivered {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]delivered(nil), n.sent...)
}

// harness wires every service over a fresh SQLite database with a fixed
// clock.
type harness struct {
	repo          *storage.SQLiteRepository
	converter     *fakeConverter
	publisher     *recordingPublisher
	notifications *NotificationService
	queue         *NotificationQueue
	reports       *ReportService
	goals         *GoalService
	budgets       *BudgetService
	ledger        *Ledger
	engine        *RecurrenceEngine
	allocator     *SavingsAllocator
}

func newHarness(t *testing.T, now time.Time) *harness {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "fintrack.db"))
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	clock := fixedClock(now)
	h := &harness{
		repo:      repo,
		converter: &fakeConverter{rates: map[string]decimal.Decimal{"EUR>USD": dec("1.1")}},
		publisher: &recordingPublisher{},
	}

	h.notifications = NewNotificationService(repo, repo)
	h.notifications.now = clock
	h.queue = NewNotificationQueue(h.notifications, time.Hour)
	h.reports = NewReportService(repo, 3)
	h.reports.now = clock
	h.goals = NewGoalService(repo, 3)
	h.goals.now = clock
	h.budgets = NewBudgetService(repo, h.notifications, 3)
	h.budgets.now = clock

	h.ledger = NewLedger(LedgerDeps{
		Transactions: repo,
		Users:        repo,
		References:   repo,
		Converter:    h.converter,
		Goals:        h.goals,
		Budgets:      h.budgets,
		Reports:      h.reports,
		Publisher:    h.publisher,
	})
	h.ledger.now = clock

	h.engine = NewRecurrenceEngine(RecurrenceDeps{
		Transactions: repo,
		Goals:        h.goals,
		Budgets:      h.budgets,
		Reports:      h.reports,
		Notices:      h.queue,
		Publisher:    h.publisher,
	})
	h.engine.now = clock

	h.allocator = NewSavingsAllocator(repo, repo, h.ledger, "", 2)
	h.allocator.now = clock
	return h
}

func (h *harness) seedUser(t *testing.T, id string) {
	t.Helper()
	err := h.repo.CreateUser(context.Background(), core.User{ID: id, Name: id, Currency: "USD", CreatedAt: time.Unix(0, 0)})
	if err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
}

func (h *harness) report(t *testing.T, ownerID string) core.Report {
	t.Helper()
	rep, err := h.reports.Get(context.Background(), ownerID)
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	return rep
}

func (h *harness) inbox(t *testing.T, ownerID string) []core.Notification {
	t.Helper()
	ns, err := h.notifications.List(context.Background(), ownerID, core.NotificationFilter{}, core.ListOptions{})
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	return ns
}

func assertDecimal(t *testing.T, name string, got, want decimal.Decimal) {
	t.Helper()
	if !got.Equal(want) {
		t.Errorf("%s = %s, want %s", name, got, want)
	}
}

func assertSavingsBalanced(t *testing.T, rep core.Report) {
	t.Helper()
	if !rep.TotalSavings.Equal(rep.TotalIncome.Sub(rep.TotalExpense)) {
		t.Errorf("savings %s != income %s - expense %s", rep.TotalSavings, rep.TotalIncome, rep.TotalExpense)
	}
}
