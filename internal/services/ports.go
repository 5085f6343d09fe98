// Package services holds the ledger and its cascades: the report aggregator,
// goal and budget adjusters, the notification sink and the scheduled jobs
// that expand recurring transactions and allocate monthly savings.
package services

import (
	"context"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"

	"github.com/shopspring/decimal"
)

type UserStore interface {
	GetUser(ctx context.Context, id string) (core.User, error)
	ListUserIDs(ctx context.Context) ([]string, error)
}

type NotificationStore interface {
	InsertNotification(ctx context.Context, n core.Notification) error
	GetNotification(ctx context.Context, ownerID, id string) (core.Notification, error)
	ListNotifications(ctx context.Context, ownerID string, f core.NotificationFilter, opts core.ListOptions) ([]core.Notification, error)
	SaveNotification(ctx context.Context, n core.Notification) error
	DeleteNotification(ctx context.Context, ownerID, id string) error
}

type ReportStore interface {
	GetReport(ctx context.Context, ownerID string) (core.Report, error)
	CreateReport(ctx context.Context, rep core.Report) (core.Report, error)
	SaveReport(ctx context.Context, rep core.Report) (core.Report, error)
}

type GoalStore interface {
	CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error)
	GetGoal(ctx context.Context, ownerID, id string) (core.Goal, error)
	FindGoalByDescription(ctx context.Context, ownerID, description string) (core.Goal, error)
	ListGoals(ctx context.Context, ownerID string, opts core.ListOptions) ([]core.Goal, error)
	SaveGoal(ctx context.Context, g core.Goal) (core.Goal, error)
	DeleteGoal(ctx context.Context, ownerID, id string) error
}

type BudgetStore interface {
	CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	GetBudget(ctx context.Context, ownerID, id string) (core.Budget, error)
	ListBudgets(ctx context.Context, ownerID string, opts core.ListOptions) ([]core.Budget, error)
	SaveBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	DeleteBudget(ctx context.Context, ownerID, id string) error
}

type TransactionStore interface {
	InsertTransaction(ctx context.Context, t core.Transaction) error
	InsertTransactions(ctx context.Context, ts []core.Transaction) error
	GetTransaction(ctx context.Context, ownerID, id string) (core.Transaction, error)
	SaveTransaction(ctx context.Context, t core.Transaction) error
	SaveRecurrence(ctx context.Context, id string, rec core.Recurrence, now time.Time) error
	DeleteTransaction(ctx context.Context, ownerID, id string) error
	ListTransactions(ctx context.Context, ownerID string, f core.TransactionFilter, opts core.ListOptions) ([]core.Transaction, error)
	ListDueRecurring(ctx context.Context, now time.Time, limit int) ([]core.Transaction, error)
}

// ReferenceStore resolves the entities a transaction points at.
type ReferenceStore interface {
	GetCategory(ctx context.Context, id string) (core.Category, error)
	GetTag(ctx context.Context, ownerID, id string) (core.Tag, error)
	GetGoal(ctx context.Context, ownerID, id string) (core.Goal, error)
	GetBudget(ctx context.Context, ownerID, id string) (core.Budget, error)
}

// EventPublisher announces ledger mutations. *amqp.Client satisfies it.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, event *amqp.LedgerEvent) error
}

type GoalAdjuster interface {
	Adjust(ctx context.Context, ownerID, goalID string, delta decimal.Decimal) (core.Goal, error)
}

type BudgetAdjuster interface {
	Adjust(ctx context.Context, ownerID, budgetID string, delta decimal.Decimal) (core.Budget, error)
}

type ReportApplier interface {
	ApplyDelta(ctx context.Context, ownerID string, delta core.ReportDelta) (core.Report, error)
}

// Message is the payload handed to a Notifier.
type Message struct {
	Description   string
	TransactionID string
}

// Notifier delivers a message to an owner's inbox. It reports false without
// an error when the owner does not exist.
type Notifier interface {
	Notify(ctx context.Context, ownerID string, msg Message) (bool, error)
}
