package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"fintrack/internal/core"
)

type Action string

const (
	ActionCreated      Action = "created"
	ActionUpdated      Action = "updated"
	ActionDeleted      Action = "deleted"
	ActionMaterialized Action = "materialized"
)

// LedgerEvent announces a ledger mutation. It carries a snapshot of the
// transaction so consumers can still export rows that no longer exist.
type LedgerEvent struct {
	Action        Action    `json:"action"`
	TransactionID string    `json:"transactionId"`
	OwnerID       string    `json:"ownerId"`
	ParentID      string    `json:"parentId,omitempty"`
	Kind          string    `json:"kind"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	CategoryID    string    `json:"categoryId,omitempty"`
	Description   string    `json:"description"`
	OccurredAt    time.Time `json:"occurredAt"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewLedgerEvent snapshots t for the given action
func NewLedgerEvent(action Action, t core.Transaction) *LedgerEvent {
	return &LedgerEvent{
		Action:        action,
		TransactionID: t.ID,
		OwnerID:       t.OwnerID,
		ParentID:      t.ParentID,
		Kind:          string(t.Kind),
		Amount:        t.Amount.String(),
		Currency:      t.Currency,
		CategoryID:    t.CategoryID,
		Description:   t.Description,
		OccurredAt:    t.OccurredAt,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON decodes and checks a message body
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.TransactionID == "" || msg.OwnerID == "" {
		return nil, fmt.Errorf("ledger event missing transaction or owner id")
	}
	switch msg.Action {
	case ActionCreated, ActionUpdated, ActionDeleted, ActionMaterialized:
	default:
		return nil, fmt.Errorf("unknown ledger event action %q", msg.Action)
	}
	return &msg, nil
}

// Snapshot rebuilds the transaction carried by the event.
func (m *LedgerEvent) Snapshot() (core.Transaction, error) {
	amount, err := core.ParseAmount(m.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		ID:          m.TransactionID,
		OwnerID:     m.OwnerID,
		ParentID:    m.ParentID,
		Kind:        core.Kind(m.Kind),
		Amount:      amount,
		Currency:    m.Currency,
		CategoryID:  m.CategoryID,
		Description: m.Description,
		OccurredAt:  m.OccurredAt,
	}, nil
}
