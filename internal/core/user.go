package core

import "time"

type (
	User struct {
		ID        string
		Name      string
		Currency  string
		CreatedAt time.Time
	}

	// Notification is an inbox entry for a user.
	Notification struct {
		ID            string
		OwnerID       string
		Description   string
		TransactionID string
		Read          bool
		CreatedAt     time.Time
		UpdatedAt     time.Time
	}

	NotificationPatch struct {
		Read *bool
	}

	// NotificationFilter narrows an inbox listing.
	NotificationFilter struct {
		UnreadOnly bool
	}

	Category struct {
		ID   string
		Name string
	}

	Tag struct {
		ID      string
		OwnerID string
		Name    string
	}
)

// ListOptions is an offset window plus a sort field.
type ListOptions struct {
	Start int
	Limit int
	Order string
	Desc  bool
}

// DefaultListLimit applies when a listing asks for no limit.
const DefaultListLimit = 50

// Normalize clamps the window to sane bounds.
func (o ListOptions) Normalize() ListOptions {
	if o.Start < 0 {
		o.Start = 0
	}
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	return o
}
