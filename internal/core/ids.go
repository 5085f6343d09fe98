package core

import "github.com/google/uuid"

// NewID returns a new random entity identifier.
func NewID() string {
	return uuid.NewString()
}
