package services

import (
	"context"
	"errors"

	"fintrack/internal/core"
)

// DefaultConflictRetries bounds read-modify-write attempts on versioned
// aggregates.
const DefaultConflictRetries = 3

// retryOnConflict runs fn until it returns something other than
// core.ErrConflict, at most attempts times.
func retryOnConflict(ctx context.Context, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); !errors.Is(err, core.ErrConflict) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return err
}
