package core

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrRateUnavailable   = errors.New("exchange rate unavailable")
	ErrConversionService = errors.New("currency conversion service error")
	ErrPersistence       = errors.New("persistence error")
	ErrConflict          = errors.New("concurrent modification")
)

var (
	ErrInvalidKind     = fmt.Errorf("%w: invalid transaction type", ErrValidation)
	ErrInvalidAmount   = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrInvalidCurrency = fmt.Errorf("%w: invalid currency code", ErrValidation)
	ErrInvalidInterval = fmt.Errorf("%w: invalid recurrence interval", ErrValidation)
	ErrMissingOwner    = fmt.Errorf("%w: missing owner", ErrValidation)
	ErrMissingName     = fmt.Errorf("%w: missing name", ErrValidation)
	ErrEndBeforeStart  = fmt.Errorf("%w: recurrence end date before next occurrence", ErrValidation)
)

// IsClientError reports whether err should be surfaced to the caller as-is.
// Everything else is logged and reported as a generic failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound)
}
