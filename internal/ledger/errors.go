package ledger

import (
	"errors"
	"fmt"

	"medchain-backend/internal/packaging"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	ErrInvalidHierarchy     = packaging.ErrInvalidHierarchy
	ErrInvalidPayload       = errors.New("invalid payload")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrVerificationFailed   = errors.New("verification code does not match")
	ErrLedgerInconsistency  = errors.New("ledger inconsistency")
	ErrBusy                 = errors.New("batch is being updated, retry")
)

// InsufficientQuantityError carries the availability the request was checked against.
type InsufficientQuantityError struct {
	Requested int64
	Available int64
}

func (e *InsufficientQuantityError) Error() string {
	return fmt.Sprintf("%s: requested %d, available %d", ErrInsufficientQuantity, e.Requested, e.Available)
}

func (e *InsufficientQuantityError) Unwrap() error { return ErrInsufficientQuantity }

func notFound(kind, id string) error {
	return fmt.Errorf("%s %q %w", kind, id, ErrNotFound)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPayload, fmt.Sprintf(format, args...))
}
