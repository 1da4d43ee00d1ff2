package store

import (
	"errors"
	"fmt"
)

// Domain errors. All are local, synchronous and recoverable by the caller;
// the API layer maps them to HTTP statuses.
var (
	// ErrInvalidAmount is returned for non-positive quantities.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidState is returned when a request transition is attempted
	// from a state that forbids it.
	ErrInvalidState = errors.New("request state does not allow this transition")

	// ErrNotFound is returned for unknown facility, request or batch IDs.
	ErrNotFound = errors.New("not found")

	// ErrStockContention is returned when an allocation exhausted its retry
	// budget on contested batches. The whole operation is safe to retry.
	ErrStockContention = errors.New("stock contention, allocation retries exhausted")
)

// InsufficientStockError is returned when eligible batches cannot cover a
// requested amount. Nothing is mutated when it is returned.
type InsufficientStockError struct {
	Shortfall int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: short %d", e.Shortfall)
}
