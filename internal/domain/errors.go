package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrAlreadyReleased   = errors.New("reservation already released")
	ErrInvalidState      = errors.New("invalid state")
	// ErrBusy is returned when a product lock could not be acquired in time.
	ErrBusy = errors.New("resource busy")
	// ErrTransaction marks persistence/infrastructure faults. Nothing was committed.
	ErrTransaction = errors.New("transaction failure")
)

// InsufficientStockError carries the counts seen when a reserve was refused.
// errors.Is(err, ErrInsufficientStock) matches it.
type InsufficientStockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("product %s has insufficient stock: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

func invalidArgument(msg string) error { return fmt.Errorf("%w: %s", ErrInvalidArgument, msg) }

func invalidState(msg string) error { return fmt.Errorf("%w: %s", ErrInvalidState, msg) }
