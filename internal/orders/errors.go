package orders

import (
	"context"
	"errors"
	"fmt"
)

const (
	EntityUser    = "user"
	EntityProduct = "product"
	EntityOrder   = "order"
)

var (
	// ErrTransactionAborted matches every store-level failure. Nothing was
	// committed, so the caller may retry.
	ErrTransactionAborted = errors.New("transaction aborted")
	// ErrTimeout matches deadline expiry; it also matches ErrTransactionAborted.
	ErrTimeout = fmt.Errorf("%w: deadline exceeded", ErrTransactionAborted)

	ErrInvalidStatus   = errors.New("invalid order status")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrProductInUse    = errors.New("product is referenced by orders")
	// ErrInvalidProduct rejects negative price or stock.
	ErrInvalidProduct = errors.New("invalid product: price and stock must be non-negative")
)

type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func NotFound(entity string, id int64) error {
	return &NotFoundError{Entity: entity, ID: id}
}

type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// TransitionError rejects a status change or a stock re-balance that the
// order's current status does not allow.
type TransitionError struct {
	OrderID int64
	From    Status
	To      Status
}

func (e *TransitionError) Error() string {
	if e.From == e.To {
		return fmt.Sprintf("order %d is %s and can no longer change quantity or product", e.OrderID, e.From)
	}
	return fmt.Sprintf("order %d cannot move from %s to %s", e.OrderID, e.From, e.To)
}

type AbortedError struct {
	Op  string
	Err error
}

func (e *AbortedError) Error() string {
	return e.Op + ": " + ErrTransactionAborted.Error() + ": " + e.Err.Error()
}
func (e *AbortedError) Unwrap() error { return e.Err }

func (e *AbortedError) Is(target error) bool {
	if target == ErrTransactionAborted {
		return true
	}
	return target == ErrTimeout && errors.Is(e.Err, context.DeadlineExceeded)
}

// IsDomain reports whether err is a business outcome rather than a store fault.
func IsDomain(err error) bool {
	var nf *NotFoundError
	var is *InsufficientStockError
	var te *TransitionError
	return errors.As(err, &nf) || errors.As(err, &is) || errors.As(err, &te) ||
		errors.Is(err, ErrInvalidStatus) || errors.Is(err, ErrInvalidQuantity) || errors.Is(err, ErrProductInUse) ||
		errors.Is(err, ErrInvalidProduct)
}

// classify passes domain errors through untouched and turns everything else
// into an *AbortedError.
func classify(op string, err error) error {
	if err == nil || IsDomain(err) {
		return err
	}
	var ae *AbortedError
	if errors.As(err, &ae) {
		return err
	}
	return &AbortedError{Op: op, Err: err}
}
