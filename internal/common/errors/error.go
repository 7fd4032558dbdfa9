package errors

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrEmptyAuth        = errors.New("missing authorization")
	ErrTokenInvalid     = errors.New("invalid token")
	ErrProductNotFound  = errors.New("product not found")
	ErrCartItemNotFound = errors.New("product not found in cart")
)

// InsufficientStockError reports a stock check failure. InCart is the quantity
// already held by the cart at the time of the check, Requested the absolute
// quantity the caller asked for.
type InsufficientStockError struct {
	ProductId string
	Available int
	InCart    int
	Requested int
}

func (e InsufficientStockError) Error() string {
	return fmt.Sprintf(
		"insufficient stock for productId=%s available=%d inCart=%d requested=%d",
		e.ProductId,
		e.Available,
		e.InCart,
		e.Requested,
	)
}

func (e InsufficientStockError) Details() string {
	return fmt.Sprintf(
		"available: %d, in cart: %d, requested: %d",
		e.Available,
		e.InCart,
		e.Requested,
	)
}

// ValidationError marks a cart document that violates the data-model
// invariants before it reaches storage.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PersistenceError wraps a storage-layer failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s with error=%s", e.Op, e.Err.Error())
}

func (e PersistenceError) Unwrap() error { return e.Err }

func HandleError(err error, span trace.Span) {
	if err == nil {
		return
	}
	span.AddEvent(err.Error())
	span.SetStatus(codes.Error, err.Error())
	span.RecordError(err)
}
