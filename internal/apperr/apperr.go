package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure so the transport layer can pick a status code.
type Kind string

const (
	KindInvalidQuantity        Kind = "invalid_quantity"
	KindInsufficientStock      Kind = "insufficient_stock"
	KindEmptyCart              Kind = "empty_cart"
	KindOrderLocked            Kind = "order_locked"
	KindDuplicateOpenPayment   Kind = "duplicate_open_payment"
	KindForbiddenSensitiveData Kind = "forbidden_sensitive_data"
	KindInvalidMetadata        Kind = "invalid_metadata"
	KindInvalidStateTransition Kind = "invalid_state_transition"
	KindNotFound               Kind = "not_found"
	KindUnauthorized           Kind = "unauthorized"
	KindValidation             Kind = "validation"
	KindInternal               Kind = "internal"
)

// Error is the single typed failure returned by the services.
// Only the fields relevant to the Kind are populated.
type Error struct {
	Kind      Kind
	Message   string
	Entity    string
	ID        string
	ProductID string
	Available int
	State     string
	From      string
	To        string
	Fields    []string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so callers can write errors.Is(err, apperr.ErrEmptyCart).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Sentinels for errors.Is comparisons. They carry no message on purpose so that
// Is matches any error of the same Kind.
var (
	ErrInvalidQuantity        = &Error{Kind: KindInvalidQuantity}
	ErrInsufficientStock      = &Error{Kind: KindInsufficientStock}
	ErrEmptyCart              = &Error{Kind: KindEmptyCart}
	ErrOrderLocked            = &Error{Kind: KindOrderLocked}
	ErrDuplicateOpenPayment   = &Error{Kind: KindDuplicateOpenPayment}
	ErrForbiddenSensitiveData = &Error{Kind: KindForbiddenSensitiveData}
	ErrInvalidMetadata        = &Error{Kind: KindInvalidMetadata}
	ErrInvalidStateTransition = &Error{Kind: KindInvalidStateTransition}
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrUnauthorized           = &Error{Kind: KindUnauthorized}
	ErrValidation             = &Error{Kind: KindValidation}
)

func InvalidQuantity(qty int) *Error {
	return &Error{
		Kind:    KindInvalidQuantity,
		Message: fmt.Sprintf("quantity must be greater than zero, got %d", qty),
	}
}

func InsufficientStock(productID, productName string, available int) *Error {
	name := productName
	if name == "" {
		name = productID
	}
	return &Error{
		Kind:      KindInsufficientStock,
		Message:   fmt.Sprintf("insufficient stock for %s: only %d units available", name, available),
		ProductID: productID,
		Available: available,
	}
}

func EmptyCart() *Error {
	return &Error{Kind: KindEmptyCart, Message: "cart is empty"}
}

func OrderLocked(state string) *Error {
	return &Error{
		Kind:    KindOrderLocked,
		Message: fmt.Sprintf("order in state '%s' cannot be modified", state),
		State:   state,
	}
}

func DuplicateOpenPayment(orderID string) *Error {
	return &Error{
		Kind:    KindDuplicateOpenPayment,
		Message: fmt.Sprintf("order %s already has an open payment", orderID),
		Entity:  "order",
		ID:      orderID,
	}
}

func ForbiddenSensitiveData(fields []string) *Error {
	return &Error{
		Kind:    KindForbiddenSensitiveData,
		Message: fmt.Sprintf("card data is not allowed in metadata: %s", strings.Join(fields, ", ")),
		Fields:  fields,
	}
}

func InvalidMetadata(err error) *Error {
	return &Error{Kind: KindInvalidMetadata, Message: "metadata must be a valid JSON object", Err: err}
}

func InvalidStateTransition(entity, from, to string) *Error {
	return &Error{
		Kind:    KindInvalidStateTransition,
		Message: fmt.Sprintf("%s cannot move from '%s' to '%s'", entity, from, to),
		Entity:  entity,
		From:    from,
		To:      to,
	}
}

func NotFound(entity, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s with ID %s not found", entity, id),
		Entity:  entity,
		ID:      id,
	}
}

func Unauthorized(action string) *Error {
	return &Error{Kind: KindUnauthorized, Message: fmt.Sprintf("not authorized to %s", action)}
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure, usually from persistence.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf reports the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As is a shorthand for errors.As into *Error.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
