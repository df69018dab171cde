package service

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for callers that need to react to it, such as
// the HTTP layer choosing a status code.
type Kind string

const (
	KindValidation            Kind = "VALIDATION"
	KindConflict              Kind = "CONFLICT"
	KindNotFound              Kind = "NOT_FOUND"
	KindUnauthorized          Kind = "UNAUTHORIZED"
	KindForbidden             Kind = "FORBIDDEN"
	KindInsufficientFunds     Kind = "INSUFFICIENT_FUNDS"
	KindInsufficientInventory Kind = "INSUFFICIENT_INVENTORY"
)

// Error is a failure whose Message is safe to show to clients.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func ValidationError(format string, args ...interface{}) error {
	return newError(KindValidation, format, args...)
}

func ConflictError(format string, args ...interface{}) error {
	return newError(KindConflict, format, args...)
}

func NotFoundError(format string, args ...interface{}) error {
	return newError(KindNotFound, format, args...)
}

func UnauthorizedError(format string, args ...interface{}) error {
	return newError(KindUnauthorized, format, args...)
}

func ForbiddenError(format string, args ...interface{}) error {
	return newError(KindForbidden, format, args...)
}

func InsufficientFundsError(format string, args ...interface{}) error {
	return newError(KindInsufficientFunds, format, args...)
}

func InsufficientInventoryError(format string, args ...interface{}) error {
	return newError(KindInsufficientInventory, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or "" for
// unexpected failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
