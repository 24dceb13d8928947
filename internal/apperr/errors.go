package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can branch without parsing text.
type Kind string

const (
	KindTransport        Kind = "TRANSPORT"         // remote unreachable, timeout, unreadable body
	KindRemote           Kind = "REMOTE"            // platform answered with error/errors
	KindValidation       Kind = "VALIDATION"        // bad input, empty cart, no variants
	KindOutOfStock       Kind = "OUT_OF_STOCK"      // availability check failed
	KindNotFound         Kind = "NOT_FOUND"         // order/product unknown or not owned
	KindAlreadyCancelled Kind = "ALREADY_CANCELLED" // cancel on a cancelled order
	KindStorage          Kind = "STORAGE"           // local datastore failure
)

// Error carries a user-facing Message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
