// internal/apperr/apperr.go
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies the errors a caller is expected to handle.
type Kind string

const (
	InvalidInput   Kind = "INVALID_INPUT"
	NotFound       Kind = "NOT_FOUND"
	OutOfStock     Kind = "OUT_OF_STOCK"
	NoOpenRental   Kind = "NO_OPEN_RENTAL"
	AlreadyClosed  Kind = "ALREADY_CLOSED"
	HasOpenRentals Kind = "HAS_OPEN_RENTALS"
)

// Error is a classified error carrying a message safe to show to API clients.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// New returns an error of the given kind.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind of err, or "" when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
