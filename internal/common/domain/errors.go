package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a domain error so transports can map it to a status.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindLoad              ErrorKind = "load"
	KindInvalidCoordinate ErrorKind = "invalid_coordinate"
	KindNotFound          ErrorKind = "not_found"
	KindConflict          ErrorKind = "conflict"
	KindInvalidState      ErrorKind = "invalid_state"
)

// Sentinel errors usable with errors.Is.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrLoad              = &Error{Kind: KindLoad}
	ErrInvalidCoordinate = &Error{Kind: KindInvalidCoordinate}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrInvalidState      = &Error{Kind: KindInvalidState}
)

// Error is a local, synchronous failure returned to the immediate caller.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a domain error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// NewValidationError reports a malformed input record.
func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// WrapValidationError reports malformed input with the per-field causes.
func WrapValidationError(message string, cause error) *Error {
	return &Error{Kind: KindValidation, Message: message, Err: cause}
}

// NewLoadError reports an inconsistent station directory load.
func NewLoadError(message string, cause error) *Error {
	return &Error{Kind: KindLoad, Message: message, Err: cause}
}

// NewInvalidCoordinateError reports a latitude/longitude outside its range.
func NewInvalidCoordinateError(lat, lng float64) *Error {
	return &Error{
		Kind:    KindInvalidCoordinate,
		Message: fmt.Sprintf("invalid coordinate (%v, %v)", lat, lng),
	}
}

// NewNotFoundError reports a missing entity.
func NewNotFoundError(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s not found: %s", entity, id)}
}

// NewConflictError reports a concurrent modification.
func NewConflictError(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// NewInvalidStateError reports a forbidden status transition.
func NewInvalidStateError(from, to string) *Error {
	return &Error{
		Kind:    KindInvalidState,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

// KindOf returns the kind of the first domain error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
