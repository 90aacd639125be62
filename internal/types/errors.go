package types

import (
	"errors"
	"fmt"
)

// Kind classifies an error the way callers need to react to it, rather
// than by which package produced it. pkg/response and the engine's retry
// loop both act on Kind instead of comparing against gorm's sentinel errors.
type Kind string

const (
	KindNotFound           Kind = "NOT_FOUND"
	KindConflict           Kind = "CONFLICT"
	KindTransient          Kind = "TRANSIENT"
	KindFatal              Kind = "FATAL"
	KindValidationFailed   Kind = "VALIDATION_FAILED"
	KindInsufficientHoldings Kind = "INSUFFICIENT_HOLDINGS"
	KindInvalidState       Kind = "INVALID_STATE"
)

// Error is a Kind-tagged error. Use errors.Is/errors.As against *Error or
// a specific Kind via Is.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, types.NotFound) work against a *Error of the
// corresponding Kind without comparing Message or Err.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds a Kind-tagged error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap tags an underlying error with a Kind, preserving it for errors.Is
// chains against things like gorm.ErrRecordNotFound.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Sentinel instances for errors.Is comparisons, e.g. errors.Is(err, types.NotFound).
var (
	NotFound             = &Error{Kind: KindNotFound}
	Conflict             = &Error{Kind: KindConflict}
	Transient            = &Error{Kind: KindTransient}
	Fatal                = &Error{Kind: KindFatal}
	ValidationFailed     = &Error{Kind: KindValidationFailed}
	InsufficientHoldings = &Error{Kind: KindInsufficientHoldings}
	InvalidState         = &Error{Kind: KindInvalidState}
)

// KindOf extracts the Kind from err if it is (or wraps) a *Error, and
// KindFatal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindFatal
}
