package engine

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why an operation was rejected. Every rejection
// carries exactly one kind so callers can act on it.
type ErrorKind string

const (
	KindValidation    ErrorKind = "VALIDATION"    // malformed input
	KindAuthorization ErrorKind = "AUTHORIZATION" // caller lacks the required role
	KindState         ErrorKind = "STATE"         // operation invalid for the current status
	KindTimeout       ErrorKind = "TIMEOUT"       // time-gated precondition not met
	KindUnavailable   ErrorKind = "UNAVAILABLE"   // engine is paused
)

// Error is a kinded engine error. Operations fail atomically: an error
// means no state was mutated.
type Error struct {
	Kind ErrorKind
	msg  string
}

func (e *Error) Error() string { return e.msg }

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...interface{}) *Error {
	return newError(KindValidation, format, args...)
}

func Authorizationf(format string, args ...interface{}) *Error {
	return newError(KindAuthorization, format, args...)
}

func Statef(format string, args ...interface{}) *Error {
	return newError(KindState, format, args...)
}

func Timeoutf(format string, args ...interface{}) *Error {
	return newError(KindTimeout, format, args...)
}

func Unavailablef(format string, args ...interface{}) *Error {
	return newError(KindUnavailable, format, args...)
}

// KindOf returns the kind of an engine error, or the empty string for
// any other error (storage failures and the like).
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
