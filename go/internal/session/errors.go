package session

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine category carried by every error reply.
type ErrorKind string

const (
	KindNotFound        ErrorKind = "NOT_FOUND"
	KindInvalidState    ErrorKind = "INVALID_STATE"
	KindForbidden       ErrorKind = "FORBIDDEN"
	KindOperationFailed ErrorKind = "OPERATION_FAILED"
	KindInternal        ErrorKind = "INTERNAL"
)

// Sentinel errors a GameStore wraps so the handler can classify failures.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

const internalMessage = "internal server error"

// Error is a classified coordinator failure. Message is safe to show to clients.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func notFound(format string, args ...any) *Error {
	return newError(KindNotFound, nil, format, args...)
}

func invalidState(format string, args ...any) *Error {
	return newError(KindInvalidState, nil, format, args...)
}

func forbidden(format string, args ...any) *Error {
	return newError(KindForbidden, nil, format, args...)
}

// storeFailure classifies an error returned by the GameStore.
func storeFailure(err error, format string, args ...any) *Error {
	switch {
	case errors.Is(err, ErrNotFound):
		return newError(KindNotFound, err, format, args...)
	case errors.Is(err, ErrConflict):
		return newError(KindInvalidState, err, format, args...)
	default:
		return newError(KindOperationFailed, err, format, args...)
	}
}

// KindOf reports the category of err. Unclassified errors are Internal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// clientMessage returns the text sent to the originating connection.
func clientMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return internalMessage
}
