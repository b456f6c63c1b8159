package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a booking failure.  Handlers map kinds to HTTP status
// codes; nothing else about an *Error should be relied upon by callers.
type Kind string

const (
	KindValidation    Kind = "VALIDATION_ERROR"
	KindNotFound      Kind = "NOT_FOUND"
	KindConflict      Kind = "CONFLICT"
	KindForbidden     Kind = "FORBIDDEN"
	KindCodeExhausted Kind = "CODE_GENERATION_EXHAUSTED"
	KindTransient     Kind = "TRANSIENT"
	KindInternal      Kind = "INTERNAL"
)

// Sentinel errors returned by Store implementations.  The repository
// layer translates driver specific failures into these values.
var (
	// ErrNotFound reports a missing space, user or reservation row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate reports a unique constraint violation on insert.
	ErrDuplicate = errors.New("duplicate key")
	// ErrLockTimeout reports a lock wait timeout, deadlock or
	// serialization failure.  The operation may be retried as is.
	ErrLockTimeout = errors.New("lock wait timeout")
)

// Error is the failure type returned by Service operations.
type Error struct {
	Kind    Kind
	Message string
	// Details lists every violated rule for validation failures.
	Details []string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if len(e.Details) > 0 {
		msg += ": " + strings.Join(e.Details, "; ")
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind carried by err, or KindInternal when err is
// not a booking error.  KindOf(nil) returns "".
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindInternal
}

func validationError(msg string, details []string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Details: details}
}

func notFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

func conflict(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

func forbidden(msg string) *Error { return &Error{Kind: KindForbidden, Message: msg} }

// storeError wraps a failure from the Store.  Lock timeouts and expired
// deadlines become KindTransient so callers can retry instead of
// reporting a conflict that never happened.
func storeError(op string, err error) error {
	if errors.Is(err, ErrLockTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTransient, Message: "reservation store is busy, please retry", Err: err}
	}
	return fmt.Errorf("booking: %s: %w", op, err)
}
