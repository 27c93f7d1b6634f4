// Package herr implements the exhaustive error-kind set the executor and
// storage boundary raise, as a single typed error with a stable Kind so
// callers can switch on failure class instead of parsing strings.
package herr

import (
	"errors"
	"fmt"
)

// Kind identifies the class of failure.
type Kind string

const (
	NotFound         Kind = "not_found"
	SchemaViolation  Kind = "schema_violation"
	InvalidArgument  Kind = "invalid_argument"
	CompileError     Kind = "compile_error"
	EmbeddingFailed  Kind = "embedding_failed"
	ArenaExhausted   Kind = "arena_exhausted"
	TxnTooLarge      Kind = "txn_too_large"
	BackendError     Kind = "backend_error"
	Cancelled        Kind = "cancelled"
	TimedOut         Kind = "timed_out"
	CorruptPayload   Kind = "corrupt_payload"
	ReadersExhausted Kind = "readers_exhausted"
)

// Error is the typed error carried across the executor/storage boundary.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target shares this error's Kind.
func (e *Error) Is(target error) bool {
	var o *Error
	if errors.As(target, &o) {
		return o.Kind == e.Kind
	}
	return false
}

func new_(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func NotFoundf(kind, id string) *Error {
	return new_(NotFound, fmt.Sprintf("%s %s not found", kind, id), nil)
}

func SchemaViolationf(format string, args ...any) *Error {
	return new_(SchemaViolation, fmt.Sprintf(format, args...), nil)
}

func InvalidArgumentf(format string, args ...any) *Error {
	return new_(InvalidArgument, fmt.Sprintf(format, args...), nil)
}

func CompileErrorf(format string, args ...any) *Error {
	return new_(CompileError, fmt.Sprintf(format, args...), nil)
}

func EmbeddingFailedf(cause error, format string, args ...any) *Error {
	return new_(EmbeddingFailed, fmt.Sprintf(format, args...), cause)
}

func ArenaExhaustedf(format string, args ...any) *Error {
	return new_(ArenaExhausted, fmt.Sprintf(format, args...), nil)
}

func TxnTooLargef(format string, args ...any) *Error {
	return new_(TxnTooLarge, fmt.Sprintf(format, args...), nil)
}

func BackendErrorf(cause error, format string, args ...any) *Error {
	return new_(BackendError, fmt.Sprintf(format, args...), cause)
}

func Cancelledf(format string, args ...any) *Error {
	return new_(Cancelled, fmt.Sprintf(format, args...), nil)
}

func TimedOutf(format string, args ...any) *Error {
	return new_(TimedOut, fmt.Sprintf(format, args...), nil)
}

func CorruptPayloadf(cause error, format string, args ...any) *Error {
	return new_(CorruptPayload, fmt.Sprintf(format, args...), cause)
}

func ReadersExhaustedf(format string, args ...any) *Error {
	return new_(ReadersExhausted, fmt.Sprintf(format, args...), nil)
}

// Of reports the Kind of err, if it is (or wraps) an *Error.
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err is (or wraps) an *Error of the given kind.
func Is(err error, kind Kind) bool {
	k, ok := Of(err)
	return ok && k == kind
}
