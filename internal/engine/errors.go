package engine

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error. Kinds are stable codes used by the HTTP
// API and the CLI.
type Kind string

const (
	KindAlreadyInitialized Kind = "already_initialized"
	KindNotInitialized     Kind = "not_initialized"
	KindUnauthorized       Kind = "unauthorized"
	KindDelayOutOfRange    Kind = "delay_out_of_range"
	KindAlreadyQueued      Kind = "already_queued"
	KindNotFound           Kind = "not_found"
	KindTooEarly           Kind = "too_early"
	KindInvalidOperationID Kind = "invalid_operation_id"
	KindInvalidPrincipal   Kind = "invalid_principal"
	KindConflict           Kind = "conflict"
	KindInternal           Kind = "internal"
)

var kindMessages = map[Kind]string{
	KindAlreadyInitialized: "timelock already initialized",
	KindNotInitialized:     "timelock not initialized",
	KindUnauthorized:       "caller is not the administrator",
	KindDelayOutOfRange:    "delay out of range",
	KindAlreadyQueued:      "operation already queued",
	KindNotFound:           "operation not found",
	KindTooEarly:           "operation not ready",
	KindInvalidOperationID: "invalid operation id",
	KindInvalidPrincipal:   "invalid principal",
	KindConflict:           "concurrent update, retry",
	KindInternal:           "internal error",
}

// Sentinel errors. Match with errors.Is; any *Error of the same Kind matches.
var (
	ErrAlreadyInitialized = &Error{Kind: KindAlreadyInitialized}
	ErrNotInitialized     = &Error{Kind: KindNotInitialized}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized}
	ErrDelayOutOfRange    = &Error{Kind: KindDelayOutOfRange}
	ErrAlreadyQueued      = &Error{Kind: KindAlreadyQueued}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrTooEarly           = &Error{Kind: KindTooEarly}
	ErrInvalidOperationID = &Error{Kind: KindInvalidOperationID}
	ErrInvalidPrincipal   = &Error{Kind: KindInvalidPrincipal}
	ErrConflict           = &Error{Kind: KindConflict}
)

// Error is a classified engine failure.
type Error struct {
	Kind Kind
	// Op is the engine call that failed, e.g. "queue".
	Op string
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	msg := kindMessages[e.Kind]
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the Kind of err, or KindInternal for any error that is not
// an *Error. A nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}
