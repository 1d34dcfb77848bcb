// Package apperror defines the error taxonomy shared by the relay components.
//
// Every failure that can reach a client is classified by Kind so the transport
// layer can decide whether to surface it and with which code.
package apperror

import (
	"errors"
	"fmt"
)

// Kind categorizes an application error
type Kind string

const (
	KindNotFound         Kind = "NOT_FOUND"
	KindValidation       Kind = "VALIDATION_ERROR"
	KindPermissionDenied Kind = "PERMISSION_DENIED"
	KindPersistence      Kind = "PERSISTENCE_ERROR"
	KindAuthFailure      Kind = "AUTH_FAILURE"
	KindInternal         Kind = "INTERNAL"
)

// String returns the string representation of the Kind
func (k Kind) String() string {
	return string(k)
}

// Error is a classified application error
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// regardless of the message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels usable with errors.Is
var (
	ErrNotFound         = &Error{Kind: KindNotFound, Message: "not found"}
	ErrValidation       = &Error{Kind: KindValidation, Message: "validation error"}
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied, Message: "permission denied"}
	ErrPersistence      = &Error{Kind: KindPersistence, Message: "persistence error"}
	ErrAuthFailure      = &Error{Kind: KindAuthFailure, Message: "authentication failed"}
)

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

func PermissionDenied(format string, args ...any) *Error {
	return New(KindPermissionDenied, fmt.Sprintf(format, args...))
}

func Persistence(message string, err error) *Error {
	return Wrap(KindPersistence, message, err)
}

func AuthFailure(format string, args ...any) *Error {
	return New(KindAuthFailure, fmt.Sprintf(format, args...))
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the client-facing message of err. Wrapped causes are not
// exposed.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
