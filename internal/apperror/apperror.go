package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error. Every error surfaced by the workflow
// engine carries exactly one kind; the HTTP layer maps kinds to statuses.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindPermission   Kind = "permission"
	KindPrecondition Kind = "precondition"
	KindConflict     Kind = "conflict"
	KindNotFound     Kind = "not_found"
)

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

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return newError(KindValidation, format, args...)
}

func Permission(format string, args ...any) *Error {
	return newError(KindPermission, format, args...)
}

func Precondition(format string, args ...any) *Error {
	return newError(KindPrecondition, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newError(KindConflict, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

// Wrap attaches a cause while keeping the kind; used at service boundaries
// to translate repository sentinels.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	err := newError(kind, format, args...)
	err.Cause = cause
	return err
}

// IsKind reports whether err (or anything it wraps) is a domain error of the
// given kind.
func IsKind(err error, kind Kind) bool {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind == kind
	}
	return false
}
