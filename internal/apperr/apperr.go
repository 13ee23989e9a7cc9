// Package apperr holds the error kinds shared by services, repositories and
// handlers. Every error returned across a package boundary either is one of
// the sentinel kinds or wraps one, so callers branch with errors.Is.
package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotUnlockable    = errors.New("capsule cannot be unlocked")
	ErrEditLimitReached = errors.New("edit limit reached")
	ErrAccessDenied     = errors.New("access denied")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrTransport        = errors.New("transport failure")
)

// Error carries a kind, a caller-facing message and an optional cause.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string) error { return &Error{Kind: ErrValidation, Msg: msg} }

func NotUnlockable(msg string) error { return &Error{Kind: ErrNotUnlockable, Msg: msg} }

func EditLimitReached(msg string) error { return &Error{Kind: ErrEditLimitReached, Msg: msg} }

func AccessDenied(msg string) error { return &Error{Kind: ErrAccessDenied, Msg: msg} }

func NotFound(what string) error { return &Error{Kind: ErrNotFound, Msg: what + " not found"} }

func Conflict(msg string) error { return &Error{Kind: ErrConflict, Msg: msg} }

// Transport wraps a failed call to an external collaborator (database,
// object store, push relay).
func Transport(op string, err error) error {
	return &Error{Kind: ErrTransport, Msg: op, Err: err}
}

// HTTPStatus maps an error kind to the status code handlers respond with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrNotUnlockable), errors.Is(err, ErrEditLimitReached), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the caller-facing text of err. Transport and unknown
// errors are reduced to a generic line so driver details never leak.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && !errors.Is(err, ErrTransport) {
		return e.Msg
	}
	if errors.Is(err, ErrTransport) {
		return "upstream service unavailable"
	}
	return "internal server error"
}
