package common

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindUnauthorized Kind = "unauthorized"
	KindInvalid      Kind = "invalid"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindUnavailable  Kind = "unavailable"
	KindUpstream     Kind = "upstream"
)

// Error carries the HTTP status a handler should answer with. Msg is what the
// client sees; Err is kept for logs and errors.Is.
type Error struct {
	Status int
	Kind   Kind
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func Unauthorized(msg string) *Error {
	return &Error{Status: http.StatusUnauthorized, Kind: KindUnauthorized, Msg: msg}
}

func Invalid(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Kind: KindInvalid, Msg: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Status: http.StatusForbidden, Kind: KindForbidden, Msg: msg}
}

func NotFound(msg string) *Error {
	return &Error{Status: http.StatusNotFound, Kind: KindNotFound, Msg: msg}
}

func Unavailable(msg string) *Error {
	return &Error{Status: http.StatusServiceUnavailable, Kind: KindUnavailable, Msg: msg}
}

// Upstream wraps a third-party failure. The wrapped message is surfaced as-is.
func Upstream(err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Kind: KindUpstream, Err: err}
}

// StatusOf maps any error to the status a handler should answer with.
// Untyped errors are 500.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}
