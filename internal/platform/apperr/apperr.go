// Package apperr defines the domain error carried from services to the HTTP
// layer. An *Error knows the HTTP status it should be rendered with; any
// other error reaching the edge is treated as an opaque internal failure.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Machine-readable error codes.
const (
	CodeNotFound      = "not_found"
	CodeConflict      = "conflict"
	CodeInvalid       = "invalid_request"
	CodeUnprocessable = "unprocessable"
	CodeTooLarge      = "payload_too_large"
	CodeInternal      = "internal_error"
)

// Error is a domain error with an attached HTTP status.
type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so callers can compare against
// the package sentinels with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound      = &Error{Status: http.StatusNotFound, Code: CodeNotFound, Message: "not found"}
	ErrConflict      = &Error{Status: http.StatusConflict, Code: CodeConflict, Message: "conflict"}
	ErrInvalid       = &Error{Status: http.StatusBadRequest, Code: CodeInvalid, Message: "invalid request"}
	ErrUnprocessable = &Error{Status: http.StatusUnprocessableEntity, Code: CodeUnprocessable, Message: "unprocessable"}
	ErrTooLarge      = &Error{Status: http.StatusRequestEntityTooLarge, Code: CodeTooLarge, Message: "payload too large"}
)

func NotFound(format string, args ...interface{}) *Error {
	return &Error{Status: http.StatusNotFound, Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(err error, format string, args ...interface{}) *Error {
	return &Error{Status: http.StatusConflict, Code: CodeConflict, Message: fmt.Sprintf(format, args...), Err: err}
}

func Invalid(format string, args ...interface{}) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeInvalid, Message: fmt.Sprintf(format, args...)}
}

func Unprocessable(err error, format string, args ...interface{}) *Error {
	return &Error{Status: http.StatusUnprocessableEntity, Code: CodeUnprocessable, Message: fmt.Sprintf(format, args...), Err: err}
}

func TooLarge(err error, format string, args ...interface{}) *Error {
	return &Error{Status: http.StatusRequestEntityTooLarge, Code: CodeTooLarge, Message: fmt.Sprintf(format, args...), Err: err}
}

// StatusOf returns the HTTP status for err: the attached status for domain
// errors and 500 for everything else.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}
