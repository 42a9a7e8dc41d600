package errors

import (
	"fmt"
	"io"
	"net/http"
)

// Error represents a request-terminal failure that maps onto an HTTP status
// code and a short plain-text message safe to send to a client. Server-side
// detail stays in the wrapped underlying error.
type Error struct {
	Code       int
	Message    string
	underlying error
}

func (e *Error) Error() string {
	if e.underlying != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.underlying)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.underlying
}

// WriteText renders the error as a plain-text HTTP response.
func (e *Error) WriteText(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(e.Code)
	io.WriteString(w, e.Message)
}

// Loggable reports whether the error is worth a server-side log line.
// A plain file-not-found is an expected condition and stays quiet; everything
// else carries detail an operator should see.
func (e *Error) Loggable() bool {
	return e.Code != http.StatusNotFound || e.underlying != nil
}

// Common errors
var (
	ErrNotFound = &Error{
		Code:    http.StatusNotFound,
		Message: "Not found",
	}

	ErrBadRequest = &Error{
		Code:    http.StatusBadRequest,
		Message: "Bad request",
	}

	ErrForbidden = &Error{
		Code:    http.StatusForbidden,
		Message: "Request Forbidden",
	}

	ErrInternal = &Error{
		Code:    http.StatusInternalServerError,
		Message: "Internal Server Error",
	}
)

// New creates a new Error
func New(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with an HTTP status and a client-facing message
func Wrap(err error, code int, message string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		underlying: err,
	}
}

// AsError checks if an error is an *Error
func AsError(err error) (*Error, bool) {
	if we, ok := err.(*Error); ok {
		return we, true
	}
	return nil, false
}
