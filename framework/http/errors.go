package http

import (
	"fmt"
	"net/http"
)

// HTTPError is an error that carries the status it should be rendered with.
// Message is safe to show to clients; Err is the underlying cause, if any.
type HTTPError struct {
	Status  int
	Message string
	Err     error
}

// NewError creates an HTTPError. An empty message falls back to the status
// text.
//
//	return nil, gohttp.NewError(http.StatusConflict, "Email already taken.")
func NewError(status int, message string) *HTTPError {
	if message == "" {
		message = http.StatusText(status)
	}
	return &HTTPError{Status: status, Message: message}
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("http %d: %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error { return e.Err }

// Errors produced when no route serves a request.
var (
	ErrNotFound         = NewError(http.StatusNotFound, "Not found.")
	ErrMethodNotAllowed = NewError(http.StatusMethodNotAllowed, "Method not allowed.")
)
