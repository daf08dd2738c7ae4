package backend

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is matched by 404 responses and the legacy
	// {"error": "... not found"} bodies.
	ErrNotFound = errors.New("not found")
	// ErrMissingToken is returned before any I/O when a mutating call has no bearer token.
	ErrMissingToken = errors.New("missing bearer token")
)

// APIError is a non-2xx (or legacy error-body) response from the backend.
type APIError struct {
	StatusCode int
	Detail     string // server provided detail, may be empty
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend: %d %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("backend: unexpected status code: %d", e.StatusCode)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// UserMessage returns the server detail carried by err, or fallback.
func UserMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return fallback
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
