package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is matched (errors.Is) by any error for a resource the remote
// service reports as missing.
var ErrNotFound = errors.New("remote resource not found")

// ErrResponseTooLarge is returned instead of a body cut at the read limit.
var ErrResponseTooLarge = fmt.Errorf("response body exceeds %d bytes", maxResponseBytes)

// APIError represents a non-2xx response from the remote service.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s failed: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx) and throttling (429).
// Other client errors (4xx) are considered permanent.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// IsRetryable reports whether err is worth another attempt: retryable API
// errors and network failures, but never a cancelled or expired context.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrResponseTooLarge) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	return true
}
