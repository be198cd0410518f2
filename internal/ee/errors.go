package ee

import (
	"context"
	"errors"
	"net/http"
)

// Backend error classes.
var (
	// ErrBackendRejected is returned when the backend refuses a request it
	// considers too large or too complex (oversized region, band count,
	// pixel grid). Degradable operations may retry cheaper.
	ErrBackendRejected = errors.New("backend rejected request")

	// ErrTimeout is returned when a backend call exceeded its time budget.
	ErrTimeout = errors.New("backend request timed out")

	// ErrQuotaExceeded is returned on quota or rate-limit rejections.
	ErrQuotaExceeded = errors.New("backend quota exceeded")

	// ErrUnauthorized is returned when credentials are missing or invalid.
	ErrUnauthorized = errors.New("backend authorization failed")

	// ErrNotFound is returned when a referenced backend object
	// (collection, task, boundary table) does not exist.
	ErrNotFound = errors.New("backend object not found")
)

// Degradable reports whether an error may be recovered by retrying the
// request with cheaper parameters (smaller dimensions, simplified region,
// shorter budget). Only size/complexity rejections and timeouts qualify;
// auth and validation failures never do.
func Degradable(err error) bool {
	return errors.Is(err, ErrBackendRejected) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrQuotaExceeded) ||
		errors.Is(err, context.DeadlineExceeded)
}

// classifyHTTP maps an HTTP status from the REST backend to an error class.
func classifyHTTP(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrUnauthorized
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusTooManyRequests:
		return ErrQuotaExceeded
	case status == http.StatusRequestEntityTooLarge || status == http.StatusBadRequest:
		// The EE REST surface reports oversized pixel grids and overly
		// complex geometries as 400s with a size message; both are
		// degradable from the caller's point of view.
		return ErrBackendRejected
	case status == http.StatusGatewayTimeout || status == http.StatusRequestTimeout:
		return ErrTimeout
	default:
		return ErrBackendRejected
	}
}
