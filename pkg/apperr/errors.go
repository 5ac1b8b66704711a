package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors shared by services and handlers. Callers wrap them with a
// reason via Wrap so errors.Is keeps working across layers.
var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrTransport       = errors.New("transport failure")
)

// ErrSelfDelete is a denial that also matches ErrForbidden.
var ErrSelfDelete = fmt.Errorf("%w: cannot self-delete", ErrForbidden)

// Wrap attaches a human readable reason to one of the sentinels.
func Wrap(kind error, reason string) error {
	if reason == "" {
		return kind
	}
	return fmt.Errorf("%w: %s", kind, reason)
}

// HTTPStatus maps an error chain to the status code handlers respond with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Public reports whether the error text is safe to return to a caller.
func Public(err error) bool {
	return HTTPStatus(err) != http.StatusInternalServerError
}
