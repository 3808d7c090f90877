// Package apperr holds the error kinds shared by every service and their
// mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrDuplicateIdentity  = errors.New("email or phone already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrUpstream           = errors.New("upstream failure")
)

type ValidationError struct {
	reason error
}

func NewValidationError(format string, args ...interface{}) ValidationError {
	return ValidationError{reason: fmt.Errorf(format, args...)}
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// Upstream wraps a failure from a dependency we do not own (object storage,
// remote APIs) so callers can still inspect the cause.
func Upstream(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
}

// HTTPStatus maps err onto the status code returned to API clients.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsValidationError(err), errors.Is(err, ErrDuplicateIdentity):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text safe to hand back to clients. Internal errors
// collapse to a generic message.
func PublicMessage(err error) string {
	switch HTTPStatus(err) {
	case http.StatusBadRequest:
		if errors.Is(err, ErrDuplicateIdentity) {
			return "Email or phone already exists"
		}
		return err.Error()
	case http.StatusUnauthorized:
		if errors.Is(err, ErrInvalidCredentials) {
			return "Invalid credentials"
		}
		return "Unauthorized"
	case http.StatusForbidden:
		return "Unauthorized or consultation not found"
	case http.StatusNotFound:
		return err.Error()
	default:
		if errors.Is(err, ErrUpstream) {
			return "Failed to store prescription document"
		}
		return "Internal server error"
	}
}
