package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrValidation is returned for malformed input, including bad ids.
	ErrValidation = errors.New("validation failed")
	// ErrMissingField is returned when a required credential field is absent.
	ErrMissingField = errors.New("missing field")
	// ErrUnauthenticated is returned for missing, invalid or expired tokens and bad credentials.
	ErrUnauthenticated = errors.New("not authorized")
	// ErrForbidden is returned when a valid identity does not own the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned when a resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an email is already registered.
	ErrConflict = errors.New("email already in use")
	// ErrNoChange is returned when an update carries nothing to apply.
	ErrNoChange = errors.New("no fields to update")
	// ErrInternal is returned for store, cache or signing failures.
	ErrInternal = errors.New("internal server error")
)

// Validation wraps ErrValidation with a client-facing detail.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// MissingField wraps ErrMissingField with the field name.
func MissingField(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, field)
}

// Internal wraps ErrInternal around the failing operation. The cause is kept
// for logging and never rendered to clients.
func Internal(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors. Client-caused kinds keep
// their full message; everything else collapses to a generic 500.
func MapErrorToHTTP(err error) *HTTPError {
	switch {
	case errors.Is(err, ErrValidation):
		return NewHTTPError(http.StatusUnprocessableEntity, err.Error(), "VALIDATION_ERROR")
	case errors.Is(err, ErrMissingField):
		return NewHTTPError(http.StatusUnprocessableEntity, err.Error(), "MISSING_FIELD")
	case errors.Is(err, ErrUnauthenticated):
		return NewHTTPError(http.StatusUnauthorized, ErrUnauthenticated.Error(), "UNAUTHENTICATED")
	case errors.Is(err, ErrForbidden):
		return NewHTTPError(http.StatusForbidden, ErrForbidden.Error(), "FORBIDDEN")
	case errors.Is(err, ErrNotFound):
		return NewHTTPError(http.StatusNotFound, ErrNotFound.Error(), "NOT_FOUND")
	case errors.Is(err, ErrConflict):
		return NewHTTPError(http.StatusConflict, ErrConflict.Error(), "CONFLICT")
	case errors.Is(err, ErrNoChange):
		return NewHTTPError(http.StatusNotModified, ErrNoChange.Error(), "NO_CHANGE")
	default:
		return NewHTTPError(http.StatusInternalServerError, ErrInternal.Error(), "INTERNAL_ERROR")
	}
}
