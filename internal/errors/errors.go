package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrValidation is returned when input is malformed or out of range.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateUser is returned when a phone number is already registered.
	ErrDuplicateUser = errors.New("user already exists")
	// ErrInvalidTransition is returned when a handoff violates the custody chain.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrAuthentication is returned on wrong credentials or a wrong wallet password.
	ErrAuthentication = errors.New("authentication failed")
	// ErrLedger is returned when the smart contract is unavailable or reverts.
	ErrLedger = errors.New("ledger unavailable")
	// ErrPersistence is returned when the database cannot serve a request.
	ErrPersistence = errors.New("persistence failure")
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the caller may not act on a resource.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError describes a single rejected field.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// TransitionError describes a rejected (status, role) pairing.
type TransitionError struct {
	Status string
	Role   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("a %s cannot receive a batch in status %s", e.Role, e.Status)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
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

// MapErrorToHTTP maps domain errors to HTTP errors.
func MapErrorToHTTP(err error) *HTTPError {
	switch {
	case errors.Is(err, ErrValidation):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
	case errors.Is(err, ErrDuplicateUser):
		return NewHTTPError(http.StatusConflict, err.Error(), "DUPLICATE_USER")
	case errors.Is(err, ErrInvalidTransition):
		return NewHTTPError(http.StatusConflict, err.Error(), "INVALID_TRANSITION")
	case errors.Is(err, ErrAuthentication):
		return NewHTTPError(http.StatusUnauthorized, ErrAuthentication.Error(), "AUTHENTICATION_FAILED")
	case errors.Is(err, ErrForbidden):
		return NewHTTPError(http.StatusForbidden, err.Error(), "FORBIDDEN")
	case errors.Is(err, ErrNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, ErrLedger):
		return NewHTTPError(http.StatusBadGateway, err.Error(), "LEDGER_UNAVAILABLE")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
