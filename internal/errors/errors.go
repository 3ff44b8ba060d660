// Package errors defines structured error types for the dev server JSON
// endpoints.
package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode defines specific error types for the endpoints.
type ErrorCode string

const (
	// ErrValidationFailed is returned when a request parameter is invalid
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrMissingField is returned when a required parameter is missing
	ErrMissingField ErrorCode = "MISSING_FIELD"
	// ErrSolutionNotFound is returned when no registered solution has the id
	ErrSolutionNotFound ErrorCode = "SOLUTION_NOT_FOUND"
	// ErrRateLimited is returned when a client exceeded its request budget
	ErrRateLimited ErrorCode = "RATE_LIMITED"
	// ErrInternal is returned when an unexpected server error occurs
	ErrInternal ErrorCode = "INTERNAL_ERROR"
)

// ErrorWithStatus is an error that includes an HTTP status code and error code.
type ErrorWithStatus interface {
	Error() string
	StatusCode() int
	Code() ErrorCode
	Details() map[string]any
}

// APIError is a concrete error type with status code, code, and optional details.
type APIError struct {
	statusCode int
	code       ErrorCode
	message    string
	details    map[string]any
	wrappedErr error
}

// NewAPIError creates a new APIError with the given status code and message.
func NewAPIError(statusCode int, code ErrorCode, message string) *APIError {
	return &APIError{
		statusCode: statusCode,
		code:       code,
		message:    message,
		details:    make(map[string]any),
	}
}

// WithDetail adds a single detail to the error.
func (e *APIError) WithDetail(key string, value any) *APIError {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	e.details[key] = value
	return e
}

// Wrap wraps an underlying error.
func (e *APIError) Wrap(err error) *APIError {
	e.wrappedErr = err
	return e
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.wrappedErr != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrappedErr)
	}
	return e.message
}

// StatusCode returns the HTTP status code.
func (e *APIError) StatusCode() int {
	return e.statusCode
}

// Code returns the error code.
func (e *APIError) Code() ErrorCode {
	return e.code
}

// Details returns additional error details.
func (e *APIError) Details() map[string]any {
	return e.details
}

// Unwrap returns the wrapped error if any.
func (e *APIError) Unwrap() error {
	return e.wrappedErr
}

// SolutionNotFound creates a 404 error for an id missing from the registry.
func SolutionNotFound(id string) *APIError {
	return NewAPIError(http.StatusNotFound, ErrSolutionNotFound, fmt.Sprintf("solution %q not found", id)).WithDetail("id", id)
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrValidationFailed, message)
}

// MissingField creates a 400 Bad Request error for a missing parameter.
func MissingField(fieldName string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrMissingField, fmt.Sprintf("Missing required field: %s", fieldName))
}

// RateLimited creates a 429 error telling the client when to retry.
func RateLimited(retryAfterSeconds int) *APIError {
	return NewAPIError(http.StatusTooManyRequests, ErrRateLimited, "Too many requests").WithDetail("retry_after", retryAfterSeconds)
}

// Internal returns a 500 Internal Server Error.
func Internal(message string) *APIError {
	return NewAPIError(http.StatusInternalServerError, ErrInternal, message)
}

// InternalWithError creates a 500 error wrapping an underlying error.
func InternalWithError(message string, err error) *APIError {
	return Internal(message).Wrap(err)
}
