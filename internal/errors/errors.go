// Package errors defines the service error taxonomy shared by handlers and
// middleware.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a service error.
type Code string

const (
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeInvalidToken Code = "INVALID_TOKEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeValidation   Code = "VALIDATION"
	CodeConflict     Code = "CONFLICT"
	CodeRateLimited  Code = "RATE_LIMITED"
	CodeUpstream     Code = "UPSTREAM"
	CodeInternal     Code = "INTERNAL"
)

// ServiceError is an error carrying an HTTP status and a stable code.
type ServiceError struct {
	Code       Code
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	cause      error
}

func (e *ServiceError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.cause }

// WithDetails attaches a detail key/value pair and returns the error.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newError(code Code, status int, message string, cause error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status, cause: cause}
}

// Unauthorized indicates a missing or unusable identity.
func Unauthorized(message string) *ServiceError {
	if message == "" {
		message = "authentication required"
	}
	return newError(CodeUnauthorized, http.StatusUnauthorized, message, nil)
}

// Forbidden indicates an authenticated identity lacking the required role.
func Forbidden(message string) *ServiceError {
	if message == "" {
		message = "insufficient permissions"
	}
	return newError(CodeForbidden, http.StatusForbidden, message, nil)
}

// InvalidToken indicates a token that failed verification.
func InvalidToken(cause error) *ServiceError {
	return newError(CodeInvalidToken, http.StatusUnauthorized, "invalid token", cause)
}

// NotFound indicates a missing resource.
func NotFound(resource string) *ServiceError {
	return newError(CodeNotFound, http.StatusNotFound, resource+" not found", nil)
}

// Validation indicates rejected input. No network call is made for these.
func Validation(message string) *ServiceError {
	return newError(CodeValidation, http.StatusBadRequest, message, nil)
}

// Conflict indicates a true duplicate that could not be self-healed.
func Conflict(message string) *ServiceError {
	return newError(CodeConflict, http.StatusConflict, message, nil)
}

// RateLimitExceeded indicates the caller exhausted its request budget.
func RateLimitExceeded(limit int, window string) *ServiceError {
	e := newError(CodeRateLimited, http.StatusTooManyRequests, "rate limit exceeded", nil)
	return e.WithDetails("limit", limit).WithDetails("window", window)
}

// Upstream indicates a transient failure talking to Supabase. These are
// surfaced to the user as retriable, never retried silently.
func Upstream(message string, cause error) *ServiceError {
	return newError(CodeUpstream, http.StatusBadGateway, message, cause)
}

// Internal indicates an unexpected failure.
func Internal(message string, cause error) *ServiceError {
	return newError(CodeInternal, http.StatusInternalServerError, message, cause)
}

// GetServiceError returns the ServiceError in err's chain, or nil.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return nil
}
