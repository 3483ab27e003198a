// Package errors provides the API error taxonomy shared by services and
// handlers.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind groups errors by how a caller should react to them.
type Kind string

const (
	// KindValidation errors are fixed by correcting the input.
	KindValidation Kind = "validation"
	// KindExternal errors come from the store or the payment provider and may be retried.
	KindExternal Kind = "external"
	// KindAuthorization errors ask the user to log in again rather than retry.
	KindAuthorization Kind = "authorization"
	// KindIntegrity errors will not change on retry.
	KindIntegrity Kind = "integrity"
	// KindNotFound errors report a missing resource.
	KindNotFound Kind = "not_found"
)

// APIError represents a standardized API error response.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Kind       Kind   `json:"kind"`
	StatusCode int    `json:"-"`
	Details    any    `json:"details,omitempty"`
	cause      error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.cause
}

// Is matches API errors by code so wrapped copies still compare equal to the
// package-level sentinels.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *APIError) clone() *APIError {
	c := *e
	return &c
}

// WithDetails returns a copy of the error with additional details.
func (e *APIError) WithDetails(details any) *APIError {
	c := e.clone()
	c.Details = details
	return c
}

// WithMessage returns a copy of the error with a custom message.
func (e *APIError) WithMessage(message string) *APIError {
	c := e.clone()
	c.Message = message
	return c
}

// Wrap returns a copy of the error that carries cause for logging.
func (e *APIError) Wrap(cause error) *APIError {
	c := e.clone()
	c.cause = cause
	return c
}

var (
	ErrBadRequest = &APIError{
		Code:       "bad_request",
		Message:    "Invalid request",
		Kind:       KindValidation,
		StatusCode: http.StatusBadRequest,
	}

	ErrEmptyCart = &APIError{
		Code:       "empty_cart",
		Message:    "Cart is empty",
		Kind:       KindValidation,
		StatusCode: http.StatusBadRequest,
	}

	ErrUnauthorized = &APIError{
		Code:       "unauthorized",
		Message:    "Authentication required",
		Kind:       KindAuthorization,
		StatusCode: http.StatusUnauthorized,
	}

	ErrForbidden = &APIError{
		Code:       "forbidden",
		Message:    "You don't have permission to perform this action",
		Kind:       KindAuthorization,
		StatusCode: http.StatusForbidden,
	}

	// ErrPermissionDenied is returned when a store write is refused by access rules.
	ErrPermissionDenied = &APIError{
		Code:       "permission_denied",
		Message:    "Permission denied",
		Kind:       KindAuthorization,
		StatusCode: http.StatusForbidden,
	}

	ErrChallengeNotFound = &APIError{
		Code:       "challenge_not_found",
		Message:    "No login challenge found for this address",
		Kind:       KindAuthorization,
		StatusCode: http.StatusBadRequest,
	}

	ErrChallengeExpired = &APIError{
		Code:       "challenge_expired",
		Message:    "Login challenge expired, request a new one",
		Kind:       KindAuthorization,
		StatusCode: http.StatusUnauthorized,
	}

	ErrSignatureMismatch = &APIError{
		Code:       "signature_mismatch",
		Message:    "Signature does not match address",
		Kind:       KindAuthorization,
		StatusCode: http.StatusUnauthorized,
	}

	ErrNotFound = &APIError{
		Code:       "not_found",
		Message:    "Resource not found",
		Kind:       KindNotFound,
		StatusCode: http.StatusNotFound,
	}

	ErrPaymentNotFound = &APIError{
		Code:       "payment_not_found",
		Message:    "Payment session not found",
		Kind:       KindNotFound,
		StatusCode: http.StatusBadRequest,
	}

	ErrPaymentNotCompleted = &APIError{
		Code:       "payment_not_completed",
		Message:    "Payment has not completed",
		Kind:       KindValidation,
		StatusCode: http.StatusBadRequest,
	}

	ErrMalformedSessionMetadata = &APIError{
		Code:       "malformed_session_metadata",
		Message:    "Payment session metadata is malformed",
		Kind:       KindIntegrity,
		StatusCode: http.StatusUnprocessableEntity,
	}

	ErrConflict = &APIError{
		Code:       "conflict",
		Message:    "Resource already exists",
		Kind:       KindValidation,
		StatusCode: http.StatusConflict,
	}

	ErrRateLimited = &APIError{
		Code:       "rate_limited",
		Message:    "Too many requests. Please try again later.",
		Kind:       KindValidation,
		StatusCode: http.StatusTooManyRequests,
	}

	ErrPaymentProvider = &APIError{
		Code:       "payment_provider_error",
		Message:    "Payment provider unavailable",
		Kind:       KindExternal,
		StatusCode: http.StatusBadGateway,
	}

	ErrStoreUnavailable = &APIError{
		Code:       "store_unavailable",
		Message:    "Storage temporarily unavailable",
		Kind:       KindExternal,
		StatusCode: http.StatusServiceUnavailable,
	}

	ErrInternal = &APIError{
		Code:       "internal_error",
		Message:    "An internal error occurred",
		Kind:       KindExternal,
		StatusCode: http.StatusInternalServerError,
	}
)

// NewValidationError creates a validation error for a specific field.
func NewValidationError(field, message string) *APIError {
	return &APIError{
		Code:       "validation_error",
		Message:    fmt.Sprintf("Validation failed: %s", message),
		Kind:       KindValidation,
		StatusCode: http.StatusBadRequest,
		Details: map[string]string{
			"field": field,
			"error": message,
		},
	}
}

// NewNotFoundError creates a not found error for a specific resource type.
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:       "not_found",
		Message:    fmt.Sprintf("%s not found", resource),
		Kind:       KindNotFound,
		StatusCode: http.StatusNotFound,
	}
}

// PermissionDeniedError carries the refused write so it can be forwarded to
// the diagnostics channel without leaking it to the client.
type PermissionDeniedError struct {
	Path      string
	Operation string
	UserID    string
	Payload   any
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: %s %s by %s", e.Operation, e.Path, e.UserID)
}

func (e *PermissionDeniedError) Unwrap() error {
	return ErrPermissionDenied
}

// IsAPIError checks if an error is or wraps an APIError.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// AsAPIError converts an error to an APIError if possible.
// Returns ErrInternal if the error is not an APIError.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return ErrInternal
}
