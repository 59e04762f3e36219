package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal server errors
	ErrorTypeInternal ErrorType = "internal"

	// ErrorTypeValidation represents input validation errors
	ErrorTypeValidation ErrorType = "validation"

	// ErrorTypeNotFound represents resource not found errors
	ErrorTypeNotFound ErrorType = "not_found"

	// ErrorTypeConflict represents resource conflict errors
	ErrorTypeConflict ErrorType = "conflict"

	// ErrorTypePrerequisite represents a missing-prerequisite error,
	// carrying the ordered steps the caller must complete first
	ErrorTypePrerequisite ErrorType = "prerequisite"

	// ErrorTypeInsufficientFunds represents wallet overdraw attempts
	ErrorTypeInsufficientFunds ErrorType = "insufficient_funds"

	// ErrorTypeUpstream represents identity/NAV provider failures
	ErrorTypeUpstream ErrorType = "upstream_provider"

	// ErrorTypeDataCorruption represents unreadable persisted records
	ErrorTypeDataCorruption ErrorType = "data_corruption"

	// ErrorTypeUnauthorized represents authentication errors
	ErrorTypeUnauthorized ErrorType = "unauthorized"
)

// AppError represents an application error with additional context
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is implements error comparison
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError
func New(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:       errType,
		Code:       code,
		Message:    message,
		StatusCode: statusCodeFor(errType),
		Retryable:  errType == ErrorTypeUpstream,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(err error, errType ErrorType, code, message string) *AppError {
	e := New(errType, code, message)
	e.Err = err
	return e
}

func statusCodeFor(errType ErrorType) int {
	switch errType {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypePrerequisite:
		return http.StatusForbidden
	case ErrorTypeInsufficientFunds:
		return http.StatusUnprocessableEntity
	case ErrorTypeUpstream:
		return http.StatusBadGateway
	case ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Common constructors

// ValidationError rejects malformed input before any state mutation
func ValidationError(message string) *AppError {
	return New(ErrorTypeValidation, "VALIDATION_ERROR", message)
}

// ConflictError rejects writes that would bind a fact already owned elsewhere
func ConflictError(message string) *AppError {
	return New(ErrorTypeConflict, "CONFLICT", message)
}

// PrerequisiteError names the steps the caller must complete first
func PrerequisiteError(message string, steps []string) *AppError {
	return New(ErrorTypePrerequisite, "PREREQUISITE_MISSING", message).
		WithDetail("next_steps", steps)
}

// NotFound reports a missing resource
func NotFound(resource string) *AppError {
	return New(ErrorTypeNotFound, "NOT_FOUND", fmt.Sprintf("%s not found", resource))
}

// InsufficientFunds reports an attempted wallet overdraw
func InsufficientFunds(message string) *AppError {
	return New(ErrorTypeInsufficientFunds, "INSUFFICIENT_FUNDS", message)
}

// UpstreamProvider reports a verification/NAV provider failure; retryable,
// the underlying fact stays unverified
func UpstreamProvider(provider string, err error) *AppError {
	return Wrap(err, ErrorTypeUpstream, "UPSTREAM_PROVIDER_ERROR",
		fmt.Sprintf("%s provider unavailable", provider))
}

// DataCorruption reports an unreadable persisted record; fatal for the
// record, must not abort batch processing of other records
func DataCorruption(message string, err error) *AppError {
	return Wrap(err, ErrorTypeDataCorruption, "DATA_CORRUPTION", message)
}

// Unauthorized reports a failed authentication
func Unauthorized(message string) *AppError {
	return New(ErrorTypeUnauthorized, "UNAUTHORIZED", message)
}

// Internal reports an unexpected server-side failure
func Internal(message string) *AppError {
	return New(ErrorTypeInternal, "INTERNAL_ERROR", message)
}

// IsType reports whether err is an AppError of the given type
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// GetStatusCode returns the HTTP status code for an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// GetCode returns the error code
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN_ERROR"
}

// AsAppError extracts an AppError from err, if present
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
