package client

import (
	"errors"
	"fmt"
)

// GeneralErrorKey is the message key used when no operation-specific key applies.
const GeneralErrorKey = "GENERAL_ERROR"

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrSessionInvalidated is returned when the backend answered 403.
	// The forbidden handler has already run; callers must not show it as an
	// operation error.
	ErrSessionInvalidated = errors.New("session invalidated")

	// ErrUnsupportedMethod is returned for HTTP methods outside GET/POST/PUT/DELETE.
	ErrUnsupportedMethod = errors.New("unsupported http method")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx business errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport failures with no status code.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents a 2xx response whose body could not be decoded.
	ErrorClassDecode ErrorClass = "decode"
)

// APIError is the user-facing error produced by a failed operation.
// MessageKey is a lookup into the operation's error table.
type APIError struct {
	Code       int
	MessageKey string
	Class      ErrorClass
	Operation  string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("api %s error (op %s, status %d): %s: %v",
			e.Class, e.Operation, e.Code, e.MessageKey, e.Err)
	}
	return fmt.Sprintf("api %s error (op %s, status %d): %s",
		e.Class, e.Operation, e.Code, e.MessageKey)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// LocalizationKey returns the string-table key shown to the user.
func (e *APIError) LocalizationKey() string {
	return "API_ERROR_" + e.MessageKey
}

// IsGeneral reports whether the error carries the generic fallback key.
func (e *APIError) IsGeneral() bool {
	return e.MessageKey == GeneralErrorKey
}

// NewGeneralError builds the generic fallback error.
func NewGeneralError(operation string, class ErrorClass, code int, err error) *APIError {
	return &APIError{
		Code:       code,
		MessageKey: GeneralErrorKey,
		Class:      class,
		Operation:  operation,
		Err:        err,
	}
}

// AsAPIError extracts an *APIError from err. Errors that are not API errors
// are wrapped as generic network errors. Returns nil for nil and for
// ErrSessionInvalidated.
func AsAPIError(operation string, err error) *APIError {
	if err == nil || errors.Is(err, ErrSessionInvalidated) {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return NewGeneralError(operation, ErrorClassNetwork, 0, err)
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient, ErrorClassDecode:
		// Business errors won't change on retry
		return false
	case ErrorClassServer:
		return true
	case ErrorClassRateLimit:
		return true
	case ErrorClassNetwork:
		return true
	default:
		return false
	}
}

// classifyStatus maps an HTTP status code to an error class.
// Returns "" for non-error statuses.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == 429:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}
