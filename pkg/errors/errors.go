package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode string

// Common error codes used across all packages
const (
	// Generic errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"

	// OIDC login flow errors
	ErrCodeUnknownProvider         ErrorCode = "UNKNOWN_PROVIDER"
	ErrCodeMetadataFetch           ErrorCode = "METADATA_FETCH_FAILED"
	ErrCodeAuthorization           ErrorCode = "AUTHORIZATION_ERROR"
	ErrCodeInvalidCallback         ErrorCode = "INVALID_CALLBACK"
	ErrCodeStateMismatch           ErrorCode = "STATE_MISMATCH"
	ErrCodeIncompleteTokenResponse ErrorCode = "INCOMPLETE_TOKEN_RESPONSE"
	ErrCodeTokenExchange           ErrorCode = "TOKEN_EXCHANGE_FAILED"
	ErrCodeInvalidIDToken          ErrorCode = "INVALID_ID_TOKEN"
)

// Error represents a structured error with code, message, and optional details
type Error struct {
	Code    ErrorCode              // Unique error code
	Message string                 // Human-readable error message
	Details map[string]interface{} // Optional additional details
	Err     error                  // Wrapped underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *Error) HTTPStatusCode() int {
	return MapErrorCodeToHTTPStatus(e.Code)
}

// New creates a new Error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with code and message
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsCode checks if an error has a specific error code
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error
// Returns ErrCodeInternal if the error is not a structured Error
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// GetMessage returns the human-readable message of a structured Error.
// Falls back to err.Error() for plain errors.
func GetMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// MapErrorCodeToHTTPStatus maps error codes to HTTP status codes
func MapErrorCodeToHTTPStatus(code ErrorCode) int {
	switch code {
	// 400 Bad Request
	case ErrCodeInvalidInput, ErrCodeInvalidCallback, ErrCodeStateMismatch:
		return http.StatusBadRequest

	// 401 Unauthorized
	case ErrCodeUnauthorized, ErrCodeAuthorization, ErrCodeInvalidIDToken:
		return http.StatusUnauthorized

	// 403 Forbidden
	case ErrCodeForbidden:
		return http.StatusForbidden

	// 404 Not Found
	case ErrCodeNotFound, ErrCodeUnknownProvider:
		return http.StatusNotFound

	// 502 Bad Gateway - the identity provider misbehaved
	case ErrCodeMetadataFetch, ErrCodeTokenExchange, ErrCodeIncompleteTokenResponse:
		return http.StatusBadGateway

	// 500 Internal Server Error (default)
	case ErrCodeInternal:
		fallthrough
	default:
		return http.StatusInternalServerError
	}
}

// Constructors for the OIDC login flow taxonomy

// UnknownProvider reports a provider key that is not registered
func UnknownProvider(key string) *Error {
	return Newf(ErrCodeUnknownProvider, "unknown identity provider: %s", key).WithDetail("provider", key)
}

// MetadataFetch reports an unreachable or failing discovery document
func MetadataFetch(err error, providerKey string) *Error {
	return Wrap(err, ErrCodeMetadataFetch, "failed to load OpenID configuration").WithDetail("provider", providerKey)
}

// Authorization reports an error returned by the identity provider on redirect back
func Authorization(message string) *Error {
	return New(ErrCodeAuthorization, message)
}

// InvalidCallback reports a callback missing code or state
func InvalidCallback(message string) *Error {
	return New(ErrCodeInvalidCallback, message)
}

// StateMismatch reports a callback that does not match the stored login request
func StateMismatch(message string) *Error {
	return New(ErrCodeStateMismatch, message)
}

// IncompleteTokenResponse reports a token response missing required tokens
func IncompleteTokenResponse(missing ...string) *Error {
	return Newf(ErrCodeIncompleteTokenResponse, "token response is missing %v", missing)
}

// TokenExchange reports a failed authorization code exchange
func TokenExchange(message string) *Error {
	return New(ErrCodeTokenExchange, message)
}

// InvalidIDToken reports an ID token that cannot be decoded or verified
func InvalidIDToken(err error) *Error {
	return Wrap(err, ErrCodeInvalidIDToken, "invalid id_token")
}
