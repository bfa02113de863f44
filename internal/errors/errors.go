package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeConflict indicates a conflict with existing data (e.g., unique constraint violation).
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeTimeout indicates a timeout occurred.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"

	// ErrCodeUnauthenticated indicates the caller has no valid session.
	// Protocol-level failures (CSRF, assertion decode) collapse to this code
	// at the federation boundary so callers only observe a binary
	// authenticated/unauthenticated outcome.
	ErrCodeUnauthenticated ErrorCode = "unauthenticated"
	// ErrCodeAssertionDecode indicates a malformed or unparseable assertion body.
	// Terminal for the login attempt; detail is logged server-side only.
	ErrCodeAssertionDecode ErrorCode = "assertion_decode"
	// ErrCodeCSRFMismatch indicates a missing, expired, or mismatched CSRF ticket.
	ErrCodeCSRFMismatch ErrorCode = "csrf_mismatch"
	// ErrCodeRefreshExpired indicates the refresh token is invalid, expired, or
	// revoked. Terminal: the session must be cleared, never retried.
	ErrCodeRefreshExpired ErrorCode = "refresh_expired"
	// ErrCodeRefreshInFlight is an internal routing signal: a refresh for this
	// session is already outstanding and the caller should await it. Never
	// surfaced to users.
	ErrCodeRefreshInFlight ErrorCode = "refresh_in_flight"
	// ErrCodeUpstreamUnavailable indicates the identity provider or token issuer
	// was unreachable. Retryable once with backoff; never silently treated as
	// unauthenticated.
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
)

// AppError represents a structured application error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific field that caused the error (optional, for validation errors)
	Field string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: message}
}

// Conflict creates a new Conflict error.
func Conflict(message string) *AppError {
	return &AppError{Code: ErrCodeConflict, Message: message}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message}
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Field: field}
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: message}
}

// Internalf creates a new Internal error with formatted message.
func Internalf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: fmt.Sprintf(format, args...)}
}

// Unauthenticated creates a new Unauthenticated error.
func Unauthenticated(message string) *AppError {
	return &AppError{Code: ErrCodeUnauthenticated, Message: message}
}

// AssertionDecode wraps a decode failure. The cause carries provider detail
// that must stay server-side.
func AssertionDecode(err error) *AppError {
	return &AppError{Code: ErrCodeAssertionDecode, Message: "assertion could not be decoded", Cause: err}
}

// CSRFMismatch creates the uniform CSRF failure error. The message is
// deliberately indistinguishable from a decode failure for callers.
func CSRFMismatch() *AppError {
	return &AppError{Code: ErrCodeCSRFMismatch, Message: "authentication failed"}
}

// RefreshExpired creates a terminal refresh failure error.
func RefreshExpired(err error) *AppError {
	return &AppError{Code: ErrCodeRefreshExpired, Message: "session expired", Cause: err}
}

// UpstreamUnavailable wraps a transport failure talking to the identity
// provider or token issuer.
func UpstreamUnavailable(err error) *AppError {
	return &AppError{Code: ErrCodeUpstreamUnavailable, Message: "identity provider unavailable", Cause: err}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool { return isCode(err, ErrCodeNotFound) }

// IsConflict checks if an error is a Conflict error.
func IsConflict(err error) bool { return isCode(err, ErrCodeConflict) }

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool { return isCode(err, ErrCodeValidation) }

// IsUnauthenticated reports whether the error is any of the codes that must
// surface as a bare "authentication failed" outcome.
func IsUnauthenticated(err error) bool {
	return isCode(err, ErrCodeUnauthenticated) ||
		isCode(err, ErrCodeAssertionDecode) ||
		isCode(err, ErrCodeCSRFMismatch)
}

// IsAssertionDecode checks for a malformed-assertion error.
func IsAssertionDecode(err error) bool { return isCode(err, ErrCodeAssertionDecode) }

// IsCSRFMismatch checks for a CSRF ticket failure.
func IsCSRFMismatch(err error) bool { return isCode(err, ErrCodeCSRFMismatch) }

// IsRefreshExpired checks for a terminal refresh failure.
func IsRefreshExpired(err error) bool { return isCode(err, ErrCodeRefreshExpired) }

// IsUpstreamUnavailable checks whether the failure is retryable transport trouble.
func IsUpstreamUnavailable(err error) bool { return isCode(err, ErrCodeUpstreamUnavailable) }

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}
