package errors

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork           ErrorType = "network"
	ErrorTypeRateLimited       ErrorType = "rate_limited"
	ErrorTypeUnauthorized      ErrorType = "unauthorized"
	ErrorTypeForbidden         ErrorType = "forbidden"
	ErrorTypeParsing           ErrorType = "parsing"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeServerError       ErrorType = "server_error"
	ErrorTypeRenderUnavailable ErrorType = "render_unavailable"
	ErrorTypeUnknown           ErrorType = "unknown"
)

// Error represents a collection error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int

	// ResetAt is set only on rate-limit errors when the source supplied a
	// window reset hint.
	ResetAt time.Time
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// New creates a typed error.
func New(t ErrorType, code int, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...), Code: code}
}

// RateLimited creates a rate-limit error carrying the source's reset hint.
// A zero resetAt means the source sent no usable hint.
func RateLimited(code int, resetAt time.Time, format string, args ...interface{}) *Error {
	return &Error{Type: ErrorTypeRateLimited, Message: fmt.Sprintf(format, args...), Code: code, ResetAt: resetAt}
}

// RenderUnavailable signals the browser fallback could not start. Callers
// must treat it as "fallback skipped", never as "zero interactions".
func RenderUnavailable(format string, args ...interface{}) *Error {
	return &Error{Type: ErrorTypeRenderUnavailable, Message: fmt.Sprintf(format, args...)}
}

// TypeOf extracts the ErrorType from any error in the chain, or
// ErrorTypeUnknown when none of the chain is a typed error.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsRateLimited reports whether the error chain contains a rate-limit error.
func IsRateLimited(err error) bool {
	return TypeOf(err) == ErrorTypeRateLimited
}

// IsTerminalAuth reports whether the error is a credential or scope problem.
// These are terminal for the resource kind being fetched and never retried.
func IsTerminalAuth(err error) bool {
	t := TypeOf(err)
	return t == ErrorTypeUnauthorized || t == ErrorTypeForbidden
}

// IsRenderUnavailable reports whether the fallback renderer failed to start.
func IsRenderUnavailable(err error) bool {
	return TypeOf(err) == ErrorTypeRenderUnavailable
}

// ResetHint returns the rate-limit reset time carried by the error chain,
// if any.
func ResetHint(err error) (time.Time, bool) {
	var e *Error
	if errors.As(err, &e) && !e.ResetAt.IsZero() {
		return e.ResetAt, true
	}
	return time.Time{}, false
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimited, ErrorTypeServerError:
		return true
	case ErrorTypeUnauthorized, ErrorTypeForbidden, ErrorTypeNotFound, ErrorTypeParsing, ErrorTypeRenderUnavailable:
		return false
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504: // Server errors
		return true
	case 401, 403, 404: // Client errors that won't change
		return false
	default:
		return statusCode >= 500 // Retry all 5xx errors
	}
}

// FromStatusCode maps an HTTP status to the taxonomy. The reset hint, when
// known, only matters for 429.
func FromStatusCode(statusCode int, body string, resetAt time.Time) *Error {
	switch {
	case statusCode == 401:
		return New(ErrorTypeUnauthorized, statusCode, "credentials rejected: %s", body)
	case statusCode == 403:
		return New(ErrorTypeForbidden, statusCode, "access not permitted: %s", body)
	case statusCode == 404:
		return New(ErrorTypeNotFound, statusCode, "resource not found: %s", body)
	case statusCode == 429:
		return RateLimited(statusCode, resetAt, "rate limit exhausted: %s", body)
	case statusCode >= 500:
		return New(ErrorTypeServerError, statusCode, "server error: %s", body)
	default:
		return New(ErrorTypeUnknown, statusCode, "unexpected status: %s", body)
	}
}

// ParseRateLimitReset parses an x-rate-limit-reset header (epoch seconds).
// A missing or garbled header yields now+15m, the platform's window length.
func ParseRateLimitReset(header string, now time.Time) time.Time {
	if header == "" {
		return now.Add(15 * time.Minute)
	}
	epoch, err := strconv.ParseInt(header, 10, 64)
	if err != nil || epoch <= 0 {
		return now.Add(15 * time.Minute)
	}
	return time.Unix(epoch, 0)
}
