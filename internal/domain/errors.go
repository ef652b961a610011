package domain

import (
	"errors"
	"fmt"
)

// Application error codes
const (
	EINVALID      = "invalid"       // Invalid input or validation failure
	EUNAUTHORIZED = "unauthorized"  // Authentication required
	EFORBIDDEN    = "forbidden"     // Permission denied
	ENOTFOUND     = "not_found"     // Resource not found
	ECONFLICT     = "conflict"      // Resource conflict (e.g., duplicate)
	ETOOLARGE     = "too_large"     // Request entity too large
	ERATELIMIT    = "rate_limit"    // Rate limit exceeded
	ELIMIT        = "limit_reached" // Monthly credit limit exhausted
	EINTERNAL     = "internal"      // Internal server error
	EUNAVAILABLE  = "unavailable"   // Downstream dependency unavailable
)

const genericInternalMessage = "An internal error occurred. Please try again later."

// Error represents an application error with structured information.
type Error struct {
	Code    string // Machine-readable error code
	Op      string // Operation that failed (e.g., "quota.unlock")
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a new Error with the given code, operation, and formatted message.
func Errorf(code, op, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, code, op, message string) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// LimitError is returned when an account has no credits left for the period.
// It carries the snapshot that was evaluated so callers can report it.
type LimitError struct {
	Op    string
	Quota QuotaSnapshot
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s: monthly limit reached (%d/%s on %s plan)", e.Op, e.Quota.Used, e.Quota.Limit, e.Quota.Plan)
}

// LimitReached creates a limit error for the given snapshot.
func LimitReached(op string, quota QuotaSnapshot) *LimitError {
	return &LimitError{Op: op, Quota: quota}
}

// IsLimitReached reports whether err is, or wraps, a LimitError.
func IsLimitReached(err error) bool {
	var le *LimitError
	return errors.As(err, &le)
}

// ErrorCode returns the code of the root error, or EINTERNAL if none.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var le *LimitError
	if errors.As(err, &le) {
		return ELIMIT
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns the human-readable message of the error.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var le *LimitError
	if errors.As(err, &le) {
		return "Monthly limit reached. Upgrade your plan to unlock more candidates."
	}
	var e *Error
	if errors.As(err, &e) {
		// For internal errors, return generic message
		if e.Code == EINTERNAL {
			return genericInternalMessage
		}
		return e.Message
	}
	return genericInternalMessage
}

// ErrorOp returns the operation of the root error, if any.
func ErrorOp(err error) string {
	if err == nil {
		return ""
	}
	var le *LimitError
	if errors.As(err, &le) {
		return le.Op
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// Convenience constructors for common error types

// NotFound creates a not found error.
func NotFound(op, resource, id string) *Error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s with ID %q not found", resource, id),
	}
}

// Invalid creates a validation error.
func Invalid(op, message string) *Error {
	return &Error{
		Code:    EINVALID,
		Op:      op,
		Message: message,
	}
}

// Unauthorized creates an authentication error.
func Unauthorized(op, message string) *Error {
	return &Error{
		Code:    EUNAUTHORIZED,
		Op:      op,
		Message: message,
	}
}

// Forbidden creates a permission error.
func Forbidden(op, message string) *Error {
	return &Error{
		Code:    EFORBIDDEN,
		Op:      op,
		Message: message,
	}
}

// TooLarge creates a request size error.
func TooLarge(op, message string) *Error {
	return &Error{
		Code:    ETOOLARGE,
		Op:      op,
		Message: message,
	}
}

// Internal creates an internal error, wrapping the underlying error.
func Internal(err error, op, message string) *Error {
	return &Error{
		Code:    EINTERNAL,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// Unavailable creates an error for a failing downstream dependency.
func Unavailable(err error, op, message string) *Error {
	return &Error{
		Code:    EUNAVAILABLE,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// RateLimit creates a rate limit error.
func RateLimit(op string) *Error {
	return &Error{
		Code:    ERATELIMIT,
		Op:      op,
		Message: "Too many requests. Please try again later.",
	}
}
