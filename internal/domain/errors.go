package domain

import (
	"errors"
	"fmt"
)

// Error codes. Handlers map each one to a single HTTP status.
const (
	EINVALID      = "invalid"
	EUNAUTHORIZED = "unauthorized"
	EFORBIDDEN    = "forbidden"
	ENOTFOUND     = "not_found"
	ECONFLICT     = "conflict"    // includes a busy single-flight guard
	EGONE         = "gone"        // custom package already purchased
	ETOOLARGE     = "too_large"
	ERATELIMIT    = "rate_limit"
	EINTERNAL     = "internal"
	ENOTIMPL      = "not_impl"
	EPAYMENT      = "payment"
	EELIGIBILITY  = "eligibility" // user audience does not match the product
	EGATEWAY      = "gateway"     // payment gateway refused or failed
	EUNAVAILABLE  = "unavailable" // content API unreachable or non-2xx
)

const internalMessage = "An internal error occurred. Please try again later."

// Error is a failure with a machine code, the operation that produced it
// ("<component>.<verb>") and a message safe to show the caller.
type Error struct {
	Code    string
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return e.Op + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code, op, message string, err error) *Error {
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

// Errorf builds an Error with a formatted message.
func Errorf(code, op, format string, args ...any) *Error {
	return newError(code, op, fmt.Sprintf(format, args...), nil)
}

// Wrap attaches a code and message to err.
func Wrap(err error, code, op, message string) *Error {
	return newError(code, op, message, err)
}

func NotFound(op, resource, id string) *Error {
	return newError(ENOTFOUND, op, fmt.Sprintf("%s with ID %q not found", resource, id), nil)
}

func Invalid(op, message string) *Error      { return newError(EINVALID, op, message, nil) }
func Unauthorized(op, message string) *Error { return newError(EUNAUTHORIZED, op, message, nil) }
func Forbidden(op, message string) *Error    { return newError(EFORBIDDEN, op, message, nil) }
func Conflict(op, message string) *Error     { return newError(ECONFLICT, op, message, nil) }
func Eligibility(op, message string) *Error  { return newError(EELIGIBILITY, op, message, nil) }

func Internal(err error, op, message string) *Error {
	return newError(EINTERNAL, op, message, err)
}

// Gateway wraps a payment gateway failure. message is shown to the user
// unchanged, so it should be the gateway's own wording.
func Gateway(err error, op, message string) *Error {
	return newError(EGATEWAY, op, message, err)
}

// Unavailable wraps a failed content API call.
func Unavailable(err error, op, message string) *Error {
	return newError(EUNAVAILABLE, op, message, err)
}

func RateLimit(op string) *Error {
	return newError(ERATELIMIT, op, "Too many requests. Please try again later.", nil)
}

// ErrorCode returns the code carried by err. Validation errors report
// EINVALID and anything unrecognised reports EINTERNAL.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := asError(err); ok {
		return e.Code
	}
	if _, ok := asValidation(err); ok {
		return EINVALID
	}
	return EINTERNAL
}

// ErrorMessage returns the message for the caller. Internal causes are
// never exposed.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := asError(err); ok && e.Code != EINTERNAL {
		return e.Message
	}
	if _, ok := asValidation(err); ok {
		return "Validation failed"
	}
	return internalMessage
}

// ErrorOp returns the operation of the outermost *Error in the chain.
func ErrorOp(err error) string {
	if e, ok := asError(err); ok {
		return e.Op
	}
	return ""
}

func asError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

func asValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// =============================================================================
// Field validation
// =============================================================================

// ValidationError maps field names to messages. It is returned before any
// request leaves the process.
type ValidationError struct {
	Op     string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation failed on %d field(s)", e.Op, len(e.Fields))
}

func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

func NewValidationError(op, field, message string) *ValidationError {
	return &ValidationError{Op: op, Fields: map[string]string{field: message}}
}

// AddFieldError records another field failure on err, or starts a new
// ValidationError when err is not one.
func AddFieldError(err error, field, message string) *ValidationError {
	if ve, ok := asValidation(err); ok {
		ve.Fields[field] = message
		return ve
	}
	return NewValidationError("", field, message)
}
