// Package domainerrors defines the coded error type shared by services and
// transport. Services attach a stable code plus a human-readable message;
// transport maps codes to HTTP statuses. Internal codes never leak their
// message to clients, only to the operator log.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for clients. Values are stable wire strings.
type Code string

const (
	// CodeValidation: malformed or missing input; the caller must correct
	// the request before retrying.
	CodeValidation Code = "validation_error"
	// CodeBadRequest: the request body or parameters could not be read.
	CodeBadRequest Code = "bad_request"
	// CodeUnauthorized: missing or unusable credentials.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden: authenticated, but role/ownership/district checks failed.
	CodeForbidden Code = "forbidden"
	// CodeNotFound: the entity does not resolve for this caller. Also used
	// for entities hidden by ownership/district scoping so existence is not
	// confirmed to outsiders.
	CodeNotFound Code = "not_found"
	// CodeConflict: state transition attempted from an ineligible status.
	// Distinct from validation so clients can tell "bad input" from "stale
	// view of state".
	CodeConflict Code = "conflict"
	// CodeInternal: infrastructure failure. The message is for operators;
	// clients receive only the code.
	CodeInternal Code = "internal_error"
	// CodeTimeout: the operation was cancelled or ran out of time. Outcome
	// is unknown for non-idempotent writes; do not retry automatically.
	CodeTimeout Code = "timeout"
)

// Error is the coded error carried between layers.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is/As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// Is is an alias of HasCode kept for call-site readability.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf returns the outermost code on err, or CodeInternal when err carries
// no code at all.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the outermost client-safe message. Internal errors
// deliberately return an empty message.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Code != CodeInternal {
		return de.Message
	}
	return ""
}

// ToHTTPStatus maps a code to its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
