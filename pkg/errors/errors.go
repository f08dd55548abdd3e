// Package errors provides structured error types for the evolayout engine.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the layout phases, CLI and API
//   - Machine-readable error codes for programmatic handling
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Layout phases surface four domain codes:
//   - EMPTY_INPUT: a tree build or coarsening was asked to work on no nodes
//   - DEGENERATE_GEOMETRY: coincident points, reported only in strict mode
//   - CONVERGENCE_BUDGET_EXCEEDED: informational, the iteration cap was hit
//     before the optional early-exit test fired
//   - INVALID_CONFIGURATION: a non-positive temperature, precision or threshold
//
// Geometry degeneracies are recovered locally as zero force unless strict
// mode is requested. Structural errors abort the current phase.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeEmptyInput, "spatial tree over %d nodes", 0)
//	if errors.Is(err, errors.ErrCodeEmptyInput) {
//	    // Handle empty graph
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeInvalidInput, origErr, "read snapshot %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Layout errors
	ErrCodeEmptyInput                Code = "EMPTY_INPUT"
	ErrCodeDegenerateGeometry        Code = "DEGENERATE_GEOMETRY"
	ErrCodeConvergenceBudgetExceeded Code = "CONVERGENCE_BUDGET_EXCEEDED"
	ErrCodeInvalidConfiguration      Code = "INVALID_CONFIGURATION"

	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidNodeID Code = "INVALID_NODE_ID"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"

	// Resource not found errors
	ErrCodeNotFound    Code = "NOT_FOUND"
	ErrCodeRunNotFound Code = "RUN_NOT_FOUND"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsInformational reports whether err only carries information and the
// result it accompanies is still usable. The convergence budget code is the
// only informational code.
func IsInformational(err error) bool {
	return Is(err, ErrCodeConvergenceBudgetExceeded)
}

// HTTPStatus maps an error code to the HTTP status the API responds with.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case ErrCodeEmptyInput, ErrCodeInvalidConfiguration, ErrCodeInvalidInput,
		ErrCodeInvalidNodeID, ErrCodeInvalidFormat, ErrCodeDegenerateGeometry:
		return 400
	case ErrCodeNotFound, ErrCodeRunNotFound:
		return 404
	case ErrCodeUnsupported:
		return 501
	default:
		return 500
	}
}
