// Package errors provides structured error types for the opcbox engine.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the library, CLI, and HTTP surface
//   - Machine-readable error codes for programmatic handling
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - FORMAT_*: structural problems in a container or its metadata
//   - STATE_*: operations attempted in the wrong package lifecycle state
//
// Lookup misses (an absent part, relationship id, or type) are not errors
// anywhere in this module; they are reported as nil or empty results.
//
// # Usage
//
//	err := errors.New(errors.ErrCodePartName, "part name must start with '/': %q", name)
//	if errors.IsFormat(err) {
//	    // reject the container
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeContainer, zipErr, "open %s", path)
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for the two spec-level error families.
const (
	// Format errors: the container or its metadata is structurally invalid.
	ErrCodePartName           Code = "FORMAT_PART_NAME"
	ErrCodeContainer          Code = "FORMAT_CONTAINER"
	ErrCodeContentTypes       Code = "FORMAT_CONTENT_TYPES"
	ErrCodeRelationships      Code = "FORMAT_RELATIONSHIPS"
	ErrCodeDuplicatePart      Code = "FORMAT_DUPLICATE_PART"
	ErrCodeUnknownContentType Code = "FORMAT_UNKNOWN_CONTENT_TYPE"
	ErrCodeDuplicateRelID     Code = "FORMAT_DUPLICATE_REL_ID"

	// State errors: the package is in the wrong lifecycle state.
	ErrCodeReadOnly Code = "STATE_READ_ONLY"
	ErrCodeClosed   Code = "STATE_CLOSED"
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

// IsFormat reports whether err belongs to the format-error family.
func IsFormat(err error) bool {
	return strings.HasPrefix(string(GetCode(err)), "FORMAT_")
}

// IsState reports whether err belongs to the state-error family.
func IsState(err error) bool {
	return strings.HasPrefix(string(GetCode(err)), "STATE_")
}
