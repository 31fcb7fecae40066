package output

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// Error is a structured error with code, message, and optional hint.
type Error struct {
	Code       string
	Message    string
	Hint       string
	HTTPStatus int
	Retryable  bool

	// Fields holds per-field validation messages, keyed by field name.
	Fields map[string][]string
	Cause  error
}

func (e *Error) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Hint)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ExitCode returns the appropriate exit code for this error.
func (e *Error) ExitCode() int {
	return ExitCodeFor(e.Code)
}

// IsAuth reports whether the server rejected the credentials.
func (e *Error) IsAuth() bool {
	return e != nil && e.Code == CodeAuth
}

// Error constructors for common cases.

func ErrUsage(msg string) *Error {
	return &Error{Code: CodeUsage, Message: msg}
}

func ErrUsageHint(msg, hint string) *Error {
	return &Error{Code: CodeUsage, Message: msg, Hint: hint}
}

func ErrNotFound(status int, msg string) *Error {
	return &Error{
		Code:       CodeNotFound,
		Message:    msg,
		HTTPStatus: status,
	}
}

func ErrAuth(msg string) *Error {
	return &Error{
		Code:       CodeAuth,
		Message:    msg,
		Hint:       "Run: washbay auth login",
		HTTPStatus: 401,
	}
}

func ErrForbidden(msg string) *Error {
	return &Error{
		Code:       CodeForbidden,
		Message:    msg,
		HTTPStatus: 403,
	}
}

func ErrTimeout(after time.Duration) *Error {
	return &Error{
		Code:      CodeTimeout,
		Message:   fmt.Sprintf("Request timed out after %s", after),
		Retryable: true,
	}
}

func ErrNetwork(cause error) *Error {
	return &Error{
		Code:      CodeNetwork,
		Message:   "Network error",
		Hint:      cause.Error(),
		Retryable: true,
		Cause:     cause,
	}
}

func ErrAPI(status int, msg string) *Error {
	return &Error{
		Code:       CodeAPI,
		Message:    msg,
		HTTPStatus: status,
		Retryable:  status >= 500,
	}
}

// ErrValidation keeps the server's per-field messages intact.
func ErrValidation(status int, msg string, fields map[string][]string) *Error {
	if msg == "" {
		msg = "Validation failed"
	}
	return &Error{
		Code:       CodeValidation,
		Message:    msg,
		Hint:       summarizeFields(fields),
		HTTPStatus: status,
		Fields:     fields,
	}
}

func ErrStorage(op string, cause error) *Error {
	return &Error{
		Code:    CodeStorage,
		Message: fmt.Sprintf("Storage %s failed", op),
		Hint:    cause.Error(),
		Cause:   cause,
	}
}

func summarizeFields(fields map[string][]string) string {
	if len(fields) == 0 {
		return ""
	}
	parts := make([]string, 0, len(fields))
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		parts = append(parts, fmt.Sprintf("%s: %s", name, strings.Join(fields[name], ", ")))
	}
	return strings.Join(parts, "; ")
}

// AsError attempts to convert an error to an *Error.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{
		Code:    CodeAPI,
		Message: err.Error(),
		Cause:   err,
	}
}
