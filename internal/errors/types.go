package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeResolve    ErrorType = "resolve"
	ErrorTypeCompile    ErrorType = "compile"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeConfig     ErrorType = "config"
)

// Common error codes.
const (
	ErrCodeCompileFailed    = "ERR_COMPILE_FAILED"
	ErrCodeAnalyzeFailed    = "ERR_ANALYZE_FAILED"
	ErrCodeSourceNotFound   = "ERR_SOURCE_NOT_FOUND"
	ErrCodeReadFailed       = "ERR_READ_FAILED"
	ErrCodeWriteFailed      = "ERR_WRITE_FAILED"
	ErrCodeMkdirFailed      = "ERR_MKDIR_FAILED"
	ErrCodeWalkFailed       = "ERR_WALK_FAILED"
	ErrCodeWatchFailed      = "ERR_WATCH_FAILED"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeValidationFailed = "ERR_VALIDATION_FAILED"
)

// TagcError is a structured error type carrying the offending file.
type TagcError struct {
	Type     ErrorType
	Code     string
	Message  string
	Cause    error
	FilePath string
}

// Error implements the error interface.
func (e *TagcError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *TagcError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *TagcError) Is(target error) bool {
	var t *TagcError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithPath attaches the file the error refers to.
func (e *TagcError) WithPath(path string) *TagcError {
	e.FilePath = path

	return e
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *TagcError {
	return &TagcError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
	}
}

// NewResolveError creates a path resolution error.
func NewResolveError(code, message string, cause error) *TagcError {
	return &TagcError{
		Type:    ErrorTypeResolve,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewCompileError wraps a compiler failure for the given input file.
// The compiler's own error stays reachable through Unwrap.
func NewCompileError(path string, cause error) *TagcError {
	return &TagcError{
		Type:     ErrorTypeCompile,
		Code:     ErrCodeCompileFailed,
		Message:  "compilation failed",
		Cause:    cause,
		FilePath: path,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *TagcError {
	return &TagcError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewReadError wraps a failure to read the source file at path. A source
// that does not exist gets ErrCodeSourceNotFound.
func NewReadError(path string, cause error) *TagcError {
	code, message := ErrCodeReadFailed, "cannot read source"
	if errors.Is(cause, fs.ErrNotExist) {
		code, message = ErrCodeSourceNotFound, "source file not found"
	}

	return NewIOError(code, message, cause).WithPath(path)
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *TagcError {
	return &TagcError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

func hasType(err error, typ ErrorType) bool {
	var te *TagcError
	if errors.As(err, &te) {
		return te.Type == typ
	}

	return false
}

// IsCompileError checks if an error is a compiler failure.
func IsCompileError(err error) bool {
	return hasType(err, ErrorTypeCompile)
}

// IsIOError checks if an error is an I/O failure.
func IsIOError(err error) bool {
	return hasType(err, ErrorTypeIO)
}

// IsConfigError checks if an error is a configuration failure.
func IsConfigError(err error) bool {
	return hasType(err, ErrorTypeConfig)
}

// FilePath returns the file an error refers to, or "" when none is attached.
func FilePath(err error) string {
	var te *TagcError
	for errors.As(err, &te) {
		if te.FilePath != "" {
			return te.FilePath
		}
		err = te.Cause
	}

	return ""
}
