// Package perrors provides categorized application errors for the
// reconciliation tool. Every error carries a category, a stable code,
// an optional suggestion for the user and a context map, plus a stack
// trace captured at creation time via github.com/pkg/errors.
package perrors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Category groups errors by the subsystem that raised them.
type Category string

const (
	CategoryFile           Category = "file"
	CategoryParse          Category = "parse"
	CategoryValidation     Category = "validation"
	CategoryConfiguration  Category = "configuration"
	CategoryReconciliation Category = "reconciliation"
	CategoryUsage          Category = "usage"
	CategoryInternal       Category = "internal"
)

// Code identifies a specific error condition within a category.
type Code string

const (
	// File errors
	CodeFileNotFound   Code = "file_not_found"
	CodeFileUnreadable Code = "file_unreadable"

	// Parse errors
	CodeInvalidFormat Code = "invalid_format"
	CodeMissingColumn Code = "missing_column"
	CodeInvalidData   Code = "invalid_data"

	// Validation errors
	CodeInvalidAmount Code = "invalid_amount"
	CodeInvalidDate   Code = "invalid_date"
	CodeMissingField  Code = "missing_field"

	// Configuration errors
	CodeInvalidConfig Code = "invalid_config"

	// Reconciliation errors
	CodeNotAwaitingDecision Code = "not_awaiting_decision"
	CodeNoCurrentRecord     Code = "no_current_record"

	// Usage errors (caller bugs, fail fast)
	CodeIndexOutOfRange Code = "index_out_of_range"

	// Internal errors
	CodeBrokenSymmetry  Code = "broken_symmetry"
	CodeUnexpectedError Code = "unexpected_error"
)

// Error is the base error type for all application errors.
type Error struct {
	Category   Category          `json:"category"`
	Code       Code              `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional structured information about the error.
type Context map[string]interface{}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ExitCode returns the process exit code appropriate for the error.
func (e *Error) ExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryReconciliation, CategoryUsage, CategoryInternal:
		return 5
	default:
		return 1
	}
}

// WithContext adds a context key/value pair to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a remediation suggestion to the error.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// New creates a new Error with a captured stack trace.
func New(category Category, code Code, message string) *Error {
	return &Error{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Newf creates a new Error with a formatted message.
func Newf(category Category, code Code, format string, args ...interface{}) *Error {
	return New(category, code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with category and code context.
// Returns nil when err is nil.
func Wrap(err error, category Category, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// FileError creates a file-related error for the given path.
func FileError(code Code, path string, err error) *Error {
	var message, suggestion string
	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check that the file path is correct and the file exists"
	case CodeFileUnreadable:
		message = fmt.Sprintf("file is not readable: %s", path)
		suggestion = "check file permissions"
	default:
		message = fmt.Sprintf("file error: %s", path)
	}

	result := New(CategoryFile, code, message)
	if err != nil {
		result = Wrap(err, CategoryFile, code, message)
	}
	return result.WithSuggestion(suggestion).WithContext("file_path", path)
}

// ParseError creates a parsing error locating the offending line and column.
func ParseError(code Code, file string, line int, column, value string, err error) *Error {
	var message, suggestion string
	switch code {
	case CodeMissingColumn:
		message = fmt.Sprintf("missing required column '%s' in file %s", column, file)
		suggestion = "verify the file has all required columns with correct headers"
	case CodeInvalidData:
		message = fmt.Sprintf("invalid data in file %s at line %d, column '%s': '%s'", file, line, column, value)
		suggestion = "correct the data or remove the invalid entry"
	default:
		message = fmt.Sprintf("parse error in file %s at line %d", file, line)
		suggestion = "check the file format"
	}

	result := New(CategoryParse, code, message)
	if err != nil {
		result = Wrap(err, CategoryParse, code, message)
	}
	return result.
		WithSuggestion(suggestion).
		WithContext("file", file).
		WithContext("line", line).
		WithContext("column", column)
}

// UsageError creates a caller-usage error such as an out-of-range index.
// These indicate programming errors in the driving code, not bad data.
func UsageError(code Code, operation string, value interface{}) *Error {
	message := fmt.Sprintf("invalid usage of %s: %v", operation, value)
	if code == CodeIndexOutOfRange {
		message = fmt.Sprintf("index out of range in %s: %v", operation, value)
	}
	return New(CategoryUsage, code, message).
		WithContext("operation", operation).
		WithContext("value", value)
}

// InternalError creates an internal-invariant error. These are not
// recoverable and indicate a bug in the engine itself.
func InternalError(code Code, operation string, err error) *Error {
	message := fmt.Sprintf("internal error during %s", operation)
	if code == CodeBrokenSymmetry {
		message = fmt.Sprintf("match symmetry invariant broken during %s", operation)
	}

	result := New(CategoryInternal, code, message)
	if err != nil {
		result = Wrap(err, CategoryInternal, code, message)
	}
	return result.
		WithSuggestion("this is a bug - please report it with the error details").
		WithContext("operation", operation)
}

// Is checks whether err is an application Error with the given code.
func Is(err error, code Code) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// As extracts an application Error from an error chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Summary aggregates multiple errors, typically per-line parse failures.
type Summary struct {
	Total      int              `json:"total"`
	ByCategory map[Category]int `json:"by_category"`
	Errors     []*Error         `json:"errors"`
}

// NewSummary builds a Summary from a slice of errors.
func NewSummary(errs []*Error) *Summary {
	summary := &Summary{
		Total:      len(errs),
		ByCategory: make(map[Category]int),
		Errors:     errs,
	}
	for _, err := range errs {
		summary.ByCategory[err.Category]++
	}
	return summary
}

// Error returns a formatted message covering all aggregated errors.
func (s *Summary) Error() string {
	if s.Total == 0 {
		return "no errors"
	}
	if s.Total == 1 {
		return s.Errors[0].Error()
	}

	var categories []string
	for category, count := range s.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}
	return fmt.Sprintf("%d errors occurred (%s)", s.Total, strings.Join(categories, ", "))
}
