// Package errors provides structured error types for the Shelfstream
// pipeline. All errors include a category, code, message, and retryable flag
// for consistent handling at the record boundary.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by pipeline stage.
type ErrorCategory string

const (
	ErrCategoryDecode    ErrorCategory = "DECODE"
	ErrCategoryIndex     ErrorCategory = "INDEX"
	ErrCategorySearch    ErrorCategory = "SEARCH"
	ErrCategoryAnalytics ErrorCategory = "ANALYTICS"
	ErrCategorySummary   ErrorCategory = "SUMMARY"
	ErrCategoryLedger    ErrorCategory = "LEDGER"
	ErrCategoryInternal  ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Decode codes
	CodeMissingIdentity  = "MISSING_IDENTITY"
	CodeUnknownEvent     = "UNKNOWN_EVENT"
	CodeUnknownEntity    = "UNKNOWN_ENTITY"
	CodeMissingSnapshot  = "MISSING_SNAPSHOT"
	CodeInvalidTimestamp = "INVALID_TIMESTAMP"
	CodeInvalidNumber    = "INVALID_NUMBER"

	// Index lifecycle codes
	CodeIndexCreateFailed = "INDEX_CREATE_FAILED"
	CodeIndexCheckFailed  = "INDEX_CHECK_FAILED"

	// Search projection codes
	CodeIndexWriteFailed  = "INDEX_WRITE_FAILED"
	CodeIndexDeleteFailed = "INDEX_DELETE_FAILED"

	// Analytics codes
	CodeEventWriteFailed = "EVENT_WRITE_FAILED"

	// Summary codes
	CodeSummaryReadFailed  = "SUMMARY_READ_FAILED"
	CodeSummaryWriteFailed = "SUMMARY_WRITE_FAILED"
	CodeSummaryConflict    = "SUMMARY_CONFLICT"

	// Ledger codes
	CodeLedgerWriteFailed = "LEDGER_WRITE_FAILED"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// PipelineError is the structured error type used throughout the pipeline.
type PipelineError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *PipelineError) Is(target error) bool {
	var t *PipelineError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new PipelineError.
func New(category ErrorCategory, code, message string) *PipelineError {
	return &PipelineError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new PipelineError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *PipelineError {
	return &PipelineError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *PipelineError) WithDetails(details map[string]interface{}) *PipelineError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
// Decode errors are never retryable: redelivering a malformed record
// produces the same failure.
func IsRetryable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a PipelineError.
func GetCategory(err error) ErrorCategory {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a PipelineError.
func GetCode(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategorySearch:
		return true
	case category == ErrCategoryIndex && code == CodeIndexCreateFailed:
		return true
	case category == ErrCategoryAnalytics && code == CodeEventWriteFailed:
		return true
	case category == ErrCategorySummary && code != CodeSummaryConflict:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewDecodeError(code, message string) *PipelineError {
	return New(ErrCategoryDecode, code, message)
}

func NewIndexError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategoryIndex, code, message, cause)
}

func NewSearchError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategorySearch, code, message, cause)
}

func NewAnalyticsError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategoryAnalytics, code, message, cause)
}

func NewSummaryError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategorySummary, code, message, cause)
}

func NewInternalError(message string, cause error) *PipelineError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
