package errors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryFile           ErrorCategory = "file"
	CategoryParse          ErrorCategory = "parse"
	CategoryValidation     ErrorCategory = "validation"
	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryReconciliation ErrorCategory = "reconciliation"
	CategoryInternal       ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// File errors
	CodeFileNotFound   ErrorCode = "file_not_found"
	CodeFilePermission ErrorCode = "file_permission"
	CodeFileCorrupted  ErrorCode = "file_corrupted"
	CodeFileWrite      ErrorCode = "file_write"
	CodeFileEmpty      ErrorCode = "file_empty"
	CodeFileTooLarge   ErrorCode = "file_too_large"

	// Parse errors
	CodeInvalidFormat      ErrorCode = "invalid_format"
	CodeUnrecognizedLayout ErrorCode = "unrecognized_layout"
	CodeColumnResolution   ErrorCode = "column_resolution"
	CodeEncodingError      ErrorCode = "encoding_error"

	// Validation errors
	CodeMissingField ErrorCode = "missing_field"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Reconciliation errors
	CodeProcessingError ErrorCode = "processing_error"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// ReconcilerError is the base error type for all application errors
type ReconcilerError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *ReconcilerError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", msg, e.Suggestion)
	}
	return msg
}

// Unwrap returns the underlying cause error
func (e *ReconcilerError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *ReconcilerError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryReconciliation, CategoryInternal:
		return 5
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *ReconcilerError) WithContext(key string, value interface{}) *ReconcilerError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *ReconcilerError) WithSuggestion(suggestion string) *ReconcilerError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ReconcilerError
func New(category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with ReconcilerError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err == nil {
		return nil
	}

	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func newOrWrap(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// FileError creates a file-related error
func FileError(code ErrorCode, path string, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check if the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	case CodeFileCorrupted:
		message = fmt.Sprintf("file cannot be read as a workbook or text statement: %s", path)
		suggestion = "re-export the file from the bank portal and upload it again"
	case CodeFileWrite:
		message = fmt.Sprintf("cannot write output file: %s", path)
		suggestion = "check that the output directory exists and is writable"
	case CodeFileEmpty:
		message = fmt.Sprintf("file is empty: %s", path)
		suggestion = "check that the export finished before uploading it"
	case CodeFileTooLarge:
		message = fmt.Sprintf("file exceeds the size limit: %s", path)
		suggestion = "raise preprocessing.max_file_size_mb or split the export"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	return newOrWrap(err, CategoryFile, code, message).
		WithSuggestion(suggestion).
		WithContext("file_path", path)
}

// ParseError creates a parsing-related error for a specific source location.
func ParseError(code ErrorCode, source string, line int, detail string, err error) *ReconcilerError {
	var message string

	switch code {
	case CodeEncodingError:
		message = fmt.Sprintf("encoding error in %s at line %d", source, line)
	default:
		message = fmt.Sprintf("invalid format in %s at line %d: %s", source, line, detail)
	}

	return newOrWrap(err, CategoryParse, code, message).
		WithSuggestion("check the file format and data integrity").
		WithContext("source", source).
		WithContext("line", line)
}

// LayoutError reports that no known sheet layout fits the uploaded workbook.
func LayoutError(tried []string, headers []string, err error) *ReconcilerError {
	message := fmt.Sprintf("unrecognized bank statement layout (tried: %s)", strings.Join(tried, ", "))

	return newOrWrap(err, CategoryParse, CodeUnrecognizedLayout, message).
		WithSuggestion("upload an unmodified export from one of the supported bank reports").
		WithContext("layouts_tried", tried).
		WithContext("headers", headers)
}

// ColumnResolutionError reports which semantic ledger columns could not be located.
func ColumnResolutionError(found map[string]string, missing []string, headers []string, suggestions map[string]string) *ReconcilerError {
	foundList := make([]string, 0, len(found))
	for semantic, header := range found {
		foundList = append(foundList, fmt.Sprintf("%s=%q", semantic, header))
	}
	sort.Strings(foundList)

	message := fmt.Sprintf("cannot resolve ledger columns: missing [%s], found [%s], available headers [%s]",
		strings.Join(missing, ", "), strings.Join(foundList, ", "), strings.Join(headers, ", "))

	var hints []string
	for _, semantic := range missing {
		if header, ok := suggestions[semantic]; ok && header != "" {
			hints = append(hints, fmt.Sprintf("%s may be %q", semantic, header))
		}
	}
	suggestion := "check that the ledger export has not changed its schema"
	if len(hints) > 0 {
		suggestion = strings.Join(hints, "; ")
	}

	return New(CategoryParse, CodeColumnResolution, message).
		WithSuggestion(suggestion).
		WithContext("found", found).
		WithContext("missing", missing).
		WithContext("headers", headers)
}

// ValidationError creates a validation-related error
func ValidationError(code ErrorCode, field string, value interface{}, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	return newOrWrap(err, CategoryValidation, code, message).
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this setting as a flag, environment variable or config file entry"
	default:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	}

	return newOrWrap(err, CategoryConfiguration, code, message).
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// ReconciliationError creates a reconciliation-related error
func ReconciliationError(code ErrorCode, operation string, err error) *ReconcilerError {
	return newOrWrap(err, CategoryReconciliation, code, fmt.Sprintf("processing error during %s", operation)).
		WithSuggestion("review the input files and configuration").
		WithContext("operation", operation)
}

// InternalError creates an internal error
func InternalError(code ErrorCode, operation string, err error) *ReconcilerError {
	return newOrWrap(err, CategoryInternal, code, fmt.Sprintf("unexpected error during %s", operation)).
		WithSuggestion("this is likely a bug - please report it with the error details").
		WithContext("operation", operation)
}

// AsReconcilerError extracts a ReconcilerError from an error chain
func AsReconcilerError(err error) (*ReconcilerError, bool) {
	var reconcilerErr *ReconcilerError
	if errors.As(err, &reconcilerErr) {
		return reconcilerErr, true
	}
	return nil, false
}

// HasCode reports whether any ReconcilerError in the chain carries code.
func HasCode(err error, code ErrorCode) bool {
	rerr, ok := AsReconcilerError(err)
	return ok && rerr.Code == code
}

// WrapIfNeeded wraps an error if it's not already a ReconcilerError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err == nil {
		return nil
	}

	if reconcilerErr, ok := AsReconcilerError(err); ok {
		return reconcilerErr
	}

	return Wrap(err, category, code, message)
}
