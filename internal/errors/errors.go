package errors

import (
	"errors"
	"fmt"
)

// NeoError is the structured error type for neodb.
// It carries enough context for logging, CLI presentation and protocol mapping.
type NeoError struct {
	// Code is the unique error code (e.g., "ERR_403_INVALID_NUMBER").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Validation, Internal).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs (file, row, field).
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *NeoError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *NeoError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with NeoError.
func (e *NeoError) Is(target error) bool {
	if t, ok := target.(*NeoError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *NeoError) WithDetail(key, value string) *NeoError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *NeoError) WithSuggestion(suggestion string) *NeoError {
	e.Suggestion = suggestion
	return e
}

// New creates a new NeoError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *NeoError {
	return &NeoError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates a NeoError from an existing error.
// The error's message becomes the NeoError message.
func Wrap(code string, err error) *NeoError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *NeoError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O-related error.
func IOError(message string, cause error) *NeoError {
	return New(ErrCodeFileNotFound, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *NeoError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *NeoError {
	return New(ErrCodeInternal, message, cause)
}

// As returns the first NeoError in err's chain.
func As(err error) (*NeoError, bool) {
	var ne *NeoError
	if errors.As(err, &ne) {
		return ne, true
	}
	return nil, false
}

// IsValidation reports whether err carries a validation-category NeoError.
// Callers use it to tell malformed input apart from environment failures.
func IsValidation(err error) bool {
	ne, ok := As(err)
	return ok && ne.Category == CategoryValidation
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current batch.
func IsFatal(err error) bool {
	ne, ok := As(err)
	return ok && ne.Severity == SeverityFatal
}

// GetCode extracts the error code from a NeoError.
// Returns empty string if err carries no NeoError.
func GetCode(err error) string {
	if ne, ok := As(err); ok {
		return ne.Code
	}
	return ""
}

// GetCategory extracts the category from a NeoError.
// Returns empty string if err carries no NeoError.
func GetCategory(err error) Category {
	if ne, ok := As(err); ok {
		return ne.Category
	}
	return ""
}
