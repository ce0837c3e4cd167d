// Package errors provides structured error handling for neodb.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (data files, output sinks)
//   - 4XX: Validation errors (malformed records, bad filters)
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and output sink errors.
	CategoryIO Category = "IO"
	// CategoryValidation indicates malformed input records or parameters.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates the batch must be aborted.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed but the process can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeFileNotFound      = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission    = "ERR_202_FILE_PERMISSION"
	ErrCodeFileCorrupt       = "ERR_206_FILE_CORRUPT"
	ErrCodeUnsupportedFormat = "ERR_207_UNSUPPORTED_FORMAT"
	ErrCodeWriteFailed       = "ERR_208_WRITE_FAILED"
	ErrCodeFileLocked        = "ERR_209_FILE_LOCKED"

	// Validation errors (400-499)
	ErrCodeInvalidInput         = "ERR_401_INVALID_INPUT"
	ErrCodeMissingField         = "ERR_402_MISSING_FIELD"
	ErrCodeInvalidNumber        = "ERR_403_INVALID_NUMBER"
	ErrCodeInvalidTimestamp     = "ERR_404_INVALID_TIMESTAMP"
	ErrCodeDuplicateDesignation = "ERR_405_DUPLICATE_DESIGNATION"
	ErrCodeInvalidFilter        = "ERR_406_INVALID_FILTER"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_CONFIG_NOT_FOUND")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
// Malformed source records abort the extraction batch, so every validation
// code raised while loading data is fatal.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeMissingField, ErrCodeInvalidNumber, ErrCodeInvalidTimestamp,
		ErrCodeDuplicateDesignation, ErrCodeFileCorrupt:
		return SeverityFatal
	case ErrCodeConfigNotFound:
		return SeverityWarning
	default:
		return SeverityError
	}
}
