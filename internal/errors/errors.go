package errors

import (
	"fmt"
)

// DeskError is the structured error type for askdesk. It carries an error
// code, a human-readable message, and free-form details that services attach
// for audit rows (e.g. extractor metadata on a failed upload).
type DeskError struct {
	// Code is the unique error code (e.g., "ERR_402_SCAN_PDF_NOT_SUPPORTED").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Provider, etc.).
	Category Category

	// Details contains additional context as key-value pairs.
	Details map[string]any

	// Cause is the underlying error that caused this error.
	Cause error
}

// Error implements the error interface.
func (e *DeskError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *DeskError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with DeskError.
func (e *DeskError) Is(target error) bool {
	if t, ok := target.(*DeskError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *DeskError) WithDetail(key string, value any) *DeskError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new DeskError with the given code and message.
// The category is derived from the code.
func New(code string, message string, cause error) *DeskError {
	return &DeskError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates a DeskError from an existing error.
// The error's message becomes the DeskError message.
func Wrap(code string, err error) *DeskError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// GetCode extracts the error code from a DeskError anywhere in err's chain.
// Returns empty string if no DeskError is present.
func GetCode(err error) string {
	var de *DeskError
	if As(err, &de) {
		return de.Code
	}
	return ""
}

// GetDetails extracts the details map from a DeskError in err's chain.
// Returns nil if no DeskError is present.
func GetDetails(err error) map[string]any {
	var de *DeskError
	if As(err, &de) {
		return de.Details
	}
	return nil
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code string) bool {
	return GetCode(err) == code
}
