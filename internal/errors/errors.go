package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeSchema     ErrorType = "SCHEMA"
	ErrTypeFormat     ErrorType = "FORMAT"
	ErrTypeSheet      ErrorType = "SHEET"
	ErrTypeParsing    ErrorType = "PARSING"
	ErrTypeConfig     ErrorType = "CONFIG"
	ErrTypeQuality    ErrorType = "QUALITY"
	ErrTypeTemplate   ErrorType = "TEMPLATE"
	ErrTypeStorage    ErrorType = "STORAGE"
	ErrTypeDatabase   ErrorType = "DATABASE"
	ErrTypeValidation ErrorType = "VALIDATION"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// IsType reports whether err is an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}

// Helper functions for common error types

// NewSchemaError reports a requested column missing from a source table.
// Fatal for the affected sheet: processing fails before any row is emitted.
func NewSchemaError(message string, cause error) *AppError {
	return NewAppError(ErrTypeSchema, message, cause)
}

// NewFormatError reports an unparseable month name or release date.
// Recoverable: the affected field falls back to its null value unless the
// caller escalates via stop-on-error.
func NewFormatError(message string, cause error) *AppError {
	return NewAppError(ErrTypeFormat, message, cause)
}

// NewSheetError reports a missing or empty sheet selection.
func NewSheetError(message string, cause error) *AppError {
	return NewAppError(ErrTypeSheet, message, cause)
}

// NewParsingError creates a file-parsing error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewQualityError creates a data-quality rule failure
func NewQualityError(message string, cause error) *AppError {
	return NewAppError(ErrTypeQuality, message, cause)
}

// NewTemplateError creates a workbook-template violation
func NewTemplateError(message string, cause error) *AppError {
	return NewAppError(ErrTypeTemplate, message, cause)
}

// NewStorageError creates a filesystem error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewDatabaseError creates a database error
func NewDatabaseError(message string, cause error) *AppError {
	return NewAppError(ErrTypeDatabase, message, cause)
}

// NewValidationError creates an input-validation error
func NewValidationError(message string, cause error) *AppError {
	return NewAppError(ErrTypeValidation, message, cause)
}
