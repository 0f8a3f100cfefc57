package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeNotFound represents lookups that matched nothing
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeParse represents source-format errors
	ErrorTypeParse ErrorType = "parse"
	// ErrorTypeStorage represents persistence backend errors
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypePipeline represents ingestion pipeline errors
	ErrorTypePipeline ErrorType = "pipeline"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Not-found Errors

// ErrEntityNotFound is returned when a name matches no entity in storage
type ErrEntityNotFound struct {
	*BaseError
	Name string
}

func NewEntityNotFound(name string) *ErrEntityNotFound {
	return &ErrEntityNotFound{
		BaseError: NewBaseError(ErrorTypeNotFound, fmt.Sprintf("Entity '%s' not found", name), nil),
		Name:      name,
	}
}

// Unwrap exposes the embedded BaseError so IsErrorType can see the type.
func (e *ErrEntityNotFound) Unwrap() error {
	return e.BaseError
}

// Config Errors

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

func (e *ErrConfigValidationFailed) Unwrap() error {
	return e.BaseError
}

// ErrUnsupportedStorage is returned when the storage backend identifier is unknown
type ErrUnsupportedStorage struct {
	*BaseError
	Kind string
}

func NewUnsupportedStorage(kind string) *ErrUnsupportedStorage {
	return &ErrUnsupportedStorage{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("unsupported storage type: %s", kind), nil),
		Kind:      kind,
	}
}

func (e *ErrUnsupportedStorage) Unwrap() error {
	return e.BaseError
}

// Parse Errors

// ErrSourceParseFailed is returned when a source cannot be parsed at all
type ErrSourceParseFailed struct {
	*BaseError
	Path string
}

func NewSourceParseFailed(path string, err error) *ErrSourceParseFailed {
	return &ErrSourceParseFailed{
		BaseError: NewBaseError(ErrorTypeParse, fmt.Sprintf("failed to parse source: %s", path), err),
		Path:      path,
	}
}

func (e *ErrSourceParseFailed) Unwrap() error {
	return e.BaseError
}

// Storage Errors

// ErrStorageFailed is returned when a backend operation fails
type ErrStorageFailed struct {
	*BaseError
	Operation string
}

func NewStorageFailed(operation string, err error) *ErrStorageFailed {
	return &ErrStorageFailed{
		BaseError: NewBaseError(ErrorTypeStorage, fmt.Sprintf("storage operation failed: %s", operation), err),
		Operation: operation,
	}
}

func (e *ErrStorageFailed) Unwrap() error {
	return e.BaseError
}

// Pipeline Errors

// ErrPipelineStageFailed wraps any failure of an ingestion stage
type ErrPipelineStageFailed struct {
	*BaseError
	Stage  string
	Source string
}

func NewPipelineStageFailed(stage, source string, err error) *ErrPipelineStageFailed {
	return &ErrPipelineStageFailed{
		BaseError: NewBaseError(ErrorTypePipeline, fmt.Sprintf("%s failed for %s", stage, source), err),
		Stage:     stage,
		Source:    source,
	}
}

func (e *ErrPipelineStageFailed) Unwrap() error {
	return e.BaseError
}

// Helper functions

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	if baseErr, ok := err.(*BaseError); ok {
		if baseErr.Type == errType {
			return true
		}
		return IsErrorType(baseErr.Err, errType)
	}
	// Check wrapped errors
	if wrapped, ok := err.(interface{ Unwrap() error }); ok {
		return IsErrorType(wrapped.Unwrap(), errType)
	}
	return false
}
