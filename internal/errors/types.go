// Package errors defines the structured error types shared by the course
// viewer packages.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeContent    ErrorType = "content"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeStore      ErrorType = "store"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// ViewerError is a structured error type with context.
type ViewerError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Module      string
	Recoverable bool
}

// Error implements the error interface.
func (e *ViewerError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Module != "" {
		parts = append(parts, "module:"+e.Module)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *ViewerError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *ViewerError) Is(target error) bool {
	var t *ViewerError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *ViewerError) WithContext(key string, value interface{}) *ViewerError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithModule adds module context.
func (e *ViewerError) WithModule(moduleID string) *ViewerError {
	e.Module = moduleID

	return e
}

// Error creation functions

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *ViewerError {
	return &ViewerError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *ViewerError {
	return &ViewerError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewStoreError creates a persistent store error.
func NewStoreError(code, message string, cause error) *ViewerError {
	return &ViewerError{
		Type:        ErrorTypeStore,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *ViewerError {
	return &ViewerError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *ViewerError {
	return &ViewerError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var ve *ViewerError
	if errors.As(err, &ve) {
		return ve.Recoverable
	}

	var cf *ContentLoadFailure
	return errors.As(err, &cf)
}

// ErrorHandler provides centralized error handling.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs an error at a level matching its kind. Content load failures
// are expected at runtime and only warrant a warning.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var cf *ContentLoadFailure
	if errors.As(err, &cf) {
		h.logger.Warn(ctx, err, "Content load failed",
			"path", cf.Path,
			"status", cf.Status)
		return
	}

	var ve *ViewerError
	if errors.As(err, &ve) {
		switch ve.Type {
		case ErrorTypeValidation:
			h.logger.Warn(ctx, err, "Validation error occurred",
				"type", ve.Type,
				"code", ve.Code,
				"module", ve.Module)
		default:
			h.logger.Error(ctx, err, "Error occurred",
				"type", ve.Type,
				"code", ve.Code,
				"module", ve.Module)
		}
		return
	}

	h.logger.Error(ctx, err, "Unhandled error occurred")
}

// Common error codes.
const (
	ErrCodeInvalidPath     = "ERR_INVALID_PATH"
	ErrCodePathTraversal   = "ERR_PATH_TRAVERSAL"
	ErrCodeModuleNotFound  = "ERR_MODULE_NOT_FOUND"
	ErrCodeDuplicateModule = "ERR_DUPLICATE_MODULE"
	ErrCodeModuleNotLoaded = "ERR_MODULE_NOT_LOADED"
	ErrCodeLessonNotFound  = "ERR_LESSON_NOT_FOUND"
	ErrCodeInvalidRequest  = "ERR_INVALID_REQUEST"
	ErrCodeConfigInvalid   = "ERR_CONFIG_INVALID"
	ErrCodeStoreRead       = "ERR_STORE_READ"
	ErrCodeStoreWrite      = "ERR_STORE_WRITE"
	ErrCodeStoreOpen       = "ERR_STORE_OPEN"
	ErrCodeRender          = "ERR_RENDER"
	ErrCodeInternalError   = "ERR_INTERNAL"
)

// ErrModuleNotFound is returned when a module id has no registry entry.
var ErrModuleNotFound = &ViewerError{
	Type:        ErrorTypeValidation,
	Code:        ErrCodeModuleNotFound,
	Message:     "module not found",
	Recoverable: true,
}

// ModuleNotFound builds an ErrModuleNotFound for a specific id. The result
// matches ErrModuleNotFound under errors.Is.
func ModuleNotFound(moduleID string) *ViewerError {
	return NewValidationError(ErrCodeModuleNotFound, "module not found").WithModule(moduleID)
}
