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
	ErrorTypeRender   ErrorType = "render"
	ErrorTypeTemplate ErrorType = "template"
	ErrorTypeRegistry ErrorType = "registry"
	ErrorTypeConfig   ErrorType = "config"
	ErrorTypeIO       ErrorType = "io"
	ErrorTypeInternal ErrorType = "internal"
)

// BrickError is a structured error type with context.
type BrickError struct {
	Type    ErrorType
	Code    string
	Message string
	Cause   error
	Context map[string]any

	// Tag is the component tag the failure belongs to, if any.
	Tag string
	// Stage is the render stage that failed, if any.
	Stage string
}

// Error implements the error interface.
func (e *BrickError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Tag != "" {
		parts = append(parts, "component:"+e.Tag)
	}
	if e.Stage != "" {
		parts = append(parts, "stage:"+e.Stage)
	}

	parts = append(parts, e.Message)
	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *BrickError) Unwrap() error {
	return e.Cause
}

// Is matches another *BrickError of the same type and code.
func (e *BrickError) Is(target error) bool {
	t, ok := target.(*BrickError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithContext adds context information to the error.
func (e *BrickError) WithContext(key string, value any) *BrickError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value

	return e
}

// WithTag adds component context.
func (e *BrickError) WithTag(tag string) *BrickError {
	e.Tag = tag

	return e
}

// NewRenderError creates an error for a failed render stage.
func NewRenderError(tag, stage string, cause error) *BrickError {
	return &BrickError{
		Type:    ErrorTypeRender,
		Code:    ErrCodeRenderFailed,
		Message: "render failed",
		Cause:   cause,
		Tag:     tag,
		Stage:   stage,
	}
}

// NewTemplateError creates a template compile or execute error.
func NewTemplateError(code, message string, cause error) *BrickError {
	return &BrickError{
		Type:    ErrorTypeTemplate,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewRegistryError creates a registry error.
func NewRegistryError(code, message string, cause error) *BrickError {
	return &BrickError{
		Type:    ErrorTypeRegistry,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *BrickError {
	return &BrickError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *BrickError {
	return &BrickError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *BrickError {
	return &BrickError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsRenderError checks if an error came out of the render pipeline.
func IsRenderError(err error) bool {
	return HasType(err, ErrorTypeRender)
}

// IsTemplateError checks if an error came out of the template engine.
func IsTemplateError(err error) bool {
	return HasType(err, ErrorTypeTemplate)
}

// HasType reports whether any *BrickError in err's chain has type t.
func HasType(err error, t ErrorType) bool {
	for err != nil {
		var be *BrickError
		if !errors.As(err, &be) {
			return false
		}
		if be.Type == t {
			return true
		}
		err = be.Cause
	}
	return false
}

// ErrorHandler provides centralized error handling.
type ErrorHandler struct {
	logger    Logger
	collector *ErrorCollector
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...any)
	Warn(ctx context.Context, err error, msg string, fields ...any)
}

// NewErrorHandler creates a new error handler. Either argument may be nil.
func NewErrorHandler(logger Logger, collector *ErrorCollector) *ErrorHandler {
	return &ErrorHandler{
		logger:    logger,
		collector: collector,
	}
}

// Handle logs err and records it in the collector.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil {
		return
	}

	if h.collector != nil {
		h.collector.AddError(err)
	}
	if h.logger == nil {
		return
	}

	var be *BrickError
	if !errors.As(err, &be) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	switch be.Type {
	case ErrorTypeConfig:
		h.logger.Warn(ctx, err, "Configuration error occurred",
			"type", be.Type,
			"code", be.Code)
	default:
		h.logger.Error(ctx, err, "Unhandled error occurred",
			"type", be.Type,
			"code", be.Code,
			"component", be.Tag,
			"stage", be.Stage)
	}
}

// Common error codes.
const (
	ErrCodeRenderFailed      = "ERR_RENDER_FAILED"
	ErrCodeHookPanic         = "ERR_HOOK_PANIC"
	ErrCodeTemplateCompile   = "ERR_TEMPLATE_COMPILE"
	ErrCodeTemplateExecute   = "ERR_TEMPLATE_EXECUTE"
	ErrCodeComponentNotFound = "ERR_COMPONENT_NOT_FOUND"
	ErrCodeConfigInvalid     = "ERR_CONFIG_INVALID"
	ErrCodeFileNotFound      = "ERR_FILE_NOT_FOUND"
	ErrCodeInternalError     = "ERR_INTERNAL"
)

// ErrComponentNotFound creates a component not found error.
func ErrComponentNotFound(tag string) *BrickError {
	return NewRegistryError(
		ErrCodeComponentNotFound,
		"component not found: "+tag,
		nil,
	).WithTag(tag)
}
