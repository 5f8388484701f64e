package errors

import (
	"fmt"
	"time"

	"mcp-x402-gateway/internal/models"
)

// ErrorCategory represents different types of errors in the system
type ErrorCategory string

const (
	// Transport errors: the remote API never produced a response
	ErrorCategoryTransport ErrorCategory = "transport"
	// Remote API errors: the API responded with a non-success status
	ErrorCategoryRemoteAPI ErrorCategory = "remote_api"
	// Payment signals: HTTP 402 offers relayed to the caller
	ErrorCategoryPayment ErrorCategory = "payment"
	// Catalog errors: tool lookup and schema problems
	ErrorCategoryCatalog ErrorCategory = "catalog"
	// Validation related errors
	ErrorCategoryValidation ErrorCategory = "validation"
	// MCP protocol related errors
	ErrorCategoryMCP ErrorCategory = "mcp"
	// System/internal errors
	ErrorCategorySystem ErrorCategory = "system"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	ErrorSeverityLow      ErrorSeverity = "low"
	ErrorSeverityMedium   ErrorSeverity = "medium"
	ErrorSeverityHigh     ErrorSeverity = "high"
	ErrorSeverityCritical ErrorSeverity = "critical"
)

// StructuredError represents a structured error with additional context
type StructuredError struct {
	Category    ErrorCategory          `json:"category"`
	Severity    ErrorSeverity          `json:"severity"`
	Code        string                 `json:"code"`
	Message     string                 `json:"message"`
	Details     string                 `json:"details,omitempty"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	Recoverable bool                   `json:"recoverable"`
	Cause       error                  `json:"-"` // Original error, not serialized
}

// Error implements the error interface
func (se *StructuredError) Error() string {
	if se.Details != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", se.Category, se.Code, se.Message, se.Details)
	}
	return fmt.Sprintf("[%s:%s] %s", se.Category, se.Code, se.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (se *StructuredError) Unwrap() error {
	return se.Cause
}

// ToMCPError converts a StructuredError to an MCP protocol error
func (se *StructuredError) ToMCPError() *models.MCPError {
	var mcpCode int
	switch se.Category {
	case ErrorCategoryValidation, ErrorCategoryCatalog:
		mcpCode = -32602 // Invalid params
	case ErrorCategoryMCP:
		mcpCode = -32600 // Invalid request
	default:
		mcpCode = -32603 // Internal error
	}

	return &models.MCPError{
		Code:    mcpCode,
		Message: se.Message,
		Data: map[string]interface{}{
			"category":  se.Category,
			"code":      se.Code,
			"severity":  se.Severity,
			"timestamp": se.Timestamp,
			"context":   se.Context,
		},
	}
}

// NewStructuredError creates a new structured error
func NewStructuredError(category ErrorCategory, severity ErrorSeverity, code, message string) *StructuredError {
	return &StructuredError{
		Category:    category,
		Severity:    severity,
		Code:        code,
		Message:     message,
		Timestamp:   time.Now(),
		Recoverable: severity != ErrorSeverityCritical,
		Context:     make(map[string]interface{}),
	}
}

// WithDetails adds details to the error
func (se *StructuredError) WithDetails(details string) *StructuredError {
	se.Details = details
	return se
}

// WithContext adds context information to the error
func (se *StructuredError) WithContext(key string, value interface{}) *StructuredError {
	if se.Context == nil {
		se.Context = make(map[string]interface{})
	}
	se.Context[key] = value
	return se
}

// WithCause sets the underlying cause error
func (se *StructuredError) WithCause(err error) *StructuredError {
	se.Cause = err
	return se
}

// IsRecoverable returns whether the error is recoverable
func (se *StructuredError) IsRecoverable() bool {
	return se.Recoverable
}

// SetRecoverable sets the recoverable flag
func (se *StructuredError) SetRecoverable(recoverable bool) *StructuredError {
	se.Recoverable = recoverable
	return se
}

// Predefined error constructors for common error scenarios

// NewTransportError creates a transport related error.
// Retry exhaustion is high severity; a single failed attempt is medium.
func NewTransportError(code, message string, err error) *StructuredError {
	severity := ErrorSeverityMedium
	if code == ErrCodeMaxRetriesExceeded {
		severity = ErrorSeverityHigh
	}

	return NewStructuredError(ErrorCategoryTransport, severity, code, message).WithCause(err)
}

// NewRemoteAPIError creates an error for a non-success remote API response
func NewRemoteAPIError(code, message string, err error) *StructuredError {
	return NewStructuredError(ErrorCategoryRemoteAPI, ErrorSeverityMedium, code, message).WithCause(err)
}

// NewCatalogError creates a tool catalog related error
func NewCatalogError(code, message string, err error) *StructuredError {
	return NewStructuredError(ErrorCategoryCatalog, ErrorSeverityLow, code, message).WithCause(err)
}

// NewMCPError creates an MCP protocol related error
func NewMCPError(code, message string, err error) *StructuredError {
	return NewStructuredError(ErrorCategoryMCP, ErrorSeverityMedium, code, message).WithCause(err)
}

// NewValidationError creates a validation related error
func NewValidationError(code, message string, err error) *StructuredError {
	return NewStructuredError(ErrorCategoryValidation, ErrorSeverityLow, code, message).WithCause(err)
}

// NewSystemError creates a system/internal error
func NewSystemError(code, message string, err error) *StructuredError {
	return NewStructuredError(ErrorCategorySystem, ErrorSeverityCritical, code, message).WithCause(err)
}

// Common error codes
const (
	// Transport error codes
	ErrCodeMaxRetriesExceeded = "MAX_RETRIES_EXCEEDED"
	ErrCodeRequestBuildFailed = "REQUEST_BUILD_FAILED"
	ErrCodeResponseReadFailed = "RESPONSE_READ_FAILED"

	// Remote API error codes
	ErrCodeRemoteAPIError = "REMOTE_API_ERROR"
	ErrCodeBadRequest     = "BAD_REQUEST"

	// Catalog error codes
	ErrCodeUnknownTool = "UNKNOWN_TOOL"

	// MCP protocol error codes
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeMethodNotFound = "METHOD_NOT_FOUND"
	ErrCodeInvalidParams  = "INVALID_PARAMS"

	// Validation error codes
	ErrCodeMissingArgument = "MISSING_ARGUMENT"

	// System error codes
	ErrCodeInitializationFailed = "INITIALIZATION_FAILED"
	ErrCodeShutdownFailed       = "SHUTDOWN_FAILED"
	ErrCodeCircuitBreakerOpen   = "CIRCUIT_BREAKER_OPEN"
)
