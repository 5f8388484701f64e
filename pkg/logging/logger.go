package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"mcp-x402-gateway/pkg/errors"
)

// LogLevel represents the severity level of a log entry
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

// LogContext represents contextual information for log entries
type LogContext map[string]interface{}

// StructuredLogger provides structured logging capabilities.
// Output goes to stderr: stdout is reserved for the JSON-RPC stream.
type StructuredLogger struct {
	logger    *slog.Logger
	component string
	context   LogContext
	manager   *LoggingManager
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(component string) *StructuredLogger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Customize timestamp format
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   "timestamp",
					Value: slog.StringValue(time.Now().UTC().Format(time.RFC3339Nano)),
				}
			}
			if a.Key == slog.LevelKey {
				return slog.Attr{
					Key:   "level",
					Value: a.Value,
				}
			}
			if a.Key == slog.MessageKey {
				return slog.Attr{
					Key:   "message",
					Value: a.Value,
				}
			}
			return a
		},
	}

	handler := slog.NewJSONHandler(os.Stderr, opts)
	logger := slog.New(handler)

	return &StructuredLogger{
		logger:    logger,
		component: component,
		context:   make(LogContext),
	}
}

// WithContext adds context to the logger (returns a new logger instance)
func (sl *StructuredLogger) WithContext(key string, value interface{}) *StructuredLogger {
	newLogger := &StructuredLogger{
		logger:    sl.logger,
		component: sl.component,
		context:   make(LogContext),
		manager:   sl.manager,
	}

	for k, v := range sl.context {
		newLogger.context[k] = v
	}

	newLogger.context[key] = value
	return newLogger
}

// WithError adds error information to the logger context
func (sl *StructuredLogger) WithError(err error) *StructuredLogger {
	if err == nil {
		return sl
	}

	newLogger := sl.WithContext("error", err.Error())

	// Add structured error information if available
	if structuredErr, ok := err.(*errors.StructuredError); ok {
		newLogger = newLogger.
			WithContext("error_category", structuredErr.Category).
			WithContext("error_code", structuredErr.Code).
			WithContext("error_severity", structuredErr.Severity).
			WithContext("error_recoverable", structuredErr.IsRecoverable())

		if structuredErr.Context != nil {
			for k, v := range structuredErr.Context {
				newLogger = newLogger.WithContext(fmt.Sprintf("error_ctx_%s", k), v)
			}
		}
	}

	return newLogger
}

// buildLogAttributes creates slog attributes from context
func (sl *StructuredLogger) buildLogAttributes() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("component", sl.component),
	}

	for key, value := range sl.context {
		attrs = append(attrs, slog.Any(key, value))
	}

	return attrs
}

// shouldLog consults the owning manager's level filter when one is attached
func (sl *StructuredLogger) shouldLog(level LogLevel) bool {
	if sl.manager == nil {
		return true
	}
	return sl.manager.shouldLogLevel(level)
}

// Debug logs a debug message
func (sl *StructuredLogger) Debug(message string) {
	if !sl.shouldLog(LogLevelDebug) {
		return
	}
	sl.logger.LogAttrs(context.Background(), slog.LevelDebug, message, sl.buildLogAttributes()...)
}

// Info logs an info message
func (sl *StructuredLogger) Info(message string) {
	if !sl.shouldLog(LogLevelInfo) {
		return
	}
	sl.logger.LogAttrs(context.Background(), slog.LevelInfo, message, sl.buildLogAttributes()...)
}

// Warn logs a warning message
func (sl *StructuredLogger) Warn(message string) {
	if !sl.shouldLog(LogLevelWarn) {
		return
	}
	sl.logger.LogAttrs(context.Background(), slog.LevelWarn, message, sl.buildLogAttributes()...)
}

// Error logs an error message
func (sl *StructuredLogger) Error(message string) {
	if !sl.shouldLog(LogLevelError) {
		return
	}
	sl.logger.LogAttrs(context.Background(), slog.LevelError, message, sl.buildLogAttributes()...)
}

// LogMCPMessage logs an MCP protocol message with timing information
func (sl *StructuredLogger) LogMCPMessage(method string, requestID interface{}, duration time.Duration, success bool) {
	logger := sl.WithContext("mcp_method", method).
		WithContext("request_id", requestID).
		WithContext("duration_ms", duration.Milliseconds()).
		WithContext("success", success)

	if success {
		logger.Info("MCP message processed successfully")
	} else {
		logger.Warn("MCP message processing failed")
	}
}

// LogStartup logs application startup events
func (sl *StructuredLogger) LogStartup(event string, details map[string]interface{}) {
	logger := sl.WithContext("startup_event", event)
	for k, v := range details {
		logger = logger.WithContext(k, v)
	}
	logger.Info("Application startup event")
}

// LogShutdown logs application shutdown events
func (sl *StructuredLogger) LogShutdown(event string, details map[string]interface{}) {
	logger := sl.WithContext("shutdown_event", event)
	for k, v := range details {
		logger = logger.WithContext(k, v)
	}
	logger.Info("Application shutdown event")
}

// LogCircuitBreakerEvent logs circuit breaker state changes
func (sl *StructuredLogger) LogCircuitBreakerEvent(name string, oldState, newState errors.CircuitBreakerState) {
	sl.WithContext("circuit_breaker", name).
		WithContext("old_state", oldState.String()).
		WithContext("new_state", newState.String()).
		Warn("Circuit breaker state changed")
}

// LogDegradationEvent logs service degradation events
func (sl *StructuredLogger) LogDegradationEvent(component errors.ServiceComponent, oldLevel, newLevel errors.DegradationLevel) {
	sl.WithContext("degraded_component", string(component)).
		WithContext("old_level", oldLevel.String()).
		WithContext("new_level", newLevel.String()).
		Warn("Service degradation level changed")
}
