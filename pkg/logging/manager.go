package logging

import (
	"strings"
	"sync"
	"time"

	"mcp-x402-gateway/pkg/errors"
)

// Level represents the logging level used for filtering
type Level int

const (
	LevelDEBUG Level = iota
	LevelINFO
	LevelWARN
	LevelERROR
)

// LoggingManager manages structured logging across the application
type LoggingManager struct {
	loggers map[string]*StructuredLogger
	mutex   sync.RWMutex

	// Global context that gets added to all log entries
	globalContext LogContext

	// Statistics
	stats LoggingStats

	// Log level for filtering
	logLevel Level
}

// LoggingStats tracks logging statistics
type LoggingStats struct {
	TotalMessages    int64            `json:"totalMessages"`
	MessagesByLevel  map[string]int64 `json:"messagesByLevel"`
	MessagesByLogger map[string]int64 `json:"messagesByLogger"`
	ErrorCount       int64            `json:"errorCount"`
	LastLogTime      time.Time        `json:"lastLogTime"`
}

// NewLoggingManager creates a new logging manager
func NewLoggingManager() *LoggingManager {
	return &LoggingManager{
		loggers:       make(map[string]*StructuredLogger),
		globalContext: make(LogContext),
		stats: LoggingStats{
			MessagesByLevel:  make(map[string]int64),
			MessagesByLogger: make(map[string]int64),
		},
		logLevel: LevelINFO, // Default to INFO level
	}
}

// GetLogger gets or creates a logger for a specific component
func (lm *LoggingManager) GetLogger(component string) *StructuredLogger {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	if logger, exists := lm.loggers[component]; exists {
		return logger
	}

	logger := NewStructuredLogger(component)
	logger.manager = lm // Set reference to manager for log level checks

	for key, value := range lm.globalContext {
		logger = logger.WithContext(key, value)
	}

	lm.loggers[component] = logger
	return logger
}

// SetLogLevel sets the logging level for all loggers.
// Accepts any string and defaults to INFO for invalid levels.
func (lm *LoggingManager) SetLogLevel(level string) {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	switch strings.ToUpper(level) {
	case "DEBUG":
		lm.logLevel = LevelDEBUG
	case "INFO":
		lm.logLevel = LevelINFO
	case "WARN":
		lm.logLevel = LevelWARN
	case "ERROR":
		lm.logLevel = LevelERROR
	default:
		lm.logLevel = LevelINFO
	}
}

// GetLogLevel returns the current filtering level as a string
func (lm *LoggingManager) GetLogLevel() string {
	lm.mutex.RLock()
	defer lm.mutex.RUnlock()

	switch lm.logLevel {
	case LevelDEBUG:
		return "DEBUG"
	case LevelWARN:
		return "WARN"
	case LevelERROR:
		return "ERROR"
	default:
		return "INFO"
	}
}

// shouldLogLevel checks if a message at the given level should be logged
func (lm *LoggingManager) shouldLogLevel(level LogLevel) bool {
	lm.mutex.RLock()
	defer lm.mutex.RUnlock()

	var numeric Level
	switch level {
	case LogLevelDebug:
		numeric = LevelDEBUG
	case LogLevelInfo:
		numeric = LevelINFO
	case LogLevelWarn:
		numeric = LevelWARN
	case LogLevelError:
		numeric = LevelERROR
	}
	return numeric >= lm.logLevel
}

// SetGlobalContext sets global context that will be added to all log entries
func (lm *LoggingManager) SetGlobalContext(key string, value interface{}) {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	lm.globalContext[key] = value

	// Update existing loggers with new global context
	for component, logger := range lm.loggers {
		updatedLogger := logger.WithContext(key, value)
		lm.loggers[component] = updatedLogger
	}
}

// LogError logs an error with full context
func (lm *LoggingManager) LogError(component string, err error, message string, context map[string]interface{}) {
	logger := lm.GetLogger(component).WithError(err)

	for k, v := range context {
		logger = logger.WithContext(k, v)
	}

	logger.Error(message)
	lm.updateStats(component, "ERROR")
}

// LogMCPRequest logs MCP protocol requests with timing
func (lm *LoggingManager) LogMCPRequest(method string, requestID interface{}, duration time.Duration, success bool, errorMsg string) {
	logger := lm.GetLogger("mcp_protocol")

	if !success && errorMsg != "" {
		logger = logger.WithContext("error_message", errorMsg)
	}

	logger.LogMCPMessage(method, requestID, duration, success)

	level := "INFO"
	if !success {
		level = "WARN"
	}
	lm.updateStats("mcp_protocol", level)
}

// LogDispatchRetry logs a retry attempt against the remote API
func (lm *LoggingManager) LogDispatchRetry(url string, attempt int, delay time.Duration, cause string) {
	lm.GetLogger("dispatch").
		WithContext("url", url).
		WithContext("attempt", attempt).
		WithContext("delay_ms", delay.Milliseconds()).
		WithContext("cause", cause).
		Info("Retrying remote API call after transient failure")
	lm.updateStats("dispatch", "INFO")
}

// LogPaymentOffer logs an HTTP 402 payment offer relayed to the caller
func (lm *LoggingManager) LogPaymentOffer(tool string, amount, currency, recipient string) {
	lm.GetLogger("payment").
		WithContext("tool", tool).
		WithContext("amount", amount).
		WithContext("currency", currency).
		WithContext("recipient", recipient).
		Info("Payment required by remote API")
	lm.updateStats("payment", "INFO")
}

// LogConfigReload logs configuration hot-reload outcomes
func (lm *LoggingManager) LogConfigReload(path string, success bool, details map[string]interface{}) {
	logger := lm.GetLogger("config").
		WithContext("config_path", path).
		WithContext("success", success)

	for k, v := range details {
		logger = logger.WithContext(k, v)
	}

	if success {
		logger.Info("Configuration reloaded")
		lm.updateStats("config", "INFO")
	} else {
		logger.Warn("Configuration reload failed")
		lm.updateStats("config", "WARN")
	}
}

// LogCircuitBreakerStateChange logs circuit breaker state changes
func (lm *LoggingManager) LogCircuitBreakerStateChange(name string, oldState, newState errors.CircuitBreakerState) {
	logger := lm.GetLogger("circuit_breaker")
	logger.LogCircuitBreakerEvent(name, oldState, newState)
	lm.updateStats("circuit_breaker", "WARN")
}

// LogDegradationStateChange logs service degradation state changes
func (lm *LoggingManager) LogDegradationStateChange(component errors.ServiceComponent, oldLevel, newLevel errors.DegradationLevel) {
	logger := lm.GetLogger("degradation")
	logger.LogDegradationEvent(component, oldLevel, newLevel)
	lm.updateStats("degradation", "WARN")
}

// LogStartupSequence logs application startup sequence
func (lm *LoggingManager) LogStartupSequence(phase string, details map[string]interface{}, duration time.Duration, success bool) {
	logger := lm.GetLogger("startup")

	startupDetails := make(map[string]interface{})
	for k, v := range details {
		startupDetails[k] = v
	}
	startupDetails["duration_ms"] = duration.Milliseconds()
	startupDetails["success"] = success

	logger.LogStartup(phase, startupDetails)

	level := "INFO"
	if !success {
		level = "ERROR"
	}
	lm.updateStats("startup", level)
}

// LogShutdownSequence logs application shutdown sequence
func (lm *LoggingManager) LogShutdownSequence(phase string, details map[string]interface{}, duration time.Duration, success bool) {
	logger := lm.GetLogger("shutdown")

	shutdownDetails := make(map[string]interface{})
	for k, v := range details {
		shutdownDetails[k] = v
	}
	shutdownDetails["duration_ms"] = duration.Milliseconds()
	shutdownDetails["success"] = success

	logger.LogShutdown(phase, shutdownDetails)

	level := "INFO"
	if !success {
		level = "ERROR"
	}
	lm.updateStats("shutdown", level)
}

// updateStats updates logging statistics
func (lm *LoggingManager) updateStats(component, level string) {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	lm.stats.TotalMessages++
	lm.stats.MessagesByLevel[level]++
	lm.stats.MessagesByLogger[component]++
	lm.stats.LastLogTime = time.Now()

	if level == "ERROR" {
		lm.stats.ErrorCount++
	}
}

// GetStats returns current logging statistics
func (lm *LoggingManager) GetStats() LoggingStats {
	lm.mutex.RLock()
	defer lm.mutex.RUnlock()

	// Return a copy to avoid concurrent access issues
	stats := LoggingStats{
		TotalMessages:    lm.stats.TotalMessages,
		ErrorCount:       lm.stats.ErrorCount,
		LastLogTime:      lm.stats.LastLogTime,
		MessagesByLevel:  make(map[string]int64),
		MessagesByLogger: make(map[string]int64),
	}

	for k, v := range lm.stats.MessagesByLevel {
		stats.MessagesByLevel[k] = v
	}
	for k, v := range lm.stats.MessagesByLogger {
		stats.MessagesByLogger[k] = v
	}

	return stats
}
