// Package tools holds the static tool catalog and the router that forwards
// invocations to the remote x402 API.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"mcp-x402-gateway/internal/models"
	"mcp-x402-gateway/pkg/classify"
	"mcp-x402-gateway/pkg/config"
	"mcp-x402-gateway/pkg/dispatch"
	"mcp-x402-gateway/pkg/errors"
	"mcp-x402-gateway/pkg/logging"
)

// Router resolves tool invocations against the catalog and forwards them
// to the remote API: resolve, dispatch, classify, render. No payment or
// retry logic lives here.
type Router struct {
	catalog     Catalog
	cfg         config.Config
	dispatcher  *dispatch.Dispatcher
	breakers    *errors.CircuitBreakerManager
	degradation *errors.GracefulDegradationManager
	logging     *logging.LoggingManager
	logger      *logging.StructuredLogger
	mu          sync.RWMutex

	// Performance metrics
	stats RouterStats
}

// RouterStats tracks performance metrics for tool invocations
type RouterStats struct {
	TotalInvocations     int64
	FailedInvocations    int64
	InvocationsByName    map[string]int64
	TotalExecutionTimeMs int64
	ExecutionTimeByName  map[string]int64
	mu                   sync.RWMutex
}

// NewRouter creates a router over the given catalog
func NewRouter(catalog Catalog, cfg config.Config, dispatcher *dispatch.Dispatcher,
	breakers *errors.CircuitBreakerManager, degradation *errors.GracefulDegradationManager,
	loggingManager *logging.LoggingManager) *Router {
	return &Router{
		catalog:     catalog,
		cfg:         cfg,
		dispatcher:  dispatcher,
		breakers:    breakers,
		degradation: degradation,
		logging:     loggingManager,
		logger:      loggingManager.GetLogger("router"),
		stats: RouterStats{
			InvocationsByName:   make(map[string]int64),
			ExecutionTimeByName: make(map[string]int64),
		},
	}
}

// SetConfig swaps the active configuration; only the base URL is read
// per call
func (r *Router) SetConfig(cfg config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
}

// SetDispatcher swaps the dispatcher, used when a config reload changes
// the retry bounds
func (r *Router) SetDispatcher(dispatcher *dispatch.Dispatcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatcher = dispatcher
}

// ListTools returns all catalog entries sorted by name
func (r *Router) ListTools() []*ToolDefinition {
	names := make([]string, 0, len(r.catalog))
	for name := range r.catalog {
		names = append(names, name)
	}
	sort.Strings(names)

	definitions := make([]*ToolDefinition, 0, len(names))
	for _, name := range names {
		definitions = append(definitions, r.catalog[name])
	}
	return definitions
}

// Invoke forwards one tool call to the remote API and renders the
// classified response. An unknown tool name or a missing required argument
// raises a structured error (caller misuse, surfaced at the protocol
// level); every remote-side problem is rendered as a tool result instead.
func (r *Router) Invoke(ctx context.Context, name string, arguments map[string]interface{}) (models.MCPToolsCallResult, error) {
	startTime := time.Now()

	tool, ok := r.catalog[name]
	if !ok {
		r.recordFailure(name)
		return models.MCPToolsCallResult{}, errors.NewCatalogError(errors.ErrCodeUnknownTool,
			fmt.Sprintf("unknown tool: %s", name), nil).
			WithContext("tool_name", name)
	}

	if err := r.validateRequired(tool, arguments); err != nil {
		r.recordFailure(name)
		return models.MCPToolsCallResult{}, err
	}

	callID := uuid.NewString()
	logger := r.logger.WithContext("tool", name).WithContext("call_id", callID)
	logger.Info("Forwarding tool invocation to remote API")

	payload := r.buildPayload(tool, arguments)
	r.logArguments(logger, payload)

	body, err := json.Marshal(payload)
	if err != nil {
		r.recordFailure(name)
		return models.MCPToolsCallResult{}, errors.NewSystemError("PAYLOAD_SERIALIZATION_FAILED",
			"failed to serialize tool arguments", err).
			WithContext("tool_name", name)
	}

	r.mu.RLock()
	url := r.cfg.EndpointURL(tool.Endpoint)
	dispatcher := r.dispatcher
	r.mu.RUnlock()

	// The per-tool circuit breaker fails fast once the remote endpoint
	// keeps exhausting retries; an open breaker classifies as a
	// transport failure like any other unreachable endpoint.
	var outcome *dispatch.Outcome
	dispatchErr := r.endpointBreaker(name).Execute(func() error {
		var attemptErr error
		outcome, attemptErr = dispatcher.Dispatch(ctx, url, body)
		return attemptErr
	})
	verdict := classify.Classify(outcome, dispatchErr)

	r.observeVerdict(logger, name, verdict)
	result := classify.Render(verdict, name)

	executionTime := time.Since(startTime).Milliseconds()
	if result.IsError {
		r.recordFailure(name)
	} else {
		r.recordSuccess(name, executionTime)
	}

	return result, nil
}

// validateRequired enforces required-field presence from the catalog
// schema; nothing deeper is validated before dispatch
func (r *Router) validateRequired(tool *ToolDefinition, arguments map[string]interface{}) error {
	for _, field := range tool.RequiredFields() {
		if _, ok := arguments[field]; !ok {
			return errors.NewValidationError(errors.ErrCodeMissingArgument,
				fmt.Sprintf("missing required argument: %s", field), nil).
				WithContext("tool_name", tool.Name).
				WithContext("argument", field)
		}
	}
	return nil
}

// buildPayload copies the arguments, defaulting an absent signature to the
// empty string when the tool's schema declares that field. The arguments
// are otherwise passed through unmodified.
func (r *Router) buildPayload(tool *ToolDefinition, arguments map[string]interface{}) map[string]interface{} {
	payload := make(map[string]interface{}, len(arguments)+1)
	for k, v := range arguments {
		payload[k] = v
	}

	if tool.HasField("signature") {
		if _, ok := payload["signature"]; !ok {
			payload["signature"] = ""
		}
	}

	return payload
}

// logArguments dumps sanitized arguments at debug level
func (r *Router) logArguments(logger *logging.StructuredLogger, payload map[string]interface{}) {
	for k, v := range sanitizeArguments(payload) {
		logger = logger.WithContext(fmt.Sprintf("arg_%s", k), v)
	}
	logger.Debug("Tool arguments")
}

// observeVerdict logs the classified response and feeds degradation
// tracking for the remote API component
func (r *Router) observeVerdict(logger *logging.StructuredLogger, name string, verdict classify.Verdict) {
	logger.WithContext("status", verdict.Status).
		WithContext("verdict", verdict.Kind.String()).
		Info("Remote API response classified")

	switch verdict.Kind {
	case classify.VerdictPaymentRequired:
		offer := classify.OfferFromFields(verdict.Offer, name)
		r.logging.LogPaymentOffer(name, offer.Amount, offer.Currency, offer.Recipient)
		r.recordRemoteSuccess()
	case classify.VerdictTransportFailure:
		if r.degradation != nil {
			r.degradation.RecordError(errors.ComponentRemoteAPI,
				fmt.Errorf("transport failure: %s", verdict.Message))
		}
	default:
		r.recordRemoteSuccess()
	}
}

// endpointBreaker returns the circuit breaker guarding one tool's remote
// endpoint, creating it with state-change logging on first use
func (r *Router) endpointBreaker(name string) *errors.CircuitBreaker {
	breakerName := "tool_" + name
	if breaker, ok := r.breakers.Get(breakerName); ok {
		return breaker
	}

	breaker := r.breakers.GetOrCreate(breakerName, errors.DefaultCircuitBreakerConfig(breakerName))
	breaker.SetStateChangeCallback(func(from, to errors.CircuitBreakerState) {
		r.logging.LogCircuitBreakerStateChange(breakerName, from, to)
	})
	return breaker
}

func (r *Router) recordRemoteSuccess() {
	if r.degradation != nil {
		r.degradation.RecordSuccess(errors.ComponentRemoteAPI)
	}
}

// sanitizeArguments truncates large values (base64 documents mostly) so
// that debug logs stay readable
func sanitizeArguments(arguments map[string]interface{}) map[string]interface{} {
	const maxLogLength = 100

	sanitized := make(map[string]interface{})
	for key, value := range arguments {
		if strValue, ok := value.(string); ok && len(strValue) > maxLogLength {
			sanitized[key] = fmt.Sprintf("%s... [%d chars]", strValue[:maxLogLength], len(strValue))
		} else {
			sanitized[key] = value
		}
	}
	return sanitized
}

// GetPerformanceMetrics returns current performance metrics
func (r *Router) GetPerformanceMetrics() map[string]interface{} {
	r.stats.mu.RLock()
	defer r.stats.mu.RUnlock()

	invocationsByName := make(map[string]int64)
	for name, count := range r.stats.InvocationsByName {
		invocationsByName[name] = count
	}

	executionTimeByName := make(map[string]int64)
	for name, ms := range r.stats.ExecutionTimeByName {
		executionTimeByName[name] = ms
	}

	return map[string]interface{}{
		"total_invocations":       r.stats.TotalInvocations,
		"failed_invocations":      r.stats.FailedInvocations,
		"invocations_by_name":     invocationsByName,
		"total_execution_time_ms": r.stats.TotalExecutionTimeMs,
		"execution_time_by_name":  executionTimeByName,
	}
}

// recordSuccess records a successful tool invocation
func (r *Router) recordSuccess(toolName string, executionTimeMs int64) {
	r.stats.mu.Lock()
	defer r.stats.mu.Unlock()

	r.stats.TotalInvocations++
	r.stats.InvocationsByName[toolName]++
	r.stats.TotalExecutionTimeMs += executionTimeMs
	r.stats.ExecutionTimeByName[toolName] += executionTimeMs
}

// recordFailure records a failed tool invocation
func (r *Router) recordFailure(toolName string) {
	r.stats.mu.Lock()
	defer r.stats.mu.Unlock()

	r.stats.TotalInvocations++
	r.stats.FailedInvocations++
	r.stats.InvocationsByName[toolName]++
}
