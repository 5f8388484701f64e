package errors

import (
	"fmt"
	"sync"
	"time"
)

// DegradationLevel represents the level of service degradation
type DegradationLevel int

const (
	// DegradationNone - full service functionality
	DegradationNone DegradationLevel = iota
	// DegradationMinor - minor features disabled
	DegradationMinor
	// DegradationMajor - major features disabled, core functionality only
	DegradationMajor
	// DegradationCritical - minimal functionality, emergency mode
	DegradationCritical
)

// String returns the string representation of the degradation level
func (d DegradationLevel) String() string {
	switch d {
	case DegradationNone:
		return "NONE"
	case DegradationMinor:
		return "MINOR"
	case DegradationMajor:
		return "MAJOR"
	case DegradationCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ServiceComponent represents a component that can be degraded
type ServiceComponent string

const (
	// ComponentRemoteAPI tracks the health of the upstream x402 API
	ComponentRemoteAPI ServiceComponent = "remote_api"
	// ComponentConfigReload tracks configuration hot-reload health
	ComponentConfigReload ServiceComponent = "config_reload"
)

// DegradationRule defines when and how to degrade a service component
type DegradationRule struct {
	Component        ServiceComponent
	ErrorThreshold   int
	TimeWindow       time.Duration
	DegradationLevel DegradationLevel
}

// ComponentStatus tracks the status of a service component
type ComponentStatus struct {
	Component        ServiceComponent `json:"component"`
	DegradationLevel DegradationLevel `json:"degradationLevel"`
	ErrorCount       int              `json:"errorCount"`
	LastError        time.Time        `json:"lastError"`
	LastRecovery     time.Time        `json:"lastRecovery"`
	IsHealthy        bool             `json:"isHealthy"`
	Message          string           `json:"message"`
}

// GracefulDegradationManager tracks error patterns per component and flags
// components whose recent error rate crossed the configured threshold
type GracefulDegradationManager struct {
	components    map[ServiceComponent]*ComponentStatus
	rules         map[ServiceComponent]*DegradationRule
	errorHistory  map[ServiceComponent][]time.Time
	mutex         sync.RWMutex
	onStateChange func(component ServiceComponent, oldLevel, newLevel DegradationLevel)
}

// NewGracefulDegradationManager creates a new graceful degradation manager
func NewGracefulDegradationManager() *GracefulDegradationManager {
	return &GracefulDegradationManager{
		components:   make(map[ServiceComponent]*ComponentStatus),
		rules:        make(map[ServiceComponent]*DegradationRule),
		errorHistory: make(map[ServiceComponent][]time.Time),
	}
}

// RegisterComponent registers a component with degradation rules
func (gdm *GracefulDegradationManager) RegisterComponent(rule DegradationRule) {
	gdm.mutex.Lock()
	defer gdm.mutex.Unlock()

	gdm.rules[rule.Component] = &rule
	gdm.components[rule.Component] = &ComponentStatus{
		Component:        rule.Component,
		DegradationLevel: DegradationNone,
		IsHealthy:        true,
		Message:          "Component operating normally",
	}
	gdm.errorHistory[rule.Component] = make([]time.Time, 0)
}

// SetStateChangeCallback sets a callback for when component degradation levels change
func (gdm *GracefulDegradationManager) SetStateChangeCallback(callback func(ServiceComponent, DegradationLevel, DegradationLevel)) {
	gdm.mutex.Lock()
	defer gdm.mutex.Unlock()
	gdm.onStateChange = callback
}

// RecordError records an error for a component and potentially triggers degradation
func (gdm *GracefulDegradationManager) RecordError(component ServiceComponent, err error) {
	gdm.mutex.Lock()
	defer gdm.mutex.Unlock()

	status, exists := gdm.components[component]
	if !exists {
		return // Component not registered
	}

	rule := gdm.rules[component]
	now := time.Now()

	gdm.errorHistory[component] = append(gdm.errorHistory[component], now)
	gdm.cleanErrorHistory(component, rule.TimeWindow)

	status.ErrorCount = len(gdm.errorHistory[component])
	status.LastError = now

	oldLevel := status.DegradationLevel
	if status.ErrorCount >= rule.ErrorThreshold {
		status.DegradationLevel = rule.DegradationLevel
		status.IsHealthy = rule.DegradationLevel == DegradationNone
		status.Message = fmt.Sprintf("Component degraded to %s due to repeated errors", rule.DegradationLevel.String())
	}

	if gdm.onStateChange != nil && oldLevel != status.DegradationLevel {
		go gdm.onStateChange(component, oldLevel, status.DegradationLevel)
	}
}

// RecordSuccess records a successful operation for a component. A degraded
// component recovers on its first success.
func (gdm *GracefulDegradationManager) RecordSuccess(component ServiceComponent) {
	gdm.mutex.Lock()
	defer gdm.mutex.Unlock()

	status, exists := gdm.components[component]
	if !exists {
		return
	}

	if status.DegradationLevel == DegradationNone {
		return
	}

	oldLevel := status.DegradationLevel
	status.DegradationLevel = DegradationNone
	status.IsHealthy = true
	status.LastRecovery = time.Now()
	status.Message = "Component recovered to normal operation"
	gdm.errorHistory[component] = make([]time.Time, 0)
	status.ErrorCount = 0

	if gdm.onStateChange != nil {
		go gdm.onStateChange(component, oldLevel, DegradationNone)
	}
}

// cleanErrorHistory removes errors outside the time window
func (gdm *GracefulDegradationManager) cleanErrorHistory(component ServiceComponent, window time.Duration) {
	cutoff := time.Now().Add(-window)
	history := gdm.errorHistory[component]

	var cleaned []time.Time
	for _, errorTime := range history {
		if errorTime.After(cutoff) {
			cleaned = append(cleaned, errorTime)
		}
	}

	gdm.errorHistory[component] = cleaned
}

// GetComponentStatus returns the current status of a component
func (gdm *GracefulDegradationManager) GetComponentStatus(component ServiceComponent) (*ComponentStatus, bool) {
	gdm.mutex.RLock()
	defer gdm.mutex.RUnlock()

	status, exists := gdm.components[component]
	if !exists {
		return nil, false
	}

	// Return a copy to avoid concurrent access issues
	statusCopy := *status
	return &statusCopy, true
}

// GetAllComponentStatuses returns the status of all registered components
func (gdm *GracefulDegradationManager) GetAllComponentStatuses() map[ServiceComponent]*ComponentStatus {
	gdm.mutex.RLock()
	defer gdm.mutex.RUnlock()

	result := make(map[ServiceComponent]*ComponentStatus)
	for component, status := range gdm.components {
		statusCopy := *status
		result[component] = &statusCopy
	}
	return result
}

// IsComponentHealthy returns true if the component is operating normally
func (gdm *GracefulDegradationManager) IsComponentHealthy(component ServiceComponent) bool {
	gdm.mutex.RLock()
	defer gdm.mutex.RUnlock()

	status, exists := gdm.components[component]
	return exists && status.IsHealthy
}

// GetOverallHealth returns the overall system health based on component statuses
func (gdm *GracefulDegradationManager) GetOverallHealth() DegradationLevel {
	gdm.mutex.RLock()
	defer gdm.mutex.RUnlock()

	maxDegradation := DegradationNone
	for _, status := range gdm.components {
		if status.DegradationLevel > maxDegradation {
			maxDegradation = status.DegradationLevel
		}
	}
	return maxDegradation
}

// CreateDefaultRules creates default degradation rules for the gateway components
func CreateDefaultRules() []DegradationRule {
	return []DegradationRule{
		{
			// Repeated retry exhaustion against the remote API
			Component:        ComponentRemoteAPI,
			ErrorThreshold:   3,
			TimeWindow:       5 * time.Minute,
			DegradationLevel: DegradationMajor,
		},
		{
			// Config file reload failures; the last good config stays active
			Component:        ComponentConfigReload,
			ErrorThreshold:   3,
			TimeWindow:       10 * time.Minute,
			DegradationLevel: DegradationMinor,
		},
	}
}
