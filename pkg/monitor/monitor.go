// Package monitor watches the gateway configuration file and notifies the
// server when it changes, debouncing editor write bursts.
package monitor

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"mcp-x402-gateway/pkg/logging"
)

// ConfigEvent describes a change to the watched configuration file
type ConfigEvent struct {
	Type string // "modify", "create" or "delete"
	Path string
}

// ConfigMonitor watches a single configuration file for changes
type ConfigMonitor struct {
	watcher       *fsnotify.Watcher
	configPath    string
	debounceDelay time.Duration
	callbacks     []func(ConfigEvent)
	logger        *logging.StructuredLogger
}

// NewConfigMonitor creates a monitor for the given configuration file
func NewConfigMonitor(configPath string, logger *logging.StructuredLogger) (*ConfigMonitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}

	return &ConfigMonitor{
		watcher:       watcher,
		configPath:    filepath.Clean(configPath),
		debounceDelay: 500 * time.Millisecond, // 500ms debounce
		callbacks:     make([]func(ConfigEvent), 0),
		logger:        logger,
	}, nil
}

// Watch starts watching the config file's directory for changes. The
// directory is watched rather than the file itself so that atomic
// rename-replace saves keep being observed.
func (cm *ConfigMonitor) Watch(callback func(ConfigEvent)) error {
	cm.callbacks = append(cm.callbacks, callback)

	dir := filepath.Dir(cm.configPath)
	if err := cm.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	go cm.monitorEvents()

	cm.logger.WithContext("config_path", cm.configPath).
		Info("Started watching configuration file")
	return nil
}

// Stop stops the file system monitoring
func (cm *ConfigMonitor) Stop() error {
	if cm.watcher != nil {
		return cm.watcher.Close()
	}
	return nil
}

// monitorEvents processes file system events with debouncing
func (cm *ConfigMonitor) monitorEvents() {
	debounceTimer := make(map[string]*time.Timer)

	for {
		select {
		case event, ok := <-cm.watcher.Events:
			if !ok {
				return
			}

			// Only the watched config file is interesting
			if filepath.Clean(event.Name) != cm.configPath {
				continue
			}

			// Debounce bursts of events for the same file
			if timer, exists := debounceTimer[event.Name]; exists {
				timer.Stop()
			}

			debounceTimer[event.Name] = time.AfterFunc(cm.debounceDelay, func() {
				cm.processEvent(event)
				delete(debounceTimer, event.Name)
			})

		case err, ok := <-cm.watcher.Errors:
			if !ok {
				return
			}
			cm.logger.WithError(err).Warn("Config watcher error")
		}
	}
}

// processEvent converts fsnotify events to ConfigEvent and calls callbacks
func (cm *ConfigMonitor) processEvent(event fsnotify.Event) {
	var eventType string
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		eventType = "create"
	case event.Op&fsnotify.Write == fsnotify.Write:
		eventType = "modify"
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		eventType = "delete"
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		eventType = "delete"
	default:
		return // Ignore other event types
	}

	configEvent := ConfigEvent{
		Type: eventType,
		Path: event.Name,
	}

	for _, callback := range cm.callbacks {
		callback(configEvent)
	}

	cm.logger.WithContext("event_type", eventType).
		WithContext("path", event.Name).
		Info("Configuration file event detected")
}
