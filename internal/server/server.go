// Package server implements the MCP stdio server: the JSON-RPC message
// loop, protocol handlers, and the lifecycle around the tool router.
package server

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"mcp-x402-gateway/internal/models"
	"mcp-x402-gateway/pkg/config"
	"mcp-x402-gateway/pkg/dispatch"
	"mcp-x402-gateway/pkg/errors"
	"mcp-x402-gateway/pkg/logging"
	"mcp-x402-gateway/pkg/monitor"
	"mcp-x402-gateway/pkg/tools"
)

// ServerName identifies the gateway in MCP handshakes
const ServerName = "mcp-x402-gateway"

// ServerVersion is the advertised gateway version
const ServerVersion = "1.0.0"

// MCPServer represents the main MCP server
type MCPServer struct {
	serverInfo   models.MCPServerInfo
	capabilities models.MCPCapabilities
	initialized  bool

	// Gateway components
	cfg     config.Config
	catalog tools.Catalog
	router  *tools.Router
	monitor *monitor.ConfigMonitor

	// Error handling and degradation
	circuitBreakerManager *errors.CircuitBreakerManager
	degradationManager    *errors.GracefulDegradationManager

	// Logging
	loggingManager *logging.LoggingManager
	logger         *logging.StructuredLogger

	// Coordination channels
	reloadChan   chan monitor.ConfigEvent
	shutdownChan chan struct{}

	// Synchronization
	mu sync.RWMutex
}

// NewMCPServer creates a new MCP server instance around the given
// configuration
func NewMCPServer(cfg config.Config) *MCPServer {
	// Initialize logging system. Output goes to stderr; stdout carries
	// only the JSON-RPC stream.
	loggingManager := logging.NewLoggingManager()
	loggingManager.SetLogLevel(cfg.LogLevel)
	loggingManager.SetGlobalContext("service", ServerName)
	loggingManager.SetGlobalContext("version", ServerVersion)
	logger := loggingManager.GetLogger("server")

	// Initialize error handling components
	circuitBreakerManager := errors.NewCircuitBreakerManager()
	degradationManager := errors.NewGracefulDegradationManager()

	// Register default degradation rules
	for _, rule := range errors.CreateDefaultRules() {
		degradationManager.RegisterComponent(rule)
	}

	// Initialize the tool catalog and the invocation path
	catalog := tools.NewCatalog()
	dispatcher := dispatch.NewDispatcher(cfg.MaxAttempts, cfg.BaseDelay, loggingManager)
	router := tools.NewRouter(catalog, cfg, dispatcher, circuitBreakerManager,
		degradationManager, loggingManager)

	// Config file watching is optional; the server runs fine on the
	// startup configuration when no file is configured or the watcher
	// cannot be created
	var configMonitor *monitor.ConfigMonitor
	if cfg.ConfigFile != "" {
		var err error
		configMonitor, err = monitor.NewConfigMonitor(cfg.ConfigFile, loggingManager.GetLogger("monitor"))
		if err != nil {
			loggingManager.LogError("server", err, "Failed to create config file monitor", map[string]interface{}{
				"component":   "config_monitor",
				"config_file": cfg.ConfigFile,
			})
			configMonitor = nil
			degradationManager.RecordError(errors.ComponentConfigReload, err)
		}
	}

	server := &MCPServer{
		serverInfo: models.MCPServerInfo{
			Name:    ServerName,
			Version: ServerVersion,
		},
		capabilities: models.MCPCapabilities{
			Tools: &models.MCPToolCapabilities{
				ListChanged: false,
			},
		},
		initialized: false,

		// Gateway components
		cfg:     cfg,
		catalog: catalog,
		router:  router,
		monitor: configMonitor,

		// Error handling
		circuitBreakerManager: circuitBreakerManager,
		degradationManager:    degradationManager,

		// Logging
		loggingManager: loggingManager,
		logger:         logger,

		// Coordination channels
		reloadChan:   make(chan monitor.ConfigEvent, 16),
		shutdownChan: make(chan struct{}),
	}

	// Set up degradation state change callback
	degradationManager.SetStateChangeCallback(server.onDegradationStateChange)

	return server
}

// Start begins the MCP server operation
func (s *MCPServer) Start(ctx context.Context) error {
	startTime := time.Now()

	s.loggingManager.LogStartupSequence("server_start", map[string]interface{}{
		"phase":    "initialization",
		"base_url": s.cfg.BaseURL,
	}, 0, true)

	// Start config hot-reload coordination
	monitorStart := time.Now()
	if err := s.startConfigWatch(ctx); err != nil {
		s.loggingManager.LogStartupSequence("config_watch", map[string]interface{}{
			"error": err.Error(),
		}, time.Since(monitorStart), false)
		s.logger.WithError(err).Warn("Failed to start config file watching")
		s.degradationManager.RecordError(errors.ComponentConfigReload, err)
	} else {
		s.loggingManager.LogStartupSequence("config_watch", map[string]interface{}{
			"enabled": s.monitor != nil,
		}, time.Since(monitorStart), true)
	}

	s.loggingManager.LogStartupSequence("server_ready", map[string]interface{}{
		"total_startup_time_ms": time.Since(startTime).Milliseconds(),
		"tool_count":            len(s.catalog),
	}, time.Since(startTime), true)

	s.logger.Info("MCP x402 gateway started successfully")

	// Start JSON-RPC message processing loop
	return s.processMessages(ctx, os.Stdin, os.Stdout)
}

// Shutdown gracefully shuts down the MCP server
func (s *MCPServer) Shutdown(ctx context.Context) error {
	shutdownStart := time.Now()

	s.loggingManager.LogShutdownSequence("shutdown_start", map[string]interface{}{}, 0, true)

	// Signal shutdown to background goroutines
	close(s.shutdownChan)

	// Stop config file watching
	monitorShutdownStart := time.Now()
	if s.monitor != nil {
		if err := s.monitor.Stop(); err != nil {
			s.loggingManager.LogShutdownSequence("monitor_stop", map[string]interface{}{
				"error": err.Error(),
			}, time.Since(monitorShutdownStart), false)
			s.logger.WithError(err).Error("Error stopping config monitor")
		} else {
			s.loggingManager.LogShutdownSequence("monitor_stop", map[string]interface{}{},
				time.Since(monitorShutdownStart), true)
		}
	}

	s.loggingManager.LogShutdownSequence("shutdown_complete", map[string]interface{}{
		"total_shutdown_time_ms": time.Since(shutdownStart).Milliseconds(),
	}, time.Since(shutdownStart), true)

	s.logger.Info("MCP x402 gateway shutdown completed")

	return nil
}

// startConfigWatch wires the config monitor to the reload coordinator
func (s *MCPServer) startConfigWatch(ctx context.Context) error {
	if s.monitor == nil {
		return nil
	}

	if err := s.monitor.Watch(func(event monitor.ConfigEvent) {
		select {
		case s.reloadChan <- event:
		default:
			// Reload already pending, additional events add nothing
		}
	}); err != nil {
		return err
	}

	go s.configReloadCoordinator(ctx)
	return nil
}

// configReloadCoordinator applies configuration changes signalled by the
// file monitor
func (s *MCPServer) configReloadCoordinator(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownChan:
			return
		case event := <-s.reloadChan:
			if event.Type == "delete" {
				// Keep running on the last good configuration
				s.logger.WithContext("config_path", event.Path).
					Warn("Configuration file removed, keeping current configuration")
				continue
			}
			s.reloadConfig()
		}
	}
}

// reloadConfig re-reads the configuration file and applies the result to
// the live components. A failed reload leaves the running configuration
// untouched.
func (s *MCPServer) reloadConfig() {
	s.mu.Lock()
	defer s.mu.Unlock()

	newCfg, err := s.cfg.Reload()
	if err != nil {
		s.loggingManager.LogConfigReload(s.cfg.ConfigFile, false, map[string]interface{}{
			"error": err.Error(),
		})
		s.degradationManager.RecordError(errors.ComponentConfigReload, err)
		return
	}

	oldCfg := s.cfg
	s.cfg = newCfg

	s.loggingManager.SetLogLevel(newCfg.LogLevel)
	s.router.SetConfig(newCfg)

	if newCfg.MaxAttempts != oldCfg.MaxAttempts || newCfg.BaseDelay != oldCfg.BaseDelay {
		s.router.SetDispatcher(dispatch.NewDispatcher(newCfg.MaxAttempts, newCfg.BaseDelay, s.loggingManager))
	}

	s.loggingManager.LogConfigReload(newCfg.ConfigFile, true, map[string]interface{}{
		"base_url":     newCfg.BaseURL,
		"log_level":    newCfg.LogLevel,
		"max_attempts": newCfg.MaxAttempts,
	})
	s.degradationManager.RecordSuccess(errors.ComponentConfigReload)
}

// processMessages handles the JSON-RPC message processing loop
func (s *MCPServer) processMessages(ctx context.Context, reader io.Reader, writer io.Writer) error {
	decoder := json.NewDecoder(reader)
	encoder := json.NewEncoder(writer)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			var message models.MCPMessage
			if err := decoder.Decode(&message); err != nil {
				if err == io.EOF {
					return nil
				}
				s.logger.WithError(err).Warn("Error decoding message")
				continue
			}

			response := s.handleMessage(&message)
			if response != nil {
				if err := encoder.Encode(response); err != nil {
					s.logger.WithError(err).Error("Error encoding response")
				}
			}
		}
	}
}

// HandleMessage processes individual MCP messages (exported for testing)
func (s *MCPServer) HandleMessage(message *models.MCPMessage) *models.MCPMessage {
	return s.handleMessage(message)
}

// handleMessage processes individual MCP messages
func (s *MCPServer) handleMessage(message *models.MCPMessage) *models.MCPMessage {
	startTime := time.Now()
	var response *models.MCPMessage
	var success bool = true
	var errorMsg string

	defer func() {
		duration := time.Since(startTime)
		s.loggingManager.LogMCPRequest(message.Method, message.ID, duration, success, errorMsg)
	}()

	switch message.Method {
	case "initialize":
		response = s.handleInitialize(message)
	case "notifications/initialized":
		response = s.handleInitialized(message)
	case "tools/list":
		response = s.handleToolsList(message)
	case "tools/call":
		response = s.handleToolsCall(message)
	case "server/performance":
		response = s.handlePerformanceMetrics(message)
	default:
		success = false
		errorMsg = "Method not found"
		response = s.createErrorResponse(message.ID, -32601, "Method not found")
	}

	// Check if response contains an error
	if response != nil && response.Error != nil {
		success = false
		errorMsg = response.Error.Message
	}

	return response
}

// onDegradationStateChange handles degradation state changes
func (s *MCPServer) onDegradationStateChange(component errors.ServiceComponent, oldLevel, newLevel errors.DegradationLevel) {
	s.loggingManager.LogDegradationStateChange(component, oldLevel, newLevel)

	switch component {
	case errors.ComponentRemoteAPI:
		if newLevel != errors.DegradationNone {
			s.logger.WithContext("action", "failing_fast").
				Warn("Remote API degraded - tool calls will report transport failures")
		} else {
			s.logger.WithContext("action", "resume_forwarding").
				Info("Remote API recovered - resuming normal forwarding")
		}
	case errors.ComponentConfigReload:
		if newLevel != errors.DegradationNone {
			s.logger.WithContext("action", "keep_last_good_config").
				Warn("Config reload degraded - keeping last good configuration")
		}
	}
}
