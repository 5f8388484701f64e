package server

import (
	"testing"
	"time"

	"mcp-x402-gateway/internal/models"
	"mcp-x402-gateway/pkg/config"
)

func newTestServer(baseURL string) *MCPServer {
	cfg := config.Default()
	cfg.LogLevel = "ERROR"
	cfg.MaxAttempts = 1
	cfg.BaseDelay = time.Millisecond
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return NewMCPServer(cfg)
}

func TestHandleInitialize(t *testing.T) {
	server := newTestServer("")

	message := &models.MCPMessage{
		JSONRPC: "2.0",
		ID:      "init-1",
		Method:  "initialize",
	}

	response := server.handleMessage(message)
	if response == nil {
		t.Fatal("handleMessage() returned nil for initialize")
	}
	if response.Error != nil {
		t.Fatalf("Unexpected error: %+v", response.Error)
	}

	result, ok := response.Result.(models.MCPInitializeResult)
	if !ok {
		t.Fatalf("Expected MCPInitializeResult, got %T", response.Result)
	}

	if result.ProtocolVersion != "2024-11-05" {
		t.Errorf("Expected protocol version 2024-11-05, got %s", result.ProtocolVersion)
	}
	if result.ServerInfo.Name != ServerName {
		t.Errorf("Expected server name %s, got %s", ServerName, result.ServerInfo.Name)
	}
	if result.Capabilities.Tools == nil {
		t.Error("Expected tools capability advertised")
	}
}

func TestHandleInitializedNotification(t *testing.T) {
	server := newTestServer("")

	response := server.handleMessage(&models.MCPMessage{
		JSONRPC: "2.0",
		Method:  "notifications/initialized",
	})

	if response != nil {
		t.Errorf("Notifications must not produce a response, got %+v", response)
	}
	if !server.initialized {
		t.Error("Expected server marked initialized")
	}
}

func TestHandleUnknownMethod(t *testing.T) {
	server := newTestServer("")

	response := server.handleMessage(&models.MCPMessage{
		JSONRPC: "2.0",
		ID:      "test-unknown",
		Method:  "unknown/method",
	})

	if response == nil {
		t.Fatal("handleMessage() returned nil for unknown method")
	}
	if response.Error == nil {
		t.Fatal("Expected error for unknown method")
	}
	if response.Error.Code != -32601 {
		t.Errorf("Expected error code -32601 (Method not found), got %d", response.Error.Code)
	}
	if response.Error.Message != "Method not found" {
		t.Errorf("Expected error message 'Method not found', got '%s'", response.Error.Message)
	}
}

func TestHandlePerformanceMetrics(t *testing.T) {
	server := newTestServer("")

	response := server.handleMessage(&models.MCPMessage{
		JSONRPC: "2.0",
		ID:      "perf-1",
		Method:  "server/performance",
	})

	if response == nil || response.Error != nil {
		t.Fatalf("Expected metrics result, got %+v", response)
	}

	metrics, ok := response.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected metrics map, got %T", response.Result)
	}

	for _, key := range []string{"server_info", "router_metrics", "circuit_breakers", "overall_health", "memory_stats", "goroutines"} {
		if _, ok := metrics[key]; !ok {
			t.Errorf("Metrics missing %q", key)
		}
	}
	if metrics["overall_health"] != "NONE" {
		t.Errorf("Expected NONE overall health on a fresh server, got %v", metrics["overall_health"])
	}
}

func TestHandleMessagePreservesRequestID(t *testing.T) {
	server := newTestServer("")

	ids := []interface{}{"string-id", float64(7)}
	for _, id := range ids {
		response := server.handleMessage(&models.MCPMessage{
			JSONRPC: "2.0",
			ID:      id,
			Method:  "initialize",
		})
		if response.ID != id {
			t.Errorf("Expected response ID %v, got %v", id, response.ID)
		}
		if response.JSONRPC != "2.0" {
			t.Errorf("Expected jsonrpc 2.0, got %s", response.JSONRPC)
		}
	}
}
