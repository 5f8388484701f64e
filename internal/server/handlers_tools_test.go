package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mcp-x402-gateway/internal/models"
)

func TestHandleToolsList(t *testing.T) {
	server := newTestServer("")

	response := server.handleMessage(&models.MCPMessage{
		JSONRPC: "2.0",
		ID:      "list-1",
		Method:  "tools/list",
	})

	if response == nil || response.Error != nil {
		t.Fatalf("Expected tools list, got %+v", response)
	}

	result, ok := response.Result.(models.MCPToolsListResult)
	if !ok {
		t.Fatalf("Expected MCPToolsListResult, got %T", response.Result)
	}

	expected := []string{"analyze_contract", "calculate_salary", "generate_pdf", "scan_invoice"}
	if len(result.Tools) != len(expected) {
		t.Fatalf("Expected %d tools, got %d", len(expected), len(result.Tools))
	}
	for i, name := range expected {
		tool := result.Tools[i]
		if tool.Name != name {
			t.Errorf("Expected tool %q at position %d, got %q", name, i, tool.Name)
		}
		if tool.InputSchema == nil {
			t.Errorf("Tool %s has no input schema", name)
		}
		if tool.InputSchema["type"] != "object" {
			t.Errorf("Tool %s schema is not an object", name)
		}
	}
}

func TestHandleToolsCallMissingName(t *testing.T) {
	server := newTestServer("")

	response := server.handleMessage(&models.MCPMessage{
		JSONRPC: "2.0",
		ID:      "call-1",
		Method:  "tools/call",
		Params:  map[string]interface{}{},
	})

	if response.Error == nil {
		t.Fatal("Expected protocol error for missing tool name")
	}
	if response.Error.Code != -32602 {
		t.Errorf("Expected -32602, got %d", response.Error.Code)
	}
}

func TestHandleToolsCallUnknownTool(t *testing.T) {
	server := newTestServer("")

	response := server.handleMessage(&models.MCPMessage{
		JSONRPC: "2.0",
		ID:      "call-2",
		Method:  "tools/call",
		Params: map[string]interface{}{
			"name":      "no_such_tool",
			"arguments": map[string]interface{}{},
		},
	})

	if response.Error == nil {
		t.Fatal("Expected protocol error for unknown tool")
	}
	if response.Error.Code != -32602 {
		t.Errorf("Expected -32602 for catalog miss, got %d", response.Error.Code)
	}
	if !strings.Contains(response.Error.Message, "unknown tool") {
		t.Errorf("Expected unknown-tool message, got %q", response.Error.Message)
	}
}

func TestHandleToolsCallMissingArgument(t *testing.T) {
	server := newTestServer("")

	response := server.handleMessage(&models.MCPMessage{
		JSONRPC: "2.0",
		ID:      "call-3",
		Method:  "tools/call",
		Params: map[string]interface{}{
			"name": "generate_pdf",
			"arguments": map[string]interface{}{
				"title": "Doc",
				// content missing
			},
		},
	})

	if response.Error == nil {
		t.Fatal("Expected protocol error for missing argument")
	}
	if response.Error.Code != -32602 {
		t.Errorf("Expected -32602 for validation failure, got %d", response.Error.Code)
	}
	if !strings.Contains(response.Error.Message, "content") {
		t.Errorf("Expected missing field named, got %q", response.Error.Message)
	}
}

func TestHandleToolsCallSuccess(t *testing.T) {
	var captured map[string]interface{}
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data":{"lineItems":[],"total":100}}`))
	}))
	defer remote.Close()

	server := newTestServer(remote.URL)

	response := server.handleMessage(&models.MCPMessage{
		JSONRPC: "2.0",
		ID:      "call-4",
		Method:  "tools/call",
		Params: map[string]interface{}{
			"name": "scan_invoice",
			"arguments": map[string]interface{}{
				"invoiceBase64": "aGVsbG8=",
				"mimeType":      "application/pdf",
			},
		},
	})

	if response.Error != nil {
		t.Fatalf("Unexpected error: %+v", response.Error)
	}

	result, ok := response.Result.(models.MCPToolsCallResult)
	if !ok {
		t.Fatalf("Expected MCPToolsCallResult, got %T", response.Result)
	}
	if result.IsError {
		t.Error("Success must not set the error flag")
	}
	if !strings.Contains(result.Content[0].Text, "total") {
		t.Errorf("Expected remote data rendered, got %q", result.Content[0].Text)
	}

	if captured["signature"] != "" {
		t.Errorf("Expected signature defaulted to empty string, got %v", captured["signature"])
	}
	if captured["mimeType"] != "application/pdf" {
		t.Errorf("Expected arguments forwarded, got %v", captured)
	}
}

func TestHandleToolsCallPaymentRequired(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":"payment required","details":{"amount":0.001,"currency":"SOL","address":"ABC","memo":"inv-1"}}`))
	}))
	defer remote.Close()

	server := newTestServer(remote.URL)

	response := server.handleMessage(&models.MCPMessage{
		JSONRPC: "2.0",
		ID:      "call-5",
		Method:  "tools/call",
		Params: map[string]interface{}{
			"name": "scan_invoice",
			"arguments": map[string]interface{}{
				"invoiceBase64": "aGVsbG8=",
				"mimeType":      "application/pdf",
			},
		},
	})

	if response.Error != nil {
		t.Fatalf("Payment signal must not be a protocol error: %+v", response.Error)
	}

	result, ok := response.Result.(models.MCPToolsCallResult)
	if !ok {
		t.Fatalf("Expected MCPToolsCallResult, got %T", response.Result)
	}
	if !result.IsError {
		t.Error("Payment-required result must set the error flag")
	}

	text := result.Content[0].Text
	for _, fragment := range []string{"0.001 SOL", "ABC", "inv-1", "signature"} {
		if !strings.Contains(text, fragment) {
			t.Errorf("Payment instructions missing %q:\n%s", fragment, text)
		}
	}
}

func TestHandleToolsCallNilArguments(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"missing document"}`))
	}))
	defer remote.Close()

	server := newTestServer(remote.URL)

	// Arguments omitted entirely: validation catches the required fields
	response := server.handleMessage(&models.MCPMessage{
		JSONRPC: "2.0",
		ID:      "call-6",
		Method:  "tools/call",
		Params: map[string]interface{}{
			"name": "scan_invoice",
		},
	})

	if response.Error == nil {
		t.Fatal("Expected validation error without arguments")
	}
	if response.Error.Code != -32602 {
		t.Errorf("Expected -32602, got %d", response.Error.Code)
	}
}
