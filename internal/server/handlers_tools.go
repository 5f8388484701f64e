package server

import (
	"context"
	"encoding/json"

	"mcp-x402-gateway/internal/models"
	"mcp-x402-gateway/pkg/errors"
)

// handleToolsList handles the tools/list method
func (s *MCPServer) handleToolsList(message *models.MCPMessage) *models.MCPMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	toolDefinitions := s.router.ListTools()

	// Convert to MCP protocol format
	mcpTools := make([]models.MCPTool, 0, len(toolDefinitions))
	for _, toolDef := range toolDefinitions {
		mcpTools = append(mcpTools, models.MCPTool{
			Name:        toolDef.Name,
			Description: toolDef.Description,
			InputSchema: toolDef.InputSchema(),
		})
	}

	result := models.MCPToolsListResult{
		Tools: mcpTools,
	}

	return &models.MCPMessage{
		JSONRPC: "2.0",
		ID:      message.ID,
		Result:  result,
	}
}

// handleToolsCall handles the tools/call method. Remote-side failures come
// back as tool results with the error flag set; only caller misuse (bad
// params, unknown tool, missing arguments) becomes a protocol error.
func (s *MCPServer) handleToolsCall(message *models.MCPMessage) *models.MCPMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Parse request parameters
	var params models.MCPToolsCallParams
	if message.Params != nil {
		paramsBytes, err := json.Marshal(message.Params)
		if err != nil {
			return s.createErrorResponse(message.ID, -32602, "Invalid parameters")
		}
		if err := json.Unmarshal(paramsBytes, &params); err != nil {
			return s.createErrorResponse(message.ID, -32602, "Invalid parameters format")
		}
	}

	// Validate tool name parameter
	if params.Name == "" {
		structuredErr := errors.NewValidationError(errors.ErrCodeInvalidParams,
			"Missing required parameter: name", nil)
		return s.createStructuredErrorResponse(message.ID, structuredErr)
	}

	if params.Arguments == nil {
		params.Arguments = make(map[string]interface{})
	}

	result, err := s.router.Invoke(context.Background(), params.Name, params.Arguments)
	if err != nil {
		return s.handleToolInvocationError(message.ID, params.Name, err)
	}

	return &models.MCPMessage{
		JSONRPC: "2.0",
		ID:      message.ID,
		Result:  result,
	}
}

// handleToolInvocationError creates the error response for a failed
// invocation
func (s *MCPServer) handleToolInvocationError(id interface{}, toolName string, err error) *models.MCPMessage {
	if structuredErr, ok := err.(*errors.StructuredError); ok {
		return s.createStructuredErrorResponse(id, structuredErr)
	}

	structuredErr := errors.NewSystemError("TOOL_INVOCATION_FAILED",
		"Tool invocation failed", err).WithContext("tool_name", toolName)
	return s.createStructuredErrorResponse(id, structuredErr)
}
