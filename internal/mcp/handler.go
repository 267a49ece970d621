package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Yrrrrrf/crud-forge/internal/catalog"
)

// --------------------------------------------------------------------------
// Parameter extraction helpers
// --------------------------------------------------------------------------

// requireString extracts a required string argument from the tool request.
func requireString(request mcp.CallToolRequest, key string) (string, error) {
	val, err := request.RequireString(key)
	if err != nil {
		return "", fmt.Errorf("missing required parameter %q", key)
	}
	return val, nil
}

// optionalString extracts an optional string argument from the tool request.
func optionalString(request mcp.CallToolRequest, key string) string {
	return request.GetString(key, "")
}

// getObjectArg extracts a map[string]interface{} argument from the tool request.
// Returns nil if the key is not present or not a map.
func getObjectArg(request mcp.CallToolRequest, key string) map[string]interface{} {
	args := request.GetArguments()
	if args == nil {
		return nil
	}
	raw, ok := args[key]
	if !ok {
		return nil
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil
	}
	return m
}

// --------------------------------------------------------------------------
// Service resolution
// --------------------------------------------------------------------------

// serviceFor resolves the "service" argument. When only one service is
// configured the argument may be omitted.
func (s *MCPServer) serviceFor(request mcp.CallToolRequest) (Service, error) {
	name := optionalString(request, "service")
	if name == "" {
		if len(s.services) == 1 {
			for _, svc := range s.services {
				return svc, nil
			}
		}
		return Service{}, fmt.Errorf("missing required parameter %q. Available services: %v",
			"service", s.serviceNames())
	}
	svc, ok := s.services[name]
	if !ok {
		return Service{}, fmt.Errorf("service %q not found. Available services: %v",
			name, s.serviceNames())
	}
	return svc, nil
}

// snapshotFor resolves the service and its published snapshot.
func (s *MCPServer) snapshotFor(request mcp.CallToolRequest) (Service, *catalog.Snapshot, error) {
	svc, err := s.serviceFor(request)
	if err != nil {
		return Service{}, nil, err
	}
	snap, err := svc.Cache.Snapshot()
	if err != nil {
		return Service{}, nil, fmt.Errorf("service %q: %w", svc.Name, err)
	}
	return svc, snap, nil
}

// --------------------------------------------------------------------------
// Response builders
// --------------------------------------------------------------------------

// successJSON marshals data to JSON and returns it as a tool result.
func successJSON(data interface{}) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// toolError returns a tool-level error result. Errors returned this way are
// visible to the LLM so it can self-correct; they do NOT terminate the MCP
// session.
func toolError(format string, args ...interface{}) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(fmt.Sprintf(format, args...)), nil
}
