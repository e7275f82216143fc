package toolkit

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPAdapter mirrors a Manager's registered tools onto an MCP server
// so the same tool surface is reachable by any MCP-speaking front end
// (the CLI, out of scope here, is one such front end).
type MCPAdapter struct {
	manager *Manager
	server  *server.MCPServer
}

// NewMCPAdapter builds an MCP server exposing every tool currently
// registered on manager.
func NewMCPAdapter(manager *Manager, name, version string) *MCPAdapter {
	a := &MCPAdapter{manager: manager}
	mcpServer := server.NewMCPServer(name, version, server.WithToolCapabilities(true))

	for _, view := range manager.ListTools(FilterOptions{}) {
		mcpServer.AddTool(toMCPTool(view), a.handlerFor(view.Tool.Name))
	}

	a.server = mcpServer
	return a
}

// Server returns the underlying mcp-go server for transport wiring.
func (a *MCPAdapter) Server() *server.MCPServer {
	return a.server
}

func toMCPTool(view ToolView) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(toolDescription(view))}
	for name, prop := range view.Tool.Schema.Properties {
		opts = append(opts, propertyOption(name, prop, contains(view.Tool.Schema.Required, name)))
	}
	return mcp.NewTool(view.DisplayName, opts...)
}

func toolDescription(view ToolView) string {
	if view.Tool.ReadOnly {
		return string(view.Tool.Capability) + " (read-only)"
	}
	return string(view.Tool.Capability)
}

func propertyOption(name string, prop Property, required bool) mcp.ToolOption {
	var opts []mcp.PropertyOption
	if prop.Description != "" {
		opts = append(opts, mcp.Description(prop.Description))
	}
	if required {
		opts = append(opts, mcp.Required())
	}
	if len(prop.Enum) > 0 {
		opts = append(opts, mcp.Enum(prop.Enum...))
	}

	switch prop.Kind {
	case KindNumber:
		return mcp.WithNumber(name, opts...)
	case KindBoolean:
		return mcp.WithBoolean(name, opts...)
	case KindObject:
		return mcp.WithObject(name, opts...)
	case KindArray:
		return mcp.WithArray(name, opts...)
	default:
		return mcp.WithString(name, opts...)
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func (a *MCPAdapter) handlerFor(toolName string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		input := request.GetArguments()
		result := a.manager.Execute(ctx, toolName, input)
		if !result.Success {
			return mcp.NewToolResultError(result.ErrorDetails.Message), nil
		}
		return mcp.NewToolResultStructuredOnly(result.Output), nil
	}
}
