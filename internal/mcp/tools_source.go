package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerSourceTools() {
	s.mcp.AddTool(mcp.NewTool("list_scan_sources",
		mcp.WithDescription("List available scan source types with their configuration schemas and whether their rows carry record keys"),
	), s.handleListScanSources)

	s.mcp.AddTool(mcp.NewTool("discover_source_schema",
		mcp.WithDescription("Introspect a source and return its column schema"),
		mcp.WithString("sourceType", mcp.Description("Source type"), mcp.Required()),
		mcp.WithString("sourceConfigJSON", mcp.Description("Source configuration as JSON"), mcp.Required()),
	), s.handleDiscoverSourceSchema)
}

func (s *Server) handleListScanSources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.scans.ListSources())
}

func (s *Server) handleDiscoverSourceSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sourceType := req.GetString("sourceType", "")
	sourceConfigStr := req.GetString("sourceConfigJSON", "")
	if sourceType == "" || sourceConfigStr == "" {
		return nil, fmt.Errorf("sourceType and sourceConfigJSON are required")
	}

	schema, err := s.scans.DiscoverSchema(ctx, sourceType, sourceConfigStr)
	if err != nil {
		return nil, fmt.Errorf("discover schema: %w", err)
	}
	return jsonResult(schema)
}
