package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"rowbridge/internal/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server is the MCP server for rowbridge.
// It exposes tools so AI agents can manage scan jobs, sources, and
// database connections.
type Server struct {
	mcp     *server.MCPServer
	emitter EventEmitter

	// Services (injected at startup)
	scans       *service.ScanService
	connections *service.ConnectionService
}

// EventEmitter mirrors service.EventEmitter for the server surface.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// Deps holds all dependencies passed to the MCP server.
type Deps struct {
	Emitter     EventEmitter
	Scans       *service.ScanService
	Connections *service.ConnectionService
}

// New creates and configures a new MCP server with all tools.
func New(ctx context.Context, deps Deps) *Server {
	s := &Server{
		emitter:     deps.Emitter,
		scans:       deps.Scans,
		connections: deps.Connections,
	}

	s.mcp = server.NewMCPServer(
		"rowbridge-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerScanTools()
	s.registerSourceTools()
	s.registerConnectionTools()

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	log.Println("[MCP] Starting stdio server...")
	return server.ServeStdio(s.mcp)
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

func boolPtr(b bool) *bool { return &b }
