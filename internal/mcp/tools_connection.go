package mcpserver

import (
	"context"
	"fmt"

	"rowbridge/internal/service"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerConnectionTools() {
	s.mcp.AddTool(mcp.NewTool("create_db_connection",
		mcp.WithDescription("Create a database connection for the database scan source (mysql, postgres, mongodb, sqlite)"),
		mcp.WithString("name", mcp.Description("Connection name"), mcp.Required()),
		mcp.WithString("driver", mcp.Description("Driver: mysql | postgres | mongodb | sqlite"), mcp.Required()),
		mcp.WithString("host", mcp.Description("Hostname, connection string, or file path (sqlite)"), mcp.Required()),
		mcp.WithString("port", mcp.Description("Port (0 for sqlite or driver default)")),
		mcp.WithString("database", mcp.Description("Database name")),
		mcp.WithString("username", mcp.Description("Username")),
		mcp.WithString("password", mcp.Description("Password (stored in the secret store, never in SQLite)")),
		mcp.WithString("sslMode", mcp.Description("SSL mode (postgres: disable|require; mysql: require for TLS)")),
	), s.handleCreateDBConnection)

	s.mcp.AddTool(mcp.NewTool("list_db_connections",
		mcp.WithDescription("List saved database connections"),
	), s.handleListDBConnections)

	s.mcp.AddTool(mcp.NewTool("delete_db_connection",
		mcp.WithDescription("Delete a database connection and its stored secret"),
		mcp.WithString("connectionId", mcp.Description("Connection ID"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteDBConnection)

	s.mcp.AddTool(mcp.NewTool("test_db_connection",
		mcp.WithDescription("Test connectivity of a saved database connection"),
		mcp.WithString("connectionId", mcp.Description("Connection ID"), mcp.Required()),
	), s.handleTestDBConnection)

	s.mcp.AddTool(mcp.NewTool("introspect_db_connection",
		mcp.WithDescription("Return the tables/collections and columns of a connected database"),
		mcp.WithString("connectionId", mcp.Description("Connection ID"), mcp.Required()),
	), s.handleIntrospectDBConnection)
}

func (s *Server) handleCreateDBConnection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	driver := req.GetString("driver", "")
	host := req.GetString("host", "")
	if name == "" || driver == "" || host == "" {
		return nil, fmt.Errorf("name, driver, and host are required")
	}

	port := 0
	if p := req.GetString("port", ""); p != "" {
		fmt.Sscanf(p, "%d", &port)
	}

	conn, err := s.connections.CreateConnection(service.CreateConnectionInput{
		Name:     name,
		Driver:   driver,
		Host:     host,
		Port:     port,
		Database: req.GetString("database", ""),
		Username: req.GetString("username", ""),
		Password: req.GetString("password", ""),
		SSLMode:  req.GetString("sslMode", ""),
	})
	if err != nil {
		return nil, fmt.Errorf("create connection: %w", err)
	}
	return jsonResult(conn)
}

func (s *Server) handleListDBConnections(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conns, err := s.connections.ListConnections()
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	return jsonResult(conns)
}

func (s *Server) handleDeleteDBConnection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("connectionId", "")
	if id == "" {
		return nil, fmt.Errorf("connectionId is required")
	}
	if err := s.connections.DeleteConnection(id); err != nil {
		return nil, fmt.Errorf("delete connection: %w", err)
	}
	return textResult("deleted " + id), nil
}

func (s *Server) handleTestDBConnection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("connectionId", "")
	if id == "" {
		return nil, fmt.Errorf("connectionId is required")
	}
	if err := s.connections.TestConnection(ctx, id); err != nil {
		return textResult(fmt.Sprintf("connection failed: %v", err)), nil
	}
	return textResult("connection ok"), nil
}

func (s *Server) handleIntrospectDBConnection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("connectionId", "")
	if id == "" {
		return nil, fmt.Errorf("connectionId is required")
	}
	info, err := s.connections.Introspect(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("introspect: %w", err)
	}
	return jsonResult(info)
}
