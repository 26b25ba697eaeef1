package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rowbridge/internal/dbclient"
	"rowbridge/internal/domain"
	"rowbridge/internal/secret"
	"rowbridge/internal/storage"

	"github.com/google/uuid"
)

// ─────────────────────────────────────────────────────────────
// Connection Service — external database connections
// ─────────────────────────────────────────────────────────────

// CreateConnectionInput is the service-layer DTO for creating/updating connections.
type CreateConnectionInput struct {
	Name     string `json:"name"`
	Driver   string `json:"driver"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
	SSLMode  string `json:"sslMode"`
}

// ConnectionService manages external database connections and query
// execution. It uses a connector pool to reuse live connections.
type ConnectionService struct {
	connStore *storage.DBConnectionStore
	secrets   secret.SecretStore

	mu               sync.Mutex
	activeConnectors map[string]*connEntry
}

type connEntry struct {
	connector dbclient.Connector
	createdAt time.Time
}

// NewConnectionService creates a ConnectionService.
func NewConnectionService(
	connStore *storage.DBConnectionStore,
	secrets secret.SecretStore,
) *ConnectionService {
	return &ConnectionService{
		connStore:        connStore,
		secrets:          secrets,
		activeConnectors: make(map[string]*connEntry),
	}
}

// ── Connection CRUD ────────────────────────────────────────

func (s *ConnectionService) ListConnections() ([]domain.DatabaseConnection, error) {
	return s.connStore.ListConnections()
}

func (s *ConnectionService) GetConnection(id string) (*domain.DatabaseConnection, error) {
	return s.connStore.GetConnection(id)
}

func (s *ConnectionService) CreateConnection(input CreateConnectionInput) (*domain.DatabaseConnection, error) {
	conn := &domain.DatabaseConnection{
		ID:       uuid.New().String(),
		Name:     input.Name,
		Driver:   domain.DatabaseDriver(input.Driver),
		Host:     input.Host,
		Port:     input.Port,
		Database: input.Database,
		Username: input.Username,
		SSLMode:  input.SSLMode,
	}
	if err := s.connStore.CreateConnection(conn); err != nil {
		return nil, fmt.Errorf("create connection: %w", err)
	}
	if input.Password != "" && s.secrets != nil {
		_ = s.secrets.Set("db:"+conn.ID, []byte(input.Password))
	}
	return conn, nil
}

func (s *ConnectionService) UpdateConnection(id string, input CreateConnectionInput) error {
	conn, err := s.connStore.GetConnection(id)
	if err != nil {
		return err
	}
	conn.Name = input.Name
	conn.Driver = domain.DatabaseDriver(input.Driver)
	conn.Host = input.Host
	conn.Port = input.Port
	conn.Database = input.Database
	conn.Username = input.Username
	conn.SSLMode = input.SSLMode
	if err := s.connStore.UpdateConnection(conn); err != nil {
		return err
	}
	if input.Password != "" && s.secrets != nil {
		_ = s.secrets.Set("db:"+id, []byte(input.Password))
	}
	// Invalidate cached connector so next query re-connects with new config.
	s.mu.Lock()
	if e, ok := s.activeConnectors[id]; ok {
		_ = e.connector.Close()
		delete(s.activeConnectors, id)
	}
	s.mu.Unlock()
	return nil
}

func (s *ConnectionService) DeleteConnection(id string) error {
	s.mu.Lock()
	if e, ok := s.activeConnectors[id]; ok {
		_ = e.connector.Close()
		delete(s.activeConnectors, id)
	}
	s.mu.Unlock()
	if s.secrets != nil {
		_ = s.secrets.Delete("db:" + id)
	}
	return s.connStore.DeleteConnection(id)
}

// ── Query Execution ────────────────────────────────────────

// ExecuteQuery runs a read query and returns the first page of results.
func (s *ConnectionService) ExecuteQuery(
	ctx context.Context,
	connectionID, query string,
	fetchSize int,
) (*dbclient.QueryPage, error) {
	connector, err := s.getOrCreate(connectionID)
	if err != nil {
		return nil, err
	}
	result, err := connector.Execute(ctx, query, fetchSize)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	return result, nil
}

// FetchMoreRows fetches the next page of results for a connection.
func (s *ConnectionService) FetchMoreRows(
	ctx context.Context,
	connectionID string,
	fetchSize int,
) (*dbclient.QueryPage, error) {
	s.mu.Lock()
	entry, ok := s.activeConnectors[connectionID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no active query for connection %s", connectionID)
	}
	return entry.connector.FetchMore(ctx, fetchSize)
}

// ── Test + Introspect ──────────────────────────────────────

func (s *ConnectionService) TestConnection(ctx context.Context, id string) error {
	connector, err := s.getOrCreate(id)
	if err != nil {
		return err
	}
	return connector.TestConnection(ctx)
}

func (s *ConnectionService) Introspect(ctx context.Context, connectionID string) (*dbclient.SchemaInfo, error) {
	connector, err := s.getOrCreate(connectionID)
	if err != nil {
		return nil, err
	}
	return connector.Introspect(ctx)
}

// ── Connector Pool ─────────────────────────────────────────

func (s *ConnectionService) getOrCreate(id string) (dbclient.Connector, error) {
	s.mu.Lock()
	if e, ok := s.activeConnectors[id]; ok {
		s.mu.Unlock()
		return e.connector, nil
	}
	s.mu.Unlock()

	conn, err := s.connStore.GetConnection(id)
	if err != nil {
		return nil, fmt.Errorf("get connection %s: %w", id, err)
	}

	var password string
	if s.secrets != nil {
		if pw, err := s.secrets.Get("db:" + id); err == nil {
			password = string(pw)
		}
	}

	connector, err := dbclient.NewConnector(conn, password)
	if err != nil {
		return nil, fmt.Errorf("open db connection: %w", err)
	}

	s.mu.Lock()
	s.activeConnectors[id] = &connEntry{connector: connector, createdAt: time.Now()}
	s.mu.Unlock()
	return connector, nil
}

// Close tears down all active database connectors.
func (s *ConnectionService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.activeConnectors {
		_ = entry.connector.Close()
		delete(s.activeConnectors, id)
	}
}
