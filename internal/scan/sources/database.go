package sources

import (
	"context"
	"fmt"

	"rowbridge/internal/keys"
	"rowbridge/internal/record"
	"rowbridge/internal/recordkey"
	"rowbridge/internal/scan"
)

// ── Database Source ────────────────────────────────────────
// Reads rows from an external database connection.
// Reuses the dbclient.Connector infrastructure via a provider interface.

// QueryPage mirrors dbclient.QueryPage to avoid circular imports.
type QueryPage struct {
	Columns    []string
	Rows       [][]any
	KeyColumns []string
	HasMore    bool
}

// ConnectorProvider abstracts how we get connector access.
// The service layer implements this and injects it at startup.
type ConnectorProvider interface {
	ExecuteScanQuery(ctx context.Context, connID, query string, fetchSize int) (*QueryPage, error)
	FetchMoreScanRows(ctx context.Context, connID string, fetchSize int) (*QueryPage, error)
}

var connectorProvider ConnectorProvider

// SetConnectorProvider is called at startup.
func SetConnectorProvider(p ConnectorProvider) { connectorProvider = p }

type databaseSource struct{}

func init() { scan.RegisterSource(&databaseSource{}) }

func (s *databaseSource) Spec() scan.SourceSpec {
	return scan.SourceSpec{
		Type:  "database",
		Label: "Database Query",
		Keyed: true,
		ConfigFields: []scan.ConfigField{
			{Key: "connectionId", Label: "Connection", Type: "string", Required: true, Help: "ID of a saved database connection"},
			{Key: "query", Label: "Query", Type: "textarea", Required: true, Help: "Read-only SQL query (or find/aggregate for Mongo)"},
		},
	}
}

func resolveDBConfig(cfg scan.SourceConfig) (string, string, error) {
	connID, _ := cfg["connectionId"].(string)
	query, _ := cfg["query"].(string)
	if connID == "" || query == "" {
		return "", "", fmt.Errorf("connectionId and query are required")
	}
	return connID, query, nil
}

func (s *databaseSource) Discover(ctx context.Context, cfg scan.SourceConfig) (*record.Schema, error) {
	connID, query, err := resolveDBConfig(cfg)
	if err != nil {
		return nil, err
	}
	if connectorProvider == nil {
		return nil, fmt.Errorf("connector provider not initialized")
	}

	page, err := connectorProvider.ExecuteScanQuery(ctx, connID, query, 1)
	if err != nil {
		return nil, err
	}

	schema := &record.Schema{Columns: make([]record.Column, len(page.Columns))}
	for i, col := range page.Columns {
		schema.Columns[i] = record.Column{Name: col, Type: record.TypeText}
	}
	return schema, nil
}

func (s *databaseSource) Read(ctx context.Context, cfg scan.SourceConfig) (<-chan scan.Row, <-chan error) {
	out := make(chan scan.Row, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		connID, query, err := resolveDBConfig(cfg)
		if err != nil {
			errCh <- err
			return
		}
		if connectorProvider == nil {
			errCh <- fmt.Errorf("connector provider not initialized")
			return
		}

		page, err := connectorProvider.ExecuteScanQuery(ctx, connID, query, 500)
		if err != nil {
			errCh <- fmt.Errorf("execute: %w", err)
			return
		}

		// One adapter per read: the key kind is fixed by the first row
		// and reused for the rest of the result set.
		adapter := recordkey.NewAdapter()

		if err := emitPage(ctx, out, page, adapter); err != nil {
			if ctx.Err() == nil {
				errCh <- err
			}
			return
		}

		for page.HasMore {
			page, err = connectorProvider.FetchMoreScanRows(ctx, connID, 500)
			if err != nil {
				errCh <- fmt.Errorf("fetch more: %w", err)
				return
			}
			if err := emitPage(ctx, out, page, adapter); err != nil {
				if ctx.Err() == nil {
					errCh <- err
				}
				return
			}
		}
	}()

	return out, errCh
}

func emitPage(ctx context.Context, out chan<- scan.Row, page *QueryPage, adapter *recordkey.Adapter) error {
	keyIdx := keyColumnIndex(page)

	for _, row := range page.Rows {
		values := make(map[string]any, len(page.Columns))
		for i, col := range page.Columns {
			if i < len(row) {
				values[col] = normalizeDBValue(row[i])
			}
		}

		key := keys.NotSupported()
		if keyIdx >= 0 && keyIdx < len(row) {
			w, err := adapter.ConvertKeyValue(normalizeDBValue(row[keyIdx]))
			if err != nil {
				return fmt.Errorf("key column %q: %w", page.Columns[keyIdx], err)
			}
			key = keys.Of(w)
		}

		select {
		case out <- scan.Row{Key: key, Values: values}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// keyColumnIndex locates the single key column in the result set. Rows
// are keyed only when the query exposes exactly one primary key column;
// composite keys and keyless results produce unkeyed rows.
func keyColumnIndex(page *QueryPage) int {
	if len(page.KeyColumns) != 1 {
		return -1
	}
	for i, col := range page.Columns {
		if col == page.KeyColumns[0] {
			return i
		}
	}
	return -1
}

// normalizeDBValue converts driver-specific representations to the
// common value set. Drivers without column type info return text as
// raw bytes.
func normalizeDBValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
