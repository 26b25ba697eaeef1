package service

// ─────────────────────────────────────────────────────────────
// Source Adapter Bridge
// ─────────────────────────────────────────────────────────────
//
// The scan sources package uses the ConnectorProvider interface to
// reach database infrastructure without creating circular deps. This
// file provides the concrete adapter backed by the ConnectionService.

import (
	"context"

	"rowbridge/internal/scan/sources"
)

// WireSourceAdapters injects the source-layer adapters at startup.
func WireSourceAdapters(connections *ConnectionService) {
	sources.SetConnectorProvider(&connectionProvider{connections: connections})
}

type connectionProvider struct {
	connections *ConnectionService
}

func (p *connectionProvider) ExecuteScanQuery(ctx context.Context, connID, query string, fetchSize int) (*sources.QueryPage, error) {
	result, err := p.connections.ExecuteQuery(ctx, connID, query, fetchSize)
	if err != nil {
		return nil, err
	}
	return &sources.QueryPage{
		Columns:    result.Columns,
		Rows:       result.Rows,
		KeyColumns: result.KeyColumns,
		HasMore:    result.HasMore,
	}, nil
}

func (p *connectionProvider) FetchMoreScanRows(ctx context.Context, connID string, fetchSize int) (*sources.QueryPage, error) {
	result, err := p.connections.FetchMoreRows(ctx, connID, fetchSize)
	if err != nil {
		return nil, err
	}
	return &sources.QueryPage{
		Columns:    result.Columns,
		Rows:       result.Rows,
		KeyColumns: result.KeyColumns,
		HasMore:    result.HasMore,
	}, nil
}
