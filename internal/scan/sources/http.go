package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rowbridge/internal/keys"
	"rowbridge/internal/record"
	"rowbridge/internal/scan"
)

// ── HTTP Source ─────────────────────────────────────────────
// Fetches rows from a REST API endpoint. API responses carry no stable
// per-row key, so rows are emitted without one.

type httpSource struct{}

func init() { scan.RegisterSource(&httpSource{}) }

func (s *httpSource) Spec() scan.SourceSpec {
	return scan.SourceSpec{
		Type:  "http",
		Label: "HTTP API",
		Keyed: false,
		ConfigFields: []scan.ConfigField{
			{Key: "url", Label: "URL", Type: "string", Required: true, Help: "Full URL to fetch (e.g., https://api.example.com/items)"},
			{Key: "method", Label: "Method", Type: "select", Required: false, Options: []string{"GET", "POST"}, Default: "GET"},
			{Key: "headers", Label: "Headers", Type: "textarea", Required: false, Help: "JSON object of headers (e.g., {\"Authorization\": \"Bearer xxx\"})"},
			{Key: "body", Label: "Body", Type: "textarea", Required: false, Help: "Request body (for POST)"},
			{Key: "dataPath", Label: "Data Path", Type: "string", Required: false, Help: "Dot-separated path to the array in the response (e.g., 'data.items')"},
		},
	}
}

func (s *httpSource) Discover(ctx context.Context, cfg scan.SourceConfig) (*record.Schema, error) {
	// Fetch a sample to discover the schema.
	rows, err := fetchHTTP(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return inferSchema(rows), nil
}

func (s *httpSource) Read(ctx context.Context, cfg scan.SourceConfig) (<-chan scan.Row, <-chan error) {
	out := make(chan scan.Row, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		rows, err := fetchHTTP(ctx, cfg)
		if err != nil {
			errCh <- err
			return
		}
		for _, row := range rows {
			select {
			case out <- row:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, errCh
}

func fetchHTTP(ctx context.Context, cfg scan.SourceConfig) ([]scan.Row, error) {
	url, _ := cfg["url"].(string)
	if url == "" {
		return nil, fmt.Errorf("url is required")
	}

	method, _ := cfg["method"].(string)
	if method == "" {
		method = "GET"
	}

	var bodyReader io.Reader
	if body, ok := cfg["body"].(string); ok && body != "" {
		bodyReader = strings.NewReader(body)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	// Parse headers.
	if headersStr, ok := cfg["headers"].(string); ok && headersStr != "" {
		var headers map[string]string
		if err := json.Unmarshal([]byte(headersStr), &headers); err == nil {
			for k, v := range headers {
				req.Header.Set(k, v)
			}
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	// Parse JSON response.
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	// Navigate to dataPath if specified.
	dataPath, _ := cfg["dataPath"].(string)
	if dataPath != "" {
		raw = navigatePath(raw, dataPath)
	}

	return toRows(raw), nil
}

// navigatePath walks a dot-separated path into nested maps.
func navigatePath(obj any, path string) any {
	parts := strings.Split(path, ".")
	current := obj
	for _, part := range parts {
		switch v := current.(type) {
		case map[string]any:
			current = v[part]
		default:
			return nil
		}
	}
	return current
}

// toRows converts a raw JSON value into a slice of keyless rows.
func toRows(raw any) []scan.Row {
	switch v := raw.(type) {
	case []any:
		rows := make([]scan.Row, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				rows = append(rows, scan.Row{Key: keys.NotSupported(), Values: flattenMap(m)})
			}
		}
		return rows
	case map[string]any:
		// Single object → single row.
		return []scan.Row{{Key: keys.NotSupported(), Values: flattenMap(v)}}
	default:
		return nil
	}
}

// flattenMap keeps only scalar values (string, number, bool) from a map.
// Nested objects/arrays are serialized as JSON strings.
func flattenMap(m map[string]any) map[string]any {
	flat := make(map[string]any, len(m))
	for k, v := range m {
		switch v.(type) {
		case string, float64, bool, nil:
			flat[k] = v
		default:
			// Serialize complex values.
			b, _ := json.Marshal(v)
			flat[k] = string(b)
		}
	}
	return flat
}

// inferSchema infers a column schema from a slice of rows.
func inferSchema(rows []scan.Row) *record.Schema {
	colSet := make(map[string]record.Type)
	var order []string
	for _, row := range rows {
		for k, v := range row.Values {
			if _, exists := colSet[k]; !exists {
				colSet[k] = inferType(v)
				order = append(order, k)
			}
		}
	}

	schema := &record.Schema{}
	for _, name := range order {
		schema.Columns = append(schema.Columns, record.Column{Name: name, Type: colSet[name]})
	}
	return schema
}

func inferType(v any) record.Type {
	switch v.(type) {
	case float64, float32, int, int64:
		return record.TypeFloat8
	case bool:
		return record.TypeBool
	default:
		return record.TypeText
	}
}
