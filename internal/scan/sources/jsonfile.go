package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"rowbridge/internal/record"
	"rowbridge/internal/scan"
)

// ── JSON File Source ────────────────────────────────────────
// Reads rows from a local JSON file. JSON documents have no natural
// per-row key, so rows are emitted without one.

type jsonFileSource struct{}

func init() { scan.RegisterSource(&jsonFileSource{}) }

func (s *jsonFileSource) Spec() scan.SourceSpec {
	return scan.SourceSpec{
		Type:  "json_file",
		Label: "JSON File",
		Keyed: false,
		ConfigFields: []scan.ConfigField{
			{Key: "filePath", Label: "File Path", Type: "file", Required: true, Help: "Absolute path to the JSON file"},
			{Key: "dataPath", Label: "Data Path", Type: "string", Required: false, Help: "Dot-separated path to the array (e.g., 'data.items'). Leave empty if root is an array."},
		},
	}
}

func (s *jsonFileSource) Discover(ctx context.Context, cfg scan.SourceConfig) (*record.Schema, error) {
	rows, err := readJSONFile(cfg)
	if err != nil {
		return nil, err
	}
	return inferSchema(rows), nil
}

func (s *jsonFileSource) Read(ctx context.Context, cfg scan.SourceConfig) (<-chan scan.Row, <-chan error) {
	out := make(chan scan.Row, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		rows, err := readJSONFile(cfg)
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

func readJSONFile(cfg scan.SourceConfig) ([]scan.Row, error) {
	filePath, _ := cfg["filePath"].(string)
	if filePath == "" {
		return nil, fmt.Errorf("filePath is required")
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	// Navigate to dataPath if specified.
	if dataPath, ok := cfg["dataPath"].(string); ok && dataPath != "" {
		parts := strings.Split(dataPath, ".")
		current := raw
		for _, part := range parts {
			if m, ok := current.(map[string]any); ok {
				current = m[part]
			} else {
				return nil, fmt.Errorf("invalid data path: %q not found", part)
			}
		}
		raw = current
	}

	return toRows(raw), nil
}
