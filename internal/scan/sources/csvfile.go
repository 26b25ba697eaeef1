package sources

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"rowbridge/internal/keys"
	"rowbridge/internal/record"
	"rowbridge/internal/scan"
)

// ── CSV File Source ─────────────────────────────────────────
// Reads rows from a local CSV file. Each row is keyed by its zero-based
// offset within the file, encoded as an int64 key.

type csvFileSource struct{}

func init() { scan.RegisterSource(&csvFileSource{}) }

func (s *csvFileSource) Spec() scan.SourceSpec {
	return scan.SourceSpec{
		Type:  "csv_file",
		Label: "CSV File",
		Keyed: true,
		ConfigFields: []scan.ConfigField{
			{Key: "filePath", Label: "File Path", Type: "file", Required: true, Help: "Absolute path to the CSV file"},
			{Key: "delimiter", Label: "Delimiter", Type: "string", Required: false, Default: ",", Help: "Column delimiter (default: comma)"},
			{Key: "hasHeader", Label: "Has Header", Type: "select", Required: false, Options: []string{"true", "false"}, Default: "true", Help: "Whether the first row contains column names"},
		},
	}
}

func (s *csvFileSource) Discover(ctx context.Context, cfg scan.SourceConfig) (*record.Schema, error) {
	headers, rows, err := readCSVFile(cfg)
	if err != nil {
		return nil, err
	}

	schema := &record.Schema{Columns: make([]record.Column, len(headers))}
	for i, h := range headers {
		schema.Columns[i] = record.Column{Name: h, Type: inferCSVColumnType(rows, i)}
	}
	return schema, nil
}

func (s *csvFileSource) Read(ctx context.Context, cfg scan.SourceConfig) (<-chan scan.Row, <-chan error) {
	out := make(chan scan.Row, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		headers, rows, err := readCSVFile(cfg)
		if err != nil {
			errCh <- err
			return
		}

		for offset, row := range rows {
			values := make(map[string]any, len(headers))
			for j, h := range headers {
				if j < len(row) {
					values[h] = inferCSVValue(row[j])
				}
			}
			select {
			case out <- scan.Row{Key: keys.Of(keys.Int64(int64(offset))), Values: values}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, errCh
}

func readCSVFile(cfg scan.SourceConfig) ([]string, [][]string, error) {
	filePath, _ := cfg["filePath"].(string)
	if filePath == "" {
		return nil, nil, fmt.Errorf("filePath is required")
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)

	// Configure delimiter.
	if delim, ok := cfg["delimiter"].(string); ok && len(delim) > 0 {
		reader.Comma = rune(delim[0])
	}
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("empty csv file")
	}

	// Check if first row is header.
	hasHeader := true
	if h, ok := cfg["hasHeader"].(string); ok {
		hasHeader = strings.ToLower(h) != "false"
	}

	var headers []string
	var rows [][]string
	if hasHeader {
		headers = records[0]
		rows = records[1:]
	} else {
		// Generate column names: col_1, col_2, ...
		headers = make([]string, len(records[0]))
		for i := range headers {
			headers[i] = fmt.Sprintf("col_%d", i+1)
		}
		rows = records
	}

	return headers, rows, nil
}

// inferCSVColumnType scans a column's values and picks the narrowest
// output type that fits all of them. Empty cells are skipped.
func inferCSVColumnType(rows [][]string, col int) record.Type {
	t := record.Type(0)
	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		s := strings.TrimSpace(row[col])
		if s == "" {
			continue
		}
		vt := inferCSVCellType(s)
		switch {
		case t == 0:
			t = vt
		case t == vt:
		case t == record.TypeInt8 && vt == record.TypeFloat8,
			t == record.TypeFloat8 && vt == record.TypeInt8:
			t = record.TypeFloat8
		default:
			return record.TypeText
		}
	}
	if t == 0 {
		return record.TypeText
	}
	return t
}

func inferCSVCellType(s string) record.Type {
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return record.TypeInt8
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return record.TypeFloat8
	}
	switch strings.ToLower(s) {
	case "true", "false", "yes", "no":
		return record.TypeBool
	}
	return record.TypeText
}

// inferCSVValue tries to parse a string as a number or bool.
func inferCSVValue(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}

	switch strings.ToLower(s) {
	case "true", "yes":
		return true
	case "false", "no":
		return false
	}

	return s
}
