package sources_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"rowbridge/internal/keys"
	"rowbridge/internal/record"
	"rowbridge/internal/scan"
)

// ─────────────────────────────────────────────────────────────
// CSV file source tests
// ─────────────────────────────────────────────────────────────

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp csv: %v", err)
	}
	return path
}

func TestCSVSource_Discover(t *testing.T) {
	path := writeTempCSV(t, "id,name,score,active\n1,alice,9.5,true\n2,bob,7,false\n")

	src, err := scan.GetSource("csv_file")
	if err != nil {
		t.Fatalf("csv_file source not registered: %v", err)
	}

	schema, err := src.Discover(context.Background(), scan.SourceConfig{"filePath": path})
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	want := []record.Column{
		{Name: "id", Type: record.TypeInt8},
		{Name: "name", Type: record.TypeText},
		{Name: "score", Type: record.TypeFloat8},
		{Name: "active", Type: record.TypeBool},
	}
	if len(schema.Columns) != len(want) {
		t.Fatalf("expected %d columns, got %d", len(want), len(schema.Columns))
	}
	for i, col := range want {
		if schema.Columns[i] != col {
			t.Errorf("column %d: got %+v, want %+v", i, schema.Columns[i], col)
		}
	}
}

func TestCSVSource_ReadKeysRowsByOffset(t *testing.T) {
	path := writeTempCSV(t, "id,name\n10,alice\n20,bob\n30,carol\n")

	src, _ := scan.GetSource("csv_file")
	rowCh, errCh := src.Read(context.Background(), scan.SourceConfig{"filePath": path})

	var rows []scan.Row
	for r := range rowCh {
		rows = append(rows, r)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("read error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	for i, r := range rows {
		w, ok := r.Key.Wrapper()
		if !ok {
			t.Fatalf("row %d: expected a key", i)
		}
		if w.Kind() != keys.KindInt64 {
			t.Errorf("row %d: expected int64 key, got %v", i, w.Kind())
		}
		if w.Int64() != int64(i) {
			t.Errorf("row %d: expected key %d, got %d", i, i, w.Int64())
		}
	}
	if rows[0].Values["id"] != int64(10) {
		t.Errorf("expected parsed int64 10, got %v (%T)", rows[0].Values["id"], rows[0].Values["id"])
	}
	if rows[1].Values["name"] != "bob" {
		t.Errorf("expected bob, got %v", rows[1].Values["name"])
	}
}

func TestCSVSource_NoHeaderGeneratesColumnNames(t *testing.T) {
	path := writeTempCSV(t, "1,alice\n2,bob\n")

	src, _ := scan.GetSource("csv_file")
	schema, err := src.Discover(context.Background(), scan.SourceConfig{
		"filePath":  path,
		"hasHeader": "false",
	})
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if schema.Columns[0].Name != "col_1" || schema.Columns[1].Name != "col_2" {
		t.Errorf("expected generated names, got %v", schema.ColumnNames())
	}
}

func TestCSVSource_CustomDelimiter(t *testing.T) {
	path := writeTempCSV(t, "id;name\n1;alice\n")

	src, _ := scan.GetSource("csv_file")
	rowCh, errCh := src.Read(context.Background(), scan.SourceConfig{
		"filePath":  path,
		"delimiter": ";",
	})

	var rows []scan.Row
	for r := range rowCh {
		rows = append(rows, r)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("read error: %v", err)
	}
	if len(rows) != 1 || rows[0].Values["name"] != "alice" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestCSVSource_MissingFile(t *testing.T) {
	src, _ := scan.GetSource("csv_file")
	if _, err := src.Discover(context.Background(), scan.SourceConfig{"filePath": "/nonexistent/x.csv"}); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := src.Discover(context.Background(), scan.SourceConfig{}); err == nil {
		t.Fatal("expected error for missing filePath")
	}
}

func TestCSVSource_MixedIntFloatWidensToFloat(t *testing.T) {
	path := writeTempCSV(t, "v\n1\n2.5\n3\n")

	src, _ := scan.GetSource("csv_file")
	schema, err := src.Discover(context.Background(), scan.SourceConfig{"filePath": path})
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if schema.Columns[0].Type != record.TypeFloat8 {
		t.Errorf("expected float8, got %v", schema.Columns[0].Type)
	}
}
