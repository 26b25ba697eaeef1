package scan_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"rowbridge/internal/keys"
	"rowbridge/internal/record"
	"rowbridge/internal/scan"
)

// ─────────────────────────────────────────────────────────────
// Engine tests — fake source + in-memory destination
// ─────────────────────────────────────────────────────────────

// fakeSource replays a fixed set of rows.
type fakeSource struct {
	typ    string
	keyed  bool
	schema *record.Schema
	rows   []scan.Row
}

func (f *fakeSource) Spec() scan.SourceSpec {
	return scan.SourceSpec{Type: f.typ, Label: "Fake", Keyed: f.keyed}
}

func (f *fakeSource) Discover(_ context.Context, _ scan.SourceConfig) (*record.Schema, error) {
	// Copy so engine mutation of Recordkey does not leak between tests.
	s := *f.schema
	return &s, nil
}

func (f *fakeSource) Read(ctx context.Context, _ scan.SourceConfig) (<-chan scan.Row, <-chan error) {
	rowCh := make(chan scan.Row)
	errCh := make(chan error, 1)
	go func() {
		defer close(rowCh)
		defer close(errCh)
		for _, r := range f.rows {
			select {
			case rowCh <- r:
			case <-ctx.Done():
				return
			}
		}
	}()
	return rowCh, errCh
}

// memStore is an in-memory ResultStore.
type memStore struct {
	rows    []scan.ResultRow
	schemas map[string]string
	deleted []string
}

func newMemStore() *memStore {
	return &memStore{schemas: make(map[string]string)}
}

func (m *memStore) DeleteRowsByJob(jobID string) error {
	m.deleted = append(m.deleted, jobID)
	kept := m.rows[:0]
	for _, r := range m.rows {
		if r.JobID != jobID {
			kept = append(kept, r)
		}
	}
	m.rows = kept
	return nil
}

func (m *memStore) CreateRow(row *scan.ResultRow) error {
	m.rows = append(m.rows, *row)
	return nil
}

func (m *memStore) SaveSchema(jobID, schemaJSON string) error {
	m.schemas[jobID] = schemaJSON
	return nil
}

func idSchema() *record.Schema {
	return &record.Schema{
		Columns: []record.Column{
			{Name: "id", Type: record.TypeInt8},
			{Name: "name", Type: record.TypeText},
		},
	}
}

func TestRunScan_Success(t *testing.T) {
	scan.RegisterSource(&fakeSource{
		typ:    "fake-ok",
		keyed:  true,
		schema: idSchema(),
		rows: []scan.Row{
			{Key: keys.Of(keys.Int64(1)), Values: map[string]any{"id": int64(1), "name": "a"}},
			{Key: keys.Of(keys.Int64(2)), Values: map[string]any{"id": int64(2), "name": "b"}},
		},
	})

	store := newMemStore()
	engine := &scan.Engine{Dest: &scan.ResultWriter{Store: store}}

	job := &scan.Job{
		ID:            "job-1",
		SourceType:    "fake-ok",
		RecordkeyType: "int8",
		Mode:          scan.ScanReplace,
	}
	result, err := engine.RunScan(context.Background(), job)
	if err != nil {
		t.Fatalf("RunScan failed: %v", err)
	}
	if result.Status != "success" {
		t.Errorf("expected success, got %q", result.Status)
	}
	if result.RowsRead != 2 || result.RowsWritten != 2 {
		t.Errorf("expected 2 read / 2 written, got %d/%d", result.RowsRead, result.RowsWritten)
	}
	if len(store.rows) != 2 {
		t.Fatalf("expected 2 stored rows, got %d", len(store.rows))
	}
	// Recordkey rides along as the last field of each row.
	var fields []record.Field
	if err := json.Unmarshal([]byte(store.rows[0].FieldsJSON), &fields); err != nil {
		t.Fatalf("parse stored row: %v", err)
	}
	if len(fields) != 3 {
		t.Fatalf("expected 2 columns + key, got %d fields", len(fields))
	}
	if fields[2].Type != record.TypeInt8 {
		t.Errorf("expected trailing int8 key field, got type %v", fields[2].Type)
	}
	if store.schemas["job-1"] == "" {
		t.Error("expected schema to be saved")
	}
}

func TestRunScan_NoRecordkeyRequested(t *testing.T) {
	scan.RegisterSource(&fakeSource{
		typ:    "fake-plain",
		keyed:  false,
		schema: idSchema(),
		rows: []scan.Row{
			{Key: keys.NotSupported(), Values: map[string]any{"id": int64(1), "name": "a"}},
		},
	})

	store := newMemStore()
	engine := &scan.Engine{Dest: &scan.ResultWriter{Store: store}}

	job := &scan.Job{ID: "job-2", SourceType: "fake-plain", Mode: scan.ScanReplace}
	result, err := engine.RunScan(context.Background(), job)
	if err != nil {
		t.Fatalf("RunScan failed: %v", err)
	}
	if result.RowsWritten != 1 {
		t.Fatalf("expected 1 row written, got %d", result.RowsWritten)
	}
	// Without a requested key column, keyless rows must not error and
	// the stored row carries only the source columns.
	if strings.Contains(store.rows[0].FieldsJSON, "recordkey") {
		t.Errorf("unexpected recordkey in %s", store.rows[0].FieldsJSON)
	}
}

func TestRunScan_KeyRequestedButSourceUnkeyed(t *testing.T) {
	scan.RegisterSource(&fakeSource{
		typ:    "fake-unkeyed",
		keyed:  false,
		schema: idSchema(),
		rows: []scan.Row{
			{Key: keys.NotSupported(), Values: map[string]any{"id": int64(1), "name": "a"}},
		},
	})

	store := newMemStore()
	engine := &scan.Engine{Dest: &scan.ResultWriter{Store: store}}

	job := &scan.Job{
		ID:            "job-3",
		SourceType:    "fake-unkeyed",
		RecordkeyType: "int8",
		Mode:          scan.ScanReplace,
	}
	result, err := engine.RunScan(context.Background(), job)
	if err == nil {
		t.Fatal("expected an error when requesting keys from an unkeyed source")
	}
	if result.Status != "error" {
		t.Errorf("expected error status, got %q", result.Status)
	}
	if len(store.rows) != 0 {
		t.Errorf("no rows should be written on failure, got %d", len(store.rows))
	}
}

func TestRunScan_UnknownRecordkeyType(t *testing.T) {
	scan.RegisterSource(&fakeSource{
		typ:    "fake-badtype",
		keyed:  true,
		schema: idSchema(),
	})

	engine := &scan.Engine{Dest: &scan.ResultWriter{Store: newMemStore()}}
	job := &scan.Job{ID: "job-4", SourceType: "fake-badtype", RecordkeyType: "varchar"}
	if _, err := engine.RunScan(context.Background(), job); err == nil {
		t.Fatal("expected error for unknown recordkey type")
	}
}

func TestRunScan_UnknownSource(t *testing.T) {
	engine := &scan.Engine{Dest: &scan.ResultWriter{Store: newMemStore()}}
	job := &scan.Job{ID: "job-5", SourceType: "does-not-exist"}
	if _, err := engine.RunScan(context.Background(), job); err == nil {
		t.Fatal("expected error for unknown source type")
	}
}

func TestRunScan_ReplaceModeClearsPreviousRows(t *testing.T) {
	scan.RegisterSource(&fakeSource{
		typ:    "fake-replace",
		keyed:  true,
		schema: idSchema(),
		rows: []scan.Row{
			{Key: keys.Of(keys.Int64(1)), Values: map[string]any{"id": int64(1), "name": "a"}},
		},
	})

	store := newMemStore()
	engine := &scan.Engine{Dest: &scan.ResultWriter{Store: store}}
	job := &scan.Job{ID: "job-6", SourceType: "fake-replace", Mode: scan.ScanReplace}

	for i := 0; i < 2; i++ {
		if _, err := engine.RunScan(context.Background(), job); err != nil {
			t.Fatalf("run %d failed: %v", i, err)
		}
	}
	if len(store.rows) != 1 {
		t.Errorf("replace mode should keep one copy, got %d rows", len(store.rows))
	}
	if len(store.deleted) != 2 {
		t.Errorf("expected 2 delete calls, got %d", len(store.deleted))
	}
}

func TestRunScan_AppendModeKeepsRows(t *testing.T) {
	scan.RegisterSource(&fakeSource{
		typ:    "fake-append",
		keyed:  true,
		schema: idSchema(),
		rows: []scan.Row{
			{Key: keys.Of(keys.Int64(1)), Values: map[string]any{"id": int64(1), "name": "a"}},
		},
	})

	store := newMemStore()
	engine := &scan.Engine{Dest: &scan.ResultWriter{Store: store}}
	job := &scan.Job{ID: "job-7", SourceType: "fake-append", Mode: scan.ScanAppend}

	for i := 0; i < 2; i++ {
		if _, err := engine.RunScan(context.Background(), job); err != nil {
			t.Fatalf("run %d failed: %v", i, err)
		}
	}
	if len(store.rows) != 2 {
		t.Errorf("append mode should accumulate, got %d rows", len(store.rows))
	}
}

func TestPreview_LimitsRows(t *testing.T) {
	var rows []scan.Row
	for i := int64(0); i < 20; i++ {
		rows = append(rows, scan.Row{
			Key:    keys.Of(keys.Int64(i)),
			Values: map[string]any{"id": i, "name": "x"},
		})
	}
	scan.RegisterSource(&fakeSource{
		typ:    "fake-preview",
		keyed:  true,
		schema: idSchema(),
		rows:   rows,
	})

	engine := &scan.Engine{Dest: &scan.ResultWriter{Store: newMemStore()}}
	got, schema, err := engine.Preview(context.Background(), "fake-preview", nil, "int8", 5)
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if len(got) != 5 {
		t.Errorf("expected 5 preview rows, got %d", len(got))
	}
	if _, ok := schema.RecordkeyColumn(); !ok {
		t.Error("expected recordkey column on preview schema")
	}
	// Each previewed row ends with its key field.
	if last := got[0][len(got[0])-1]; last.Type != record.TypeInt8 {
		t.Errorf("expected trailing int8 key field, got type %v", last.Type)
	}
}

// ─────────────────────────────────────────────────────────────
// Registry
// ─────────────────────────────────────────────────────────────

func TestSourceRegistry(t *testing.T) {
	scan.RegisterSource(&fakeSource{typ: "fake-registry", schema: idSchema()})

	src, err := scan.GetSource("fake-registry")
	if err != nil {
		t.Fatalf("GetSource failed: %v", err)
	}
	if src.Spec().Type != "fake-registry" {
		t.Errorf("unexpected spec type %q", src.Spec().Type)
	}

	if _, err := scan.GetSource("nope"); err == nil {
		t.Error("expected error for unregistered type")
	}

	found := false
	for _, spec := range scan.ListSources() {
		if spec.Type == "fake-registry" {
			found = true
		}
	}
	if !found {
		t.Error("ListSources missing registered source")
	}
}
