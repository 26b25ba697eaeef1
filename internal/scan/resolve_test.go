package scan_test

import (
	"testing"
	"time"

	"rowbridge/internal/keys"
	"rowbridge/internal/record"
	"rowbridge/internal/scan"
)

// ─────────────────────────────────────────────────────────────
// FieldResolver tests
// ─────────────────────────────────────────────────────────────

func TestResolve_CoercesDeclaredTypes(t *testing.T) {
	schema := &record.Schema{
		Columns: []record.Column{
			{Name: "active", Type: record.TypeBool},
			{Name: "count", Type: record.TypeInt4},
			{Name: "total", Type: record.TypeInt8},
			{Name: "ratio", Type: record.TypeFloat8},
			{Name: "name", Type: record.TypeText},
		},
	}
	r := scan.NewFieldResolver(schema)

	// Values arrive as a CSV/JSON source would hand them over.
	fields := r.Resolve(scan.Row{
		Key: keys.NotSupported(),
		Values: map[string]any{
			"active": "true",
			"count":  float64(42), // JSON number
			"total":  "1234567",
			"ratio":  "0.5",
			"name":   []byte("alice"),
		},
	})

	if len(fields) != 5 {
		t.Fatalf("expected 5 fields, got %d", len(fields))
	}
	if fields[0].Value != true {
		t.Errorf("bool: got %v", fields[0].Value)
	}
	if fields[1].Value != 42 {
		t.Errorf("int4: got %v (%T)", fields[1].Value, fields[1].Value)
	}
	if fields[2].Value != int64(1234567) {
		t.Errorf("int8: got %v (%T)", fields[2].Value, fields[2].Value)
	}
	if fields[3].Value != 0.5 {
		t.Errorf("float8: got %v", fields[3].Value)
	}
	if fields[4].Value != "alice" {
		t.Errorf("text: got %v (%T)", fields[4].Value, fields[4].Value)
	}
}

func TestResolve_MissingValuesAreNil(t *testing.T) {
	schema := &record.Schema{
		Columns: []record.Column{
			{Name: "present", Type: record.TypeText},
			{Name: "absent", Type: record.TypeInt4},
		},
	}
	r := scan.NewFieldResolver(schema)

	fields := r.Resolve(scan.Row{Values: map[string]any{"present": "x"}})
	if fields[0].Value != "x" {
		t.Errorf("expected x, got %v", fields[0].Value)
	}
	if fields[1].Value != nil {
		t.Errorf("expected nil for missing column, got %v", fields[1].Value)
	}
	if fields[1].Type != record.TypeInt4 {
		t.Errorf("missing field keeps declared type, got %v", fields[1].Type)
	}
}

func TestResolve_TimestampLayouts(t *testing.T) {
	schema := &record.Schema{
		Columns: []record.Column{{Name: "at", Type: record.TypeTimestamp}},
	}
	r := scan.NewFieldResolver(schema)

	cases := []string{
		"2024-06-01T12:30:00Z",
		"2024-06-01 12:30:00",
		"2024-06-01",
	}
	for _, in := range cases {
		fields := r.Resolve(scan.Row{Values: map[string]any{"at": in}})
		if _, ok := fields[0].Value.(time.Time); !ok {
			t.Errorf("%q: expected time.Time, got %T", in, fields[0].Value)
		}
	}
}

func TestResolve_UnconvertiblePassesThrough(t *testing.T) {
	schema := &record.Schema{
		Columns: []record.Column{{Name: "n", Type: record.TypeInt4}},
	}
	r := scan.NewFieldResolver(schema)

	fields := r.Resolve(scan.Row{Values: map[string]any{"n": "not-a-number"}})
	if fields[0].Value != "not-a-number" {
		t.Errorf("expected pass-through, got %v", fields[0].Value)
	}
}

func TestResolve_Float4Narrows(t *testing.T) {
	schema := &record.Schema{
		Columns: []record.Column{{Name: "f", Type: record.TypeFloat4}},
	}
	r := scan.NewFieldResolver(schema)

	fields := r.Resolve(scan.Row{Values: map[string]any{"f": float64(2.5)}})
	if v, ok := fields[0].Value.(float32); !ok || v != 2.5 {
		t.Errorf("expected float32 2.5, got %v (%T)", fields[0].Value, fields[0].Value)
	}
}
