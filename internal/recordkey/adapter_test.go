package recordkey_test

import (
	"errors"
	"reflect"
	"testing"

	"rowbridge/internal/keys"
	"rowbridge/internal/record"
	"rowbridge/internal/recordkey"
)

// ─────────────────────────────────────────────────────────────
// Recordkey adapter unit tests
// Covers the lazy one-shot resolution of both directions, the
// round-trip laws, and the sticky-first-kind behavior (success
// and failure alike).
// ─────────────────────────────────────────────────────────────

// keySchema returns metadata requesting a recordkey column of type t.
func keySchema(t record.Type) *record.Schema {
	return &record.Schema{
		Recordkey: &record.Column{Name: record.RecordkeyColumnName, Type: t},
	}
}

func TestAppendRecordkeyField_NoColumnRequested(t *testing.T) {
	a := recordkey.NewAdapter()
	var fields []record.Field

	// No recordkey column: no-op even though the row's key kind is one
	// the adapter could never extract. The key must not be inspected.
	n, err := a.AppendRecordkeyField(&fields, &record.Schema{}, keys.Of(keys.Bytes([]byte{0xde, 0xad})))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 || len(fields) != 0 {
		t.Fatalf("expected 0 fields appended, got n=%d len=%d", n, len(fields))
	}

	// A later call with a valid kind must still resolve cleanly: the
	// no-op path must not have consumed the extraction cache.
	n, err = a.AppendRecordkeyField(&fields, keySchema(record.TypeInt4), keys.Of(keys.Int32(7)))
	if err != nil {
		t.Fatalf("extraction cache was consumed by the no-op path: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 field appended, got %d", n)
	}
}

func TestAppendRecordkeyField_MissingKeySupport(t *testing.T) {
	a := recordkey.NewAdapter()
	var fields []record.Field

	n, err := a.AppendRecordkeyField(&fields, keySchema(record.TypeInt8), keys.NotSupported())
	if !errors.Is(err, recordkey.ErrMissingKeySupport) {
		t.Fatalf("expected ErrMissingKeySupport, got %v", err)
	}
	if n != 0 || len(fields) != 0 {
		t.Fatalf("no field may be appended on failure, got n=%d len=%d", n, len(fields))
	}
}

func TestAppendRecordkeyField_IntKeys(t *testing.T) {
	a := recordkey.NewAdapter()
	meta := keySchema(record.TypeInt4)

	var fields []record.Field
	n, err := a.AppendRecordkeyField(&fields, meta, keys.Of(keys.Int32(42)))
	if err != nil {
		t.Fatalf("first append: %v", err)
	}
	if n != 1 || len(fields) != 1 {
		t.Fatalf("expected one appended field, got n=%d len=%d", n, len(fields))
	}
	if fields[0].Type != record.TypeInt4 {
		t.Errorf("field tagged %v, want %v", fields[0].Type, record.TypeInt4)
	}
	if got, ok := fields[0].Value.(int); !ok || got != 42 {
		t.Errorf("extracted value = %v (%T), want int 42", fields[0].Value, fields[0].Value)
	}

	// Second row reuses the resolved strategy.
	n, err = a.AppendRecordkeyField(&fields, meta, keys.Of(keys.Int32(7)))
	if err != nil || n != 1 {
		t.Fatalf("second append: n=%d err=%v", n, err)
	}
	if got := fields[1].Value.(int); got != 7 {
		t.Errorf("second extracted value = %v, want 7", got)
	}
}

func TestAppendRecordkeyField_UnsupportedKindIsSticky(t *testing.T) {
	a := recordkey.NewAdapter()
	meta := keySchema(record.TypeText)
	var fields []record.Field

	// First row carries a bytes key — outside the supported set.
	_, err := a.AppendRecordkeyField(&fields, meta, keys.Of(keys.Bytes([]byte{1})))
	if !errors.Is(err, recordkey.ErrUnsupportedKeyType) {
		t.Fatalf("expected ErrUnsupportedKeyType, got %v", err)
	}

	// A second row with a perfectly valid kind still fails: the failing
	// resolution was cached on first use and is never re-evaluated.
	_, err = a.AppendRecordkeyField(&fields, meta, keys.Of(keys.Text("ok")))
	if !errors.Is(err, recordkey.ErrUnsupportedKeyType) {
		t.Fatalf("sticky failure expected, got %v", err)
	}
	if len(fields) != 0 {
		t.Fatalf("no fields may be appended, got %d", len(fields))
	}
}

func TestAppendRecordkeyField_StickyKindAcrossRows(t *testing.T) {
	a := recordkey.NewAdapter()
	meta := keySchema(record.TypeText)
	var fields []record.Field

	if _, err := a.AppendRecordkeyField(&fields, meta, keys.Of(keys.Text("first"))); err != nil {
		t.Fatalf("first append: %v", err)
	}

	// A misbehaving source switches kinds mid-scan. The resolved text
	// strategy is applied regardless — no re-inspection, no error.
	if _, err := a.AppendRecordkeyField(&fields, meta, keys.Of(keys.Bool(true))); err != nil {
		t.Fatalf("sticky strategy must not re-check the kind: %v", err)
	}
	if _, ok := fields[1].Value.(string); !ok {
		t.Errorf("sticky text strategy produced %T, want string", fields[1].Value)
	}
}

func TestConvertKeyValue_RoundTripAllKinds(t *testing.T) {
	// Converting a primitive and extracting it back must return the
	// original value, for every supported primitive kind.
	cases := []struct {
		name string
		in   any
		kind keys.Kind
	}{
		{"int", 42, keys.KindInt32},
		{"int8", int8(-5), keys.KindInt8},
		{"bool", true, keys.KindBool},
		{"float64", 2.75, keys.KindFloat64},
		{"float32", float32(1.5), keys.KindFloat32},
		{"int64", int64(1 << 40), keys.KindInt64},
		{"string", "abc", keys.KindText},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := recordkey.NewAdapter()
			w, err := a.ConvertKeyValue(tc.in)
			if err != nil {
				t.Fatalf("convert: %v", err)
			}
			if w.Kind() != tc.kind {
				t.Fatalf("wrapper kind = %v, want %v", w.Kind(), tc.kind)
			}

			var fields []record.Field
			n, err := a.AppendRecordkeyField(&fields, keySchema(record.TypeText), keys.Of(w))
			if err != nil || n != 1 {
				t.Fatalf("extract back: n=%d err=%v", n, err)
			}
			if fields[0].Value != tc.in {
				t.Errorf("round trip = %v (%T), want %v (%T)",
					fields[0].Value, fields[0].Value, tc.in, tc.in)
			}
		})
	}
}

func TestExtractThenConvert_RoundTrip(t *testing.T) {
	// The other direction: extract a wrapper's value, convert it back,
	// and expect a wrapper of the same kind holding an equal value.
	wrappers := []keys.Wrapper{
		keys.Int32(9),
		keys.Int8(3),
		keys.Bool(false),
		keys.Float64(0.25),
		keys.Float32(4.5),
		keys.Int64(-7),
		keys.Text("key"),
	}

	for _, in := range wrappers {
		t.Run(in.Kind().String(), func(t *testing.T) {
			a := recordkey.NewAdapter()
			var fields []record.Field
			if _, err := a.AppendRecordkeyField(&fields, keySchema(record.TypeText), keys.Of(in)); err != nil {
				t.Fatalf("extract: %v", err)
			}

			out, err := a.ConvertKeyValue(fields[0].Value)
			if err != nil {
				t.Fatalf("convert: %v", err)
			}
			if !reflect.DeepEqual(out, in) {
				t.Errorf("round trip = %+v, want %+v", out, in)
			}
		})
	}
}

func TestConvertKeyValue_VarIntDecodesAsInt32(t *testing.T) {
	// Varint keys extract to the host int, so converting the extracted
	// value yields a fixed-width Int32 wrapper holding the same number.
	a := recordkey.NewAdapter()
	var fields []record.Field
	if _, err := a.AppendRecordkeyField(&fields, keySchema(record.TypeInt4), keys.Of(keys.VarInt32(99))); err != nil {
		t.Fatalf("extract varint: %v", err)
	}
	w, err := a.ConvertKeyValue(fields[0].Value)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if w.Kind() != keys.KindInt32 || w.Int() != 99 {
		t.Errorf("got kind=%v value=%d, want int32 99", w.Kind(), w.Int())
	}
}

func TestConvertKeyValue_StickyTextStrategy(t *testing.T) {
	a := recordkey.NewAdapter()

	w, err := a.ConvertKeyValue("abc")
	if err != nil {
		t.Fatalf("first convert: %v", err)
	}
	if w.Kind() != keys.KindText || w.Text() != "abc" {
		t.Fatalf("got kind=%v text=%q, want text %q", w.Kind(), w.Text(), "abc")
	}

	// A boolean fed to the resolved text strategy still produces a text
	// wrapper — the documented quirk, not a crash.
	w, err = a.ConvertKeyValue(true)
	if err != nil {
		t.Fatalf("sticky convert: %v", err)
	}
	if w.Kind() != keys.KindText {
		t.Errorf("sticky strategy produced kind %v, want text", w.Kind())
	}
}

func TestConvertKeyValue_UnsupportedIsSticky(t *testing.T) {
	a := recordkey.NewAdapter()

	if _, err := a.ConvertKeyValue([]byte("nope")); !errors.Is(err, recordkey.ErrUnsupportedKeyType) {
		t.Fatalf("expected ErrUnsupportedKeyType, got %v", err)
	}

	// Valid input on the second call: still wedged.
	if _, err := a.ConvertKeyValue(42); !errors.Is(err, recordkey.ErrUnsupportedKeyType) {
		t.Fatalf("sticky conversion failure expected, got %v", err)
	}
}

func TestAdapter_DirectionsResolveIndependently(t *testing.T) {
	// Resolving the converter to text must not influence what the
	// extractor resolves to, and vice versa.
	a := recordkey.NewAdapter()

	if _, err := a.ConvertKeyValue("text-key"); err != nil {
		t.Fatalf("convert: %v", err)
	}

	var fields []record.Field
	n, err := a.AppendRecordkeyField(&fields, keySchema(record.TypeInt8), keys.Of(keys.Int64(123)))
	if err != nil || n != 1 {
		t.Fatalf("extract after convert: n=%d err=%v", n, err)
	}
	if got, ok := fields[0].Value.(int64); !ok || got != 123 {
		t.Errorf("extraction resolved to the converter's kind: got %v (%T)", fields[0].Value, fields[0].Value)
	}
}

func TestAdapter_ConvertFailureDoesNotWedgeExtraction(t *testing.T) {
	a := recordkey.NewAdapter()

	if _, err := a.ConvertKeyValue(struct{}{}); !errors.Is(err, recordkey.ErrUnsupportedKeyType) {
		t.Fatalf("expected ErrUnsupportedKeyType, got %v", err)
	}

	var fields []record.Field
	if _, err := a.AppendRecordkeyField(&fields, keySchema(record.TypeBool), keys.Of(keys.Bool(true))); err != nil {
		t.Fatalf("extraction must be unaffected by the converter's failure: %v", err)
	}
	if got := fields[0].Value.(bool); !got {
		t.Errorf("extracted %v, want true", got)
	}
}
