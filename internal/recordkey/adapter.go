package recordkey

import (
	"errors"
	"fmt"
	"log"

	"rowbridge/internal/keys"
	"rowbridge/internal/record"
)

// ── Recordkey Adapter ──────────────────────────────────────
// Record keys cross two representations: the tagged wrapper a source
// reader produces, and the primitive value the query boundary consumes.
// The key's kind is the same for every row of a scan, so the adapter
// inspects the runtime kind once — on the first row — and reuses the
// bound strategy for the rest of the scan.

var (
	// ErrMissingKeySupport: a recordkey column was requested but the
	// queried source type does not supply keys. The query and the source
	// disagree; nothing transient about it.
	ErrMissingKeySupport = errors.New(`value for field "recordkey" was requested but the queried source type does not support keys`)

	// ErrUnsupportedKeyType: the first observed key kind falls outside
	// the supported set. The failing resolution is cached, so every later
	// call on the same adapter fails identically.
	ErrUnsupportedKeyType = errors.New("unsupported recordkey data type")
)

// Metadata exposes whether a recordkey output column was requested and,
// if so, the declared type code to tag the produced field with. It is
// queried once per record and must be consistent across a scan.
type Metadata interface {
	RecordkeyColumn() (record.Column, bool)
}

// resolution is the cached outcome of inspecting the first argument's
// runtime kind. It moves from unresolved to resolved exactly once and is
// never reset: a first call with an unsupported kind pins the cache to
// fail for the rest of the scan, even if later calls carry a valid kind.
type resolution struct {
	resolved    bool
	kind        keys.Kind
	unsupported string // offending kind/type name when outside the supported set
}

// Adapter converts record keys between wrapper and primitive form. The
// two directions hold independent resolutions that never interact. One
// Adapter serves exactly one sequential scan; it has no internal locking
// and must not be shared across concurrent scans.
type Adapter struct {
	extract resolution
	convert resolution
}

// NewAdapter returns an adapter with both resolutions unset.
func NewAdapter() *Adapter { return &Adapter{} }

// AppendRecordkeyField appends the row's key to fields as one typed
// output field and reports how many fields it appended (0 or 1).
//
// If the metadata reports no recordkey column, this is a no-op — the
// usual path for queries that don't ask for a key; the row's key is not
// inspected at all. If a key was requested but the row carries none,
// the source type cannot satisfy the query and ErrMissingKeySupport is
// returned. Otherwise the key's primitive value is extracted and tagged
// with the metadata's declared type code.
func (a *Adapter) AppendRecordkeyField(fields *[]record.Field, meta Metadata, key keys.RecordKey) (int, error) {
	col, ok := meta.RecordkeyColumn()
	if !ok {
		return 0, nil
	}

	w, ok := key.Wrapper()
	if !ok {
		return 0, ErrMissingKeySupport
	}

	val, err := a.extractVal(w)
	if err != nil {
		return 0, err
	}
	*fields = append(*fields, record.Field{Type: col.Type, Value: val})
	return 1, nil
}

// extractVal pulls the primitive value out of a key wrapper, resolving
// the extraction strategy from the wrapper's kind on the first call.
func (a *Adapter) extractVal(w keys.Wrapper) (any, error) {
	if !a.extract.resolved {
		a.extract = resolveExtraction(w.Kind())
	}
	if a.extract.unsupported != "" {
		return nil, fmt.Errorf("%w %s", ErrUnsupportedKeyType, a.extract.unsupported)
	}
	return extractAs(a.extract.kind, w), nil
}

func resolveExtraction(k keys.Kind) resolution {
	switch k {
	case keys.KindInt32, keys.KindVarInt32, keys.KindInt8, keys.KindBool,
		keys.KindFloat64, keys.KindFloat32, keys.KindInt64, keys.KindText:
		return resolution{resolved: true, kind: k}
	default:
		return resolution{resolved: true, unsupported: k.String()}
	}
}

// extractAs applies the resolved kind's accessor. The wrapper's own tag
// is deliberately not consulted again: the first row fixed the strategy
// for the whole scan. Narrow integers widen to the host int; varint
// keys decode identically to Int32.
func extractAs(k keys.Kind, w keys.Wrapper) any {
	switch k {
	case keys.KindInt32, keys.KindVarInt32:
		return w.Int()
	case keys.KindInt8:
		return w.Int8()
	case keys.KindBool:
		return w.Bool()
	case keys.KindFloat64:
		return w.Float64()
	case keys.KindFloat32:
		return w.Float32()
	case keys.KindInt64:
		return w.Int64()
	case keys.KindText:
		return w.Text()
	default:
		return nil
	}
}

// ConvertKeyValue re-encodes a primitive key value into its typed
// wrapper. Supported inputs: int, int8, bool, float64, float32, int64,
// string. The wrapper kind is resolved once from the first value; every
// later call produces the same kind regardless of the later value's
// actual type.
func (a *Adapter) ConvertKeyValue(v any) (keys.Wrapper, error) {
	if !a.convert.resolved {
		a.convert = resolveConversion(v)
		if a.convert.unsupported == "" {
			log.Printf("recordkey: converter resolved for %T (key value: %v)", v, v)
		}
	}
	if a.convert.unsupported != "" {
		return keys.Wrapper{}, fmt.Errorf("%w %s", ErrUnsupportedKeyType, a.convert.unsupported)
	}
	return convertAs(a.convert.kind, v), nil
}

func resolveConversion(v any) resolution {
	switch v.(type) {
	case int:
		return resolution{resolved: true, kind: keys.KindInt32}
	case int8:
		return resolution{resolved: true, kind: keys.KindInt8}
	case bool:
		return resolution{resolved: true, kind: keys.KindBool}
	case float64:
		return resolution{resolved: true, kind: keys.KindFloat64}
	case float32:
		return resolution{resolved: true, kind: keys.KindFloat32}
	case int64:
		return resolution{resolved: true, kind: keys.KindInt64}
	case string:
		return resolution{resolved: true, kind: keys.KindText}
	default:
		return resolution{resolved: true, unsupported: fmt.Sprintf("%T", v)}
	}
}

// convertAs builds a wrapper of the resolved kind. Assertions use the
// comma-ok form so a later value of a different type yields the resolved
// kind's zero value — the strategy stays bound, it never panics. Text
// coerces via fmt.Sprint for the same reason.
func convertAs(k keys.Kind, v any) keys.Wrapper {
	switch k {
	case keys.KindInt32:
		i, _ := v.(int)
		return keys.Int32(int32(i))
	case keys.KindInt8:
		i, _ := v.(int8)
		return keys.Int8(i)
	case keys.KindBool:
		b, _ := v.(bool)
		return keys.Bool(b)
	case keys.KindFloat64:
		f, _ := v.(float64)
		return keys.Float64(f)
	case keys.KindFloat32:
		f, _ := v.(float32)
		return keys.Float32(f)
	case keys.KindInt64:
		i, _ := v.(int64)
		return keys.Int64(i)
	case keys.KindText:
		return keys.Text(fmt.Sprint(v))
	default:
		return keys.Null()
	}
}
