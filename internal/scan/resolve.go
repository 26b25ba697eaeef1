package scan

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"rowbridge/internal/record"
)

// ── Field Resolution ───────────────────────────────────────
// A FieldResolver turns a source row's loose values into the ordered,
// typed output fields the schema declares. Sources hand over whatever
// their driver produced (JSON numbers, []byte text, strings from CSV);
// the resolver coerces each value to its declared column type.

// FieldResolver resolves rows against a fixed schema.
type FieldResolver struct {
	schema *record.Schema
}

// NewFieldResolver returns a resolver for the given schema. The schema
// must not change between rows of a scan.
func NewFieldResolver(schema *record.Schema) *FieldResolver {
	return &FieldResolver{schema: schema}
}

// Resolve produces one typed field per schema column, in column order.
// Missing values resolve to a nil-valued field of the declared type.
func (r *FieldResolver) Resolve(row Row) []record.Field {
	fields := make([]record.Field, 0, len(r.schema.Columns)+1)
	for _, col := range r.schema.Columns {
		v, ok := row.Values[col.Name]
		if !ok || v == nil {
			fields = append(fields, record.Field{Type: col.Type, Value: nil})
			continue
		}
		fields = append(fields, record.Field{Type: col.Type, Value: coerce(v, col.Type)})
	}
	return fields
}

// coerce converts a raw driver value to the Go representation of the
// declared type. Unconvertible values pass through untouched rather
// than erroring; the declared tag still tells the consumer what was
// expected.
func coerce(v any, t record.Type) any {
	switch t {
	case record.TypeBool:
		return toBool(v)
	case record.TypeInt2, record.TypeInt4:
		if n, ok := toInt64(v); ok {
			return int(n)
		}
	case record.TypeInt8:
		if n, ok := toInt64(v); ok {
			return n
		}
	case record.TypeFloat4:
		if f, ok := toFloat64(v); ok {
			return float32(f)
		}
	case record.TypeFloat8:
		if f, ok := toFloat64(v); ok {
			return f
		}
	case record.TypeText:
		return toText(v)
	case record.TypeTimestamp:
		return toTimestamp(v)
	}
	return v
}

func toBool(v any) any {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "t", "1", "yes":
			return true
		case "false", "f", "0", "no":
			return false
		}
	case int64:
		return x != 0
	case float64:
		return x != 0
	}
	return v
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint64:
		return int64(x), true
	case float64:
		// JSON numbers arrive as float64.
		return int64(x), true
	case float32:
		return int64(x), true
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return n, true
		}
	case []byte:
		if n, err := strconv.ParseInt(string(x), 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f, true
		}
	case []byte:
		if f, err := strconv.ParseFloat(string(x), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func toText(v any) any {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		// Drivers without type info hand text back as raw bytes.
		return string(x)
	default:
		return fmt.Sprint(v)
	}
}

// timestampLayouts are tried in order when parsing text timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func toTimestamp(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x
	case string:
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, x); err == nil {
				return ts
			}
		}
	case []byte:
		return toTimestamp(string(x))
	}
	return v
}
