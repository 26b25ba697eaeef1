package record

// ── Output Fields ──────────────────────────────────────────
// A scanned row is decoded into an ordered list of typed fields, one
// per requested output column. Type codes follow the Postgres OID
// numbering so the downstream query boundary can consume them as-is.

// Type is the declared output type code of a field.
type Type int

const (
	TypeBool      Type = 16
	TypeInt8      Type = 20
	TypeInt2      Type = 21
	TypeInt4      Type = 23
	TypeText      Type = 25
	TypeFloat4    Type = 700
	TypeFloat8    Type = 701
	TypeTimestamp Type = 1114
)

func (t Type) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt8:
		return "int8"
	case TypeInt2:
		return "int2"
	case TypeInt4:
		return "int4"
	case TypeText:
		return "text"
	case TypeFloat4:
		return "float4"
	case TypeFloat8:
		return "float8"
	case TypeTimestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// TypeFromName maps a type name back to its code.
func TypeFromName(name string) (Type, bool) {
	switch name {
	case "bool":
		return TypeBool, true
	case "int8":
		return TypeInt8, true
	case "int2":
		return TypeInt2, true
	case "int4":
		return TypeInt4, true
	case "text":
		return TypeText, true
	case "float4":
		return TypeFloat4, true
	case "float8":
		return TypeFloat8, true
	case "timestamp":
		return TypeTimestamp, true
	default:
		return 0, false
	}
}

// Field is a single decoded output value tagged with its declared type.
type Field struct {
	Type  Type `json:"type"`
	Value any  `json:"value"`
}

// Column describes one requested output column.
type Column struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// RecordkeyColumnName is the reserved name of the record key column a
// query may request in addition to the source's own columns.
const RecordkeyColumnName = "recordkey"

// Schema describes the shape of the rows a scan produces: the source's
// columns in order, plus the optional recordkey column when the query
// asked for one. It is fixed before the first row and consistent for
// the whole scan.
type Schema struct {
	Columns   []Column `json:"columns"`
	Recordkey *Column  `json:"recordkey,omitempty"`
}

// RecordkeyColumn returns the requested recordkey column, if any.
func (s *Schema) RecordkeyColumn() (Column, bool) {
	if s.Recordkey == nil {
		return Column{}, false
	}
	return *s.Recordkey, true
}

// ColumnNames returns an ordered list of the source column names.
func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}
