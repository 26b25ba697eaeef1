package keys

// ── Typed Key Wrappers ─────────────────────────────────────
// Source readers attach a key to each row they produce, encoded as a
// tagged wrapper around one primitive kind. A given source encodes its
// keys with a single kind for the whole scan; the kind is only known
// at runtime, once the first row arrives.

// Kind identifies the primitive kind carried by a Wrapper.
type Kind int

const (
	KindInvalid Kind = iota
	KindInt32
	KindInt8
	KindBool
	KindFloat64
	KindFloat32
	KindInt64
	KindText
	KindVarInt32 // variable-length encoded on the wire; decodes to the same width as Int32
	KindBytes
	KindNull
)

func (k Kind) String() string {
	switch k {
	case KindInt32:
		return "int32"
	case KindInt8:
		return "int8"
	case KindBool:
		return "bool"
	case KindFloat64:
		return "float64"
	case KindFloat32:
		return "float32"
	case KindInt64:
		return "int64"
	case KindText:
		return "text"
	case KindVarInt32:
		return "varint32"
	case KindBytes:
		return "bytes"
	case KindNull:
		return "null"
	default:
		return "invalid"
	}
}

// Wrapper is a key value tagged with its kind. The zero value has
// KindInvalid and carries nothing.
type Wrapper struct {
	kind Kind
	i    int64
	f    float64
	b    bool
	s    string
	raw  []byte
}

func Int32(v int32) Wrapper    { return Wrapper{kind: KindInt32, i: int64(v)} }
func Int8(v int8) Wrapper      { return Wrapper{kind: KindInt8, i: int64(v)} }
func Bool(v bool) Wrapper      { return Wrapper{kind: KindBool, b: v} }
func Float64(v float64) Wrapper { return Wrapper{kind: KindFloat64, f: v} }
func Float32(v float32) Wrapper { return Wrapper{kind: KindFloat32, f: float64(v)} }
func Int64(v int64) Wrapper    { return Wrapper{kind: KindInt64, i: v} }
func Text(v string) Wrapper    { return Wrapper{kind: KindText, s: v} }
func VarInt32(v int32) Wrapper { return Wrapper{kind: KindVarInt32, i: int64(v)} }
func Bytes(v []byte) Wrapper   { return Wrapper{kind: KindBytes, raw: v} }
func Null() Wrapper            { return Wrapper{kind: KindNull} }

// Kind returns the wrapper's tag.
func (w Wrapper) Kind() Kind { return w.kind }

// The accessors below return the stored payload without consulting the tag.
// Callers that have already resolved the kind for a scan rely on this: a
// mismatched wrapper yields the payload's zero value, never a panic.

func (w Wrapper) Int() int         { return int(w.i) }
func (w Wrapper) Int8() int8       { return int8(w.i) }
func (w Wrapper) Int64() int64     { return w.i }
func (w Wrapper) Bool() bool       { return w.b }
func (w Wrapper) Float32() float32 { return float32(w.f) }
func (w Wrapper) Float64() float64 { return w.f }
func (w Wrapper) Text() string     { return w.s }
func (w Wrapper) Bytes() []byte    { return w.raw }

// ── RecordKey ──────────────────────────────────────────────
// Not every source supplies keys. RecordKey makes "this source has no
// keys" a first-class state instead of a nil wrapper.

// RecordKey is either a key wrapper or the explicit absence of one.
type RecordKey struct {
	wrapper Wrapper
	present bool
}

// Of wraps a key supplied by the source.
func Of(w Wrapper) RecordKey { return RecordKey{wrapper: w, present: true} }

// NotSupported marks a row whose source does not supply keys.
func NotSupported() RecordKey { return RecordKey{} }

// Wrapper returns the key and whether the source supplied one.
func (k RecordKey) Wrapper() (Wrapper, bool) { return k.wrapper, k.present }

// Supported reports whether the source supplied a key for this row.
func (k RecordKey) Supported() bool { return k.present }
