package value

import (
	"maps"
	"slices"
	"time"
)

// Value is a sealed interface over the raw representation of a field.
// Only Null, String, Int, Float, Bool, Time, Array and Object implement it.
type Value interface {
	value() // Sealed - only these types implement it
}

// Scalar is the subset of values a constraint literal may hold.
// Arrays and objects do not implement it, so they cannot be passed to Eq or Not.
type Scalar interface {
	Value
	scalar()
}

// Bound is the subset of scalars a range bound may hold: numbers and dates.
type Bound interface {
	Scalar
	bound()
}

// Null represents an explicit null.
type Null struct{}

func (Null) value()  {}
func (Null) scalar() {}

// String represents a string value.
type String string

func (String) value()  {}
func (String) scalar() {}

// Int represents an integer value.
type Int int64

func (Int) value()  {}
func (Int) scalar() {}
func (Int) bound()  {}

// Float represents a floating point value. Int and Float share one
// comparison class: Int(10) equals Float(10).
type Float float64

func (Float) value()  {}
func (Float) scalar() {}
func (Float) bound()  {}

// Bool represents a boolean value.
type Bool bool

func (Bool) value()  {}
func (Bool) scalar() {}

// Time is a point in time with millisecond precision, stored as
// milliseconds since the Unix epoch. Construct with NewTime or TimeFromMillis.
type Time struct {
	ms int64
}

func (Time) value()  {}
func (Time) scalar() {}
func (Time) bound()  {}

// NewTime truncates t to millisecond precision.
func NewTime(t time.Time) Time {
	return Time{ms: t.UnixMilli()}
}

// TimeFromMillis creates a Time from epoch milliseconds.
func TimeFromMillis(ms int64) Time {
	return Time{ms: ms}
}

// Millis returns the epoch milliseconds.
func (t Time) Millis() int64 { return t.ms }

// Std returns the time as a UTC time.Time.
func (t Time) Std() time.Time { return time.UnixMilli(t.ms).UTC() }

// String formats the time as RFC 3339 with milliseconds.
func (t Time) String() string { return t.Std().Format(time.RFC3339Nano) }

// Array represents an ordered list of values.
type Array []Value

func (Array) value() {}

// Object represents a nested document.
type Object map[string]Value

func (Object) value() {}

// Kind classifies a value for comparison purposes.
type Kind int

const (
	KindMissing Kind = iota
	KindNull
	KindString
	KindNumber
	KindBool
	KindTime
	KindArray
	KindObject
)

var kindNames = [...]string{"missing", "null", "string", "number", "bool", "time", "array", "object"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// KindOf returns the kind of v. A nil Value is KindMissing.
func KindOf(v Value) Kind {
	switch v.(type) {
	case nil:
		return KindMissing
	case Null:
		return KindNull
	case String:
		return KindString
	case Int, Float:
		return KindNumber
	case Bool:
		return KindBool
	case Time:
		return KindTime
	case Array:
		return KindArray
	case Object:
		return KindObject
	default:
		return KindMissing
	}
}

// Fields holds the non-identity attributes of a record.
type Fields map[string]Value

// Clone returns a deep copy of f.
func (f Fields) Clone() Fields {
	if f == nil {
		return Fields{}
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = Clone(v)
	}
	return out
}

// Keys returns the field names in sorted order.
func (f Fields) Keys() []string {
	return slices.Sorted(maps.Keys(f))
}

// Record is a unit of storage: an identity plus its raw fields.
type Record struct {
	ID     string
	Fields Fields
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	return Record{ID: r.ID, Fields: r.Fields.Clone()}
}

// Clone returns a deep copy of v. Scalars are returned as-is.
func Clone(v Value) Value {
	switch val := v.(type) {
	case Array:
		out := make(Array, len(val))
		for i, elem := range val {
			out[i] = Clone(elem)
		}
		return out
	case Object:
		out := make(Object, len(val))
		for k, elem := range val {
			out[k] = Clone(elem)
		}
		return out
	default:
		return v
	}
}
