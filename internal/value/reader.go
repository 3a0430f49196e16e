package value

import (
	"fmt"
	"math"
	"time"
)

// FieldError reports a field that is missing or holds the wrong kind.
type FieldError struct {
	Field string
	Want  Kind
	Got   Kind
}

func (e *FieldError) Error() string {
	if e.Got == KindMissing {
		return fmt.Sprintf("field %q: missing, want %s", e.Field, e.Want)
	}
	return fmt.Sprintf("field %q: want %s, got %s", e.Field, e.Want, e.Got)
}

// Reader extracts typed fields from raw Fields. The first failure is
// kept and every later accessor returns a zero value, so a Deserialize
// implementation can read all its fields and check Err once.
//
//	r := value.NewReader(raw)
//	w := Widget{Name: r.String("name"), Count: r.Int("count")}
//	if err := r.Err(); err != nil { ... }
type Reader struct {
	fields Fields
	err    error
}

// NewReader returns a Reader over f.
func NewReader(f Fields) *Reader {
	return &Reader{fields: f}
}

// Err returns the first error encountered, or nil.
func (r *Reader) Err() error { return r.err }

// Has reports whether name is present and not null.
func (r *Reader) Has(name string) bool {
	k := KindOf(r.fields[name])
	return k != KindMissing && k != KindNull
}

func (r *Reader) fail(name string, want Kind) {
	if r.err == nil {
		r.err = &FieldError{Field: name, Want: want, Got: KindOf(r.fields[name])}
	}
}

// String reads a required string field.
func (r *Reader) String(name string) string {
	if r.err != nil {
		return ""
	}
	s, ok := r.fields[name].(String)
	if !ok {
		r.fail(name, KindString)
		return ""
	}
	return string(s)
}

// Int reads a required integer field. A Float holding an integral value is
// accepted since some stores widen numbers on the way back.
func (r *Reader) Int(name string) int64 {
	if r.err != nil {
		return 0
	}
	switch v := r.fields[name].(type) {
	case Int:
		return int64(v)
	case Float:
		if f := float64(v); f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
			return int64(f)
		}
	}
	r.fail(name, KindNumber)
	return 0
}

// Float reads a required numeric field.
func (r *Reader) Float(name string) float64 {
	if r.err != nil {
		return 0
	}
	switch v := r.fields[name].(type) {
	case Int:
		return float64(v)
	case Float:
		return float64(v)
	}
	r.fail(name, KindNumber)
	return 0
}

// Bool reads a required boolean field.
func (r *Reader) Bool(name string) bool {
	if r.err != nil {
		return false
	}
	b, ok := r.fields[name].(Bool)
	if !ok {
		r.fail(name, KindBool)
		return false
	}
	return bool(b)
}

// Time reads a required date field.
func (r *Reader) Time(name string) time.Time {
	if r.err != nil {
		return time.Time{}
	}
	t, ok := r.fields[name].(Time)
	if !ok {
		r.fail(name, KindTime)
		return time.Time{}
	}
	return t.Std()
}

// Strings reads a required array of strings.
func (r *Reader) Strings(name string) []string {
	if r.err != nil {
		return nil
	}
	arr, ok := r.fields[name].(Array)
	if !ok {
		r.fail(name, KindArray)
		return nil
	}
	out := make([]string, 0, len(arr))
	for i, elem := range arr {
		s, ok := elem.(String)
		if !ok {
			if r.err == nil {
				r.err = &FieldError{Field: fmt.Sprintf("%s[%d]", name, i), Want: KindString, Got: KindOf(elem)}
			}
			return nil
		}
		out = append(out, string(s))
	}
	return out
}

// OptString reads a string field that may be missing or null.
func (r *Reader) OptString(name string) string {
	if !r.Has(name) {
		return ""
	}
	return r.String(name)
}

// OptInt reads an integer field that may be missing or null.
func (r *Reader) OptInt(name string, def int64) int64 {
	if !r.Has(name) {
		return def
	}
	return r.Int(name)
}

// OptBool reads a boolean field that may be missing or null.
func (r *Reader) OptBool(name string) bool {
	if !r.Has(name) {
		return false
	}
	return r.Bool(name)
}

// OptTime reads a date field that may be missing or null; ok is false when
// absent.
func (r *Reader) OptTime(name string) (t time.Time, ok bool) {
	if !r.Has(name) {
		return time.Time{}, false
	}
	t = r.Time(name)
	return t, r.err == nil
}
