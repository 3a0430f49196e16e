package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// DateKey is the reserved object key used to tag dates in JSON documents.
// An object of the form {"$date": <epoch ms>} always decodes to a Time.
const DateKey = "$date"

// MarshalFields encodes fields as a JSON object with sorted keys.
// Dates are written as {"$date": <epoch ms>} and floats always carry a
// fraction or exponent so they decode back to Float.
func MarshalFields(f Fields) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeObject(&buf, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalValue encodes a single value using the same rules as MarshalFields.
func MarshalValue(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeObject[M ~map[string]Value](buf *bytes.Buffer, m M) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if k == DateKey {
			return fmt.Errorf("key %q is reserved for dates", DateKey)
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		if err := writeValue(buf, m[k]); err != nil {
			return fmt.Errorf("marshal value for key %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeValue(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case nil, Null:
		buf.WriteString("null")
	case String:
		b, err := json.Marshal(string(val))
		if err != nil {
			return err
		}
		buf.Write(b)
	case Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("float %v cannot be encoded as JSON", f)
		}
		s := strconv.FormatFloat(f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		buf.WriteString(s)
	case Bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Time:
		fmt.Fprintf(buf, `{"%s":%d}`, DateKey, val.ms)
	case Array:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, elem); err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case Object:
		return writeObject(buf, val)
	default:
		return fmt.Errorf("unknown value type: %T", v)
	}
	return nil
}

// UnmarshalFields decodes a JSON object produced by MarshalFields.
func UnmarshalFields(data []byte) (Fields, error) {
	v, err := UnmarshalValue(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(Object)
	if !ok {
		return nil, fmt.Errorf("expected JSON object, got %s", KindOf(v))
	}
	return Fields(obj), nil
}

// UnmarshalValue decodes a single JSON value.
func UnmarshalValue(data []byte) (Value, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return String(s), nil

	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return Bool(b), nil

	case 'n':
		return Null{}, nil

	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		arr := make(Array, len(raw))
		for i, elem := range raw {
			v, err := UnmarshalValue(elem)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			arr[i] = v
		}
		return arr, nil

	case '{':
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		if t, ok := decodeDate(raw); ok {
			return t, nil
		}
		obj := make(Object, len(raw))
		for k, elem := range raw {
			v, err := UnmarshalValue(elem)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			obj[k] = v
		}
		return obj, nil

	default:
		return decodeNumber(data)
	}
}

func decodeDate(raw map[string]json.RawMessage) (Time, bool) {
	if len(raw) != 1 {
		return Time{}, false
	}
	ms, ok := raw[DateKey]
	if !ok {
		return Time{}, false
	}
	n, err := strconv.ParseInt(string(bytes.TrimSpace(ms)), 10, 64)
	if err != nil {
		return Time{}, false
	}
	return TimeFromMillis(n), true
}

func decodeNumber(data []byte) (Value, error) {
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return Int(i), nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("invalid number %s: %w", s, err)
	}
	return Float(f), nil
}
