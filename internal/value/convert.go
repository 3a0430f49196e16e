package value

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// FromGo converts a decoded Go value (from encoding/json, yaml.v3 or plain
// Go literals) into a Value. A map with the single key "$date" holding an
// RFC 3339 string or epoch milliseconds becomes a Time.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint:
		if uint64(val) > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64", val)
		}
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64", val)
		}
		return Int(val), nil
	case float32:
		return Float(val), nil
	case float64:
		return Float(val), nil
	case json.Number:
		return decodeNumber([]byte(val.String()))
	case time.Time:
		return NewTime(val), nil
	case []string:
		arr := make(Array, len(val))
		for i, s := range val {
			arr[i] = String(s)
		}
		return arr, nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			ev, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			arr[i] = ev
		}
		return arr, nil
	case map[string]any:
		if t, ok, err := dateFromMap(val); ok || err != nil {
			return t, err
		}
		obj := make(Object, len(val))
		for k, elem := range val {
			ev, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			obj[k] = ev
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported Go type %T", v)
	}
}

// FieldsFromGo converts a decoded map into Fields.
func FieldsFromGo(m map[string]any) (Fields, error) {
	out := make(Fields, len(m))
	for k, elem := range m {
		v, err := FromGo(elem)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// dateFromMap recognises the {"$date": ...} form. ok is false when m is
// not a date; err is set when it is but the payload is malformed.
func dateFromMap(m map[string]any) (Time, bool, error) {
	if len(m) != 1 {
		return Time{}, false, nil
	}
	raw, ok := m[DateKey]
	if !ok {
		return Time{}, false, nil
	}
	t, err := ParseDate(raw)
	if err != nil {
		return Time{}, true, err
	}
	return t, true, nil
}

// ParseDate accepts an RFC 3339 string, epoch milliseconds or a time.Time.
func ParseDate(raw any) (Time, error) {
	switch d := raw.(type) {
	case time.Time:
		return NewTime(d), nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, d)
		if err != nil {
			return Time{}, fmt.Errorf("invalid date %q: %w", d, err)
		}
		return NewTime(t), nil
	case int:
		return TimeFromMillis(int64(d)), nil
	case int64:
		return TimeFromMillis(d), nil
	case float64:
		if d != math.Trunc(d) {
			return Time{}, fmt.Errorf("invalid date %v: epoch milliseconds must be integral", d)
		}
		return TimeFromMillis(int64(d)), nil
	case json.Number:
		ms, err := d.Int64()
		if err != nil {
			return Time{}, fmt.Errorf("invalid date %s: %w", d, err)
		}
		return TimeFromMillis(ms), nil
	default:
		return Time{}, fmt.Errorf("invalid date of type %T", raw)
	}
}

// ToGo converts a Value into plain Go types: nil, string, int64, float64,
// bool, time.Time, []any and map[string]any.
func ToGo(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case Bool:
		return bool(val)
	case Time:
		return val.Std()
	case Array:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToGo(elem)
		}
		return out
	case Object:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToGo(elem)
		}
		return out
	default:
		return nil
	}
}

// FieldsToGo converts Fields into a plain map.
func FieldsToGo(f Fields) map[string]any {
	return ToGo(Object(f)).(map[string]any)
}
