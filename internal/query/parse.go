package query

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/quarry/internal/value"
)

// ParseWhere classifies a decoded clause (from YAML, JSON or CUE) into
// typed constraints:
//
//	scalar or null            Equals
//	{not: v}                  NotEquals (range keys next to "not" are ignored)
//	{gt|gte|lt|lte: bound}    Range
//	{"$date": ...}, time.Time Equals with a date literal
//
// Anything else fails with ErrInvalidConstraint. The result is validated.
func ParseWhere(m map[string]any) (Where, error) {
	if len(m) == 0 {
		return nil, nil
	}
	w := make(Where, len(m))
	for field, raw := range m {
		c, err := ParseConstraint(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		w[field] = c
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// ParseConstraint classifies a single decoded constraint.
func ParseConstraint(raw any) (Constraint, error) {
	obj, isMap := raw.(map[string]any)
	if !isMap || isDate(obj) {
		s, err := parseScalar(raw)
		if err != nil {
			return nil, err
		}
		return Eq(s), nil
	}

	if v, ok := obj["not"]; ok {
		for k := range obj {
			if k != "not" && !isRangeKey(k) {
				return nil, fmt.Errorf("%w: unexpected key %q next to \"not\"", ErrInvalidConstraint, k)
			}
		}
		s, err := parseScalar(v)
		if err != nil {
			return nil, fmt.Errorf("not: %w", err)
		}
		return Not(s), nil
	}

	var r Range
	for k, v := range obj {
		if !isRangeKey(k) {
			return nil, fmt.Errorf("%w: unexpected key %q", ErrInvalidConstraint, k)
		}
		b, err := parseBound(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		switch Op(k) {
		case OpGt:
			r.Gt = b
		case OpGte:
			r.Gte = b
		case OpLt:
			r.Lt = b
		case OpLte:
			r.Lte = b
		}
	}
	return r, nil
}

func isRangeKey(k string) bool {
	switch Op(k) {
	case OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

func isDate(m map[string]any) bool {
	_, ok := m[value.DateKey]
	return ok && len(m) == 1
}

func parseScalar(raw any) (value.Scalar, error) {
	v, err := value.FromGo(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConstraint, err)
	}
	s, ok := v.(value.Scalar)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a scalar", ErrInvalidConstraint, value.KindOf(v))
	}
	return s, nil
}

func parseBound(raw any) (value.Bound, error) {
	switch raw.(type) {
	case time.Time, map[string]any, json.Number:
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
	case value.Int, value.Float, value.Time:
	default:
		return nil, fmt.Errorf("%w: bound must be a number or date, got %T", ErrInvalidConstraint, raw)
	}
	s, err := parseScalar(raw)
	if err != nil {
		return nil, err
	}
	b, ok := s.(value.Bound)
	if !ok {
		return nil, fmt.Errorf("%w: bound must be a number or date, got %s", ErrInvalidConstraint, value.KindOf(s))
	}
	return b, nil
}

// ParseSort builds a Sort from a field name and a direction string.
// An empty field yields nil; an empty direction means ascending.
func ParseSort(field, direction string) (*Sort, error) {
	if field == "" {
		return nil, nil
	}
	d := Direction(strings.ToLower(direction))
	if d == "" {
		d = Asc
	}
	s := &Sort{By: field, Direction: d}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
