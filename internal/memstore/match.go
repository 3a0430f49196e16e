package memstore

import (
	"cmp"

	"github.com/roach88/quarry/internal/query"
	"github.com/roach88/quarry/internal/value"
)

// Matcher returns the in-process predicate for w. A nil or empty Where
// matches every record.
func Matcher(w query.Where) func(value.Fields) bool {
	if len(w) == 0 {
		return func(value.Fields) bool { return true }
	}
	fields := w.Fields()
	return func(f value.Fields) bool {
		for _, name := range fields {
			if !MatchConstraint(w[name], f[name]) {
				return false
			}
		}
		return true
	}
}

// Match reports whether f satisfies w.
func Match(w query.Where, f value.Fields) bool {
	return Matcher(w)(f)
}

// MatchConstraint applies one constraint to a field value; v is nil when
// the field is missing.
func MatchConstraint(c query.Constraint, v value.Value) bool {
	switch c := c.(type) {
	case query.Equals:
		return equals(v, c.Value)
	case query.NotEquals:
		return !equals(v, c.Value)
	case query.Range:
		if v == nil {
			return c.IsEmpty()
		}
		for _, b := range c.Bounds() {
			cmp, ok := value.Compare(v, b.Bound)
			if !ok || !b.Op.Holds(cmp) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// equals treats a Null literal as matching missing fields as well.
func equals(v value.Value, lit value.Scalar) bool {
	switch lit.(type) {
	case nil, value.Null:
		k := value.KindOf(v)
		return k == value.KindMissing || k == value.KindNull
	}
	return value.Equal(v, lit)
}

// Comparator returns the in-process three-way comparator for s, a total
// preorder over sort values. Missing and null sort first, then numbers,
// strings, objects, arrays, booleans and dates. Within a kind numbers
// compare numerically, strings by collation, booleans false before true
// and dates by millisecond; objects and arrays tie with their own kind,
// so a stable sort keeps their store order. A nil Sort yields nil.
func Comparator(s *query.Sort) func(a, b value.Fields) int {
	if s == nil {
		return nil
	}
	sign := s.Direction.Sign()
	return func(a, b value.Fields) int {
		return CompareSortValues(a[s.By], b[s.By]) * sign
	}
}

// sortRank orders kinds the way MongoDB orders BSON types.
var sortRank = map[value.Kind]int{
	value.KindMissing: 0,
	value.KindNull:    0,
	value.KindNumber:  1,
	value.KindString:  2,
	value.KindObject:  3,
	value.KindArray:   4,
	value.KindBool:    5,
	value.KindTime:    6,
}

// CompareSortValues compares two field values (nil when missing) in
// ascending sort order.
func CompareSortValues(a, b value.Value) int {
	ka, kb := value.KindOf(a), value.KindOf(b)
	if ra, rb := sortRank[ka], sortRank[kb]; ra != rb {
		return cmp.Compare(ra, rb)
	}
	if ka == value.KindBool {
		x, y := a.(value.Bool), b.(value.Bool)
		switch {
		case x == y:
			return 0
		case !bool(x):
			return -1
		default:
			return 1
		}
	}
	c, _ := value.Compare(a, b)
	return c
}
