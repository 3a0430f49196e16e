package value

import (
	"cmp"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// CollationLocale is the locale used for text ordering on every backend.
var CollationLocale = language.English

// collators pools collate.Collator instances; a Collator keeps internal
// buffers and must not be shared between goroutines.
var collators = sync.Pool{
	New: func() any { return collate.New(CollationLocale) },
}

// Collate compares two strings using locale-aware collation.
// Returns -1, 0 or +1. Safe for concurrent use.
func Collate(a, b string) int {
	c := collators.Get().(*collate.Collator)
	defer collators.Put(c)
	return c.CompareString(a, b)
}

// Equal reports whether a and b hold the same value. Int and Float compare
// numerically, Time by millisecond, String byte-wise. Values of different
// kinds are never equal. Arrays and objects compare element-wise.
func Equal(a, b Value) bool {
	ka, kb := KindOf(a), KindOf(b)
	if ka != kb {
		return false
	}
	switch ka {
	case KindMissing, KindNull:
		return true
	case KindNumber:
		c, _ := CompareNumbers(a, b)
		return c == 0
	case KindString:
		return a.(String) == b.(String)
	case KindBool:
		return a.(Bool) == b.(Bool)
	case KindTime:
		return a.(Time).ms == b.(Time).ms
	case KindArray:
		x, y := a.(Array), b.(Array)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case KindObject:
		x, y := a.(Object), b.(Object)
		if len(x) != len(y) {
			return false
		}
		for k, v := range x {
			w, ok := y[k]
			if !ok || !Equal(v, w) {
				return false
			}
		}
		return true
	}
	return false
}

// CompareNumbers compares two numeric values. The second result is false
// when either value is not a number.
func CompareNumbers(a, b Value) (int, bool) {
	switch x := a.(type) {
	case Int:
		switch y := b.(type) {
		case Int:
			return cmp.Compare(x, y), true
		case Float:
			return cmp.Compare(float64(x), float64(y)), true
		}
	case Float:
		switch y := b.(type) {
		case Int:
			return cmp.Compare(float64(x), float64(y)), true
		case Float:
			return cmp.Compare(x, y), true
		}
	}
	return 0, false
}

// Compare orders two values of the same comparable kind: numbers, times or
// strings (collated). The second result is false for any other combination.
func Compare(a, b Value) (int, bool) {
	switch x := a.(type) {
	case Int, Float:
		return CompareNumbers(a, b)
	case Time:
		if y, ok := b.(Time); ok {
			return cmp.Compare(x.ms, y.ms), true
		}
	case String:
		if y, ok := b.(String); ok {
			return Collate(string(x), string(y)), true
		}
	}
	return 0, false
}
