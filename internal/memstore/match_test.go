package memstore

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/roach88/quarry/internal/query"
	"github.com/roach88/quarry/internal/value"
)

func TestMatchConstraint(t *testing.T) {
	tests := []struct {
		name string
		c    query.Constraint
		v    value.Value
		want bool
	}{
		{"eq string", query.Eq(value.String("red")), value.String("red"), true},
		{"eq string differs", query.Eq(value.String("red")), value.String("blue"), false},
		{"eq int float", query.Eq(value.Int(10)), value.Float(10), true},
		{"eq kind mismatch", query.Eq(value.Int(1)), value.String("1"), false},
		{"eq missing", query.Eq(value.Int(1)), nil, false},
		{"eq null matches null", query.Eq(value.Null{}), value.Null{}, true},
		{"eq null matches missing", query.Eq(value.Null{}), nil, true},
		{"eq null rejects value", query.Eq(value.Null{}), value.Int(0), false},
		{"eq date", query.Eq(value.TimeFromMillis(9)), value.TimeFromMillis(9), true},
		{"not matches other", query.Not(value.String("red")), value.String("blue"), true},
		{"not matches null", query.Not(value.String("red")), value.Null{}, true},
		{"not matches missing", query.Not(value.String("red")), nil, true},
		{"not rejects equal", query.Not(value.String("red")), value.String("red"), false},
		{"not null rejects missing", query.Not(value.Null{}), nil, false},
		{"not null accepts value", query.Not(value.Null{}), value.Bool(false), true},
		{"range inside", query.Gt(value.Int(10)).And(query.Lte(value.Int(50))), value.Int(50), true},
		{"range edge excluded", query.Gt(value.Int(10)).And(query.Lte(value.Int(50))), value.Int(10), false},
		{"range float field", query.Gte(value.Int(1)), value.Float(1.5), true},
		{"range missing", query.Gt(value.Int(0)), nil, false},
		{"range null", query.Gt(value.Int(0)), value.Null{}, false},
		{"range string field", query.Gt(value.Int(0)), value.String("5"), false},
		{"range date", query.Lt(value.TimeFromMillis(100)), value.TimeFromMillis(99), true},
		{"range date vs number", query.Lt(value.TimeFromMillis(100)), value.Int(99), false},
		{"range mixed bounds", query.Gt(value.Int(0)).And(query.Lt(value.TimeFromMillis(100))), value.Int(5), false},
		{"empty range matches missing", query.Range{}, nil, true},
		{"empty range matches string", query.Range{}, value.String("x"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchConstraint(tt.c, tt.v))
		})
	}
}

func TestMatcherPriceExample(t *testing.T) {
	w := query.Where{"price": query.Gt(value.Int(10)).And(query.Lte(value.Int(50)))}
	match := Matcher(w)

	var got []int64
	for _, p := range []int64{5, 10, 25, 50, 60} {
		if match(value.Fields{"price": value.Int(p)}) {
			got = append(got, p)
		}
	}
	assert.Equal(t, []int64{25, 50}, got)
}

func TestMatcherConjunction(t *testing.T) {
	w := query.Where{
		"color": query.Eq(value.String("red")),
		"size":  query.Gte(value.Int(3)),
	}
	assert.True(t, Match(w, value.Fields{"color": value.String("red"), "size": value.Int(3)}))
	assert.False(t, Match(w, value.Fields{"color": value.String("red"), "size": value.Int(2)}))
	assert.True(t, Match(nil, value.Fields{}))
	assert.True(t, Match(query.Where{}, value.Fields{"a": value.Int(1)}))
}

func TestComparatorLocaleAwareDescending(t *testing.T) {
	recs := []value.Fields{
		{"name": value.String("Amy")},
		{"name": value.String("bob")},
		{"name": value.String("Zed")},
	}
	slices.SortStableFunc(recs, Comparator(&query.Sort{By: "name", Direction: query.Desc}))

	var names []string
	for _, r := range recs {
		names = append(names, string(r["name"].(value.String)))
	}
	assert.Equal(t, []string{"Zed", "bob", "Amy"}, names)
}

func TestComparatorMissingAndNullFirst(t *testing.T) {
	recs := []value.Fields{
		{"name": value.String("b"), "pos": value.Int(0)},
		{"pos": value.Int(1)},
		{"name": value.String("a"), "pos": value.Int(2)},
		{"name": value.Null{}, "pos": value.Int(3)},
	}
	slices.SortStableFunc(recs, Comparator(query.By("name")))
	assert.Equal(t, []value.Value{value.Int(1), value.Int(3), value.Int(2), value.Int(0)}, positions(recs))

	slices.SortStableFunc(recs, Comparator(query.By("name").Descending()))
	assert.Equal(t, []value.Value{value.Int(0), value.Int(2), value.Int(1), value.Int(3)}, positions(recs))
}

func TestComparatorBooleans(t *testing.T) {
	recs := []value.Fields{
		{"active": value.Bool(true), "pos": value.Int(0)},
		{"active": value.Bool(false), "pos": value.Int(1)},
		{"pos": value.Int(2)},
		{"active": value.Bool(true), "pos": value.Int(3)},
	}
	slices.SortStableFunc(recs, Comparator(query.By("active")))
	assert.Equal(t, []value.Value{value.Int(2), value.Int(1), value.Int(0), value.Int(3)}, positions(recs))
}

func TestComparatorKindOrder(t *testing.T) {
	ordered := []value.Value{
		nil,
		value.Int(5),
		value.String("a"),
		value.Object{"x": value.Int(1)},
		value.Array{value.Int(1)},
		value.Bool(false),
		value.TimeFromMillis(0),
	}
	for i := range ordered {
		for j := range ordered {
			got := CompareSortValues(ordered[i], ordered[j])
			switch {
			case i < j:
				assert.Negative(t, got, "%d vs %d", i, j)
			case i > j:
				assert.Positive(t, got, "%d vs %d", i, j)
			default:
				assert.Zero(t, got)
			}
		}
	}
	assert.Zero(t, CompareSortValues(nil, value.Null{}))
	assert.Zero(t, CompareSortValues(value.Array{value.Int(2)}, value.Array{value.Int(1)}))
}

func positions(recs []value.Fields) []value.Value {
	out := make([]value.Value, len(recs))
	for i, r := range recs {
		out[i] = r["pos"]
	}
	return out
}

func TestComparatorNumbersAndDates(t *testing.T) {
	asc := Comparator(query.By("v"))
	assert.Negative(t, asc(value.Fields{"v": value.Int(1)}, value.Fields{"v": value.Float(1.5)}))
	assert.Positive(t, asc(value.Fields{"v": value.TimeFromMillis(2)}, value.Fields{"v": value.TimeFromMillis(1)}))

	desc := Comparator(query.By("v").Descending())
	assert.Positive(t, desc(value.Fields{"v": value.Int(1)}, value.Fields{"v": value.Int(2)}))
	assert.Nil(t, Comparator(nil))
}
