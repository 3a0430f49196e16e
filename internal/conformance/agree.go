package conformance

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quarry/internal/memstore"
	"github.com/roach88/quarry/internal/query"
	"github.com/roach88/quarry/internal/testutil"
	"github.com/roach88/quarry/internal/value"
)

// AgreeOptions sizes a generated comparison.
type AgreeOptions struct {
	Seed    uint64
	Records int
	Queries int
}

// DefaultAgreeOptions is what Agree uses.
var DefaultAgreeOptions = AgreeOptions{Seed: 20240101, Records: 80, Queries: 300}

// Agree loads the same generated dataset into a store from open and into
// the in-process reference store, then checks that generated queries
// return identical ids in identical order, and identical counts.
//
// Each sort field holds one kind, possibly missing or null; ordering of
// mixed kinds is backend-defined.
func Agree(t *testing.T, open Opener) {
	AgreeWith(t, open, DefaultAgreeOptions)
}

// AgreeWith is Agree with explicit options.
func AgreeWith(t *testing.T, open Opener, opts AgreeOptions) {
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	ref := memstore.New()
	st := open(t)
	const coll = "agree"
	for i := 0; i < opts.Records; i++ {
		r := genRecord(rng, i)
		require.NoError(t, ref.Collection(coll).Insert(ctx, r))
		require.NoError(t, st.Collection(coll).Insert(ctx, r))
	}

	for i := 0; i < opts.Queries; i++ {
		q := genFind(rng)
		desc := describe(q)

		want, err := ref.Collection(coll).Find(ctx, q)
		require.NoError(t, err, desc)
		got, err := st.Collection(coll).Find(ctx, q)
		require.NoError(t, err, desc)
		if !assert.Equal(t, ids(want), ids(got), "query %d: %s", i, desc) {
			continue
		}

		wantN, err := ref.Collection(coll).Count(ctx, q.Where)
		require.NoError(t, err, desc)
		gotN, err := st.Collection(coll).Count(ctx, q.Where)
		require.NoError(t, err, desc)
		assert.Equal(t, wantN, gotN, "count %d: %s", i, desc)
	}
}

var (
	names  = []string{"Amy", "amy", "bob", "Bob", "Zed", "zoe", "Émile", "eve", "Ève", "carl"}
	colors = []string{"red", "blue", "green", "Red"}
)

func pick[T any](rng *rand.Rand, xs []T) T { return xs[rng.IntN(len(xs))] }

func genDay(rng *rand.Rand) value.Time {
	return value.NewTime(testutil.Epoch.AddDate(0, 0, rng.IntN(12)))
}

func genNumber(rng *rand.Rand, n int) value.Scalar {
	if rng.IntN(2) == 0 {
		return value.Int(rng.IntN(n))
	}
	return value.Float(float64(rng.IntN(n)) + 0.5)
}

// genRecord always sets name, rank and at; the other fields may be
// missing, null or of an unexpected kind. active, seen and score only
// ever hold their own kind when present.
func genRecord(rng *rand.Rand, i int) value.Record {
	f := value.Fields{
		"name": value.String(pick(rng, names)),
		"rank": genNumber(rng, 8),
		"at":   genDay(rng),
		"tags": value.Array{value.String(pick(rng, colors)), value.Int(rng.IntN(3))},
	}
	switch rng.IntN(6) {
	case 0:
	case 1:
		f["price"] = value.Null{}
	case 2:
		f["price"] = value.String("free")
	default:
		f["price"] = genNumber(rng, 100)
	}
	switch rng.IntN(6) {
	case 0:
	case 1:
		f["color"] = value.Null{}
	case 2:
		f["color"] = value.Int(1)
	default:
		f["color"] = value.String(pick(rng, colors))
	}
	if rng.IntN(3) > 0 {
		f["active"] = value.Bool(rng.IntN(2) == 0)
	}
	if rng.IntN(4) == 0 {
		f["seen"] = genDay(rng)
	}
	switch rng.IntN(4) {
	case 0:
	case 1:
		f["score"] = value.Null{}
	default:
		f["score"] = genNumber(rng, 20)
	}
	return value.Record{ID: fmt.Sprintf("r%03d", i), Fields: f}
}

func genRange(rng *rand.Rand, bound func() value.Bound) query.Range {
	var r query.Range
	if rng.IntN(2) == 0 {
		if rng.IntN(2) == 0 {
			r.Gt = bound()
		} else {
			r.Gte = bound()
		}
	}
	if rng.IntN(2) == 0 {
		if rng.IntN(2) == 0 {
			r.Lt = bound()
		} else {
			r.Lte = bound()
		}
	}
	return r
}

func genConstraint(rng *rand.Rand, field string) query.Constraint {
	num := func() value.Bound { return genNumber(rng, 100).(value.Bound) }
	day := func() value.Bound { return genDay(rng) }

	switch field {
	case "price", "rank", "score":
		switch rng.IntN(5) {
		case 0:
			return query.Eq(genNumber(rng, 8))
		case 1:
			return query.Not(genNumber(rng, 8))
		case 2:
			if rng.IntN(2) == 0 {
				return query.Eq(nil)
			}
			return query.Not(nil)
		case 3:
			return genRange(rng, day)
		default:
			if field == "rank" {
				return genRange(rng, func() value.Bound { return genNumber(rng, 8).(value.Bound) })
			}
			return genRange(rng, num)
		}
	case "at", "seen":
		switch rng.IntN(4) {
		case 0:
			return query.Eq(genDay(rng))
		case 1:
			return query.Not(genDay(rng))
		case 2:
			return genRange(rng, num)
		default:
			return genRange(rng, day)
		}
	case "color":
		switch rng.IntN(4) {
		case 0:
			return query.Eq(value.String(pick(rng, colors)))
		case 1:
			return query.Not(value.String(pick(rng, colors)))
		case 2:
			return query.Eq(value.Int(1))
		default:
			return query.Not(nil)
		}
	case "active":
		if rng.IntN(2) == 0 {
			return query.Eq(value.Bool(rng.IntN(2) == 0))
		}
		return query.Not(value.Bool(rng.IntN(2) == 0))
	default: // name
		if rng.IntN(2) == 0 {
			return query.Eq(value.String(pick(rng, names)))
		}
		return query.Not(value.String(pick(rng, names)))
	}
}

func genFind(rng *rand.Rand) query.Find {
	var q query.Find
	fields := []string{"price", "rank", "score", "at", "seen", "color", "active", "name"}
	rng.Shuffle(len(fields), func(i, j int) { fields[i], fields[j] = fields[j], fields[i] })
	if n := rng.IntN(4); n > 0 {
		q.Where = query.Where{}
		for _, f := range fields[:n] {
			q.Where[f] = genConstraint(rng, f)
		}
	}
	if rng.IntN(4) > 0 {
		q.Sort = query.By(pick(rng, []string{"name", "rank", "at", "score", "seen", "active"}))
		if rng.IntN(2) == 0 {
			q.Sort = q.Sort.Descending()
		}
	}
	if rng.IntN(3) == 0 {
		q.Limit = 1 + rng.IntN(10)
	}
	return q
}

// describe renders q for failure messages.
func describe(q query.Find) string {
	var b strings.Builder
	b.WriteString("where {")
	for i, f := range q.Where.Fields() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %s", f, describeConstraint(q.Where[f]))
	}
	b.WriteString("}")
	if q.Sort != nil {
		fmt.Fprintf(&b, " sort %s %s", q.Sort.By, q.Sort.Direction)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " limit %d", q.Limit)
	}
	return b.String()
}

func describeConstraint(c query.Constraint) string {
	switch c := c.(type) {
	case query.Equals:
		return fmt.Sprintf("%#v", c.Value)
	case query.NotEquals:
		return fmt.Sprintf("{not: %#v}", c.Value)
	case query.Range:
		parts := make([]string, 0, 4)
		for _, b := range c.Bounds() {
			parts = append(parts, fmt.Sprintf("%s: %#v", b.Op, b.Bound))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return fmt.Sprintf("%T", c)
}
