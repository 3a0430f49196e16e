package conformance

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quarry/internal/backend"
	"github.com/roach88/quarry/internal/migrate"
	"github.com/roach88/quarry/internal/query"
	"github.com/roach88/quarry/internal/repo"
	"github.com/roach88/quarry/internal/testutil"
	"github.com/roach88/quarry/internal/value"
)

// Opener returns a fresh, empty store. It should register its own cleanup.
type Opener func(t *testing.T) backend.Store

// Run executes the full property suite against the stores open returns.
// Every subtest gets its own store.
func Run(t *testing.T, open Opener) {
	t.Run("WhereExamples", func(t *testing.T) { testWhereExamples(t, open(t)) })
	t.Run("NullAndMissing", func(t *testing.T) { testNullAndMissing(t, open(t)) })
	t.Run("KindClasses", func(t *testing.T) { testKindClasses(t, open(t)) })
	t.Run("Dates", func(t *testing.T) { testDates(t, open(t)) })
	t.Run("SortExamples", func(t *testing.T) { testSortExamples(t, open(t)) })
	t.Run("SortStableTies", func(t *testing.T) { testSortStableTies(t, open(t)) })
	t.Run("SortMissingNullAndBool", func(t *testing.T) { testSortMissingNullAndBool(t, open(t)) })
	t.Run("FilterSortLimit", func(t *testing.T) { testFilterSortLimit(t, open(t)) })
	t.Run("CountMatchesFind", func(t *testing.T) { testCountMatchesFind(t, open(t)) })
	t.Run("InvalidQueries", func(t *testing.T) { testInvalidQueries(t, open(t)) })
	t.Run("RecordLifecycle", func(t *testing.T) { testRecordLifecycle(t, open(t)) })
	t.Run("InvalidRecords", func(t *testing.T) { testInvalidRecords(t, open(t)) })
	t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, open(t)) })
	t.Run("Collections", func(t *testing.T) { testCollections(t, open(t)) })
	t.Run("Repository", func(t *testing.T) { testRepository(t, open(t)) })
	t.Run("MigrationIdempotent", func(t *testing.T) { testMigrationIdempotent(t, open(t)) })
	t.Run("MigrationDelete", func(t *testing.T) { testMigrationDelete(t, open(t)) })
	t.Run("MigrationRenameDrop", func(t *testing.T) { testMigrationRenameDrop(t, open(t)) })
	t.Run("MigrationAbort", func(t *testing.T) { testMigrationAbort(t, open(t)) })
}

func seed(t *testing.T, st backend.Store, coll string, recs ...value.Record) {
	t.Helper()
	c := st.Collection(coll)
	for _, rec := range recs {
		require.NoError(t, c.Insert(context.Background(), rec))
	}
}

func rec(id string, kv ...any) value.Record {
	f := value.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		f[kv[i].(string)] = kv[i+1].(value.Value)
	}
	return value.Record{ID: id, Fields: f}
}

func findIDs(t *testing.T, st backend.Store, coll string, q query.Find) []string {
	t.Helper()
	recs, err := st.Collection(coll).Find(context.Background(), q)
	require.NoError(t, err)
	return ids(recs)
}

func ids(recs []value.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func quietHandler(st backend.Store) *migrate.Handler {
	return migrate.NewHandler(st,
		migrate.WithClock(testutil.NewStepClock()),
		migrate.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func testWhereExamples(t *testing.T, st backend.Store) {
	seed(t, st, "items",
		rec("p5", "price", value.Int(5)),
		rec("p10", "price", value.Int(10)),
		rec("p25", "price", value.Int(25)),
		rec("p50", "price", value.Int(50)),
		rec("p60", "price", value.Int(60)),
	)
	got := findIDs(t, st, "items", query.Find{
		Where: query.Where{"price": query.Gt(value.Int(10)).And(query.Lte(value.Int(50)))},
	})
	assert.Equal(t, []string{"p25", "p50"}, got)

	seed(t, st, "paint",
		rec("red", "color", value.String("red")),
		rec("blue", "color", value.String("blue")),
		rec("null", "color", value.Null{}),
	)
	got = findIDs(t, st, "paint", query.Find{
		Where: query.Where{"color": query.Not(value.String("red"))},
	})
	assert.Equal(t, []string{"blue", "null"}, got)

	// Every field of a clause must hold.
	seed(t, st, "combo",
		rec("a", "color", value.String("red"), "price", value.Int(20)),
		rec("b", "color", value.String("red"), "price", value.Int(80)),
		rec("c", "color", value.String("blue"), "price", value.Int(20)),
	)
	got = findIDs(t, st, "combo", query.Find{Where: query.Where{
		"color": query.Eq(value.String("red")),
		"price": query.Lt(value.Int(50)),
	}})
	assert.Equal(t, []string{"a"}, got)

	// No clause and an empty clause both match everything.
	assert.Equal(t, []string{"a", "b", "c"}, findIDs(t, st, "combo", query.Find{}))
	assert.Equal(t, []string{"a", "b", "c"}, findIDs(t, st, "combo", query.Find{Where: query.Where{}}))
}

func testNullAndMissing(t *testing.T, st backend.Store) {
	seed(t, st, "things",
		rec("missing"),
		rec("null", "tag", value.Null{}),
		rec("set", "tag", value.String("x")),
		rec("other", "tag", value.String("y")),
	)

	assert.Equal(t, []string{"missing", "null"},
		findIDs(t, st, "things", query.Find{Where: query.Where{"tag": query.Eq(nil)}}))
	assert.Equal(t, []string{"set", "other"},
		findIDs(t, st, "things", query.Find{Where: query.Where{"tag": query.Not(nil)}}))
	assert.Equal(t, []string{"missing", "null", "other"},
		findIDs(t, st, "things", query.Find{Where: query.Where{"tag": query.Not(value.String("x"))}}))

	// An empty range imposes nothing, even on a missing field.
	assert.Equal(t, []string{"missing", "null", "set", "other"},
		findIDs(t, st, "things", query.Find{Where: query.Where{"tag": query.Range{}}}))

	// A bounded range never matches a missing or null field.
	assert.Empty(t, findIDs(t, st, "things", query.Find{Where: query.Where{"tag": query.Gte(value.Int(0))}}))
}

func testKindClasses(t *testing.T, st backend.Store) {
	seed(t, st, "mixed",
		rec("int", "v", value.Int(10)),
		rec("float", "v", value.Float(10)),
		rec("half", "v", value.Float(10.5)),
		rec("str", "v", value.String("10")),
		rec("bool", "v", value.Bool(true)),
		rec("false", "v", value.Bool(false)),
	)

	// Int and Float are one class.
	assert.Equal(t, []string{"int", "float"},
		findIDs(t, st, "mixed", query.Find{Where: query.Where{"v": query.Eq(value.Int(10))}}))
	assert.Equal(t, []string{"int", "float"},
		findIDs(t, st, "mixed", query.Find{Where: query.Where{"v": query.Eq(value.Float(10))}}))
	assert.Equal(t, []string{"str"},
		findIDs(t, st, "mixed", query.Find{Where: query.Where{"v": query.Eq(value.String("10"))}}))
	assert.Equal(t, []string{"bool"},
		findIDs(t, st, "mixed", query.Find{Where: query.Where{"v": query.Eq(value.Bool(true))}}))
	assert.Equal(t, []string{"int", "float", "half", "str", "bool"},
		findIDs(t, st, "mixed", query.Find{Where: query.Where{"v": query.Not(value.Bool(false))}}))

	// Numeric bounds skip other kinds.
	assert.Equal(t, []string{"half"},
		findIDs(t, st, "mixed", query.Find{Where: query.Where{"v": query.Gt(value.Int(10))}}))
	assert.Equal(t, []string{"int", "float", "half"},
		findIDs(t, st, "mixed", query.Find{Where: query.Where{"v": query.Gte(value.Float(9.5))}}))
}

func testDates(t *testing.T, st backend.Store) {
	day := func(n int) value.Time { return value.NewTime(testutil.Epoch.AddDate(0, 0, n)) }
	seed(t, st, "events",
		rec("d3", "at", day(3)),
		rec("d1", "at", day(1)),
		rec("d2", "at", day(2)),
		rec("num", "at", value.Int(day(2).Millis())),
		rec("none"),
	)

	assert.Equal(t, []string{"d2"},
		findIDs(t, st, "events", query.Find{Where: query.Where{"at": query.Eq(day(2))}}))
	assert.Equal(t, []string{"d3", "d2"},
		findIDs(t, st, "events", query.Find{Where: query.Where{"at": query.Gte(day(2))}}))
	assert.Equal(t, []string{"d1", "d2"},
		findIDs(t, st, "events", query.Find{Where: query.Where{"at": query.Gt(day(0)).And(query.Lt(day(3)))}}))
	assert.Equal(t, []string{"d3", "d1", "num", "none"},
		findIDs(t, st, "events", query.Find{Where: query.Where{"at": query.Not(day(2))}}))

	assert.Equal(t, []string{"d1", "d2", "d3"}, findIDs(t, st, "events", query.Find{
		Where: query.Where{"at": query.Gte(day(0))},
		Sort:  query.By("at"),
	}))
	assert.Equal(t, []string{"d3", "d2", "d1"}, findIDs(t, st, "events", query.Find{
		Where: query.Where{"at": query.Gte(day(0))},
		Sort:  query.By("at").Descending(),
	}))
}

func testSortExamples(t *testing.T, st backend.Store) {
	seed(t, st, "people",
		rec("zed", "name", value.String("Zed")),
		rec("amy", "name", value.String("Amy")),
		rec("bob", "name", value.String("bob")),
	)
	assert.Equal(t, []string{"amy", "bob", "zed"},
		findIDs(t, st, "people", query.Find{Sort: query.By("name")}))
	assert.Equal(t, []string{"zed", "bob", "amy"},
		findIDs(t, st, "people", query.Find{Sort: query.By("name").Descending()}))

	seed(t, st, "scores",
		rec("s2", "score", value.Float(2.5)),
		rec("s10", "score", value.Int(10)),
		rec("s1", "score", value.Int(1)),
		rec("s-3", "score", value.Int(-3)),
	)
	assert.Equal(t, []string{"s-3", "s1", "s2", "s10"},
		findIDs(t, st, "scores", query.Find{Sort: query.By("score")}))
	assert.Equal(t, []string{"s10", "s2", "s1", "s-3"},
		findIDs(t, st, "scores", query.Find{Sort: query.By("score").Descending()}))

	// No sort keeps insertion order.
	assert.Equal(t, []string{"s2", "s10", "s1", "s-3"}, findIDs(t, st, "scores", query.Find{}))
}

func testSortStableTies(t *testing.T, st backend.Store) {
	seed(t, st, "ties",
		rec("a", "rank", value.Int(2)),
		rec("b", "rank", value.Int(1)),
		rec("c", "rank", value.Int(2)),
		rec("d", "rank", value.Float(1)),
		rec("e", "rank", value.Int(2)),
	)
	assert.Equal(t, []string{"b", "d", "a", "c", "e"},
		findIDs(t, st, "ties", query.Find{Sort: query.By("rank")}))
	assert.Equal(t, []string{"a", "c", "e", "b", "d"},
		findIDs(t, st, "ties", query.Find{Sort: query.By("rank").Descending()}))
}

func testSortMissingNullAndBool(t *testing.T, st backend.Store) {
	seed(t, st, "people",
		rec("b", "name", value.String("b"), "active", value.Bool(true)),
		rec("n", "active", value.Bool(false)),
		rec("a", "name", value.String("a")),
		rec("z", "name", value.Null{}, "active", value.Bool(true)),
	)
	assert.Equal(t, []string{"n", "z", "a", "b"},
		findIDs(t, st, "people", query.Find{Sort: query.By("name")}))
	assert.Equal(t, []string{"b", "a", "n", "z"},
		findIDs(t, st, "people", query.Find{Sort: query.By("name").Descending()}))
	assert.Equal(t, []string{"a", "n", "b", "z"},
		findIDs(t, st, "people", query.Find{Sort: query.By("active")}))
	assert.Equal(t, []string{"b", "z", "n", "a"},
		findIDs(t, st, "people", query.Find{Sort: query.By("active").Descending()}))
}

func testFilterSortLimit(t *testing.T, st backend.Store) {
	seed(t, st, "widgets",
		rec("w1", "count", value.Int(5), "active", value.Bool(true)),
		rec("w2", "count", value.Int(9), "active", value.Bool(false)),
		rec("w3", "count", value.Int(7), "active", value.Bool(true)),
		rec("w4", "count", value.Int(1), "active", value.Bool(true)),
		rec("w5", "count", value.Int(8), "active", value.Bool(true)),
	)
	got := findIDs(t, st, "widgets", query.Find{
		Where: query.Where{"active": query.Eq(value.Bool(true))},
		Sort:  query.By("count").Descending(),
		Limit: 2,
	})
	assert.Equal(t, []string{"w5", "w3"}, got)

	got = findIDs(t, st, "widgets", query.Find{Limit: 3})
	assert.Equal(t, []string{"w1", "w2", "w3"}, got)

	got = findIDs(t, st, "widgets", query.Find{Limit: 50})
	assert.Len(t, got, 5)
}

func testCountMatchesFind(t *testing.T, st backend.Store) {
	ctx := context.Background()
	seed(t, st, "stock",
		rec("a", "price", value.Int(5), "color", value.String("red")),
		rec("b", "price", value.Float(12.5), "color", value.String("blue")),
		rec("c", "price", value.Null{}),
		rec("d", "color", value.String("red")),
		rec("e", "price", value.String("free"), "color", value.Int(3)),
	)
	clauses := []query.Where{
		nil,
		{"price": query.Gt(value.Int(0))},
		{"price": query.Eq(nil)},
		{"color": query.Not(value.String("red"))},
		{"color": query.Eq(value.String("red")), "price": query.Lte(value.Int(5))},
		{"price": query.Range{}},
		{"nosuchfield": query.Eq(value.Int(1))},
	}
	coll := st.Collection("stock")
	for i, w := range clauses {
		n, err := coll.Count(ctx, w)
		require.NoError(t, err)
		found, err := coll.Find(ctx, query.Find{Where: w})
		require.NoError(t, err)
		assert.Equal(t, len(found), n, "clause %d", i)
	}

	n, err := st.Collection("empty").Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testInvalidQueries(t *testing.T, st backend.Store) {
	ctx := context.Background()
	coll := st.Collection("things")

	_, err := coll.Find(ctx, query.Find{Where: query.Where{"a.b": query.Eq(value.Int(1))}})
	assert.ErrorIs(t, err, query.ErrInvalidField)

	_, err = coll.Find(ctx, query.Find{Sort: &query.Sort{By: "a", Direction: "sideways"}})
	assert.ErrorIs(t, err, query.ErrInvalidDirection)

	_, err = coll.Find(ctx, query.Find{Limit: -1})
	assert.ErrorIs(t, err, query.ErrInvalidLimit)

	_, err = coll.Count(ctx, query.Where{"_id": query.Eq(value.String("x"))})
	assert.ErrorIs(t, err, query.ErrInvalidField)

	_, err = coll.DeleteMany(ctx, query.Where{"$where": query.Eq(value.Int(1))})
	assert.ErrorIs(t, err, query.ErrInvalidField)
}

func testRecordLifecycle(t *testing.T, st backend.Store) {
	ctx := context.Background()
	coll := st.Collection("records")

	_, ok, err := coll.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, coll.Insert(ctx, rec("a", "n", value.Int(1))))
	require.NoError(t, coll.Insert(ctx, rec("b", "n", value.Int(2))))
	require.NoError(t, coll.Insert(ctx, rec("c", "n", value.Int(3))))

	err = coll.Insert(ctx, rec("a", "n", value.Int(9)))
	assert.ErrorIs(t, err, backend.ErrDuplicateID)

	// Replace is a full overwrite that keeps insertion position.
	require.NoError(t, coll.Replace(ctx, rec("a", "m", value.String("new"))))
	got, ok, err := coll.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, value.Fields{"m": value.String("new")}, got.Fields)
	assert.Equal(t, []string{"a", "b", "c"}, findIDs(t, st, "records", query.Find{}))

	// Missing identities are no-ops.
	require.NoError(t, coll.Replace(ctx, rec("ghost", "n", value.Int(0))))
	require.NoError(t, coll.DeleteOne(ctx, "ghost"))
	_, ok, err = coll.Get(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, coll.DeleteOne(ctx, "b"))
	assert.Equal(t, []string{"a", "c"}, findIDs(t, st, "records", query.Find{}))

	n, err := coll.DeleteMany(ctx, query.Where{"n": query.Gte(value.Int(3))})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = coll.DeleteMany(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, findIDs(t, st, "records", query.Find{}))
}

func testInvalidRecords(t *testing.T, st backend.Store) {
	ctx := context.Background()
	invalid := []value.Record{
		rec("nan", "price", value.Float(math.NaN())),
		rec("inf", "price", value.Float(math.Inf(1))),
		rec("deep", "dims", value.Object{"w": value.Array{value.Float(math.Inf(-1))}}),
		rec("id", "_id", value.String("other")),
		rec("seq", "_seq", value.Int(1)),
	}

	// A rejected first insert does not create the collection.
	for _, r := range invalid {
		err := st.Collection("strict").Insert(ctx, r)
		assert.ErrorIs(t, err, backend.ErrInvalidRecord, r.ID)
	}
	names, err := st.Collections(ctx)
	require.NoError(t, err)
	assert.NotContains(t, names, "strict")

	seed(t, st, "strict", rec("a", "price", value.Float(1.5)))
	for _, r := range invalid {
		r.ID = "a"
		err := st.Collection("strict").Replace(ctx, r)
		assert.ErrorIs(t, err, backend.ErrInvalidRecord, r.Fields.Keys())
	}
	got, ok, err := st.Collection("strict").Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, value.Fields{"price": value.Float(1.5)}, got.Fields)
}

func testRoundTrip(t *testing.T, st backend.Store) {
	ctx := context.Background()
	fields := value.Fields{
		"s":     value.String("héllo \"quoted\""),
		"i":     value.Int(-42),
		"big":   value.Int(1 << 53),
		"f":     value.Float(3.25),
		"whole": value.Float(2),
		"b":     value.Bool(false),
		"n":     value.Null{},
		"t":     value.NewTime(time.Date(2024, 2, 29, 12, 30, 15, 123_000_000, time.UTC)),
		"arr":   value.Array{value.Int(1), value.String("two"), value.Null{}},
		"obj": value.Object{
			"nested": value.Object{"deep": value.Bool(true)},
			"when":   value.NewTime(testutil.Epoch),
		},
	}
	require.NoError(t, st.Collection("rt").Insert(ctx, value.Record{ID: "x", Fields: fields}))

	got, ok, err := st.Collection("rt").Get(ctx, "x")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "x", got.ID)
	assert.Equal(t, fields, got.Fields)
}

func testCollections(t *testing.T, st backend.Store) {
	ctx := context.Background()

	names, err := st.Collections(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	seed(t, st, "beta", rec("1"))
	seed(t, st, "alpha", rec("1"), rec("2"))
	seed(t, st, backend.ReservedCollection, rec("ledger"))

	names, err = st.Collections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, names)

	require.NoError(t, st.Rename(ctx, "alpha", "gamma"))
	assert.Equal(t, []string{"1", "2"}, findIDs(t, st, "gamma", query.Find{}))
	assert.Empty(t, findIDs(t, st, "alpha", query.Find{}))

	err = st.Rename(ctx, "alpha", "delta")
	assert.ErrorIs(t, err, backend.ErrCollectionNotFound)
	err = st.Rename(ctx, "gamma", "beta")
	assert.ErrorIs(t, err, backend.ErrCollectionExists)

	require.NoError(t, st.Drop(ctx, "gamma"))
	require.NoError(t, st.Drop(ctx, "gamma"))
	names, err = st.Collections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"beta"}, names)
	assert.Empty(t, findIDs(t, st, "gamma", query.Find{}))

	// A dropped name can be reused.
	seed(t, st, "gamma", rec("3"))
	assert.Equal(t, []string{"3"}, findIDs(t, st, "gamma", query.Find{}))
}

func testRepository(t *testing.T, st backend.Store) {
	ctx := context.Background()
	widgets := repo.New[testutil.Widget](st, testutil.WidgetModel{})

	for _, w := range []testutil.Widget{
		{ID: "w1", Name: "Zed", Color: "red", Count: 3, Active: true},
		{ID: "w2", Name: "Amy", Count: 1},
		{ID: "w3", Name: "bob", Color: "blue", Count: 2, Active: true},
	} {
		require.NoError(t, widgets.Create(ctx, w))
	}

	got, ok, err := widgets.Get(ctx, "w2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, testutil.Widget{ID: "w2", Name: "Amy", Count: 1}, got)

	list, err := widgets.Find(ctx, query.Find{Sort: query.By("name").Descending()})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"Zed", "bob", "Amy"}, []string{list[0].Name, list[1].Name, list[2].Name})

	first, ok, err := widgets.First(ctx, query.First{Where: query.Where{"color": query.Eq(nil)}})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "w2", first.ID)

	n, err := widgets.Count(ctx, query.Count{Where: query.Where{"active": query.Eq(value.Bool(true))}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, widgets.Update(ctx, testutil.Widget{ID: "w2", Name: "Amy", Count: 10}))
	got, _, err = widgets.Get(ctx, "w2")
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Count)

	require.NoError(t, widgets.Delete(ctx, "w2"))
	require.NoError(t, widgets.Delete(ctx, "w2"))
	_, ok, err = widgets.Get(ctx, "w2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testMigrationIdempotent(t *testing.T, st backend.Store) {
	ctx := context.Background()
	widgets := repo.New[testutil.Widget](st, testutil.WidgetModel{})
	for _, w := range []testutil.Widget{
		{ID: "on1", Name: "a", Count: 1, Active: true},
		{ID: "off", Name: "b", Count: 5, Active: false},
		{ID: "on2", Name: "c", Count: 10, Active: true},
	} {
		require.NoError(t, widgets.Create(ctx, w))
	}

	migrations := []migrate.Migration{{
		ID: "0001-increment-active",
		Up: migrate.Steps(migrate.MapCommand{
			Collection: "widgets",
			Where:      query.Where{"active": query.Eq(value.Bool(true))},
			Fn: func(_ context.Context, f value.Fields, _ string) (value.Fields, error) {
				f["count"] = value.Int(int64(f["count"].(value.Int)) + 1)
				return f, nil
			},
		}),
	}}

	for run := 0; run < 2; run++ {
		_, err := quietHandler(st).Run(ctx, migrations)
		require.NoError(t, err, "run %d", run)
	}

	want := map[string]int64{"on1": 2, "off": 5, "on2": 11}
	for id, count := range want {
		w, ok, err := widgets.Get(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, count, w.Count, id)
	}

	statuses, err := quietHandler(st).Status(ctx, migrations)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, migrate.StateCompleted, statuses[0].State)

	ledger, err := st.Collection(backend.ReservedCollection).Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, ledger)
}

func testMigrationDelete(t *testing.T, st backend.Store) {
	ctx := context.Background()
	for _, name := range []string{"plain", "pred"} {
		seed(t, st, name,
			rec("a", "count", value.Int(-1), "name", value.String("apple")),
			rec("b", "count", value.Int(-2), "name", value.String("banana")),
			rec("c", "count", value.Int(4), "name", value.String("avocado")),
			rec("d", "count", value.Int(-3), "name", value.String("apricot")),
		)
	}
	m := migrate.NewMigrator(st)
	where := query.Where{"count": query.Lt(value.Int(0))}

	n, err := m.Delete(ctx, migrate.DeleteCommand{Collection: "plain", Where: where})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"c"}, findIDs(t, st, "plain", query.Find{}))

	n, err = m.Delete(ctx, migrate.DeleteCommand{
		Collection: "pred",
		Where:      where,
		Predicate: func(f value.Fields, _ string) bool {
			s, _ := f["name"].(value.String)
			return len(s) > 0 && s[0] == 'a'
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"b", "c"}, findIDs(t, st, "pred", query.Find{}))
}

func testMigrationRenameDrop(t *testing.T, st backend.Store) {
	ctx := context.Background()
	seed(t, st, "widgets", rec("w1", "n", value.Int(1)))
	seed(t, st, "scratch", rec("s1"))

	_, err := quietHandler(st).Run(ctx, []migrate.Migration{{
		ID: "0002-reshape",
		Up: migrate.Steps(
			migrate.RenameCommand{OldName: "widgets", NewName: "gadgets"},
			migrate.DropCommand{Collection: "scratch"},
		),
	}})
	require.NoError(t, err)

	names, err := st.Collections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"gadgets"}, names)
	assert.Equal(t, []string{"w1"}, findIDs(t, st, "gadgets", query.Find{}))

	_, err = quietHandler(st).Run(ctx, []migrate.Migration{{
		ID: "0003-meta",
		Up: migrate.Steps(migrate.DropCommand{Collection: backend.ReservedCollection}),
	}})
	assert.ErrorIs(t, err, backend.ErrReservedCollection)
}

func testMigrationAbort(t *testing.T, st backend.Store) {
	ctx := context.Background()
	seed(t, st, "widgets", rec("w1", "n", value.Int(1)))

	migrations := []migrate.Migration{{
		ID: "0001-broken",
		Up: migrate.Steps(
			migrate.MapCommand{Collection: "widgets", Fn: func(_ context.Context, f value.Fields, _ string) (value.Fields, error) {
				f["touched"] = value.Bool(true)
				return f, nil
			}},
			migrate.RenameCommand{OldName: "missing", NewName: "other"},
		),
	}}

	_, err := quietHandler(st).Run(ctx, migrations)
	require.ErrorIs(t, err, backend.ErrCollectionNotFound)
	assert.Equal(t, "0001-broken", migrate.FailedMigration(err))

	// The first command's effect stays and nothing was recorded.
	got, ok, err := st.Collection("widgets").Get(ctx, "w1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, value.Bool(true), got.Fields["touched"])

	statuses, err := quietHandler(st).Status(ctx, migrations)
	require.NoError(t, err)
	assert.Equal(t, migrate.StatePending, statuses[0].State)
}
