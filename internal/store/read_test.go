package store

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/roach88/quarry/internal/query"
	"github.com/roach88/quarry/internal/value"
)

func seedWidgets(t *testing.T, c interface {
	Insert(context.Context, value.Record) error
}) {
	t.Helper()
	ctx := context.Background()
	recs := []value.Record{
		createTestRecord("w1", "name", value.String("Zed"), "price", value.Int(5), "color", value.String("red")),
		createTestRecord("w2", "name", value.String("Amy"), "price", value.Float(25.5), "color", value.String("blue")),
		createTestRecord("w3", "name", value.String("bob"), "price", value.Int(50), "color", value.Null{}),
		createTestRecord("w4", "name", value.String("cat"), "price", value.String("60")),
	}
	for _, r := range recs {
		require.NoError(t, c.Insert(ctx, r))
	}
}

func TestGet_Missing(t *testing.T) {
	rec, ok, err := createTestStore(t).Collection("widgets").Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, rec.ID)
}

func TestFind_WhereSemantics(t *testing.T) {
	ctx := context.Background()
	c := createTestStore(t).Collection("widgets")
	seedWidgets(t, c)

	tests := []struct {
		name  string
		where query.Where
		want  []string
	}{
		{"all", nil, []string{"w1", "w2", "w3", "w4"}},
		{"range skips strings", query.Where{"price": query.Gt(value.Int(10)).And(query.Lte(value.Int(50)))}, []string{"w2", "w3"}},
		{"eq int matches float class", query.Where{"price": query.Eq(value.Float(50))}, []string{"w3"}},
		{"not matches null and missing", query.Where{"color": query.Not(value.String("red"))}, []string{"w2", "w3", "w4"}},
		{"eq null matches null and missing", query.Where{"color": query.Eq(value.Null{})}, []string{"w3", "w4"}},
		{"not null", query.Where{"color": query.Not(value.Null{})}, []string{"w1", "w2"}},
		{"string never equals number", query.Where{"price": query.Eq(value.String("5"))}, nil},
		{"empty range", query.Where{"missing": query.Range{}}, []string{"w1", "w2", "w3", "w4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := c.Find(ctx, query.Find{Where: tt.where})
			require.NoError(t, err)
			got := recordIDs(recs)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)

			n, err := c.Count(ctx, tt.where)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), n)
		})
	}
}

func TestFind_SortCollated(t *testing.T) {
	ctx := context.Background()
	c := createTestStore(t).Collection("widgets")
	seedWidgets(t, c)

	recs, err := c.Find(ctx, query.Find{Sort: query.By("name").Descending()})
	require.NoError(t, err)

	var names []string
	for _, r := range recs {
		names = append(names, string(r.Fields["name"].(value.String)))
	}
	assert.Equal(t, []string{"Zed", "cat", "bob", "Amy"}, names)
}

func TestFind_SortDatesAndLimit(t *testing.T) {
	ctx := context.Background()
	c := createTestStore(t).Collection("events")
	for i, ms := range []int64{3000, 1000, 2000} {
		id := string(rune('a' + i))
		require.NoError(t, c.Insert(ctx, createTestRecord(id, "at", value.TimeFromMillis(ms))))
	}

	recs, err := c.Find(ctx, query.Find{Sort: query.By("at"), Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, recordIDs(recs))

	recs, err = c.Find(ctx, query.Find{Where: query.Where{"at": query.Gte(value.TimeFromMillis(2000))}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, recordIDs(recs))

	recs, err = c.Find(ctx, query.Find{Where: query.Where{"at": query.Eq(value.TimeFromMillis(1000))}})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, recordIDs(recs))
}

func TestFind_TiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	c := createTestStore(t).Collection("widgets")
	ids := []string{"d", "a", "c", "b"}
	for _, id := range ids {
		require.NoError(t, c.Insert(ctx, createTestRecord(id, "rank", value.Int(1))))
	}

	for _, s := range []*query.Sort{query.By("rank"), query.By("rank").Descending()} {
		recs, err := c.Find(ctx, query.Find{Sort: s})
		require.NoError(t, err)
		assert.True(t, slices.Equal(ids, recordIDs(recs)), "direction %s", s.Direction)
	}
}

func TestFind_InvalidQuery(t *testing.T) {
	_, err := createTestStore(t).Collection("widgets").Find(context.Background(), query.Find{
		Where: query.Where{"a.b": query.Eq(value.Int(1))},
	})
	assert.ErrorIs(t, err, query.ErrInvalidField)
}
