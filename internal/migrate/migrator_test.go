package migrate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quarry/internal/backend"
	"github.com/roach88/quarry/internal/memstore"
	"github.com/roach88/quarry/internal/query"
	"github.com/roach88/quarry/internal/repo"
	"github.com/roach88/quarry/internal/testutil"
	"github.com/roach88/quarry/internal/value"
)

func seedWidgets(t *testing.T, st backend.Store, widgets ...testutil.Widget) {
	t.Helper()
	r := repo.New[testutil.Widget](st, testutil.WidgetModel{})
	for _, w := range widgets {
		require.NoError(t, r.Create(context.Background(), w))
	}
}

func getWidget(t *testing.T, st backend.Store, id string) testutil.Widget {
	t.Helper()
	w, ok, err := repo.New[testutil.Widget](st, testutil.WidgetModel{}).Get(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok, "widget %s missing", id)
	return w
}

func incrementCount(_ context.Context, f value.Fields, _ string) (value.Fields, error) {
	f["count"] = value.Int(int64(f["count"].(value.Int)) + 1)
	return f, nil
}

func TestMigrator_MapWhere(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedWidgets(t, st,
		testutil.Widget{ID: "a", Name: "a", Count: 1, Active: true},
		testutil.Widget{ID: "b", Name: "b", Count: 1, Active: false},
		testutil.Widget{ID: "c", Name: "c", Count: 5, Active: true},
	)

	n, err := NewMigrator(st).Map(ctx, MapCommand{
		Collection: "widgets",
		Fn:         incrementCount,
		Where:      query.Where{"active": query.Eq(value.Bool(true))},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, int64(2), getWidget(t, st, "a").Count)
	assert.Equal(t, int64(1), getWidget(t, st, "b").Count)
	assert.Equal(t, int64(6), getWidget(t, st, "c").Count)
}

func TestMigrator_MapIdentityIsImmutable(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedWidgets(t, st, testutil.Widget{ID: "a", Name: "a"})

	var seenID string
	var sawIDField bool
	_, err := NewMigrator(st).Map(ctx, MapCommand{
		Collection: "widgets",
		Fn: func(_ context.Context, f value.Fields, id string) (value.Fields, error) {
			seenID = id
			_, sawIDField = f["_id"]
			f["_id"] = value.String("hijacked")
			f["name"] = value.String("renamed")
			return f, nil
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "a", seenID)
	assert.False(t, sawIDField)

	rec, ok, err := st.Collection("widgets").Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, value.String("renamed"), rec.Fields["name"])
	assert.NotContains(t, rec.Fields, "_id")

	_, ok, err = st.Collection("widgets").Get(ctx, "hijacked")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMigrator_MapSequentialInStoreOrder(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedWidgets(t, st,
		testutil.Widget{ID: "c", Name: "c"},
		testutil.Widget{ID: "a", Name: "a"},
		testutil.Widget{ID: "b", Name: "b"},
	)

	var order []string
	_, err := NewMigrator(st).Map(ctx, MapCommand{
		Collection: "widgets",
		Fn: func(_ context.Context, f value.Fields, id string) (value.Fields, error) {
			order = append(order, id)
			return f, nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, order)
}

func TestMigrator_MapTransformError(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedWidgets(t, st, testutil.Widget{ID: "a", Name: "a"}, testutil.Widget{ID: "b", Name: "b"})

	boom := errors.New("boom")
	_, err := NewMigrator(st).Map(ctx, MapCommand{
		Collection: "widgets",
		Fn: func(_ context.Context, f value.Fields, id string) (value.Fields, error) {
			if id == "b" {
				return nil, boom
			}
			f["name"] = value.String("done")
			return f, nil
		},
	})
	require.ErrorIs(t, err, boom)

	// No rollback: the first record keeps its new value.
	assert.Equal(t, "done", getWidget(t, st, "a").Name)
	assert.Equal(t, "b", getWidget(t, st, "b").Name)
}

func TestMigrator_MapRejectsInvalidCommand(t *testing.T) {
	ctx := context.Background()
	m := NewMigrator(memstore.New())

	_, err := m.Map(ctx, MapCommand{Collection: "widgets"})
	assert.ErrorIs(t, err, ErrInvalidCommand)

	_, err = m.Map(ctx, MapCommand{Collection: "widgets", Fn: incrementCount, Where: query.Where{"": query.Eq(nil)}})
	assert.ErrorIs(t, err, query.ErrInvalidField)
}

func TestMigrator_DeleteWhere(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedWidgets(t, st,
		testutil.Widget{ID: "a", Name: "a", Count: -1},
		testutil.Widget{ID: "b", Name: "b", Count: 0},
		testutil.Widget{ID: "c", Name: "c", Count: -5},
	)

	n, err := NewMigrator(st).Delete(ctx, DeleteCommand{
		Collection: "widgets",
		Where:      query.Where{"count": query.Lt(value.Int(0))},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, err := st.Collection("widgets").Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, left)
}

func TestMigrator_DeleteWithPredicate(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedWidgets(t, st,
		testutil.Widget{ID: "a", Name: "alpha", Count: -1},
		testutil.Widget{ID: "b", Name: "beta", Count: -2},
		testutil.Widget{ID: "c", Name: "avocado", Count: 3},
	)

	var tested []string
	n, err := NewMigrator(st).Delete(ctx, DeleteCommand{
		Collection: "widgets",
		Where:      query.Where{"count": query.Lt(value.Int(0))},
		Predicate: func(f value.Fields, id string) bool {
			tested = append(tested, id)
			return string(f["name"].(value.String))[0] == 'a'
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"a", "b"}, tested, "predicate only sees records selected by where")

	recs, err := st.Collection("widgets").Find(ctx, query.Find{})
	require.NoError(t, err)
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"b", "c"}, ids)
}

func TestMigrator_RenameAndDrop(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedWidgets(t, st, testutil.Widget{ID: "a", Name: "a"})
	m := NewMigrator(st)

	require.NoError(t, m.Rename(ctx, RenameCommand{OldName: "widgets", NewName: "gadgets"}))
	names, err := st.Collections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"gadgets"}, names)

	err = m.Rename(ctx, RenameCommand{OldName: "widgets", NewName: "things"})
	assert.ErrorIs(t, err, backend.ErrCollectionNotFound)

	require.NoError(t, m.Drop(ctx, DropCommand{Collection: "gadgets"}))
	names, err = st.Collections(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, m.Drop(ctx, DropCommand{Collection: "gadgets"}), "dropping twice is a no-op")
}

func TestMigrator_ReservedCollection(t *testing.T) {
	ctx := context.Background()
	m := NewMigrator(memstore.New())

	_, err := m.Map(ctx, MapCommand{Collection: backend.ReservedCollection, Fn: incrementCount})
	assert.ErrorIs(t, err, backend.ErrReservedCollection)

	_, err = m.Delete(ctx, DeleteCommand{Collection: backend.ReservedCollection})
	assert.ErrorIs(t, err, backend.ErrReservedCollection)

	err = m.Rename(ctx, RenameCommand{OldName: "widgets", NewName: backend.ReservedCollection})
	assert.ErrorIs(t, err, backend.ErrReservedCollection)

	err = m.Drop(ctx, DropCommand{Collection: backend.ReservedCollection})
	assert.ErrorIs(t, err, backend.ErrReservedCollection)
}

func TestMigrator_ApplySteps(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedWidgets(t, st,
		testutil.Widget{ID: "a", Name: "a", Count: 1, Active: true},
		testutil.Widget{ID: "b", Name: "b", Count: -1},
	)

	body := Steps(
		MapCommand{Collection: "widgets", Fn: incrementCount},
		DeleteCommand{Collection: "widgets", Where: query.Where{"count": query.Lte(value.Int(0))}},
		RenameCommand{OldName: "widgets", NewName: "gadgets"},
	)
	require.NoError(t, body(ctx, NewMigrator(st)))

	recs, err := st.Collection("gadgets").Find(ctx, query.Find{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, value.Int(2), recs[0].Fields["count"])
}

func TestMigrator_ApplyStopsAtFirstError(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()

	err := NewMigrator(st).Apply(ctx,
		RenameCommand{OldName: "missing", NewName: "other"},
		DropCommand{Collection: "never-reached"},
	)
	require.ErrorIs(t, err, backend.ErrCollectionNotFound)
	assert.Contains(t, err.Error(), "step 0")
}

func TestWithModel(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	m := NewMigrator(st)

	widgets := WithModel[testutil.Widget](m, testutil.WidgetModel{})
	require.NoError(t, widgets.Create(ctx, testutil.Widget{ID: "w", Name: "typed"}))

	assert.Equal(t, "typed", getWidget(t, st, "w").Name)
}
