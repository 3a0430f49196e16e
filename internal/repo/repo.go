// Package repo provides a typed CRUD and query surface over any backend.
//
// A Repository holds no record state: it translates between a record type
// and raw records through a model.Model and delegates filtering, sorting
// and storage to a backend.Collection.
package repo

import (
	"context"
	"fmt"

	"github.com/roach88/quarry/internal/backend"
	"github.com/roach88/quarry/internal/model"
	"github.com/roach88/quarry/internal/query"
)

// Repository is the CRUD and query surface for one model.
type Repository[T any] struct {
	model model.Model[T]
	coll  backend.Collection
}

// New binds m to its collection in store.
func New[T any](store backend.Store, m model.Model[T]) *Repository[T] {
	return &Repository[T]{model: m, coll: store.Collection(m.Name())}
}

// Model returns the repository's model.
func (r *Repository[T]) Model() model.Model[T] { return r.model }

// Get returns the record with the given identity. ok is false when no
// record has it.
func (r *Repository[T]) Get(ctx context.Context, id string) (out T, ok bool, err error) {
	rec, ok, err := r.coll.Get(ctx, id)
	if err != nil || !ok {
		return out, false, err
	}
	out, err = model.Decode(r.model, rec)
	if err != nil {
		return out, false, err
	}
	return out, true, nil
}

// Find filters, sorts and limits, then deserializes every result. A record
// that fails to deserialize aborts the call with a *model.ValidationError.
func (r *Repository[T]) Find(ctx context.Context, q query.Find) ([]T, error) {
	recs, err := r.coll.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		v, err := model.Decode(r.model, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// First returns the first record matching q, as Find with a limit of one.
func (r *Repository[T]) First(ctx context.Context, q query.First) (out T, ok bool, err error) {
	items, err := r.Find(ctx, query.Find{Where: q.Where, Limit: 1})
	if err != nil || len(items) == 0 {
		return out, false, err
	}
	return items[0], true, nil
}

// Count returns the number of records matching q.
func (r *Repository[T]) Count(ctx context.Context, q query.Count) (int, error) {
	return r.coll.Count(ctx, q.Where)
}

// Create inserts a new record. An existing identity fails with
// backend.ErrDuplicateID.
func (r *Repository[T]) Create(ctx context.Context, record T) error {
	rec := model.Encode(r.model, record)
	if rec.ID == "" {
		return fmt.Errorf("create in %s: empty identity", r.model.Name())
	}
	return r.coll.Insert(ctx, rec)
}

// Update replaces the stored record with the same identity in full.
// Updating an identity that is not stored does nothing.
func (r *Repository[T]) Update(ctx context.Context, record T) error {
	return r.coll.Replace(ctx, model.Encode(r.model, record))
}

// Delete removes the record with the given identity. Deleting an identity
// that is not stored does nothing.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	return r.coll.DeleteOne(ctx, id)
}
