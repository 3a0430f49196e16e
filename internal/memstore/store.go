// Package memstore is the in-process backend. Collections live in memory,
// keep insertion order, and are guarded by a single RWMutex. Records are
// copied on the way in and on the way out.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/quarry/internal/backend"
	"github.com/roach88/quarry/internal/query"
	"github.com/roach88/quarry/internal/value"
)

// Store is an in-process backend.Store.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
	closed      bool
}

var _ backend.Store = (*Store)(nil)

// collection keeps records in insertion order. index maps an identity to
// its position in records.
type collection struct {
	records []value.Record
	index   map[string]int
}

func newCollection() *collection {
	return &collection{index: make(map[string]int)}
}

func (c *collection) remove(id string) bool {
	i, ok := c.index[id]
	if !ok {
		return false
	}
	c.records = slices.Delete(c.records, i, i+1)
	delete(c.index, id)
	for j := i; j < len(c.records); j++ {
		c.index[c.records[j].ID] = j
	}
	return true
}

// New returns an empty store.
func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed {
		return backend.ErrClosed
	}
	return nil
}

// Collection returns a handle to name.
func (s *Store) Collection(name string) backend.Collection {
	return &Collection{store: s, name: name}
}

// Collections lists user collections in sorted order.
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	names := slices.Sorted(maps.Keys(s.collections))
	return slices.DeleteFunc(names, backend.IsReserved), nil
}

// Rename moves oldName to newName.
func (s *Store) Rename(ctx context.Context, oldName, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	if err := backend.ValidateCollection(newName); err != nil {
		return fmt.Errorf("rename collection: %w", err)
	}
	c, ok := s.collections[oldName]
	if !ok {
		return fmt.Errorf("rename collection %q: %w", oldName, backend.ErrCollectionNotFound)
	}
	if _, exists := s.collections[newName]; exists {
		return fmt.Errorf("rename collection %q to %q: %w", oldName, newName, backend.ErrCollectionExists)
	}
	delete(s.collections, oldName)
	s.collections[newName] = c
	return nil
}

// Drop removes name and its records.
func (s *Store) Drop(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	delete(s.collections, name)
	return nil
}

// Close discards all data. Later calls fail with backend.ErrClosed.
func (s *Store) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.collections = nil
	return nil
}

// Collection is a handle to one collection of a Store.
type Collection struct {
	store *Store
	name  string
}

var _ backend.Collection = (*Collection)(nil)

func (c *Collection) Name() string { return c.name }

// Get returns a copy of the record with the given identity.
func (c *Collection) Get(ctx context.Context, id string) (value.Record, bool, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	if err := c.store.check(ctx); err != nil {
		return value.Record{}, false, err
	}
	coll, ok := c.store.collections[c.name]
	if !ok {
		return value.Record{}, false, nil
	}
	i, ok := coll.index[id]
	if !ok {
		return value.Record{}, false, nil
	}
	return coll.records[i].Clone(), true, nil
}

// Find filters, then stable-sorts, then limits.
func (c *Collection) Find(ctx context.Context, q query.Find) ([]value.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	if err := c.store.check(ctx); err != nil {
		return nil, err
	}
	coll, ok := c.store.collections[c.name]
	if !ok {
		return []value.Record{}, nil
	}

	match := Matcher(q.Where)
	out := make([]value.Record, 0, len(coll.records))
	for _, rec := range coll.records {
		if match(rec.Fields) {
			out = append(out, rec.Clone())
		}
	}
	if cmp := Comparator(q.Sort); cmp != nil {
		slices.SortStableFunc(out, func(a, b value.Record) int {
			return cmp(a.Fields, b.Fields)
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Count returns the number of records matching where.
func (c *Collection) Count(ctx context.Context, where query.Where) (int, error) {
	if err := where.Validate(); err != nil {
		return 0, err
	}
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	if err := c.store.check(ctx); err != nil {
		return 0, err
	}
	coll, ok := c.store.collections[c.name]
	if !ok {
		return 0, nil
	}
	match := Matcher(where)
	n := 0
	for _, rec := range coll.records {
		if match(rec.Fields) {
			n++
		}
	}
	return n, nil
}

// Insert appends rec, creating the collection on first use.
func (c *Collection) Insert(ctx context.Context, rec value.Record) error {
	if err := backend.ValidateCollection(c.name); err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	if err := backend.ValidateRecord(rec); err != nil {
		return fmt.Errorf("insert %s/%s: %w", c.name, rec.ID, err)
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if err := c.store.check(ctx); err != nil {
		return err
	}
	coll, ok := c.store.collections[c.name]
	if !ok {
		coll = newCollection()
		c.store.collections[c.name] = coll
	}
	if _, exists := coll.index[rec.ID]; exists {
		return fmt.Errorf("insert %s/%s: %w", c.name, rec.ID, backend.ErrDuplicateID)
	}
	coll.index[rec.ID] = len(coll.records)
	coll.records = append(coll.records, rec.Clone())
	return nil
}

// Replace overwrites the fields of an existing record in place.
func (c *Collection) Replace(ctx context.Context, rec value.Record) error {
	if err := backend.ValidateRecord(rec); err != nil {
		return fmt.Errorf("replace %s/%s: %w", c.name, rec.ID, err)
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if err := c.store.check(ctx); err != nil {
		return err
	}
	coll, ok := c.store.collections[c.name]
	if !ok {
		return nil
	}
	if i, ok := coll.index[rec.ID]; ok {
		coll.records[i] = rec.Clone()
	}
	return nil
}

// DeleteOne removes the record with the given identity, if any.
func (c *Collection) DeleteOne(ctx context.Context, id string) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if err := c.store.check(ctx); err != nil {
		return err
	}
	if coll, ok := c.store.collections[c.name]; ok {
		coll.remove(id)
	}
	return nil
}

// DeleteMany removes every record matching where and returns how many.
func (c *Collection) DeleteMany(ctx context.Context, where query.Where) (int, error) {
	if err := where.Validate(); err != nil {
		return 0, err
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if err := c.store.check(ctx); err != nil {
		return 0, err
	}
	coll, ok := c.store.collections[c.name]
	if !ok {
		return 0, nil
	}
	match := Matcher(where)
	kept := coll.records[:0]
	n := 0
	for _, rec := range coll.records {
		if match(rec.Fields) {
			n++
			continue
		}
		kept = append(kept, rec)
	}
	clear(coll.records[len(kept):])
	coll.records = kept
	clear(coll.index)
	for i, rec := range coll.records {
		coll.index[rec.ID] = i
	}
	return n, nil
}
