package migrate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/quarry/internal/backend"
	"github.com/roach88/quarry/internal/model"
	"github.com/roach88/quarry/internal/query"
	"github.com/roach88/quarry/internal/repo"
	"github.com/roach88/quarry/internal/value"
)

// Migrator executes migration commands against one store. Records are
// processed one at a time in the order the store returns them.
type Migrator struct {
	store  backend.Store
	logger *slog.Logger
}

// NewMigrator binds a Migrator to store.
func NewMigrator(store backend.Store) *Migrator {
	return &Migrator{store: store, logger: slog.Default()}
}

// WithModel returns a typed repository bound to the migrator's store, for
// work a migration cannot express with the primitive commands.
func WithModel[T any](m *Migrator, mdl model.Model[T]) *repo.Repository[T] {
	return repo.New(m.store, mdl)
}

// Apply runs cmds in order and stops at the first error.
func (m *Migrator) Apply(ctx context.Context, cmds ...Command) error {
	for i, cmd := range cmds {
		if cmd == nil {
			return fmt.Errorf("step %d: %w: nil command", i, ErrInvalidCommand)
		}
		if err := cmd.Apply(ctx, m); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

// Map calls c.Fn once per matching record and replaces the record under
// its original identity. An "_id" key in the result is discarded. Returns
// the number of records rewritten.
func (m *Migrator) Map(ctx context.Context, c MapCommand) (int, error) {
	if err := userCollection(c.Collection); err != nil {
		return 0, fmt.Errorf("map: %w", err)
	}
	if c.Fn == nil {
		return 0, fmt.Errorf("map %s: %w: no transform", c.Collection, ErrInvalidCommand)
	}

	coll := m.store.Collection(c.Collection)
	recs, err := coll.Find(ctx, query.Find{Where: c.Where})
	if err != nil {
		return 0, fmt.Errorf("map %s: %w", c.Collection, err)
	}

	for _, rec := range recs {
		out, err := c.Fn(ctx, rec.Fields, rec.ID)
		if err != nil {
			return 0, fmt.Errorf("map %s/%s: %w", c.Collection, rec.ID, err)
		}
		if out == nil {
			return 0, fmt.Errorf("map %s/%s: %w: transform returned nil fields", c.Collection, rec.ID, ErrInvalidCommand)
		}
		delete(out, query.IDField)
		if err := coll.Replace(ctx, value.Record{ID: rec.ID, Fields: out}); err != nil {
			return 0, fmt.Errorf("map %s/%s: %w", c.Collection, rec.ID, err)
		}
	}

	m.logger.Debug("map applied", "collection", c.Collection, "records", len(recs))
	return len(recs), nil
}

// Delete removes matching records and returns how many. Without a
// predicate the store deletes in bulk; with one, each record selected by
// Where is tested in-process and deleted individually.
func (m *Migrator) Delete(ctx context.Context, c DeleteCommand) (int, error) {
	if err := userCollection(c.Collection); err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}
	coll := m.store.Collection(c.Collection)

	if c.Predicate == nil {
		n, err := coll.DeleteMany(ctx, c.Where)
		if err != nil {
			return 0, fmt.Errorf("delete %s: %w", c.Collection, err)
		}
		m.logger.Debug("delete applied", "collection", c.Collection, "records", n)
		return n, nil
	}

	recs, err := coll.Find(ctx, query.Find{Where: c.Where})
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", c.Collection, err)
	}
	n := 0
	for _, rec := range recs {
		if !c.Predicate(rec.Fields, rec.ID) {
			continue
		}
		if err := coll.DeleteOne(ctx, rec.ID); err != nil {
			return n, fmt.Errorf("delete %s/%s: %w", c.Collection, rec.ID, err)
		}
		n++
	}
	m.logger.Debug("delete applied", "collection", c.Collection, "records", n, "candidates", len(recs))
	return n, nil
}

// Rename renames a collection. It fails with backend.ErrCollectionNotFound
// when the old name does not exist.
func (m *Migrator) Rename(ctx context.Context, c RenameCommand) error {
	if err := userCollection(c.OldName); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	if err := userCollection(c.NewName); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	if err := m.store.Rename(ctx, c.OldName, c.NewName); err != nil {
		return fmt.Errorf("rename %s to %s: %w", c.OldName, c.NewName, err)
	}
	m.logger.Debug("rename applied", "from", c.OldName, "to", c.NewName)
	return nil
}

// Drop removes a collection and all its records.
func (m *Migrator) Drop(ctx context.Context, c DropCommand) error {
	if err := userCollection(c.Collection); err != nil {
		return fmt.Errorf("drop: %w", err)
	}
	if err := m.store.Drop(ctx, c.Collection); err != nil {
		return fmt.Errorf("drop %s: %w", c.Collection, err)
	}
	m.logger.Debug("drop applied", "collection", c.Collection)
	return nil
}

func userCollection(name string) error {
	if backend.IsReserved(name) {
		return fmt.Errorf("%w: %s", backend.ErrReservedCollection, name)
	}
	return backend.ValidateCollection(name)
}
