package migrate

import (
	"context"

	"github.com/roach88/quarry/internal/query"
	"github.com/roach88/quarry/internal/value"
)

// Command is one primitive migration operation. The set is closed:
// MapCommand, DeleteCommand, RenameCommand and DropCommand.
type Command interface {
	Apply(ctx context.Context, m *Migrator) error
	command()
}

// TransformFunc computes the new raw fields of a record. fields never hold
// the identity; id is passed separately and cannot be changed.
type TransformFunc func(ctx context.Context, fields value.Fields, id string) (value.Fields, error)

// PredicateFunc is the in-process second stage of a delete.
type PredicateFunc func(fields value.Fields, id string) bool

// MapCommand rewrites every record of Collection matching Where.
type MapCommand struct {
	Collection string
	Fn         TransformFunc
	Where      query.Where
}

// DeleteCommand removes the records of Collection matching Where and, when
// Predicate is set, also satisfying Predicate.
type DeleteCommand struct {
	Collection string
	Where      query.Where
	Predicate  PredicateFunc
}

// RenameCommand renames a collection.
type RenameCommand struct {
	OldName string
	NewName string
}

// DropCommand removes a collection and all its records.
type DropCommand struct {
	Collection string
}

func (MapCommand) command()    {}
func (DeleteCommand) command() {}
func (RenameCommand) command() {}
func (DropCommand) command()   {}

func (c MapCommand) Apply(ctx context.Context, m *Migrator) error {
	_, err := m.Map(ctx, c)
	return err
}

func (c DeleteCommand) Apply(ctx context.Context, m *Migrator) error {
	_, err := m.Delete(ctx, c)
	return err
}

func (c RenameCommand) Apply(ctx context.Context, m *Migrator) error {
	return m.Rename(ctx, c)
}

func (c DropCommand) Apply(ctx context.Context, m *Migrator) error {
	return m.Drop(ctx, c)
}

// Steps builds a migration body that applies cmds in order and stops at
// the first error.
func Steps(cmds ...Command) func(ctx context.Context, m *Migrator) error {
	return func(ctx context.Context, m *Migrator) error {
		return m.Apply(ctx, cmds...)
	}
}
