// Package backend defines the capability contract every storage backend
// implements. The repository and migrator are written against these
// interfaces only; interpreting a query.Where or query.Sort is the
// backend's job.
package backend

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/roach88/quarry/internal/query"
	"github.com/roach88/quarry/internal/value"
)

// ReservedCollection holds the migration ledger. It is excluded from user
// collection listings and from migrator operations.
const ReservedCollection = "_meta"

var (
	ErrDuplicateID        = errors.New("duplicate record identity")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrCollectionExists   = errors.New("collection already exists")
	ErrReservedCollection = errors.New("reserved collection")
	ErrInvalidCollection  = errors.New("invalid collection name")
	ErrInvalidRecord      = errors.New("invalid record")
	ErrClosed             = errors.New("store closed")
)

// IsReserved reports whether name is the ledger collection.
func IsReserved(name string) bool {
	return name == ReservedCollection
}

// ValidateCollection checks that name can be used as a collection name on
// every backend.
func ValidateCollection(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidCollection)
	}
	for _, r := range name {
		if r == '$' || r == 0 {
			return fmt.Errorf("%w: %q", ErrInvalidCollection, name)
		}
	}
	return nil
}

// ValidateRecord checks that rec can be stored on every backend. The
// top-level keys query.IDField and query.SeqField are reserved, and numbers
// must be finite at any depth. Insert and Replace call it before writing.
func ValidateRecord(rec value.Record) error {
	for _, k := range rec.Fields.Keys() {
		if k == query.IDField || k == query.SeqField {
			return fmt.Errorf("%w: field %q is reserved", ErrInvalidRecord, k)
		}
		if err := validateValue(rec.Fields[k]); err != nil {
			return fmt.Errorf("%w: field %q: %w", ErrInvalidRecord, k, err)
		}
	}
	return nil
}

func validateValue(v value.Value) error {
	switch val := v.(type) {
	case value.Float:
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			return fmt.Errorf("non-finite number %v", float64(val))
		}
	case value.Array:
		for i, elem := range val {
			if err := validateValue(elem); err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
		}
	case value.Object:
		for _, k := range value.Fields(val).Keys() {
			if err := validateValue(val[k]); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
		}
	}
	return nil
}

// Store is a set of named collections of raw records.
//
// A collection exists from its first insert until it is dropped.
type Store interface {
	// Collection returns a handle to name. It does not create anything.
	Collection(name string) Collection

	// Collections lists existing collections in sorted order, excluding
	// ReservedCollection.
	Collections(ctx context.Context) ([]string, error)

	// Rename moves every record of oldName to newName. It fails with
	// ErrCollectionNotFound when oldName does not exist and with
	// ErrCollectionExists when newName does.
	Rename(ctx context.Context, oldName, newName string) error

	// Drop removes a collection and its records. Dropping a collection
	// that does not exist is not an error.
	Drop(ctx context.Context, name string) error

	// Close releases the store's resources.
	Close(ctx context.Context) error
}

// Collection is a handle to one named collection.
//
// Find returns records in the order the backend's sort interpreter
// produces; with no sort, in insertion order. Replace and DeleteOne on a
// missing identity do nothing. Insert and Replace reject records that fail
// ValidateRecord with ErrInvalidRecord.
type Collection interface {
	Name() string
	Get(ctx context.Context, id string) (value.Record, bool, error)
	Find(ctx context.Context, q query.Find) ([]value.Record, error)
	Count(ctx context.Context, where query.Where) (int, error)
	Insert(ctx context.Context, rec value.Record) error
	Replace(ctx context.Context, rec value.Record) error
	DeleteOne(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, where query.Where) (int, error)
}
