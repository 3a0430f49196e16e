// Package model defines the contract between typed records and raw storage.
package model

import (
	"errors"
	"fmt"

	"github.com/roach88/quarry/internal/value"
)

// Model describes how a record type maps to a collection of raw records.
//
// A Model holds behavior only; one instance per record type is shared by
// every repository bound to that type. Serialize must not include the
// identity in the returned fields: identity is stored separately and
// passed back to Deserialize.
type Model[T any] interface {
	// Name is the collection the records live in.
	Name() string

	// ID extracts the identity of a record.
	ID(record T) string

	// Serialize converts a record into raw fields without its identity.
	Serialize(record T) value.Fields

	// Deserialize rebuilds a record from its identity and raw fields.
	// A schema mismatch is reported as an error, never ignored.
	Deserialize(id string, raw value.Fields) (T, error)
}

// ValidationError reports a stored record that does not satisfy its model.
type ValidationError struct {
	Collection string
	ID         string
	Err        error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record %s/%s: %v", e.Collection, e.ID, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Decode deserializes raw through m, wrapping any failure in a
// *ValidationError.
func Decode[T any](m Model[T], rec value.Record) (T, error) {
	out, err := m.Deserialize(rec.ID, rec.Fields)
	if err != nil {
		var zero T
		return zero, &ValidationError{Collection: m.Name(), ID: rec.ID, Err: err}
	}
	return out, nil
}

// Encode serializes record through m into a raw record.
func Encode[T any](m Model[T], record T) value.Record {
	return value.Record{ID: m.ID(record), Fields: m.Serialize(record)}
}
