package model

import (
	"github.com/roach88/quarry/internal/value"
)

// Document is the untyped model: records are raw value.Record values.
// The CLI reads and writes collections through it without a Go type.
type Document string

var _ Model[value.Record] = Document("")

// Name returns the collection name.
func (d Document) Name() string { return string(d) }

// ID returns the record identity.
func (Document) ID(r value.Record) string { return r.ID }

// Serialize returns a copy of the raw fields.
func (Document) Serialize(r value.Record) value.Fields { return r.Fields.Clone() }

// Deserialize never fails; it returns the fields as stored.
func (Document) Deserialize(id string, raw value.Fields) (value.Record, error) {
	return value.Record{ID: id, Fields: raw}, nil
}
