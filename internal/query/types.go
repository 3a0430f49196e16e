package query

import (
	"maps"
	"slices"

	"github.com/roach88/quarry/internal/value"
)

// Constraint is a per-field condition within a Where.
//
// This is a sealed interface - only Equals, NotEquals and Range implement it.
type Constraint interface {
	constraint() // Marker method - seals interface to this package
}

// Equals matches records whose field equals Value. An Equals with a Null
// (or nil) value matches records where the field is null or missing.
type Equals struct {
	Value value.Scalar
}

func (Equals) constraint() {}

// NotEquals matches exactly the records Equals with the same value rejects.
type NotEquals struct {
	Value value.Scalar
}

func (NotEquals) constraint() {}

// Range matches records whose field lies within every non-nil bound.
// The field must be present and of the same comparison class as each bound.
// A Range with no bounds matches everything.
type Range struct {
	Gt  value.Bound
	Gte value.Bound
	Lt  value.Bound
	Lte value.Bound
}

func (Range) constraint() {}

// Eq returns an equality constraint. A nil v is treated as Null.
func Eq(v value.Scalar) Equals {
	if v == nil {
		v = value.Null{}
	}
	return Equals{Value: v}
}

// Not returns a negated equality constraint. A nil v is treated as Null.
func Not(v value.Scalar) NotEquals {
	if v == nil {
		v = value.Null{}
	}
	return NotEquals{Value: v}
}

// Gt returns a range with an exclusive lower bound.
func Gt(b value.Bound) Range { return Range{Gt: b} }

// Gte returns a range with an inclusive lower bound.
func Gte(b value.Bound) Range { return Range{Gte: b} }

// Lt returns a range with an exclusive upper bound.
func Lt(b value.Bound) Range { return Range{Lt: b} }

// Lte returns a range with an inclusive upper bound.
func Lte(b value.Bound) Range { return Range{Lte: b} }

// And merges the bounds of o into r. Bounds set in o replace those in r.
//
//	query.Gt(value.Int(10)).And(query.Lte(value.Int(50)))
func (r Range) And(o Range) Range {
	if o.Gt != nil {
		r.Gt = o.Gt
	}
	if o.Gte != nil {
		r.Gte = o.Gte
	}
	if o.Lt != nil {
		r.Lt = o.Lt
	}
	if o.Lte != nil {
		r.Lte = o.Lte
	}
	return r
}

// IsEmpty reports whether no bound is set.
func (r Range) IsEmpty() bool {
	return r.Gt == nil && r.Gte == nil && r.Lt == nil && r.Lte == nil
}

// Op identifies a range comparison.
type Op string

const (
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
)

// RangeBound is one comparison of a Range.
type RangeBound struct {
	Op    Op
	Bound value.Bound
}

// Bounds returns the set bounds in a fixed order: gt, gte, lt, lte.
func (r Range) Bounds() []RangeBound {
	var out []RangeBound
	for _, b := range []RangeBound{{OpGt, r.Gt}, {OpGte, r.Gte}, {OpLt, r.Lt}, {OpLte, r.Lte}} {
		if b.Bound != nil {
			out = append(out, b)
		}
	}
	return out
}

// Holds reports whether a comparison result c (from value.Compare of the
// field against the bound) satisfies op.
func (op Op) Holds(c int) bool {
	switch op {
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	}
	return false
}

// Where maps field names to constraints. Fields absent from the map impose
// no constraint; a nil or empty Where matches every record.
type Where map[string]Constraint

// Fields returns the constrained field names in sorted order, so that
// interpreters produce deterministic output.
func (w Where) Fields() []string {
	return slices.Sorted(maps.Keys(w))
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Sign returns +1 for Asc and -1 for Desc.
func (d Direction) Sign() int {
	if d == Desc {
		return -1
	}
	return 1
}

// Sort orders results by a single field.
type Sort struct {
	By        string
	Direction Direction
}

// By returns an ascending sort on field.
func By(field string) *Sort {
	return &Sort{By: field, Direction: Asc}
}

// Descending returns a copy of s sorted in descending order.
func (s *Sort) Descending() *Sort {
	return &Sort{By: s.By, Direction: Desc}
}

// Find selects records: filter, then sort, then cap at Limit (0 = no cap).
type Find struct {
	Where Where
	Sort  *Sort
	Limit int
}

// First selects at most one record.
type First struct {
	Where Where
}

// Count counts matching records.
type Count struct {
	Where Where
}
