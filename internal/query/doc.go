// Package query defines the constraint DSL shared by every backend.
//
// A Where maps field names to constraints. The constraint kind is fixed by
// its Go type when the clause is built, so interpreters never inspect a
// value's shape to decide what it means:
//
//	Equals     field == literal (a Null literal matches missing fields too)
//	NotEquals  exact negation of Equals
//	Range      conjunction of gt/gte/lt/lte bounds over numbers or dates
//
// Constraint is a sealed interface. Backends switch over it exhaustively:
//
//	switch c := constraint.(type) {
//	case query.Equals:
//	case query.NotEquals:
//	case query.Range:
//	}
//
// Decoded YAML or JSON clauses go through ParseWhere, which is the only
// place a map shape is classified. A {"$date": ...} object or a time.Time
// is always a date literal, never a range.
package query
