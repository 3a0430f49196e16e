// Package value defines the raw record model shared by every backend.
//
// A record is an identity plus Fields, a map from field name to Value.
// Value is a sealed interface; the only implementations are Null, String,
// Int, Float, Bool, Time, Array and Object. Two narrower sealed interfaces
// restrict what the query DSL accepts:
//
//	Scalar  Null, String, Int, Float, Bool, Time   (equality literals)
//	Bound   Int, Float, Time                       (range bounds)
//
// COMPARISON CLASSES:
//
// Int and Float form one numeric class, so Int(10) equals Float(10).
// Time compares by epoch millisecond. Strings are equal byte-wise but
// ordered with locale-aware collation (Collate). Values of different
// classes are never equal and have no order.
//
// JSON ENCODING:
//
// MarshalFields writes objects with sorted keys. Time is written as
// {"$date": <epoch ms>}, which is why "$date" is reserved as a key. Floats
// always carry a fraction or exponent so that 3.0 survives a round trip as
// Float and 3 as Int.
package value
