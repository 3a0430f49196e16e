package mongostore

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/roach88/quarry/internal/query"
	"github.com/roach88/quarry/internal/value"
)

// Filter translates w into a MongoDB filter document.
//
//	Equals     {field: v}          null matches null and missing
//	NotEquals  {field: {$ne: v}}
//	Range      {field: {$gt: ..., $lte: ...}}
//
// MongoDB's type bracketing gives range bounds the same class semantics as
// the other backends: a numeric bound never matches strings or dates. An
// empty range is omitted. A nil or empty Where yields an empty filter.
func Filter(w query.Where) (bson.M, error) {
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("build filter: %w", err)
	}
	filter := bson.M{}
	for _, field := range w.Fields() {
		switch c := w[field].(type) {
		case query.Equals:
			filter[field] = scalarToBSON(c.Value)
		case query.NotEquals:
			filter[field] = bson.M{"$ne": scalarToBSON(c.Value)}
		case query.Range:
			if c.IsEmpty() {
				continue
			}
			ops := bson.M{}
			for _, b := range c.Bounds() {
				ops["$"+string(b.Op)] = scalarToBSON(b.Bound)
			}
			filter[field] = ops
		default:
			return nil, fmt.Errorf("build filter field %q: unsupported constraint type: %T", field, c)
		}
	}
	return filter, nil
}

// SortDoc translates s into a MongoDB sort document. Every sort ends with
// the insertion sequence, and a nil Sort sorts by insertion sequence only.
func SortDoc(s *query.Sort) (bson.D, error) {
	tiebreak := bson.E{Key: seqField, Value: 1}
	if s == nil {
		return bson.D{tiebreak}, nil
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("build sort: %w", err)
	}
	return bson.D{{Key: s.By, Value: s.Direction.Sign()}, tiebreak}, nil
}

func scalarToBSON(v value.Scalar) any {
	switch val := v.(type) {
	case nil, value.Null:
		return nil
	case value.String:
		return string(val)
	case value.Int:
		return int64(val)
	case value.Float:
		return float64(val)
	case value.Bool:
		return bool(val)
	case value.Time:
		return primitive.DateTime(val.Millis())
	default:
		return nil
	}
}
