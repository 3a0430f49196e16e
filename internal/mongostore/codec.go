package mongostore

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/roach88/quarry/internal/value"
)

const (
	idField  = "_id"
	seqField = "_seq"
)

// encodeRecord builds the stored document: identity, insertion sequence,
// then the fields in sorted order.
func encodeRecord(rec value.Record, seq primitive.ObjectID) (bson.D, error) {
	fields, err := encodeFields(rec.Fields)
	if err != nil {
		return nil, err
	}
	doc := bson.D{{Key: idField, Value: rec.ID}, {Key: seqField, Value: seq}}
	return append(doc, fields...), nil
}

// encodeFields encodes fields without identity or sequence.
func encodeFields(f value.Fields) (bson.D, error) {
	doc := bson.D{}
	for _, k := range f.Keys() {
		if k == idField || k == seqField {
			return nil, fmt.Errorf("field %q is reserved", k)
		}
		v, err := encodeValue(f[k])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		doc = append(doc, bson.E{Key: k, Value: v})
	}
	return doc, nil
}

func encodeValue(v value.Value) (any, error) {
	switch val := v.(type) {
	case value.Array:
		arr := make(bson.A, len(val))
		for i, elem := range val {
			ev, err := encodeValue(elem)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			arr[i] = ev
		}
		return arr, nil
	case value.Object:
		doc := bson.D{}
		for _, k := range value.Fields(val).Keys() {
			ev, err := encodeValue(val[k])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			doc = append(doc, bson.E{Key: k, Value: ev})
		}
		return doc, nil
	case value.Scalar:
		return scalarToBSON(val), nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// decodeRecord converts a stored document back into a record, dropping the
// insertion sequence.
func decodeRecord(doc bson.D) (value.Record, error) {
	rec := value.Record{Fields: value.Fields{}}
	for _, e := range doc {
		switch e.Key {
		case idField:
			id, ok := e.Value.(string)
			if !ok {
				return value.Record{}, fmt.Errorf("_id: want string, got %T", e.Value)
			}
			rec.ID = id
		case seqField:
		default:
			v, err := decodeValue(e.Value)
			if err != nil {
				return value.Record{}, fmt.Errorf("record %s field %q: %w", rec.ID, e.Key, err)
			}
			rec.Fields[e.Key] = v
		}
	}
	return rec, nil
}

func decodeValue(raw any) (value.Value, error) {
	switch v := raw.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return value.Null{}, nil
	case string:
		return value.String(v), nil
	case bool:
		return value.Bool(v), nil
	case int32:
		return value.Int(v), nil
	case int64:
		return value.Int(v), nil
	case float64:
		return value.Float(v), nil
	case primitive.DateTime:
		return value.TimeFromMillis(int64(v)), nil
	case primitive.ObjectID:
		return value.String(v.Hex()), nil
	case primitive.Decimal128:
		f, err := decimalToFloat(v)
		if err != nil {
			return nil, err
		}
		return value.Float(f), nil
	case primitive.A:
		arr := make(value.Array, len(v))
		for i, elem := range v {
			ev, err := decodeValue(elem)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			arr[i] = ev
		}
		return arr, nil
	case primitive.D:
		obj := make(value.Object, len(v))
		for _, e := range v {
			ev, err := decodeValue(e.Value)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", e.Key, err)
			}
			obj[e.Key] = ev
		}
		return obj, nil
	case primitive.M:
		obj := make(value.Object, len(v))
		for _, k := range slices.Sorted(maps.Keys(v)) {
			ev, err := decodeValue(v[k])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			obj[k] = ev
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported BSON type %T", raw)
	}
}

func decimalToFloat(d primitive.Decimal128) (float64, error) {
	f, err := strconv.ParseFloat(d.String(), 64)
	if err != nil {
		return 0, fmt.Errorf("decimal %s: %w", d, err)
	}
	return f, nil
}
