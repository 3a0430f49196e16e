package mongostore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/roach88/quarry/internal/value"
)

func TestEncodeRecord(t *testing.T) {
	seq := primitive.NewObjectID()
	doc, err := encodeRecord(value.Record{ID: "w1", Fields: value.Fields{
		"name": value.String("gizmo"),
		"at":   value.TimeFromMillis(5),
		"meta": value.Object{"z": value.Int(1), "a": value.Array{value.Null{}}},
	}}, seq)
	require.NoError(t, err)

	want := bson.D{
		{Key: "_id", Value: "w1"},
		{Key: "_seq", Value: seq},
		{Key: "at", Value: primitive.DateTime(5)},
		{Key: "meta", Value: bson.D{{Key: "a", Value: bson.A{nil}}, {Key: "z", Value: int64(1)}}},
		{Key: "name", Value: "gizmo"},
	}
	assert.Equal(t, want, doc)
}

func TestEncodeRejectsReservedFields(t *testing.T) {
	_, err := encodeFields(value.Fields{"_seq": value.Int(1)})
	assert.ErrorContains(t, err, "reserved")
	_, err = encodeFields(value.Fields{"_id": value.Int(1)})
	assert.ErrorContains(t, err, "reserved")
}

func TestDecodeRecord(t *testing.T) {
	oid := primitive.NewObjectID()
	rec, err := decodeRecord(bson.D{
		{Key: "_id", Value: "w1"},
		{Key: "_seq", Value: oid},
		{Key: "small", Value: int32(3)},
		{Key: "big", Value: int64(1) << 40},
		{Key: "price", Value: 2.5},
		{Key: "at", Value: primitive.DateTime(99)},
		{Key: "ref", Value: oid},
		{Key: "tags", Value: primitive.A{"a", nil}},
		{Key: "meta", Value: primitive.D{{Key: "ok", Value: true}}},
		{Key: "loose", Value: primitive.M{"k": "v"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "w1", rec.ID)
	assert.Equal(t, value.Fields{
		"small": value.Int(3),
		"big":   value.Int(1 << 40),
		"price": value.Float(2.5),
		"at":    value.TimeFromMillis(99),
		"ref":   value.String(oid.Hex()),
		"tags":  value.Array{value.String("a"), value.Null{}},
		"meta":  value.Object{"ok": value.Bool(true)},
		"loose": value.Object{"k": value.String("v")},
	}, rec.Fields)
}

func TestDecodeRecord_Errors(t *testing.T) {
	_, err := decodeRecord(bson.D{{Key: "_id", Value: int32(1)}})
	assert.ErrorContains(t, err, "_id")

	_, err = decodeRecord(bson.D{{Key: "_id", Value: "x"}, {Key: "bin", Value: primitive.Binary{Data: []byte{1}}}})
	assert.ErrorContains(t, err, "unsupported BSON type")
}

func TestDecodeDecimal(t *testing.T) {
	d, err := primitive.ParseDecimal128("12.5")
	require.NoError(t, err)
	v, err := decodeValue(d)
	require.NoError(t, err)
	assert.Equal(t, value.Float(12.5), v)
}

func TestRoundTrip(t *testing.T) {
	orig := value.Record{ID: "r", Fields: value.Fields{
		"s": value.String("x"),
		"n": value.Int(-4),
		"f": value.Float(0.25),
		"b": value.Bool(false),
		"z": value.Null{},
		"o": value.Object{"t": value.TimeFromMillis(7)},
	}}
	doc, err := encodeRecord(orig, primitive.NewObjectID())
	require.NoError(t, err)

	data, err := bson.Marshal(doc)
	require.NoError(t, err)
	var back bson.D
	require.NoError(t, bson.Unmarshal(data, &back))

	got, err := decodeRecord(back)
	require.NoError(t, err)
	assert.Equal(t, orig, got)
}
