package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalFieldsSortedKeys(t *testing.T) {
	data, err := MarshalFields(Fields{
		"zeta":  Int(1),
		"alpha": String("a"),
		"mid":   Null{},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":"a","mid":null,"zeta":1}`, string(data))
}

func TestMarshalFloatKeepsFraction(t *testing.T) {
	data, err := MarshalValue(Float(3))
	require.NoError(t, err)
	assert.Equal(t, "3.0", string(data))

	v, err := UnmarshalValue(data)
	require.NoError(t, err)
	assert.Equal(t, Float(3), v)
}

func TestMarshalRejectsNaN(t *testing.T) {
	_, err := MarshalFields(Fields{"x": Float(nan())})
	assert.Error(t, err)
}

func TestMarshalTimeTagged(t *testing.T) {
	data, err := MarshalFields(Fields{"at": TimeFromMillis(1700000000000)})
	require.NoError(t, err)
	assert.Equal(t, `{"at":{"$date":1700000000000}}`, string(data))
}

func TestFieldsRoundTrip(t *testing.T) {
	orig := Fields{
		"name":   String("gizmo"),
		"count":  Int(-7),
		"price":  Float(9.75),
		"active": Bool(true),
		"owner":  Null{},
		"at":     TimeFromMillis(1234),
		"tags":   Array{String("a"), Int(2)},
		"meta":   Object{"depth": Object{"n": Float(0.5)}},
	}

	data, err := MarshalFields(orig)
	require.NoError(t, err)
	got, err := UnmarshalFields(data)
	require.NoError(t, err)
	assert.Equal(t, orig, got)
}

func TestUnmarshalNumbers(t *testing.T) {
	v, err := UnmarshalValue([]byte("42"))
	require.NoError(t, err)
	assert.Equal(t, Int(42), v)

	v, err = UnmarshalValue([]byte("4.2e1"))
	require.NoError(t, err)
	assert.Equal(t, Float(42), v)
}

func TestUnmarshalDateNeedsSingleIntegerKey(t *testing.T) {
	v, err := UnmarshalValue([]byte(`{"$date":5,"other":1}`))
	require.NoError(t, err)
	assert.Equal(t, KindObject, KindOf(v))

	v, err = UnmarshalValue([]byte(`{"$date":"soon"}`))
	require.NoError(t, err)
	assert.Equal(t, Object{"$date": String("soon")}, v)
}

func TestUnmarshalFieldsRejectsNonObject(t *testing.T) {
	_, err := UnmarshalFields([]byte(`[1,2]`))
	assert.ErrorContains(t, err, "expected JSON object")

	_, err = UnmarshalFields([]byte(``))
	assert.Error(t, err)
}

func TestMarshalRejectsReservedDateKey(t *testing.T) {
	_, err := MarshalFields(Fields{"meta": Object{"$date": Int(5)}})
	assert.ErrorContains(t, err, "reserved")
}
