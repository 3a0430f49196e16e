package value

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nan() float64 { return math.NaN() }

func TestFromGo(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null{}},
		{"string", "x", String("x")},
		{"int", 5, Int(5)},
		{"uint32", uint32(7), Int(7)},
		{"float", 2.5, Float(2.5)},
		{"json int", json.Number("12"), Int(12)},
		{"json float", json.Number("1.5"), Float(1.5)},
		{"time", ts, NewTime(ts)},
		{"date string", map[string]any{"$date": "2025-01-02T03:04:05Z"}, NewTime(ts)},
		{"date ms", map[string]any{"$date": 1000}, TimeFromMillis(1000)},
		{"slice", []any{"a", 1}, Array{String("a"), Int(1)}},
		{"map", map[string]any{"n": true}, Object{"n": Bool(true)}},
		{"value passthrough", Int(3), Int(3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromGo(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromGoErrors(t *testing.T) {
	_, err := FromGo(struct{}{})
	assert.ErrorContains(t, err, "unsupported Go type")

	_, err = FromGo(uint64(math.MaxUint64))
	assert.ErrorContains(t, err, "overflows")

	_, err = FromGo(map[string]any{"$date": "yesterday"})
	assert.ErrorContains(t, err, "invalid date")

	_, err = FromGo([]any{1, complex(1, 2)})
	assert.ErrorContains(t, err, "index 1")
}

func TestToGoRoundTrip(t *testing.T) {
	f := Fields{
		"s":   String("x"),
		"n":   Int(1),
		"f":   Float(1.5),
		"at":  TimeFromMillis(0),
		"arr": Array{Null{}},
	}
	m := FieldsToGo(f)
	assert.Equal(t, int64(1), m["n"])
	assert.Equal(t, time.UnixMilli(0).UTC(), m["at"])
	assert.Equal(t, []any{nil}, m["arr"])

	back, err := FieldsFromGo(m)
	require.NoError(t, err)
	assert.Equal(t, f, back)
}
