package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quarry/internal/value"
)

func TestWidgetModel_RoundTrip(t *testing.T) {
	m := WidgetModel{}
	w := Widget{ID: "w1", Name: "sprocket", Color: "red", Count: 3, Active: true}

	raw := m.Serialize(w)
	_, hasID := raw["id"]
	assert.False(t, hasID, "identity must not be serialized")

	got, err := m.Deserialize("w1", raw)
	require.NoError(t, err)
	assert.Equal(t, w, got)
}

func TestWidgetModel_NullColor(t *testing.T) {
	m := WidgetModel{}
	raw := m.Serialize(Widget{ID: "w2", Name: "cog"})
	assert.Equal(t, value.Null{}, raw["color"])

	got, err := m.Deserialize("w2", raw)
	require.NoError(t, err)
	assert.Equal(t, "", got.Color)
}

func TestWidgetModel_RejectsWrongKind(t *testing.T) {
	_, err := WidgetModel{}.Deserialize("w3", value.Fields{
		"name":   value.String("x"),
		"count":  value.String("many"),
		"active": value.Bool(true),
	})

	var fe *value.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "count", fe.Field)
}
