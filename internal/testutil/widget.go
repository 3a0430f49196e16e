package testutil

import (
	"github.com/roach88/quarry/internal/model"
	"github.com/roach88/quarry/internal/value"
)

// Widget is the sample record type used across backend and migration tests.
type Widget struct {
	ID     string
	Name   string
	Color  string // empty means null
	Count  int64
	Active bool
}

// WidgetModel stores widgets in the "widgets" collection.
type WidgetModel struct{}

var _ model.Model[Widget] = WidgetModel{}

func (WidgetModel) Name() string { return "widgets" }

func (WidgetModel) ID(w Widget) string { return w.ID }

func (WidgetModel) Serialize(w Widget) value.Fields {
	f := value.Fields{
		"name":   value.String(w.Name),
		"count":  value.Int(w.Count),
		"active": value.Bool(w.Active),
		"color":  value.Null{},
	}
	if w.Color != "" {
		f["color"] = value.String(w.Color)
	}
	return f
}

func (WidgetModel) Deserialize(id string, raw value.Fields) (Widget, error) {
	r := value.NewReader(raw)
	w := Widget{
		ID:     id,
		Name:   r.String("name"),
		Color:  r.OptString("color"),
		Count:  r.Int("count"),
		Active: r.Bool("active"),
	}
	return w, r.Err()
}
