package plan

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/quarry/internal/memstore"
	"github.com/roach88/quarry/internal/migrate"
	"github.com/roach88/quarry/internal/query"
	"github.com/roach88/quarry/internal/value"
)

// Compile turns every migration of p into a migrate.Migration. All where
// clauses and field values are checked here, before anything runs.
func (p *Plan) Compile() ([]migrate.Migration, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	out := make([]migrate.Migration, 0, len(p.Migrations))
	for i, spec := range p.Migrations {
		mig, err := spec.Compile()
		if err != nil {
			return nil, fmt.Errorf("migrations[%d]: %w", i, err)
		}
		out = append(out, mig)
	}
	return out, nil
}

// Compile builds the migration body from its steps.
func (s MigrationSpec) Compile() (migrate.Migration, error) {
	cmds := make([]migrate.Command, 0, len(s.Steps))
	for i, step := range s.Steps {
		cmd, err := step.Command()
		if err != nil {
			return migrate.Migration{}, fmt.Errorf("%s: steps[%d]: %w", s.ID, i, err)
		}
		cmds = append(cmds, cmd)
	}
	return migrate.Migration{ID: s.ID, Up: migrate.Steps(cmds...)}, nil
}

// Command compiles the step's single command.
func (s Step) Command() (migrate.Command, error) {
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	switch {
	case s.Map != nil:
		return s.Map.command()
	case s.Delete != nil:
		return s.Delete.command()
	case s.Rename != nil:
		return migrate.RenameCommand{OldName: s.Rename.From, NewName: s.Rename.To}, nil
	default:
		return migrate.DropCommand{Collection: s.Drop.Collection}, nil
	}
}

func (m *MapStep) command() (migrate.Command, error) {
	where, err := query.ParseWhere(m.Where)
	if err != nil {
		return nil, fmt.Errorf("map.where: %w", err)
	}

	for from, to := range m.Rename {
		if err := query.ValidateField(from); err != nil {
			return nil, fmt.Errorf("map.rename: %w", err)
		}
		if err := query.ValidateField(to); err != nil {
			return nil, fmt.Errorf("map.rename: %w", err)
		}
	}
	for _, name := range m.Unset {
		if err := query.ValidateField(name); err != nil {
			return nil, fmt.Errorf("map.unset: %w", err)
		}
	}
	set, err := value.FieldsFromGo(m.Set)
	if err != nil {
		return nil, fmt.Errorf("map.set: %w", err)
	}
	for name := range set {
		if err := query.ValidateField(name); err != nil {
			return nil, fmt.Errorf("map.set: %w", err)
		}
	}
	inc, err := value.FieldsFromGo(m.Inc)
	if err != nil {
		return nil, fmt.Errorf("map.inc: %w", err)
	}
	for name, v := range inc {
		if err := query.ValidateField(name); err != nil {
			return nil, fmt.Errorf("map.inc: %w", err)
		}
		if value.KindOf(v) != value.KindNumber {
			return nil, fmt.Errorf("map.inc: field %q: %w: want number, got %s", name, ErrInvalidPlan, value.KindOf(v))
		}
	}

	t := transform{
		renames: sortedPairs(m.Rename),
		unset:   slices.Clone(m.Unset),
		set:     set,
		inc:     inc,
	}
	return migrate.MapCommand{Collection: m.Collection, Fn: t.apply, Where: where}, nil
}

func (d *DeleteStep) command() (migrate.Command, error) {
	where, err := query.ParseWhere(d.Where)
	if err != nil {
		return nil, fmt.Errorf("delete.where: %w", err)
	}
	cmd := migrate.DeleteCommand{Collection: d.Collection, Where: where}
	if d.If != nil {
		pred, err := d.If.predicate()
		if err != nil {
			return nil, fmt.Errorf("delete.if: %w", err)
		}
		cmd.Predicate = pred
	}
	return cmd, nil
}

func (c *Condition) predicate() (migrate.PredicateFunc, error) {
	for _, name := range slices.Concat(c.Missing, c.Present) {
		if err := query.ValidateField(name); err != nil {
			return nil, err
		}
	}
	where, err := query.ParseWhere(c.Where)
	if err != nil {
		return nil, err
	}
	match := memstore.Matcher(where)
	missing := slices.Clone(c.Missing)
	present := slices.Clone(c.Present)

	return func(f value.Fields, _ string) bool {
		for _, name := range missing {
			if isSet(f[name]) {
				return false
			}
		}
		for _, name := range present {
			if !isSet(f[name]) {
				return false
			}
		}
		return match(f)
	}, nil
}

func isSet(v value.Value) bool {
	k := value.KindOf(v)
	return k != value.KindMissing && k != value.KindNull
}

type rename struct{ from, to string }

func sortedPairs(m map[string]string) []rename {
	out := make([]rename, 0, len(m))
	for _, from := range slices.Sorted(maps.Keys(m)) {
		out = append(out, rename{from: from, to: m[from]})
	}
	return out
}

// transform is the compiled body of a map step.
type transform struct {
	renames []rename
	unset   []string
	set     value.Fields
	inc     value.Fields
}

func (t transform) apply(_ context.Context, f value.Fields, _ string) (value.Fields, error) {
	for _, r := range t.renames {
		if v, ok := f[r.from]; ok {
			delete(f, r.from)
			f[r.to] = v
		}
	}
	for _, name := range t.unset {
		delete(f, name)
	}
	for name, v := range t.set {
		f[name] = value.Clone(v)
	}
	for name, by := range t.inc {
		sum, err := add(f[name], by)
		if err != nil {
			return nil, fmt.Errorf("inc %q: %w", name, err)
		}
		f[name] = sum
	}
	return f, nil
}

// add treats a missing or null field as zero.
func add(cur, by value.Value) (value.Value, error) {
	switch c := cur.(type) {
	case nil, value.Null:
		return by, nil
	case value.Int:
		if b, ok := by.(value.Int); ok {
			return c + b, nil
		}
		return value.Float(float64(c) + float64(by.(value.Float))), nil
	case value.Float:
		switch b := by.(type) {
		case value.Int:
			return c + value.Float(b), nil
		case value.Float:
			return c + b, nil
		}
	}
	return nil, fmt.Errorf("field holds %s, want number", value.KindOf(cur))
}
