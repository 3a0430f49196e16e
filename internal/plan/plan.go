// Package plan loads declarative migration plans and compiles them into
// migrate.Migration values.
//
// A plan is a YAML, JSON or CUE document:
//
//	migrations:
//	  - id: 0001-activate-widgets
//	    steps:
//	      - map:    {collection: widgets, where: {active: true}, inc: {count: 1}}
//	      - delete: {collection: widgets, where: {count: {lt: 0}}, if: {missing: [owner]}}
//	      - rename: {from: widgets, to: gadgets}
//	      - drop:   {collection: scratch}
//
// Where clauses use the query.ParseWhere shapes. Dates are written as
// {$date: "2024-01-01T00:00:00Z"} or {$date: <epoch ms>}.
package plan

import (
	"errors"
	"fmt"
)

// ErrInvalidPlan reports a plan that cannot be compiled.
var ErrInvalidPlan = errors.New("invalid plan")

// Plan is an ordered list of migrations.
type Plan struct {
	Migrations []MigrationSpec `yaml:"migrations" json:"migrations"`
}

// MigrationSpec is one migration: an id and the steps its body runs.
type MigrationSpec struct {
	// ID is recorded in the ledger once the migration completes.
	ID string `yaml:"id" json:"id"`

	// Description is informational only.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Steps run in order; the first failing step aborts the migration.
	Steps []Step `yaml:"steps" json:"steps"`
}

// Step holds exactly one command.
type Step struct {
	Map    *MapStep    `yaml:"map,omitempty" json:"map,omitempty"`
	Delete *DeleteStep `yaml:"delete,omitempty" json:"delete,omitempty"`
	Rename *RenameStep `yaml:"rename,omitempty" json:"rename,omitempty"`
	Drop   *DropStep   `yaml:"drop,omitempty" json:"drop,omitempty"`
}

// MapStep rewrites matching records. Operations apply in the order
// rename, unset, set, inc.
type MapStep struct {
	Collection string            `yaml:"collection" json:"collection"`
	Where      map[string]any    `yaml:"where,omitempty" json:"where,omitempty"`
	Set        map[string]any    `yaml:"set,omitempty" json:"set,omitempty"`
	Inc        map[string]any    `yaml:"inc,omitempty" json:"inc,omitempty"`
	Unset      []string          `yaml:"unset,omitempty" json:"unset,omitempty"`
	Rename     map[string]string `yaml:"rename,omitempty" json:"rename,omitempty"`
}

// DeleteStep removes matching records. If narrows the store-level Where
// with a condition tested on each selected record.
type DeleteStep struct {
	Collection string         `yaml:"collection" json:"collection"`
	Where      map[string]any `yaml:"where,omitempty" json:"where,omitempty"`
	If         *Condition     `yaml:"if,omitempty" json:"if,omitempty"`
}

// Condition is an in-process record test. Every part must hold.
type Condition struct {
	// Missing fields must be absent or null.
	Missing []string `yaml:"missing,omitempty" json:"missing,omitempty"`

	// Present fields must hold a non-null value.
	Present []string `yaml:"present,omitempty" json:"present,omitempty"`

	// Where is matched in-process.
	Where map[string]any `yaml:"where,omitempty" json:"where,omitempty"`
}

// RenameStep renames a collection.
type RenameStep struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// DropStep removes a collection.
type DropStep struct {
	Collection string `yaml:"collection" json:"collection"`
}

// IDs returns the migration ids in plan order.
func (p *Plan) IDs() []string {
	out := make([]string, len(p.Migrations))
	for i, m := range p.Migrations {
		out[i] = m.ID
	}
	return out
}

// Validate checks the plan's structure without compiling where clauses.
func (p *Plan) Validate() error {
	if len(p.Migrations) == 0 {
		return fmt.Errorf("%w: migrations list is required and must be non-empty", ErrInvalidPlan)
	}
	seen := make(map[string]bool, len(p.Migrations))
	for i, m := range p.Migrations {
		if m.ID == "" {
			return fmt.Errorf("%w: migrations[%d]: id is required", ErrInvalidPlan, i)
		}
		if seen[m.ID] {
			return fmt.Errorf("%w: migrations[%d]: duplicate id %q", ErrInvalidPlan, i, m.ID)
		}
		seen[m.ID] = true
		if len(m.Steps) == 0 {
			return fmt.Errorf("%w: migrations[%d] (%s): steps list is required and must be non-empty", ErrInvalidPlan, i, m.ID)
		}
		for j, s := range m.Steps {
			if err := s.validate(); err != nil {
				return fmt.Errorf("%w: migrations[%d].steps[%d]: %v", ErrInvalidPlan, i, j, err)
			}
		}
	}
	return nil
}

func (s Step) validate() error {
	n := 0
	if s.Map != nil {
		n++
		if s.Map.Collection == "" {
			return errors.New("map: collection is required")
		}
		if len(s.Map.Set) == 0 && len(s.Map.Inc) == 0 && len(s.Map.Unset) == 0 && len(s.Map.Rename) == 0 {
			return errors.New("map: at least one of set, inc, unset or rename is required")
		}
	}
	if s.Delete != nil {
		n++
		if s.Delete.Collection == "" {
			return errors.New("delete: collection is required")
		}
	}
	if s.Rename != nil {
		n++
		if s.Rename.From == "" || s.Rename.To == "" {
			return errors.New("rename: from and to are required")
		}
	}
	if s.Drop != nil {
		n++
		if s.Drop.Collection == "" {
			return errors.New("drop: collection is required")
		}
	}
	if n != 1 {
		return fmt.Errorf("exactly one of map, delete, rename or drop is required, got %d", n)
	}
	return nil
}
