package query

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/roach88/quarry/internal/value"
)

// Field names reserved by the document stores: the identity and the
// insertion sequence.
const (
	IDField  = "_id"
	SeqField = "_seq"
)

var (
	ErrInvalidField      = errors.New("invalid field name")
	ErrInvalidLimit      = errors.New("invalid limit")
	ErrInvalidDirection  = errors.New("invalid sort direction")
	ErrInvalidConstraint = errors.New("invalid constraint")
)

// ValidateField checks that name can be addressed on every backend: not
// empty, no double quote or dot, no leading '$', and not a reserved field.
func ValidateField(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidField)
	case strings.ContainsAny(name, `".`):
		return fmt.Errorf("%w: %q contains '\"' or '.'", ErrInvalidField, name)
	case strings.HasPrefix(name, "$"):
		return fmt.Errorf("%w: %q starts with '$'", ErrInvalidField, name)
	case name == IDField:
		return fmt.Errorf("%w: %q is reserved for identity", ErrInvalidField, name)
	case name == SeqField:
		return fmt.Errorf("%w: %q is reserved for insertion order", ErrInvalidField, name)
	}
	return nil
}

// Validate checks field names and constraint values.
func (w Where) Validate() error {
	for _, field := range w.Fields() {
		if err := ValidateField(field); err != nil {
			return err
		}
		if err := validateConstraint(w[field]); err != nil {
			return fmt.Errorf("field %q: %w", field, err)
		}
	}
	return nil
}

func validateConstraint(c Constraint) error {
	switch c := c.(type) {
	case Equals:
		return validateScalar(c.Value)
	case NotEquals:
		return validateScalar(c.Value)
	case Range:
		for _, b := range c.Bounds() {
			if err := validateScalar(b.Bound); err != nil {
				return fmt.Errorf("%s: %w", b.Op, err)
			}
		}
		return nil
	case nil:
		return fmt.Errorf("%w: nil", ErrInvalidConstraint)
	default:
		return fmt.Errorf("%w: unknown constraint type %T", ErrInvalidConstraint, c)
	}
}

func validateScalar(v value.Scalar) error {
	if f, ok := v.(value.Float); ok && (math.IsNaN(float64(f)) || math.IsInf(float64(f), 0)) {
		return fmt.Errorf("%w: non-finite number %v", ErrInvalidConstraint, float64(f))
	}
	return nil
}

// Validate checks the sort field and direction. A nil Sort is valid.
func (s *Sort) Validate() error {
	if s == nil {
		return nil
	}
	if err := ValidateField(s.By); err != nil {
		return err
	}
	if s.Direction != Asc && s.Direction != Desc {
		return fmt.Errorf("%w: %q", ErrInvalidDirection, s.Direction)
	}
	return nil
}

// Validate checks every part of the query.
func (q Find) Validate() error {
	if q.Limit < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, q.Limit)
	}
	if err := q.Where.Validate(); err != nil {
		return err
	}
	return q.Sort.Validate()
}
