package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/quarry/internal/query"
	"github.com/roach88/quarry/internal/value"
)

// Compiler compiles the constraint DSL to parameterized SQLite SQL over
// JSON documents stored in a single table.
//
// Each record is a row (seq, collection, id, doc) where doc is the JSON
// encoding of the record's fields (see value.MarshalFields) and seq is the
// insertion sequence.
//
// CRITICAL: Every SELECT ends with "seq ASC" so ties keep insertion order.
// CRITICAL: Values and JSON paths are always parameters, never interpolated.
type Compiler struct {
	Table     string // documents table
	Doc       string // JSON column
	Seq       string // insertion sequence column
	Collation string // text collation used for sorting
}

// NewCompiler returns a Compiler for the store's schema.
func NewCompiler() *Compiler {
	return &Compiler{
		Table:     "documents",
		Doc:       "doc",
		Seq:       "seq",
		Collation: "quarry_text",
	}
}

// FieldPath returns the JSON path of a top-level field.
func FieldPath(field string) string {
	return `$."` + field + `"`
}

// DatePath returns the JSON path of the epoch milliseconds of a date field.
func DatePath(field string) string {
	return FieldPath(field) + `."` + value.DateKey + `"`
}

// Find compiles a full SELECT for q against one collection.
// Returns (sql, params, error).
func (c *Compiler) Find(collection string, q query.Find) (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	where, params, err := c.scope(collection, q.Where)
	if err != nil {
		return "", nil, err
	}
	orderBy, orderParams, err := c.OrderBy(q.Sort)
	if err != nil {
		return "", nil, err
	}
	params = append(params, orderParams...)

	sql := fmt.Sprintf("SELECT id, %s FROM %s WHERE %s ORDER BY %s", c.Doc, c.Table, where, orderBy)
	if q.Limit > 0 {
		sql += " LIMIT ?"
		params = append(params, q.Limit)
	}
	return sql, params, nil
}

// Count compiles a COUNT over one collection.
func (c *Compiler) Count(collection string, w query.Where) (string, []any, error) {
	where, params, err := c.scope(collection, w)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", c.Table, where), params, nil
}

// Delete compiles a DELETE of every matching record in one collection.
func (c *Compiler) Delete(collection string, w query.Where) (string, []any, error) {
	where, params, err := c.scope(collection, w)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s", c.Table, where), params, nil
}

// scope restricts w to one collection.
func (c *Compiler) scope(collection string, w query.Where) (string, []any, error) {
	sql, params, err := c.Where(w)
	if err != nil {
		return "", nil, err
	}
	params = append([]any{collection}, params...)
	if sql == "" {
		return "collection = ?", params, nil
	}
	return "collection = ? AND " + sql, params, nil
}

// Where compiles w to a boolean SQL expression. Fields are emitted in
// sorted order. An empty Where compiles to "" with no parameters.
//
// Every per-field expression evaluates to 0 or 1, never NULL, so that a
// NotEquals can negate its Equals exactly.
func (c *Compiler) Where(w query.Where) (string, []any, error) {
	if err := w.Validate(); err != nil {
		return "", nil, fmt.Errorf("compile where: %w", err)
	}

	var parts []string
	var params []any
	for _, field := range w.Fields() {
		sql, p, err := c.constraint(field, w[field])
		if err != nil {
			return "", nil, fmt.Errorf("compile where field %q: %w", field, err)
		}
		if sql == "" {
			continue
		}
		parts = append(parts, sql)
		params = append(params, p...)
	}
	return strings.Join(parts, " AND "), params, nil
}

func (c *Compiler) constraint(field string, con query.Constraint) (string, []any, error) {
	switch con := con.(type) {
	case query.Equals:
		return c.equals(field, con.Value)
	case query.NotEquals:
		sql, params, err := c.equals(field, con.Value)
		if err != nil {
			return "", nil, err
		}
		return "NOT " + sql, params, nil
	case query.Range:
		return c.rangeExpr(field, con)
	default:
		return "", nil, fmt.Errorf("unsupported constraint type: %T", con)
	}
}

// equals compiles field == v. A null literal matches missing fields too.
func (c *Compiler) equals(field string, v value.Scalar) (string, []any, error) {
	path := FieldPath(field)
	switch val := v.(type) {
	case nil, value.Null:
		return fmt.Sprintf("COALESCE(json_type(%s, ?), 'null') = 'null'", c.Doc), []any{path}, nil
	case value.Bool:
		lit := "false"
		if val {
			lit = "true"
		}
		return fmt.Sprintf("COALESCE(json_type(%s, ?) = ?, 0)", c.Doc), []any{path, lit}, nil
	default:
		return c.compare(field, "=", v)
	}
}

// rangeExpr compiles the conjunction of the set bounds. An empty range
// compiles to "".
func (c *Compiler) rangeExpr(field string, r query.Range) (string, []any, error) {
	bounds := r.Bounds()
	if len(bounds) == 0 {
		return "", nil, nil
	}
	var parts []string
	var params []any
	for _, b := range bounds {
		sql, p, err := c.compare(field, sqlOp(b.Op), b.Bound)
		if err != nil {
			return "", nil, fmt.Errorf("%s: %w", b.Op, err)
		}
		parts = append(parts, sql)
		params = append(params, p...)
	}
	if len(parts) == 1 {
		return parts[0], params, nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", params, nil
}

// compare compiles "field <op> v" guarded by the JSON type of v's
// comparison class: numbers match integer or real, strings match text,
// dates match objects holding an integer "$date".
func (c *Compiler) compare(field, op string, v value.Scalar) (string, []any, error) {
	param, err := scalarToParam(v)
	if err != nil {
		return "", nil, err
	}
	path := FieldPath(field)
	var guard, operandPath string
	switch v.(type) {
	case value.Int, value.Float:
		guard, operandPath = "IN ('integer', 'real')", path
	case value.String:
		guard, operandPath = "= 'text'", path
	case value.Time:
		guard, operandPath = "= 'integer'", DatePath(field)
	default:
		return "", nil, fmt.Errorf("cannot compare %s with %q", value.KindOf(v), op)
	}
	sql := fmt.Sprintf("COALESCE((json_type(%s, ?) %s AND json_extract(%s, ?) %s ?), 0)", c.Doc, guard, c.Doc, op)
	return sql, []any{operandPath, operandPath, param}, nil
}

func sqlOp(op query.Op) string {
	switch op {
	case query.OpGt:
		return ">"
	case query.OpGte:
		return ">="
	case query.OpLt:
		return "<"
	default:
		return "<="
	}
}

// OrderBy compiles s to an ORDER BY list. The sort key is the date's epoch
// milliseconds for dates and the JSON value otherwise; text compares with
// the Compiler's collation.
//
// MANDATORY: the list always ends with the insertion sequence tiebreaker.
func (c *Compiler) OrderBy(s *query.Sort) (string, []any, error) {
	tiebreak := c.Seq + " ASC"
	if s == nil {
		return tiebreak, nil, nil
	}
	if err := s.Validate(); err != nil {
		return "", nil, fmt.Errorf("compile sort: %w", err)
	}
	dir := "ASC"
	if s.Direction == query.Desc {
		dir = "DESC"
	}
	sql := fmt.Sprintf("COALESCE(json_extract(%s, ?), json_extract(%s, ?)) COLLATE %s %s, %s",
		c.Doc, c.Doc, c.Collation, dir, tiebreak)
	return sql, []any{DatePath(s.By), FieldPath(s.By)}, nil
}

// scalarToParam converts a scalar to a Go value for a SQL parameter.
func scalarToParam(v value.Scalar) (any, error) {
	switch val := v.(type) {
	case value.String:
		return string(val), nil
	case value.Int:
		return int64(val), nil
	case value.Float:
		return float64(val), nil
	case value.Time:
		return val.Millis(), nil
	case value.Bool:
		return bool(val), nil
	case value.Null, nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported value type for SQL parameter: %T", v)
	}
}
