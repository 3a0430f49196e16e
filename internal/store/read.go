package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/quarry/internal/query"
	"github.com/roach88/quarry/internal/value"
)

// Get returns the record with the given identity. Absence is not an error.
func (c *Collection) Get(ctx context.Context, id string) (value.Record, bool, error) {
	var doc string
	err := c.store.db.QueryRowContext(ctx, `
		SELECT doc FROM documents WHERE collection = ? AND id = ?
	`, c.name, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return value.Record{}, false, nil
	}
	if err != nil {
		return value.Record{}, false, fmt.Errorf("get %s/%s: %w", c.name, id, err)
	}

	fields, err := unmarshalDoc(doc)
	if err != nil {
		return value.Record{}, false, fmt.Errorf("get %s/%s: %w", c.name, id, err)
	}
	return value.Record{ID: id, Fields: fields}, true, nil
}

// Find runs a compiled query. Results are ordered by the sort clause, then
// by insertion sequence.
//
// Returns an empty slice (not nil) if nothing matches.
func (c *Collection) Find(ctx context.Context, q query.Find) ([]value.Record, error) {
	stmt, params, err := c.store.compiler.Find(c.name, q)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", c.name, err)
	}

	rows, err := c.store.db.QueryContext(ctx, stmt, params...)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", c.name, err)
	}
	defer rows.Close()

	records := []value.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("find in %s: %w", c.name, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", c.name, err)
	}
	return records, nil
}

// Count returns the number of records matching where.
func (c *Collection) Count(ctx context.Context, where query.Where) (int, error) {
	stmt, params, err := c.store.compiler.Count(c.name, where)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", c.name, err)
	}
	var n int
	if err := c.store.db.QueryRowContext(ctx, stmt, params...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", c.name, err)
	}
	return n, nil
}

// scanRecord scans an (id, doc) row.
func scanRecord(rows *sql.Rows) (value.Record, error) {
	var id, doc string
	if err := rows.Scan(&id, &doc); err != nil {
		return value.Record{}, fmt.Errorf("scan record: %w", err)
	}
	fields, err := unmarshalDoc(doc)
	if err != nil {
		return value.Record{}, fmt.Errorf("record %s: %w", id, err)
	}
	return value.Record{ID: id, Fields: fields}, nil
}
