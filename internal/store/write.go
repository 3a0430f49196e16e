package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"github.com/roach88/quarry/internal/backend"
	"github.com/roach88/quarry/internal/query"
	"github.com/roach88/quarry/internal/value"
)

// Collection is a handle to one collection of a Store.
type Collection struct {
	store *Store
	name  string
}

var _ backend.Collection = (*Collection)(nil)

func (c *Collection) Name() string { return c.name }

// Insert adds a record, creating the collection on first use.
// A second record with the same identity fails with backend.ErrDuplicateID;
// the driver error stays wrapped.
func (c *Collection) Insert(ctx context.Context, rec value.Record) error {
	if err := backend.ValidateCollection(c.name); err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	if err := backend.ValidateRecord(rec); err != nil {
		return fmt.Errorf("insert %s/%s: %w", c.name, rec.ID, err)
	}
	doc, err := marshalDoc(rec.Fields)
	if err != nil {
		return fmt.Errorf("insert %s/%s: %w", c.name, rec.ID, err)
	}

	return c.store.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO collections (name) VALUES (?)
			ON CONFLICT(name) DO NOTHING
		`, c.name); err != nil {
			return fmt.Errorf("insert %s/%s: %w", c.name, rec.ID, err)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO documents (collection, id, doc)
			VALUES (?, ?, ?)
		`, c.name, rec.ID, doc)
		if isUniqueViolation(err) {
			return fmt.Errorf("insert %s/%s: %w: %w", c.name, rec.ID, backend.ErrDuplicateID, err)
		}
		if err != nil {
			return fmt.Errorf("insert %s/%s: %w", c.name, rec.ID, err)
		}
		return nil
	})
}

// Replace overwrites the document of an existing record. The record keeps
// its insertion sequence. A missing identity updates nothing.
func (c *Collection) Replace(ctx context.Context, rec value.Record) error {
	if err := backend.ValidateRecord(rec); err != nil {
		return fmt.Errorf("replace %s/%s: %w", c.name, rec.ID, err)
	}
	doc, err := marshalDoc(rec.Fields)
	if err != nil {
		return fmt.Errorf("replace %s/%s: %w", c.name, rec.ID, err)
	}
	_, err = c.store.db.ExecContext(ctx, `
		UPDATE documents SET doc = ?
		WHERE collection = ? AND id = ?
	`, doc, c.name, rec.ID)
	if err != nil {
		return fmt.Errorf("replace %s/%s: %w", c.name, rec.ID, err)
	}
	return nil
}

// DeleteOne removes the record with the given identity, if any.
func (c *Collection) DeleteOne(ctx context.Context, id string) error {
	_, err := c.store.db.ExecContext(ctx, `
		DELETE FROM documents WHERE collection = ? AND id = ?
	`, c.name, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", c.name, id, err)
	}
	return nil
}

// DeleteMany removes every record matching where and returns how many.
func (c *Collection) DeleteMany(ctx context.Context, where query.Where) (int, error) {
	stmt, params, err := c.store.compiler.Delete(c.name, where)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", c.name, err)
	}
	res, err := c.store.db.ExecContext(ctx, stmt, params...)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", c.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", c.name, err)
	}
	return int(n), nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}
