package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/roach88/quarry/internal/backend"
	"github.com/roach88/quarry/internal/querysql"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on documents(collection, seq)
const currentSchemaVersion = 1

// Store is a backend.Store over a SQLite database.
type Store struct {
	db       *sql.DB
	compiler *querysql.Compiler
}

var _ backend.Store = (*Store)(nil)

// Open creates or opens a SQLite database at the given path. ":memory:"
// opens a private in-memory database.
// Applies required pragmas and migrations automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Store, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, and an in-memory database
	// lives exactly as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	compiler := querysql.NewCompiler()
	compiler.Collation = collationName
	return &Store{db: db, compiler: compiler}, nil
}

// Close closes the database connection.
func (s *Store) Close(context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Collection returns a handle to name.
func (s *Store) Collection(name string) backend.Collection {
	return &Collection{store: s, name: name}
}

// Collections lists user collections in byte order.
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM collections
		WHERE name != ?
		ORDER BY name COLLATE BINARY ASC
	`, backend.ReservedCollection)
	if err != nil {
		return nil, fmt.Errorf("query collections: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}
	return names, nil
}

// Rename renames a collection; its documents follow through the
// ON UPDATE CASCADE foreign key.
func (s *Store) Rename(ctx context.Context, oldName, newName string) error {
	if err := backend.ValidateCollection(newName); err != nil {
		return fmt.Errorf("rename collection: %w", err)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		exists, err := collectionExists(ctx, tx, oldName)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("rename collection %q: %w", oldName, backend.ErrCollectionNotFound)
		}
		exists, err = collectionExists(ctx, tx, newName)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("rename collection %q to %q: %w", oldName, newName, backend.ErrCollectionExists)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE collections SET name = ? WHERE name = ?`, newName, oldName); err != nil {
			return fmt.Errorf("rename collection %q: %w", oldName, err)
		}
		return nil
	})
}

// Drop deletes a collection; its documents go through ON DELETE CASCADE.
func (s *Store) Drop(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name); err != nil {
		return fmt.Errorf("drop collection %q: %w", name, err)
	}
	return nil
}

func collectionExists(ctx context.Context, tx *sql.Tx, name string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM collections WHERE name = ?`, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query collection %q: %w", name, err)
	}
	return true, nil
}

// withTx runs fn in a transaction, committing on success.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// applyPragmas sets database-wide SQLite configuration. Per-connection
// pragmas are set by the driver's connect hook.
func applyPragmas(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return fmt.Errorf("failed to execute %q: %w", "PRAGMA journal_mode = WAL", err)
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the (collection, seq) index used by unsorted finds.
// New databases get it from schema.sql; databases created before v1 need
// it added explicitly.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_documents_collection_seq
		ON documents(collection, seq)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
