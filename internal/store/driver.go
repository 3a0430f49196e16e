package store

import (
	"database/sql"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"github.com/roach88/quarry/internal/value"
)

// driverName is the sqlite3 driver with the quarry collation installed.
const driverName = "sqlite3_quarry"

// collationName must match querysql.Compiler.Collation.
const collationName = "quarry_text"

// connPragmas are set on every connection the pool opens. Rename and
// Drop rely on foreign_keys for their cascades.
var connPragmas = []string{
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: connect,
	})
}

func connect(conn *sqlite3.SQLiteConn) error {
	if err := conn.RegisterCollation(collationName, value.Collate); err != nil {
		return fmt.Errorf("register collation: %w", err)
	}
	for _, pragma := range connPragmas {
		if _, err := conn.Exec(pragma, nil); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}
