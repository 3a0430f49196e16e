// Package store is the SQLite document store backend.
//
// Records are JSON documents in a single documents table keyed by
// (collection, id). Collection names live in their own table, so a
// collection exists from its first insert until it is dropped, even when
// it holds no records. Renames and drops cascade from collections to
// documents through the foreign key.
//
// # Query Translation
//
// Where and sort clauses are compiled by querysql into json_type and
// json_extract expressions. Every value and JSON path is a bound
// parameter. Dates are stored as {"$date": <epoch ms>} and compared by
// their millisecond value.
//
// # Ordering
//
//   - Finds without a sort return insertion order (ORDER BY seq ASC).
//   - Sorted finds break ties on seq ASC.
//   - Text sorts use the quarry_text collation, registered on every
//     connection and backed by value.Collate, so SQLite orders strings
//     exactly like the in-process backend.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Required for rename and drop cascades
//   - A single connection, which also keeps ":memory:" databases alive
package store
