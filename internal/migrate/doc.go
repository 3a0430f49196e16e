// Package migrate runs schema-change migrations against raw records.
//
// A Migrator executes the four primitive commands (map, delete, rename and
// drop) against any backend.Store. A Handler owns the run loop: it loads
// the Ledger of completed migrations, runs each pending Migration in
// registration order and records its completion. A migration that fails
// is not recorded, so the next run attempts it again from the start.
//
// State per migration id:
//
//	Pending -> Running -> Completed
//
// Completed is terminal and persisted in backend.ReservedCollection.
// Commands inside one migration are not checkpointed individually, and
// migrations never run concurrently with each other.
package migrate
