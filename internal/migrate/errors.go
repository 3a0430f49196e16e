package migrate

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMigration reports a migration list the handler refuses to
	// run: an empty or duplicate id, or a missing body.
	ErrInvalidMigration = errors.New("invalid migration")

	// ErrInvalidCommand reports a command that cannot be executed, such as
	// a map without a transform.
	ErrInvalidCommand = errors.New("invalid migration command")

	// ErrAlreadyCompleted reports an attempt to record a migration twice.
	ErrAlreadyCompleted = errors.New("migration already completed")
)

// Error reports the migration that aborted a run. The ledger holds no
// completion for MigrationID.
type Error struct {
	MigrationID string
	Err         error
}

func (e *Error) Error() string {
	return fmt.Sprintf("migration %s: %v", e.MigrationID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// FailedMigration returns the id of the migration that aborted err's run,
// or "" when err did not come from a migration body.
func FailedMigration(err error) string {
	var me *Error
	if errors.As(err, &me) {
		return me.MigrationID
	}
	return ""
}
