package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/quarry/internal/backend"
	"github.com/roach88/quarry/internal/model"
	"github.com/roach88/quarry/internal/query"
	"github.com/roach88/quarry/internal/repo"
	"github.com/roach88/quarry/internal/value"
)

// CompletedMigrationType tags ledger records in the reserved collection.
const CompletedMigrationType = "completed-migration"

// LedgerEntry records one completed migration.
type LedgerEntry struct {
	ID          string
	MigrationID string
	RanAt       time.Time
}

// ledgerModel maps entries to {type, migrationId, ranAt} records in
// backend.ReservedCollection.
type ledgerModel struct{}

var _ model.Model[LedgerEntry] = ledgerModel{}

func (ledgerModel) Name() string { return backend.ReservedCollection }

func (ledgerModel) ID(e LedgerEntry) string { return e.ID }

func (ledgerModel) Serialize(e LedgerEntry) value.Fields {
	return value.Fields{
		"type":        value.String(CompletedMigrationType),
		"migrationId": value.String(e.MigrationID),
		"ranAt":       value.NewTime(e.RanAt),
	}
}

func (ledgerModel) Deserialize(id string, raw value.Fields) (LedgerEntry, error) {
	r := value.NewReader(raw)
	typ := r.String("type")
	e := LedgerEntry{
		ID:          id,
		MigrationID: r.String("migrationId"),
		RanAt:       r.Time("ranAt"),
	}
	if err := r.Err(); err != nil {
		return LedgerEntry{}, err
	}
	if typ != CompletedMigrationType {
		return LedgerEntry{}, fmt.Errorf("field %q: want %q, got %q", "type", CompletedMigrationType, typ)
	}
	if e.MigrationID == "" {
		return LedgerEntry{}, fmt.Errorf("field %q: empty", "migrationId")
	}
	return e, nil
}

// Ledger is the set of completed migrations, loaded once at the start of a
// run and appended to as migrations complete.
type Ledger struct {
	repo    *repo.Repository[LedgerEntry]
	ids     IDGenerator
	entries []LedgerEntry
	byID    map[string]int
}

// LoadLedger reads every completed-migration record of store. A malformed
// record fails the load with a *model.ValidationError. If the same
// migration id was recorded twice, the first record wins.
func LoadLedger(ctx context.Context, store backend.Store, ids IDGenerator) (*Ledger, error) {
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	r := repo.New[LedgerEntry](store, ledgerModel{})
	found, err := r.Find(ctx, query.Find{
		Where: query.Where{"type": query.Eq(value.String(CompletedMigrationType))},
	})
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	l := &Ledger{repo: r, ids: ids, byID: make(map[string]int, len(found))}
	for _, e := range found {
		if _, dup := l.byID[e.MigrationID]; dup {
			continue
		}
		l.byID[e.MigrationID] = len(l.entries)
		l.entries = append(l.entries, e)
	}
	return l, nil
}

// Completed returns the entry for migrationID, if it has run.
func (l *Ledger) Completed(migrationID string) (LedgerEntry, bool) {
	i, ok := l.byID[migrationID]
	if !ok {
		return LedgerEntry{}, false
	}
	return l.entries[i], true
}

// Len returns the number of completed migrations.
func (l *Ledger) Len() int { return len(l.entries) }

// Entries returns the completed migrations in the order they were loaded
// or recorded.
func (l *Ledger) Entries() []LedgerEntry {
	out := make([]LedgerEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Record persists the completion of migrationID. Recording an id twice
// fails with ErrAlreadyCompleted; entries are never updated.
func (l *Ledger) Record(ctx context.Context, migrationID string, ranAt time.Time) (LedgerEntry, error) {
	if _, ok := l.byID[migrationID]; ok {
		return LedgerEntry{}, fmt.Errorf("record %s: %w", migrationID, ErrAlreadyCompleted)
	}
	e := LedgerEntry{
		ID:          l.ids.Generate(),
		MigrationID: migrationID,
		RanAt:       value.NewTime(ranAt).Std(),
	}
	if err := l.repo.Create(ctx, e); err != nil {
		return LedgerEntry{}, fmt.Errorf("record %s: %w", migrationID, err)
	}
	l.byID[migrationID] = len(l.entries)
	l.entries = append(l.entries, e)
	return e, nil
}
