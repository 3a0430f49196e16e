package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/quarry/internal/backend"
)

// Migration is a named unit of schema change. Up receives a Migrator bound
// to the store the handler runs against.
type Migration struct {
	ID string
	Up func(ctx context.Context, m *Migrator) error
}

// State is the persisted state of a migration id.
type State string

const (
	StatePending   State = "pending"
	StateCompleted State = "completed"

	// StateUnregistered marks a ledger entry whose migration is no longer
	// part of the registered set.
	StateUnregistered State = "unregistered"
)

// MigrationStatus describes one registered migration.
type MigrationStatus struct {
	ID    string
	State State
	RanAt time.Time // zero when pending
}

// Report summarizes a run.
type Report struct {
	Applied []string
	Skipped []string
}

// Handler runs migrations and tracks which have completed.
type Handler struct {
	store  backend.Store
	clock  Clock
	logger *slog.Logger
	ids    IDGenerator
}

// Option configures a Handler.
type Option func(*Handler)

// WithClock sets the clock that stamps ranAt.
func WithClock(c Clock) Option {
	return func(h *Handler) { h.clock = c }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithIDGenerator sets the identity source for ledger records.
func WithIDGenerator(g IDGenerator) Option {
	return func(h *Handler) { h.ids = g }
}

// NewHandler creates a handler for store.
func NewHandler(store backend.Store, opts ...Option) *Handler {
	h := &Handler{
		store:  store,
		clock:  SystemClock{},
		logger: slog.Default(),
		ids:    UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes every pending migration in registration order, strictly one
// after another. A migration whose id is in the ledger is skipped. The
// first failure aborts the run with an *Error; migrations applied before
// it stay recorded.
func (h *Handler) Run(ctx context.Context, migrations []Migration) (Report, error) {
	var report Report
	if err := validateMigrations(migrations); err != nil {
		return report, err
	}

	ledger, err := LoadLedger(ctx, h.store, h.ids)
	if err != nil {
		return report, err
	}

	h.logger.Info("migration run starting",
		"migrations", len(migrations),
		"completed", ledger.Len(),
	)

	for _, mig := range migrations {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if e, done := ledger.Completed(mig.ID); done {
			h.logger.Debug("migration skipped", "migration", mig.ID, "ran_at", e.RanAt)
			report.Skipped = append(report.Skipped, mig.ID)
			continue
		}

		start := h.clock.Now()
		m := &Migrator{store: h.store, logger: h.logger.With("migration", mig.ID)}
		if err := mig.Up(ctx, m); err != nil {
			h.logger.Error("migration failed", "migration", mig.ID, "error", err)
			return report, &Error{MigrationID: mig.ID, Err: err}
		}

		ranAt := h.clock.Now()
		if _, err := ledger.Record(ctx, mig.ID, ranAt); err != nil {
			h.logger.Error("migration not recorded", "migration", mig.ID, "error", err)
			return report, &Error{MigrationID: mig.ID, Err: err}
		}

		h.logger.Info("migration applied",
			"migration", mig.ID,
			"duration", ranAt.Sub(start),
		)
		report.Applied = append(report.Applied, mig.ID)
	}

	h.logger.Info("migration run finished",
		"applied", len(report.Applied),
		"skipped", len(report.Skipped),
	)
	return report, nil
}

// Status reports each registered migration as pending or completed, in
// registration order, followed by the ledger entries of migrations that
// are not registered, in ledger order. It does not run anything.
func (h *Handler) Status(ctx context.Context, migrations []Migration) ([]MigrationStatus, error) {
	if err := validateMigrations(migrations); err != nil {
		return nil, err
	}
	ledger, err := LoadLedger(ctx, h.store, h.ids)
	if err != nil {
		return nil, err
	}

	registered := make(map[string]bool, len(migrations))
	out := make([]MigrationStatus, 0, len(migrations))
	for _, mig := range migrations {
		registered[mig.ID] = true
		st := MigrationStatus{ID: mig.ID, State: StatePending}
		if e, done := ledger.Completed(mig.ID); done {
			st.State = StateCompleted
			st.RanAt = e.RanAt
		}
		out = append(out, st)
	}
	for _, e := range ledger.Entries() {
		if registered[e.MigrationID] {
			continue
		}
		out = append(out, MigrationStatus{ID: e.MigrationID, State: StateUnregistered, RanAt: e.RanAt})
	}
	return out, nil
}

func validateMigrations(migrations []Migration) error {
	seen := make(map[string]bool, len(migrations))
	for i, mig := range migrations {
		if mig.ID == "" {
			return fmt.Errorf("%w: migration %d has an empty id", ErrInvalidMigration, i)
		}
		if seen[mig.ID] {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidMigration, mig.ID)
		}
		if mig.Up == nil {
			return fmt.Errorf("%w: %q has no body", ErrInvalidMigration, mig.ID)
		}
		seen[mig.ID] = true
	}
	return nil
}
