package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/quarry/internal/backend"
	"github.com/roach88/quarry/internal/migrate"
	"github.com/roach88/quarry/internal/plan"
)

func (o *RootOptions) handlerOptions() []migrate.Option {
	hopts := []migrate.Option{migrate.WithLogger(slog.Default())}
	if o.Clock != nil {
		hopts = append(hopts, migrate.WithClock(o.Clock))
	}
	return hopts
}

// MigrateResult is the payload of a migrate run.
type MigrateResult struct {
	Applied []string `json:"applied"`
	Skipped []string `json:"skipped"`
}

func (r MigrateResult) writeText(w io.Writer) error {
	for _, id := range r.Applied {
		if _, err := fmt.Fprintf(w, "applied  %s\n", id); err != nil {
			return err
		}
	}
	for _, id := range r.Skipped {
		if _, err := fmt.Fprintf(w, "skipped  %s\n", id); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d applied, %d skipped\n", len(r.Applied), len(r.Skipped))
	return err
}

// StatusEntry is one row of the status command.
type StatusEntry struct {
	ID    string     `json:"id"`
	State string     `json:"state"`
	RanAt *time.Time `json:"ran_at,omitempty"`
}

// StatusResult is the payload of the status command.
type StatusResult []StatusEntry

func (r StatusResult) writeText(w io.Writer) error {
	for _, e := range r {
		ranAt := "-"
		if e.RanAt != nil {
			ranAt = e.RanAt.Format(time.RFC3339Nano)
		}
		if _, err := fmt.Fprintf(w, "%-10s %s  %s\n", e.State, e.ID, ranAt); err != nil {
			return err
		}
	}
	return nil
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate <plan>",
		Short: "Run the pending migrations of a plan",
		Long: `Run every migration of a plan file that has not completed yet.

Plans are YAML (.yaml, .yml), JSON (.json), CUE (.cue) or a directory of
CUE files. Completed migration ids are recorded in the store, so running
the same plan again only applies what is new. The first failing migration
stops the run; migrations applied before it stay recorded.

Example:
  quarry migrate --db ./app.db ./migrations.yaml
  quarry migrate --backend mongo --mongo-uri mongodb://localhost:27017 ./plans`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <plan>",
		Short: "Show which migrations of a plan are pending or completed",
		Long: `Show which migrations of a plan are pending or completed.

Migrations recorded in the store but missing from the plan are listed
after it as unregistered.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func loadMigrations(path string) ([]migrate.Migration, error) {
	p, err := plan.Load(path)
	if err != nil {
		return nil, err
	}
	return p.Compile()
}

func runMigrate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	migrations, err := loadMigrations(path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodePlan, "failed to load plan", err)
	}
	f.VerboseLog("Loaded %d migration(s) from %s", len(migrations), path)

	return withStore(opts, cmd, f, func(ctx context.Context, st backend.Store) error {
		h := migrate.NewHandler(st, opts.handlerOptions()...)
		report, err := h.Run(ctx, migrations)
		if err != nil {
			var migErr *migrate.Error
			if errors.As(err, &migErr) {
				return f.Fail(ExitFailure, ErrCodeMigration, "migration "+migErr.MigrationID+" failed", migErr.Err)
			}
			return f.Fail(ExitFailure, ErrCodeBackend, "migration run failed", err)
		}
		return f.Success(MigrateResult{
			Applied: nonNil(report.Applied),
			Skipped: nonNil(report.Skipped),
		})
	})
}

func runStatus(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	migrations, err := loadMigrations(path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodePlan, "failed to load plan", err)
	}

	return withStore(opts, cmd, f, func(ctx context.Context, st backend.Store) error {
		h := migrate.NewHandler(st, opts.handlerOptions()...)
		statuses, err := h.Status(ctx, migrations)
		if err != nil {
			return f.Fail(ExitFailure, ErrCodeBackend, "failed to read migration ledger", err)
		}

		result := make(StatusResult, 0, len(statuses))
		for _, s := range statuses {
			e := StatusEntry{ID: s.ID, State: string(s.State)}
			if s.State != migrate.StatePending {
				ranAt := s.RanAt
				e.RanAt = &ranAt
			}
			result = append(result, e)
		}
		return f.Success(result)
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
