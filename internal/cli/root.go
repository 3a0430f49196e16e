package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/quarry/internal/migrate"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	Backend    string
	SQLitePath string
	MongoURI   string
	MongoDB    string
	Verbose    bool
	Format     string // "json" | "text"

	// Opener overrides how the backend store is opened (for testing).
	// If nil, the backend named by the resolved config is opened.
	Opener StoreOpener

	// Clock overrides the migration handler clock (for testing). If nil,
	// the handler uses the system clock.
	Clock migrate.Clock
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Persistent flag names that map onto config keys.
const (
	flagConfig   = "config"
	flagBackend  = "backend"
	flagDB       = "db"
	flagMongoURI = "mongo-uri"
	flagMongoDB  = "mongo-db"
)

// NewRootCommand creates the root command for the quarry CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quarry",
		Short: "quarry - typed records over pluggable document stores",
		Long: `Query and migrate collections of records stored in memory, SQLite or MongoDB.

The backend is chosen by --backend, the QUARRY_BACKEND environment variable
or the backend key of quarry.yaml, in that order.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				msg := fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
				fmt.Fprintf(cmd.ErrOrStderr(), "Error [%s]: %s\n", ErrCodeInvalidInput, msg)
				return NewExitError(ExitCommandError, msg)
			}
			setupLogging(cmd, opts.Verbose)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.ConfigFile, flagConfig, "", "config file (default ./quarry.yaml if present)")
	pf.StringVar(&opts.Backend, flagBackend, "", "storage backend (memory|sqlite|mongo)")
	pf.StringVar(&opts.SQLitePath, flagDB, "", "path to SQLite database")
	pf.StringVar(&opts.MongoURI, flagMongoURI, "", "MongoDB connection URI")
	pf.StringVar(&opts.MongoDB, flagMongoDB, "", "MongoDB database name")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewCollectionsCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewFindCommand(opts))
	cmd.AddCommand(NewCountCommand(opts))
	cmd.AddCommand(NewInsertCommand(opts))
	cmd.AddCommand(NewReplaceCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))

	return cmd
}

// setupLogging installs a text slog handler on stderr: Info by default,
// Debug when verbose.
func setupLogging(cmd *cobra.Command, verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
