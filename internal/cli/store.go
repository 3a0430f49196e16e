package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/roach88/quarry/internal/backend"
	"github.com/roach88/quarry/internal/config"
	"github.com/roach88/quarry/internal/memstore"
	"github.com/roach88/quarry/internal/mongostore"
	"github.com/roach88/quarry/internal/store"
)

// StoreOpener opens the backend described by cfg.
type StoreOpener func(ctx context.Context, cfg config.Config) (backend.Store, error)

// resolveConfig layers the persistent flags over env, file and defaults.
func resolveConfig(opts *RootOptions, cmd *cobra.Command) (config.Config, error) {
	pf := cmd.Root().PersistentFlags()
	flags := map[string]*pflag.Flag{
		config.KeyBackend:       pf.Lookup(flagBackend),
		config.KeySQLitePath:    pf.Lookup(flagDB),
		config.KeyMongoURI:      pf.Lookup(flagMongoURI),
		config.KeyMongoDatabase: pf.Lookup(flagMongoDB),
	}
	cfg, err := config.Load(opts.ConfigFile, flags)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// openBackend opens the store named by cfg.
func openBackend(ctx context.Context, cfg config.Config) (backend.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memstore.New(), nil
	case config.BackendSQLite:
		return store.Open(cfg.SQLite.Path)
	case config.BackendMongo:
		return mongostore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrBackendUnknown, cfg.Backend)
	}
}

// withStore resolves the configuration, opens the store, runs fn and
// closes the store again. Failures before fn runs are command errors.
func withStore(opts *RootOptions, cmd *cobra.Command, f *OutputFormatter, fn func(ctx context.Context, st backend.Store) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := resolveConfig(opts, cmd)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}

	open := opts.Opener
	if open == nil {
		open = openBackend
	}
	slog.Debug("opening store", "backend", cfg.Backend)
	st, err := open(ctx, cfg)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeBackend, "failed to open "+cfg.Backend+" store", err)
	}
	defer func() {
		if closeErr := st.Close(context.WithoutCancel(ctx)); closeErr != nil {
			slog.Error("error closing store", "backend", cfg.Backend, "error", closeErr)
		}
	}()

	return fn(ctx, st)
}
