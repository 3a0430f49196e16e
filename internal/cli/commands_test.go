package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quarry/internal/backend"
	"github.com/roach88/quarry/internal/config"
	"github.com/roach88/quarry/internal/memstore"
	"github.com/roach88/quarry/internal/query"
	"github.com/roach88/quarry/internal/testutil"
	"github.com/roach88/quarry/internal/value"
)

const cliPlan = `
migrations:
  - id: 0001-bump
    steps:
      - map:
          collection: widgets
          where: {active: true}
          inc: {count: 1}
  - id: 0002-rename
    steps:
      - rename: {from: widgets, to: gadgets}
`

// cliRun holds the captured output of one command invocation.
type cliRun struct {
	stdout string
	stderr string
	err    error
}

func runCLI(t *testing.T, opts *RootOptions, args ...string) cliRun {
	t.Helper()
	if opts == nil {
		opts = &RootOptions{}
	}
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := newRootCommand(opts)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return cliRun{stdout: out.String(), stderr: errOut.String(), err: err}
}

// sqliteArgs points a command at a fresh database file in a temp dir.
func sqliteArgs(t *testing.T) []string {
	t.Helper()
	t.Chdir(t.TempDir())
	return []string{"--backend", "sqlite", "--db", filepath.Join(t.TempDir(), "quarry.db")}
}

func with(base []string, args ...string) []string {
	out := append([]string{}, base...)
	return append(out, args...)
}

// sharedStore keeps a memstore alive across command invocations.
type sharedStore struct {
	backend.Store
}

func (sharedStore) Close(context.Context) error { return nil }

func memoryOpts(st *memstore.Store) *RootOptions {
	return &RootOptions{
		Opener: func(_ context.Context, cfg config.Config) (backend.Store, error) {
			if cfg.Backend != config.BackendMemory {
				return nil, config.ErrBackendUnknown
			}
			return sharedStore{st}, nil
		},
	}
}

func TestRecordCommands_SQLite(t *testing.T) {
	db := sqliteArgs(t)

	r := runCLI(t, nil, with(db, "insert", "widgets", "a", `{"name": "gear", "count": 3}`)...)
	require.NoError(t, r.err, r.stderr)
	assert.Equal(t, "inserted widgets/a\n", r.stdout)

	r = runCLI(t, nil, with(db, "insert", "widgets", "b", `{"name": "axle", "count": 7, "color": "red"}`)...)
	require.NoError(t, r.err, r.stderr)

	r = runCLI(t, nil, with(db, "get", "widgets", "a")...)
	require.NoError(t, r.err, r.stderr)
	assert.Equal(t, "a\t{\"count\":3,\"name\":\"gear\"}\n", r.stdout)

	r = runCLI(t, nil, with(db, "find", "widgets", "--sort", "name")...)
	require.NoError(t, r.err, r.stderr)
	assert.Equal(t, "b\t{\"color\":\"red\",\"count\":7,\"name\":\"axle\"}\na\t{\"count\":3,\"name\":\"gear\"}\n", r.stdout)

	r = runCLI(t, nil, with(db, "count", "widgets", "--where", "{color: {not: red}}")...)
	require.NoError(t, r.err, r.stderr)
	assert.Equal(t, "1\n", r.stdout)

	r = runCLI(t, nil, with(db, "replace", "widgets", "a", `{"name": "cog"}`)...)
	require.NoError(t, r.err, r.stderr)
	assert.Equal(t, "replaced widgets/a\n", r.stdout)

	r = runCLI(t, nil, with(db, "get", "widgets", "a")...)
	require.NoError(t, r.err, r.stderr)
	assert.Equal(t, "a\t{\"name\":\"cog\"}\n", r.stdout)

	r = runCLI(t, nil, with(db, "delete", "widgets", "a")...)
	require.NoError(t, r.err, r.stderr)
	assert.Equal(t, "deleted widgets/a\n", r.stdout)

	r = runCLI(t, nil, with(db, "collections")...)
	require.NoError(t, r.err, r.stderr)
	assert.Equal(t, "widgets\n", r.stdout)
}

func TestFind_JSONOutput(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	at := value.NewTime(testutil.Epoch)
	for i, name := range []string{"Zed", "amy", "Bob"} {
		require.NoError(t, st.Collection("people").Insert(ctx, value.Record{
			ID:     string(rune('a' + i)),
			Fields: value.Fields{"name": value.String(name), "rank": value.Int(int64(i)), "at": at},
		}))
	}

	r := runCLI(t, memoryOpts(st), "--backend", "memory", "--format", "json",
		"find", "people", "--where", `{"rank": {"gte": 1}}`, "--sort", "name", "--desc", "--limit", "1")
	require.NoError(t, r.err, r.stderr)

	var resp struct {
		Status string       `json:"status"`
		Data   []RecordView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "c", resp.Data[0].ID)

	fields, err := value.UnmarshalFields(resp.Data[0].Fields)
	require.NoError(t, err)
	assert.Equal(t, value.Fields{"name": value.String("Bob"), "rank": value.Int(2), "at": at}, fields)
}

func TestFind_DateWhere(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	for i := range 3 {
		require.NoError(t, st.Collection("events").Insert(ctx, value.Record{
			ID:     string(rune('a' + i)),
			Fields: value.Fields{"at": value.NewTime(testutil.Epoch.Add(time.Duration(i) * time.Hour))},
		}))
	}

	r := runCLI(t, memoryOpts(st), "--backend", "memory",
		"count", "events", "--where", `{at: {gt: {$date: "2024-01-01T00:30:00Z"}}}`)
	require.NoError(t, r.err, r.stderr)
	assert.Equal(t, "2\n", r.stdout)
}

func TestGet_NotFound(t *testing.T) {
	r := runCLI(t, memoryOpts(memstore.New()), "--backend", "memory", "get", "widgets", "nope")

	require.Error(t, r.err)
	assert.Equal(t, ExitFailure, GetExitCode(r.err))
	assert.Empty(t, r.stdout)
	assert.Contains(t, r.stderr, "Error [E005]: record widgets/nope not found")
}

func TestGet_NotFoundJSON(t *testing.T) {
	r := runCLI(t, memoryOpts(memstore.New()), "--backend", "memory", "--format", "json", "get", "widgets", "nope")

	require.Error(t, r.err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestWriteCommands_Errors(t *testing.T) {
	st := memstore.New()
	require.NoError(t, st.Collection("widgets").Insert(context.Background(), value.Record{ID: "a", Fields: value.Fields{}}))

	tests := []struct {
		name     string
		args     []string
		wantExit int
		wantCode string
	}{
		{"duplicate_insert", []string{"insert", "widgets", "a", `{}`}, ExitFailure, ErrCodeInvalidInput},
		{"bad_json", []string{"insert", "widgets", "b", `{name:`}, ExitCommandError, ErrCodeInvalidInput},
		{"not_an_object", []string{"insert", "widgets", "b", `[1, 2]`}, ExitCommandError, ErrCodeInvalidInput},
		{"reserved_collection", []string{"insert", "_meta", "b", `{}`}, ExitCommandError, ErrCodeInvalidInput},
		{"invalid_collection", []string{"insert", "wid$gets", "b", `{}`}, ExitCommandError, ErrCodeInvalidInput},
		{"empty_id", []string{"insert", "widgets", "", `{}`}, ExitCommandError, ErrCodeInvalidInput},
		{"replace_missing", []string{"replace", "widgets", "zz", `{}`}, ExitFailure, ErrCodeNotFound},
		{"delete_missing", []string{"delete", "widgets", "zz"}, ExitFailure, ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := runCLI(t, memoryOpts(st), append([]string{"--backend", "memory", "--format", "json"}, tt.args...)...)

			require.Error(t, r.err)
			assert.Equal(t, tt.wantExit, GetExitCode(r.err))
			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(r.stdout), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}

	n, err := st.Collection("widgets").Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInsert_DropsIdentityField(t *testing.T) {
	st := memstore.New()
	r := runCLI(t, memoryOpts(st), "--backend", "memory", "insert", "widgets", "a", `{"_id": "b", "n": 1}`)
	require.NoError(t, r.err, r.stderr)

	rec, ok, err := st.Collection("widgets").Get(context.Background(), "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, value.Fields{"n": value.Int(1)}, rec.Fields)
}

func TestFind_InvalidQueries(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown_operator", []string{"--where", "{price: {between: 1}}"}},
		{"range_on_string", []string{"--where", "{name: {gt: abc}}"}},
		{"malformed_yaml", []string{"--where", "{price: [}"}},
		{"desc_without_sort", []string{"--desc"}},
		{"negative_limit", []string{"--limit", "-1"}},
		{"identity_sort", []string{"--sort", query.IDField}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--backend", "memory", "find", "widgets"}, tt.args...)
			r := runCLI(t, memoryOpts(memstore.New()), args...)

			require.Error(t, r.err)
			assert.Equal(t, ExitCommandError, GetExitCode(r.err))
			assert.Contains(t, r.stderr, "Error [E002]")
		})
	}
}

func TestConfig_UnknownBackend(t *testing.T) {
	t.Chdir(t.TempDir())
	r := runCLI(t, nil, "--backend", "oracle", "collections")

	require.Error(t, r.err)
	assert.Equal(t, ExitCommandError, GetExitCode(r.err))
	assert.ErrorIs(t, r.err, config.ErrBackendUnknown)
	assert.Contains(t, r.stderr, "Error [E003]")
}

func TestConfig_FileSelectsBackend(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	dbPath := filepath.Join(dir, "from-file.db")
	cfgPath := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("backend: sqlite\nsqlite:\n  path: "+dbPath+"\n"), 0o644))

	r := runCLI(t, nil, "--config", cfgPath, "insert", "widgets", "a", `{}`)
	require.NoError(t, r.err, r.stderr)

	_, err := os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestMigrateAndStatus(t *testing.T) {
	db := sqliteArgs(t)
	planPath := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(planPath, []byte(cliPlan), 0o644))

	require.NoError(t, runCLI(t, nil, with(db, "insert", "widgets", "a", `{"active": true, "count": 1}`)...).err)
	require.NoError(t, runCLI(t, nil, with(db, "insert", "widgets", "b", `{"active": false, "count": 5}`)...).err)

	r := runCLI(t, nil, with(db, "status", planPath)...)
	require.NoError(t, r.err, r.stderr)
	assert.Equal(t, "pending    0001-bump  -\npending    0002-rename  -\n", r.stdout)

	opts := &RootOptions{Clock: testutil.NewStepClock()}
	r = runCLI(t, opts, with(db, "migrate", planPath)...)
	require.NoError(t, r.err, r.stderr)
	assert.Equal(t, "applied  0001-bump\napplied  0002-rename\n2 applied, 0 skipped\n", r.stdout)
	assert.Contains(t, r.stderr, "migration applied")

	r = runCLI(t, nil, with(db, "get", "gadgets", "a")...)
	require.NoError(t, r.err, r.stderr)
	assert.Equal(t, "a\t{\"active\":true,\"count\":2}\n", r.stdout)

	r = runCLI(t, nil, with(db, "migrate", planPath)...)
	require.NoError(t, r.err, r.stderr)
	assert.Equal(t, "skipped  0001-bump\nskipped  0002-rename\n0 applied, 2 skipped\n", r.stdout)

	r = runCLI(t, nil, with(db, "--format", "json", "status", planPath)...)
	require.NoError(t, r.err, r.stderr)
	var resp struct {
		Status string        `json:"status"`
		Data   []StatusEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "completed", resp.Data[0].State)
	require.NotNil(t, resp.Data[0].RanAt)
	// The step clock is read once before and once after each migration.
	assert.True(t, resp.Data[0].RanAt.Equal(testutil.Epoch.Add(time.Second)), resp.Data[0].RanAt)
	assert.True(t, resp.Data[1].RanAt.Equal(testutil.Epoch.Add(3*time.Second)), resp.Data[1].RanAt)

	// The ledger stays out of the collection listing.
	r = runCLI(t, nil, with(db, "collections")...)
	require.NoError(t, r.err, r.stderr)
	assert.Equal(t, "gadgets\n", r.stdout)

	// Recorded migrations missing from the plan are listed after it.
	shortPath := filepath.Join(t.TempDir(), "short.yaml")
	require.NoError(t, os.WriteFile(shortPath, []byte(`
migrations:
  - id: 0002-rename
    steps:
      - rename: {from: gadgets, to: widgets}
`), 0o644))
	r = runCLI(t, nil, with(db, "status", shortPath)...)
	require.NoError(t, r.err, r.stderr)
	lines := strings.Split(strings.TrimSuffix(r.stdout, "\n"), "\n")
	require.Len(t, lines, 2, r.stdout)
	assert.True(t, strings.HasPrefix(lines[0], "completed  0002-rename  "), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "unregistered 0001-bump  "), lines[1])
	assert.NotContains(t, lines[1], "  -")
}

func TestMigrate_Failure(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	require.NoError(t, st.Collection("widgets").Insert(ctx, value.Record{ID: "a", Fields: value.Fields{"active": value.Bool(true), "count": value.String("many")}}))
	planPath := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(planPath, []byte(cliPlan), 0o644))

	r := runCLI(t, memoryOpts(st), "--backend", "memory", "--format", "json", "migrate", planPath)

	require.Error(t, r.err)
	assert.Equal(t, ExitFailure, GetExitCode(r.err))
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeMigration, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "migration 0001-bump failed")

	// Nothing was recorded, so the rename never ran.
	names, err := st.Collections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"widgets"}, names)
}

func TestMigrate_BadPlan(t *testing.T) {
	planPath := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(planPath, []byte("migrations:\n  - id: x\n    steps: [{}]\n"), 0o644))

	r := runCLI(t, memoryOpts(memstore.New()), "--backend", "memory", "migrate", planPath)

	require.Error(t, r.err)
	assert.Equal(t, ExitCommandError, GetExitCode(r.err))
	assert.Contains(t, r.stderr, "Error [E006]")
}

func TestDocuments(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	docs := documents(st, "widgets")
	assert.Equal(t, "widgets", docs.Model().Name())

	require.NoError(t, docs.Create(ctx, value.Record{ID: "a", Fields: value.Fields{"n": value.Int(1)}}))
	raw, ok, err := st.Collection("widgets").Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, value.Fields{"n": value.Int(1)}, raw.Fields)

	err = docs.Create(ctx, value.Record{ID: "a"})
	assert.ErrorIs(t, err, backend.ErrDuplicateID)

	n, err := docs.Count(ctx, query.Count{Where: query.Where{"n": query.Eq(value.Int(1))}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
