package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/quarry/internal/backend"
	"github.com/roach88/quarry/internal/model"
	"github.com/roach88/quarry/internal/query"
	"github.com/roach88/quarry/internal/repo"
	"github.com/roach88/quarry/internal/value"
)

// RecordView is the output shape of a record. Fields use the store's JSON
// encoding, so dates appear as {"$date": <epoch ms>}.
type RecordView struct {
	ID     string          `json:"id"`
	Fields json.RawMessage `json:"fields"`
}

func newRecordView(rec value.Record) (RecordView, error) {
	data, err := value.MarshalFields(rec.Fields)
	if err != nil {
		return RecordView{}, fmt.Errorf("encode record %s: %w", rec.ID, err)
	}
	return RecordView{ID: rec.ID, Fields: data}, nil
}

func (r RecordView) writeText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%s\t%s\n", r.ID, r.Fields)
	return err
}

// RecordList is the payload of the find command.
type RecordList []RecordView

func (l RecordList) writeText(w io.Writer) error {
	for _, r := range l {
		if err := r.writeText(w); err != nil {
			return err
		}
	}
	return nil
}

// CollectionList is the payload of the collections command.
type CollectionList []string

func (l CollectionList) writeText(w io.Writer) error {
	for _, name := range l {
		if _, err := fmt.Fprintln(w, name); err != nil {
			return err
		}
	}
	return nil
}

// CountResult is the payload of the count command.
type CountResult struct {
	Collection string `json:"collection"`
	Count      int    `json:"count"`
}

func (r CountResult) writeText(w io.Writer) error {
	_, err := fmt.Fprintln(w, r.Count)
	return err
}

// WriteResult is the payload of insert, replace and delete.
type WriteResult struct {
	Op         string `json:"op"`
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

func (r WriteResult) writeText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%s %s/%s\n", r.Op, r.Collection, r.ID)
	return err
}

// documents is the untyped repository over one collection.
func documents(st backend.Store, collection string) *repo.Repository[value.Record] {
	return repo.New[value.Record](st, model.Document(collection))
}

// FindOptions holds flags for the find and count commands.
type FindOptions struct {
	*RootOptions
	Where string
	Sort  string
	Desc  bool
	Limit int
}

// NewCollectionsCommand creates the collections command.
func NewCollectionsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "collections",
		Short:         "List user collections",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			return withStore(rootOpts, cmd, f, func(ctx context.Context, st backend.Store) error {
				names, err := st.Collections(ctx)
				if err != nil {
					return f.Fail(ExitFailure, ErrCodeBackend, "failed to list collections", err)
				}
				return f.Success(CollectionList(names))
			})
		},
	}
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "get <collection> <id>",
		Short:         "Print one record by identity",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(rootOpts, args[0], args[1], cmd)
		},
	}
}

func runGet(opts *RootOptions, collection, id string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	if err := backend.ValidateCollection(collection); err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidInput, "invalid collection", err)
	}

	return withStore(opts, cmd, f, func(ctx context.Context, st backend.Store) error {
		rec, ok, err := documents(st, collection).Get(ctx, id)
		if err != nil {
			return f.Fail(ExitFailure, ErrCodeBackend, "get failed", err)
		}
		if !ok {
			return f.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("record %s/%s not found", collection, id), nil)
		}
		view, err := newRecordView(rec)
		if err != nil {
			return f.Fail(ExitFailure, ErrCodeGeneric, "encode failed", err)
		}
		return f.Success(view)
	})
}

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FindOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "find <collection>",
		Short: "List records matching a where clause",
		Long: `List the records of a collection that match a where clause, optionally
sorted by one field and capped at a limit.

The where clause is YAML or JSON. A bare value means equality, null matches
missing or null fields, {not: v} is inequality and gt/gte/lt/lte bound
numbers or dates ({"$date": "2024-01-01T00:00:00Z"}).

Example:
  quarry find widgets --where '{color: red, count: {gte: 2}}' --sort name --limit 10
  quarry find events --where '{at: {gte: {$date: "2024-01-01T00:00:00Z"}}}' --sort at --desc`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Where, "where", "", "where clause (YAML or JSON)")
	cmd.Flags().StringVar(&opts.Sort, "sort", "", "field to sort by")
	cmd.Flags().BoolVar(&opts.Desc, "desc", false, "sort descending")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of records (0 = no limit)")

	return cmd
}

func runFind(opts *FindOptions, collection string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	if err := backend.ValidateCollection(collection); err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidInput, "invalid collection", err)
	}

	q, err := opts.findQuery()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidInput, "invalid query", err)
	}

	return withStore(opts.RootOptions, cmd, f, func(ctx context.Context, st backend.Store) error {
		recs, err := documents(st, collection).Find(ctx, q)
		if err != nil {
			return f.Fail(ExitFailure, ErrCodeBackend, "find failed", err)
		}
		list := make(RecordList, 0, len(recs))
		for _, rec := range recs {
			view, err := newRecordView(rec)
			if err != nil {
				return f.Fail(ExitFailure, ErrCodeGeneric, "encode failed", err)
			}
			list = append(list, view)
		}
		f.VerboseLog("%d record(s)", len(list))
		return f.Success(list)
	})
}

func (o *FindOptions) findQuery() (query.Find, error) {
	where, err := parseWhereFlag(o.Where)
	if err != nil {
		return query.Find{}, err
	}
	if o.Desc && o.Sort == "" {
		return query.Find{}, errors.New("--desc requires --sort")
	}
	dir := query.Asc
	if o.Desc {
		dir = query.Desc
	}
	sort, err := query.ParseSort(o.Sort, string(dir))
	if err != nil {
		return query.Find{}, err
	}
	q := query.Find{Where: where, Sort: sort, Limit: o.Limit}
	if err := q.Validate(); err != nil {
		return query.Find{}, err
	}
	return q, nil
}

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FindOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "count <collection>",
		Short:         "Count records matching a where clause",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCount(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Where, "where", "", "where clause (YAML or JSON)")

	return cmd
}

func runCount(opts *FindOptions, collection string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	if err := backend.ValidateCollection(collection); err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidInput, "invalid collection", err)
	}

	where, err := parseWhereFlag(opts.Where)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidInput, "invalid query", err)
	}

	return withStore(opts.RootOptions, cmd, f, func(ctx context.Context, st backend.Store) error {
		n, err := documents(st, collection).Count(ctx, query.Count{Where: where})
		if err != nil {
			return f.Fail(ExitFailure, ErrCodeBackend, "count failed", err)
		}
		return f.Success(CountResult{Collection: collection, Count: n})
	})
}

// parseWhereFlag decodes a --where value. JSON is a subset of YAML, so
// one decoder covers both.
func parseWhereFlag(raw string) (query.Where, error) {
	if raw == "" {
		return nil, nil
	}
	var m map[string]any
	if err := yaml.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("parse --where: %w", err)
	}
	return query.ParseWhere(m)
}

// NewInsertCommand creates the insert command.
func NewInsertCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "insert <collection> <id> <fields-json>",
		Short: "Insert a new record",
		Long: `Insert a record with the given identity and fields.

Fields are a JSON object. Dates are written {"$date": <epoch ms>}. The
identity must not already exist in the collection.

Example:
  quarry insert widgets w1 '{"name": "gear", "count": 3, "active": true}'`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(rootOpts, "inserted", args, cmd)
		},
	}
}

// NewReplaceCommand creates the replace command.
func NewReplaceCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "replace <collection> <id> <fields-json>",
		Short:         "Replace the fields of an existing record",
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(rootOpts, "replaced", args, cmd)
		},
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <collection> <id>",
		Short:         "Delete a record by identity",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(rootOpts, "deleted", args, cmd)
		},
	}
}

// runWrite handles insert, replace and delete. args holds collection, id
// and, except for delete, the fields JSON. Writes to the ledger
// collection are refused.
func runWrite(opts *RootOptions, op string, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	collection, id := args[0], args[1]

	if backend.IsReserved(collection) {
		return f.Fail(ExitCommandError, ErrCodeInvalidInput, "invalid collection",
			fmt.Errorf("%w: %s", backend.ErrReservedCollection, collection))
	}
	if err := backend.ValidateCollection(collection); err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidInput, "invalid collection", err)
	}
	if id == "" {
		return f.Fail(ExitCommandError, ErrCodeInvalidInput, "record id must not be empty", nil)
	}

	var fields value.Fields
	if len(args) > 2 {
		var err error
		fields, err = value.UnmarshalFields([]byte(args[2]))
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeInvalidInput, "invalid fields JSON", err)
		}
		delete(fields, query.IDField)
	}

	return withStore(opts, cmd, f, func(ctx context.Context, st backend.Store) error {
		docs := documents(st, collection)
		rec := value.Record{ID: id, Fields: fields}

		if op == "inserted" {
			if err := docs.Create(ctx, rec); err != nil {
				if errors.Is(err, backend.ErrDuplicateID) {
					return f.Fail(ExitFailure, ErrCodeInvalidInput, fmt.Sprintf("record %s/%s already exists", collection, id), nil)
				}
				return f.Fail(ExitFailure, ErrCodeBackend, "insert failed", err)
			}
			return f.Success(WriteResult{Op: op, Collection: collection, ID: id})
		}

		// Replace and delete of a missing id are no-ops in the store; the
		// CLI reports them as not found.
		if _, ok, err := docs.Get(ctx, id); err != nil {
			return f.Fail(ExitFailure, ErrCodeBackend, "get failed", err)
		} else if !ok {
			return f.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("record %s/%s not found", collection, id), nil)
		}

		var err error
		if op == "replaced" {
			err = docs.Update(ctx, rec)
		} else {
			err = docs.Delete(ctx, id)
		}
		if err != nil {
			return f.Fail(ExitFailure, ErrCodeBackend, op+" failed", err)
		}
		return f.Success(WriteResult{Op: op, Collection: collection, ID: id})
	})
}
