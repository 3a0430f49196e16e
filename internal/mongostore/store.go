// Package mongostore is the MongoDB backend.
//
// Each record is one document whose _id is the record identity. A hidden
// _seq field holds an ObjectID taken at insert time. ObjectIDs from one
// process increase (barring a counter wrap every 2^24 ids), so sorting by
// _seq reproduces insertion order and breaks ties in every sorted find.
//
// Dates are stored as BSON datetimes. Text sorts run with an "en"
// collation to match value.Collate.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	mopt "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/roach88/quarry/internal/backend"
	"github.com/roach88/quarry/internal/query"
	"github.com/roach88/quarry/internal/value"
)

// Server error codes for renameCollection.
const (
	codeNamespaceNotFound = 26
	codeNamespaceExists   = 48
)

// CollationLocale is the MongoDB locale used for sorted finds.
const CollationLocale = "en"

// Store is a backend.Store over one MongoDB database.
type Store struct {
	db     *mongo.Database
	client *mongo.Client // set when the Store owns the connection
}

var _ backend.Store = (*Store)(nil)

// Connect dials uri, pings the server and returns a Store over database.
// Close disconnects the client.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	if database == "" {
		return nil, errors.New("mongo: database name is empty")
	}
	opts := mopt.Client().ApplyURI(uri)
	opts.SetConnectTimeout(10 * time.Second).SetServerSelectionTimeout(10 * time.Second)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &Store{db: client.Database(database), client: client}, nil
}

// New returns a Store over an existing database handle. Close does not
// disconnect the caller's client.
func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

// Database returns the underlying database handle.
func (s *Store) Database() *mongo.Database { return s.db }

// Close disconnects the client if the Store dialed it.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// Collection returns a handle to name.
func (s *Store) Collection(name string) backend.Collection {
	return &Collection{store: s, name: name}
}

// Collections lists user collections in byte order, skipping the ledger
// and system collections.
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	names = slices.DeleteFunc(names, func(n string) bool {
		return backend.IsReserved(n) || strings.HasPrefix(n, "system.")
	})
	slices.Sort(names)
	return names, nil
}

// Rename runs the renameCollection admin command.
func (s *Store) Rename(ctx context.Context, oldName, newName string) error {
	if err := backend.ValidateCollection(newName); err != nil {
		return fmt.Errorf("rename collection: %w", err)
	}
	dbName := s.db.Name()
	cmd := bson.D{
		{Key: "renameCollection", Value: dbName + "." + oldName},
		{Key: "to", Value: dbName + "." + newName},
	}
	err := s.db.Client().Database("admin").RunCommand(ctx, cmd).Err()
	var ce mongo.CommandError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ce) && ce.Code == codeNamespaceNotFound:
		return fmt.Errorf("rename collection %q: %w: %w", oldName, backend.ErrCollectionNotFound, err)
	case errors.As(err, &ce) && ce.Code == codeNamespaceExists:
		return fmt.Errorf("rename collection %q to %q: %w: %w", oldName, newName, backend.ErrCollectionExists, err)
	default:
		return fmt.Errorf("rename collection %q: %w", oldName, err)
	}
}

// Drop drops a collection. The driver ignores unknown namespaces.
func (s *Store) Drop(ctx context.Context, name string) error {
	if err := s.db.Collection(name).Drop(ctx); err != nil {
		return fmt.Errorf("drop collection %q: %w", name, err)
	}
	return nil
}

// Collection is a handle to one MongoDB collection.
type Collection struct {
	store *Store
	name  string
}

var _ backend.Collection = (*Collection)(nil)

func (c *Collection) Name() string { return c.name }

func (c *Collection) coll() *mongo.Collection {
	return c.store.db.Collection(c.name)
}

// Get returns the record with the given identity. Absence is not an error.
func (c *Collection) Get(ctx context.Context, id string) (value.Record, bool, error) {
	var doc bson.D
	err := c.coll().FindOne(ctx, bson.D{{Key: idField, Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return value.Record{}, false, nil
	}
	if err != nil {
		return value.Record{}, false, fmt.Errorf("get %s/%s: %w", c.name, id, err)
	}
	rec, err := decodeRecord(doc)
	if err != nil {
		return value.Record{}, false, fmt.Errorf("get %s/%s: %w", c.name, id, err)
	}
	return rec, true, nil
}

// Find filters, sorts (then by insertion sequence) and limits on the server.
func (c *Collection) Find(ctx context.Context, q query.Find) ([]value.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("find in %s: %w", c.name, err)
	}
	filter, err := Filter(q.Where)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", c.name, err)
	}
	sortDoc, err := SortDoc(q.Sort)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", c.name, err)
	}

	findOpts := mopt.Find().SetSort(sortDoc)
	if q.Sort != nil {
		findOpts.SetCollation(&mopt.Collation{Locale: CollationLocale})
	}
	if q.Limit > 0 {
		findOpts.SetLimit(int64(q.Limit))
	}

	cursor, err := c.coll().Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", c.name, err)
	}
	defer cursor.Close(ctx)

	records := []value.Record{}
	for cursor.Next(ctx) {
		var doc bson.D
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("find in %s: %w", c.name, err)
		}
		rec, err := decodeRecord(doc)
		if err != nil {
			return nil, fmt.Errorf("find in %s: %w", c.name, err)
		}
		records = append(records, rec)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", c.name, err)
	}
	return records, nil
}

// Count returns the number of records matching where.
func (c *Collection) Count(ctx context.Context, where query.Where) (int, error) {
	filter, err := Filter(where)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", c.name, err)
	}
	n, err := c.coll().CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", c.name, err)
	}
	return int(n), nil
}

// Insert stores a new record. A duplicate identity fails with
// backend.ErrDuplicateID and keeps the driver error wrapped.
func (c *Collection) Insert(ctx context.Context, rec value.Record) error {
	if err := backend.ValidateCollection(c.name); err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	if err := backend.ValidateRecord(rec); err != nil {
		return fmt.Errorf("insert %s/%s: %w", c.name, rec.ID, err)
	}
	doc, err := encodeRecord(rec, primitive.NewObjectID())
	if err != nil {
		return fmt.Errorf("insert %s/%s: %w", c.name, rec.ID, err)
	}
	_, err = c.coll().InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("insert %s/%s: %w: %w", c.name, rec.ID, backend.ErrDuplicateID, err)
	}
	if err != nil {
		return fmt.Errorf("insert %s/%s: %w", c.name, rec.ID, err)
	}
	return nil
}

// Replace swaps the fields of an existing record in one update, keeping
// _id and _seq. Fields are wrapped in $literal so string values starting
// with '$' are never read as field paths. A missing identity matches
// nothing.
func (c *Collection) Replace(ctx context.Context, rec value.Record) error {
	if err := backend.ValidateRecord(rec); err != nil {
		return fmt.Errorf("replace %s/%s: %w", c.name, rec.ID, err)
	}
	fields, err := encodeFields(rec.Fields)
	if err != nil {
		return fmt.Errorf("replace %s/%s: %w", c.name, rec.ID, err)
	}
	pipeline := mongo.Pipeline{
		{{Key: "$replaceWith", Value: bson.D{{Key: "$mergeObjects", Value: bson.A{
			bson.D{{Key: idField, Value: "$" + idField}, {Key: seqField, Value: "$" + seqField}},
			bson.D{{Key: "$literal", Value: fields}},
		}}}}},
	}
	if _, err := c.coll().UpdateOne(ctx, bson.D{{Key: idField, Value: rec.ID}}, pipeline); err != nil {
		return fmt.Errorf("replace %s/%s: %w", c.name, rec.ID, err)
	}
	return nil
}

// DeleteOne removes the record with the given identity, if any.
func (c *Collection) DeleteOne(ctx context.Context, id string) error {
	if _, err := c.coll().DeleteOne(ctx, bson.D{{Key: idField, Value: id}}); err != nil {
		return fmt.Errorf("delete %s/%s: %w", c.name, id, err)
	}
	return nil
}

// DeleteMany removes every record matching where and returns how many.
func (c *Collection) DeleteMany(ctx context.Context, where query.Where) (int, error) {
	filter, err := Filter(where)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", c.name, err)
	}
	res, err := c.coll().DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", c.name, err)
	}
	return int(res.DeletedCount), nil
}
