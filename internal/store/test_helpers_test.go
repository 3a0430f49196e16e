package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/quarry/internal/value"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

// createTestRecord creates a record with the given fields.
func createTestRecord(id string, kv ...any) value.Record {
	f := value.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		f[kv[i].(string)] = kv[i+1].(value.Value)
	}
	return value.Record{ID: id, Fields: f}
}

func recordIDs(recs []value.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}
