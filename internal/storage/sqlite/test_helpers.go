package sqlite

import (
	"path/filepath"
	"testing"
)

// NewTestStore returns a Store backed by a temp file so WAL behavior matches
// production. The store is closed automatically when the test ends.
func NewTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "briefq.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
