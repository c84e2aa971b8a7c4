package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/nysm/internal/ir"
)

// createTestStore creates a new on-disk store in a per-test temp dir,
// closed at test cleanup.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testFact builds a FactRecord with minimal required fields.
func testFact(handle ir.FactHandle, factType, ref string, insertedSeq int64) FactRecord {
	return FactRecord{
		Handle:      handle,
		FactType:    factType,
		StorageRef:  ir.FactRef(ref),
		InsertedSeq: insertedSeq,
	}
}
