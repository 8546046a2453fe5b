package testutil

import (
	"testing"

	"safeop/internal/database"
	"safeop/internal/safeop"
)

// NewTestIndex creates an in-memory SQLite index with migrations applied.
// The index is closed when the test completes.
func NewTestIndex(t *testing.T) safeop.Index {
	t.Helper()

	idx, err := database.NewSQLiteIndex(":memory:")
	if err != nil {
		t.Fatalf("failed to open index: %v", err)
	}

	t.Cleanup(func() {
		idx.Close()
	})

	return idx
}
