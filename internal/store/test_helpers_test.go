package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/fsmnet/internal/ir"
)

// createTestStore creates a new store in a temporary directory.
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

// createTestEvent creates a root event in namespace "traffic".
func createTestEvent(id, class string, seq int64) ir.Event {
	return ir.Event{
		ID:        id,
		Namespace: "traffic",
		Class:     class,
		Attrs:     ir.Object{},
		Seq:       seq,
	}
}

// createTestTransition creates a Light transition in namespace "traffic".
func createTestTransition(seq int64, eventID, instanceID, from, to string) ir.TransitionRecord {
	return ir.TransitionRecord{
		Seq:           seq,
		EventID:       eventID,
		Namespace:     "traffic",
		NamespaceHash: "test-hash",
		InstanceID:    instanceID,
		Machine:       "Light",
		From:          from,
		To:            to,
	}
}
