package effects

import (
	"testing"

	"github.com/ValentinKolb/keel/lib/db"
	"github.com/ValentinKolb/keel/lib/db/engines/rowan"
	"github.com/ValentinKolb/keel/lib/entity"
	"github.com/ValentinKolb/keel/lib/store"
	"github.com/ValentinKolb/keel/lib/store/lstore"
)

func newTestStore() store.IStore {
	return lstore.NewLocalStore(func() db.KVDB { return rowan.NewRowanDB(nil) })
}

func TestMarkAndHas(t *testing.T) {
	ledger := NewLedger(newTestStore())
	ref := entity.Ref{Type: entity.TypeTask, ID: "task-1"}

	ok, err := ledger.Has(ref, "created")
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if ok {
		t.Fatalf("effect should not be marked yet")
	}

	if err := ledger.Mark(ref, "created"); err != nil {
		t.Fatalf("Mark failed: %v", err)
	}

	ok, err = ledger.Has(ref, "created")
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if !ok {
		t.Fatalf("effect should be marked")
	}

	// Re-marking is harmless
	if err := ledger.Mark(ref, "created"); err != nil {
		t.Fatalf("re-Mark failed: %v", err)
	}
}

// TestAtMostOnce verifies the guard pattern: a guarded action invoked N times
// with Has/Mark gating runs at most once.
func TestAtMostOnce(t *testing.T) {
	ledger := NewLedger(newTestStore())
	ref := entity.Ref{Type: entity.TypeFinRec, ID: "finrec-1"}

	applied := 0
	for i := 0; i < 5; i++ {
		ok, err := ledger.Has(ref, "archive-booked")
		if err != nil {
			t.Fatalf("Has failed: %v", err)
		}
		if ok {
			continue
		}
		applied++ // the guarded action
		if err := ledger.Mark(ref, "archive-booked"); err != nil {
			t.Fatalf("Mark failed: %v", err)
		}
	}

	if applied != 1 {
		t.Errorf("guarded action applied %d times, want 1", applied)
	}
}

func TestClear(t *testing.T) {
	ledger := NewLedger(newTestStore())
	ref := entity.Ref{Type: entity.TypeItem, ID: "item-1"}

	if err := ledger.Mark(ref, "created"); err != nil {
		t.Fatalf("Mark failed: %v", err)
	}
	if err := ledger.Clear(ref, "created"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if ok, _ := ledger.Has(ref, "created"); ok {
		t.Errorf("effect still marked after Clear")
	}

	// Clearing a missing marker is a no-op
	if err := ledger.Clear(ref, "never-marked"); err != nil {
		t.Errorf("Clear of missing marker returned error: %v", err)
	}
}

func TestClearAll(t *testing.T) {
	ledger := NewLedger(newTestStore())
	ref := entity.Ref{Type: entity.TypeTask, ID: "task-1"}
	other := entity.Ref{Type: entity.TypeTask, ID: "task-2"}

	for _, name := range []string{"created", "archive-booked", "archive-linked"} {
		if err := ledger.Mark(ref, name); err != nil {
			t.Fatalf("Mark failed: %v", err)
		}
	}
	if err := ledger.Mark(other, "created"); err != nil {
		t.Fatalf("Mark failed: %v", err)
	}

	// Narrowed prefix only clears matching markers
	cleared, err := ledger.ClearAll(ref, "archive")
	if err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}
	if cleared != 2 {
		t.Errorf("cleared %d markers, want 2", cleared)
	}
	if ok, _ := ledger.Has(ref, "created"); !ok {
		t.Errorf("unrelated marker was cleared")
	}

	// Empty prefix clears the rest of the entity's markers
	cleared, err = ledger.ClearAll(ref, "")
	if err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}
	if cleared != 1 {
		t.Errorf("cleared %d markers, want 1", cleared)
	}

	// Markers of other entities are untouched
	if ok, _ := ledger.Has(other, "created"); !ok {
		t.Errorf("marker of other entity was cleared")
	}
}
