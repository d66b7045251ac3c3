package links

import (
	"testing"

	"github.com/ValentinKolb/keel/lib/db"
	"github.com/ValentinKolb/keel/lib/db/engines/rowan"
	"github.com/ValentinKolb/keel/lib/entity"
	"github.com/ValentinKolb/keel/lib/keys"
	"github.com/ValentinKolb/keel/lib/store"
	"github.com/ValentinKolb/keel/lib/store/lstore"
)

func newTestStore() store.IStore {
	return lstore.NewLocalStore(func() db.KVDB { return rowan.NewRowanDB(nil) })
}

var (
	task1   = entity.Ref{Type: entity.TypeTask, ID: "task-1"}
	finrec1 = entity.Ref{Type: entity.TypeFinRec, ID: "finrec-1"}
)

// TestIdempotentCreate creates the same (type, source, target) triple twice
// and verifies exactly one canonical record and one pair of reverse entries
// exist afterwards.
func TestIdempotentCreate(t *testing.T) {
	s := newTestStore()
	graph := NewGraph(s)

	first, created, err := graph.Create(LTTaskFinRec, task1, finrec1, Metadata{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !created {
		t.Fatalf("first Create should report created=true")
	}

	second, created, err := graph.Create(LTTaskFinRec, task1, finrec1, Metadata{})
	if err != nil {
		t.Fatalf("duplicate Create failed: %v", err)
	}
	if created {
		t.Errorf("duplicate Create should report created=false")
	}
	if second.ID != first.ID {
		t.Errorf("duplicate Create returned different link: %s vs %s", second.ID, first.ID)
	}

	// Exactly one canonical record
	canonical, err := s.ScanPrefix(keys.LinkScanPrefix)
	if err != nil {
		t.Fatalf("ScanPrefix failed: %v", err)
	}
	if len(canonical) != 1 {
		t.Errorf("store contains %d canonical records, want 1", len(canonical))
	}

	// Exactly one entry per reverse set
	for _, ref := range []entity.Ref{task1, finrec1} {
		links, err := graph.ForEntity(ref)
		if err != nil {
			t.Fatalf("ForEntity(%s) failed: %v", ref, err)
		}
		if len(links) != 1 {
			t.Errorf("ForEntity(%s) returned %d links, want 1", ref, len(links))
		}
	}
}

func TestCreateValidatesSchema(t *testing.T) {
	graph := NewGraph(newTestStore())

	// task-finrec requires task -> finrec
	if _, _, err := graph.Create(LTTaskFinRec, finrec1, task1, Metadata{}); err == nil {
		t.Errorf("expected schema violation error")
	}
	if _, _, err := graph.Create(LinkType("made-up"), task1, finrec1, Metadata{}); err == nil {
		t.Errorf("expected unknown link type error")
	}
}

func TestRemove(t *testing.T) {
	s := newTestStore()
	graph := NewGraph(s)

	link, _, err := graph.Create(LTTaskFinRec, task1, finrec1, Metadata{Amount: 1200})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	removed, err := graph.Remove(link.ID)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if !removed {
		t.Fatalf("Remove should report removed=true")
	}

	// Canonical, marker, and both reverse entries must all be gone
	if _, loaded, _ := graph.Get(link.ID); loaded {
		t.Errorf("canonical record still present")
	}
	if report, err := graph.Reconcile(); err != nil || !report.Clean() {
		t.Errorf("expected clean graph after Remove, report: %+v (err %v)", report, err)
	}

	// Triple is free again
	_, created, err := graph.Create(LTTaskFinRec, task1, finrec1, Metadata{})
	if err != nil || !created {
		t.Errorf("re-Create after Remove should create (created=%v, err=%v)", created, err)
	}

	// Removing an unknown id is a no-op
	removed, err = graph.Remove("no-such-link")
	if err != nil || removed {
		t.Errorf("Remove of unknown id = (%v, %v), want (false, nil)", removed, err)
	}
}

func TestForEntityAndAll(t *testing.T) {
	graph := NewGraph(newTestStore())

	item1 := entity.Ref{Type: entity.TypeItem, ID: "item-1"}
	if _, _, err := graph.Create(LTTaskFinRec, task1, finrec1, Metadata{}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, _, err := graph.Create(LTTaskProducedItem, task1, item1, Metadata{Quantity: 3}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	taskLinks, err := graph.ForEntity(task1)
	if err != nil {
		t.Fatalf("ForEntity failed: %v", err)
	}
	if len(taskLinks) != 2 {
		t.Errorf("ForEntity(task-1) returned %d links, want 2", len(taskLinks))
	}

	itemLinks, err := graph.ForEntity(item1)
	if err != nil {
		t.Fatalf("ForEntity failed: %v", err)
	}
	if len(itemLinks) != 1 {
		t.Errorf("ForEntity(item-1) returned %d links, want 1", len(itemLinks))
	}
	if itemLinks[0].Metadata.Quantity != 3 {
		t.Errorf("metadata not preserved: %+v", itemLinks[0].Metadata)
	}

	all, err := graph.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("All returned %d links, want 2", len(all))
	}
}

func TestCascadeDelete(t *testing.T) {
	graph := NewGraph(newTestStore())

	item1 := entity.Ref{Type: entity.TypeItem, ID: "item-1"}
	if _, _, err := graph.Create(LTTaskFinRec, task1, finrec1, Metadata{}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, _, err := graph.Create(LTTaskProducedItem, task1, item1, Metadata{}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	removed, err := graph.CascadeDelete(task1)
	if err != nil {
		t.Fatalf("CascadeDelete failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("CascadeDelete removed %d links, want 2", removed)
	}

	// The other endpoints must not see the links anymore either
	for _, ref := range []entity.Ref{task1, finrec1, item1} {
		links, err := graph.ForEntity(ref)
		if err != nil {
			t.Fatalf("ForEntity failed: %v", err)
		}
		if len(links) != 0 {
			t.Errorf("ForEntity(%s) returned %d links after cascade, want 0", ref, len(links))
		}
	}
}

func TestReconcileDetectsDrift(t *testing.T) {
	s := newTestStore()
	graph := NewGraph(s)

	link, _, err := graph.Create(LTTaskFinRec, task1, finrec1, Metadata{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Clean graph reports clean
	report, err := graph.Reconcile()
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if !report.Clean() {
		t.Fatalf("expected clean report, got %+v", report)
	}

	// Drop one reverse entry and the triple marker behind the graph's back
	if err := s.SRem(keys.LinkReverse("finrec", "finrec-1"), link.ID); err != nil {
		t.Fatalf("SRem failed: %v", err)
	}
	if err := s.Delete(keys.LinkTriple("task-finrec", "task", "task-1", "finrec", "finrec-1")); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	// And plant a dangling reverse entry
	if err := s.SAdd(keys.LinkReverse("task", "task-1"), "ghost-link"); err != nil {
		t.Fatalf("SAdd failed: %v", err)
	}

	report, err = graph.Reconcile()
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if len(report.MissingReverse) != 1 {
		t.Errorf("MissingReverse = %+v, want 1 entry", report.MissingReverse)
	}
	if len(report.MissingTriples) != 1 || report.MissingTriples[0] != link.ID {
		t.Errorf("MissingTriples = %+v, want [%s]", report.MissingTriples, link.ID)
	}
	if len(report.DanglingReverse) != 1 || report.DanglingReverse[0].LinkID != "ghost-link" {
		t.Errorf("DanglingReverse = %+v, want ghost-link", report.DanglingReverse)
	}
}

// TestRepairConverges verifies that Repair fixes all drift and that a second
// run produces zero additional changes.
func TestRepairConverges(t *testing.T) {
	s := newTestStore()
	graph := NewGraph(s)

	link, _, err := graph.Create(LTTaskFinRec, task1, finrec1, Metadata{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := s.SRem(keys.LinkReverse("finrec", "finrec-1"), link.ID); err != nil {
		t.Fatalf("SRem failed: %v", err)
	}
	if err := s.SAdd(keys.LinkReverse("task", "task-1"), "ghost-link"); err != nil {
		t.Fatalf("SAdd failed: %v", err)
	}
	// An orphaned triple marker of a long-gone link
	if err := s.Set(keys.LinkTriple("task-site", "task", "task-9", "site", "site-9"), []byte("gone")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Dry run counts without writing
	counts, err := graph.Repair(false)
	if err != nil {
		t.Fatalf("Repair(false) failed: %v", err)
	}
	if counts.Added != 1 || counts.Removed != 2 {
		t.Errorf("dry run counts = %+v, want {Added:1 Removed:2}", counts)
	}
	if report, _ := graph.Reconcile(); report.Clean() {
		t.Fatalf("dry run must not modify the store")
	}

	// Apply
	counts, err = graph.Repair(true)
	if err != nil {
		t.Fatalf("Repair(true) failed: %v", err)
	}
	if counts.Added != 1 || counts.Removed != 2 {
		t.Errorf("apply counts = %+v, want {Added:1 Removed:2}", counts)
	}

	report, err := graph.Reconcile()
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if !report.Clean() {
		t.Errorf("graph not clean after Repair: %+v", report)
	}

	// Convergence: a second run changes nothing
	counts, err = graph.Repair(true)
	if err != nil {
		t.Fatalf("second Repair failed: %v", err)
	}
	if counts.Added != 0 || counts.Removed != 0 {
		t.Errorf("second Repair counts = %+v, want zero", counts)
	}
}
