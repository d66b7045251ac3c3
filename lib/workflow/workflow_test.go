package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/ValentinKolb/keel/lib/db"
	"github.com/ValentinKolb/keel/lib/db/engines/rowan"
	"github.com/ValentinKolb/keel/lib/entity"
	"github.com/ValentinKolb/keel/lib/index"
	"github.com/ValentinKolb/keel/lib/keys"
	"github.com/ValentinKolb/keel/lib/links"
	"github.com/ValentinKolb/keel/lib/store"
	"github.com/ValentinKolb/keel/lib/store/lstore"
	"github.com/ValentinKolb/keel/lib/txn"
)

func newTestService() (*Service, store.IStore) {
	s := lstore.NewLocalStore(func() db.KVDB { return rowan.NewRowanDB(nil) })
	return NewService(s), s
}

func ms(year int, month time.Month, day int) int64 {
	return time.Date(year, month, day, 12, 0, 0, 0, time.UTC).UnixMilli()
}

func TestUpsertRunsConsistencyHooks(t *testing.T) {
	svc, _ := newTestService()

	task := entity.Entity{
		Ref:         entity.Ref{Type: entity.TypeTask, ID: "task-1"},
		Status:      entity.StatusCollected,
		CreatedAt:   ms(2025, time.October, 1),
		CollectedAt: ms(2025, time.November, 10),
	}
	if err := svc.UpsertEntity(task); err != nil {
		t.Fatalf("UpsertEntity failed: %v", err)
	}

	// Index agreement
	report, err := svc.Index().Reconcile(index.TasksCollected)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if !report.Clean() {
		t.Errorf("index drifted after upsert: %+v", report)
	}

	// Creation log emitted and effect marked
	logs, err := svc.Logs(task.Ref)
	if err != nil {
		t.Fatalf("Logs failed: %v", err)
	}
	if len(logs) != 1 || logs[0].Message != "created" {
		t.Errorf("logs = %+v, want one creation entry", logs)
	}
	if ok, _ := svc.Ledger().Has(task.Ref, effectCreated); !ok {
		t.Errorf("creation effect not marked")
	}
}

// TestUpsertCreationLogAtMostOnce upserts the same entity repeatedly and
// expects exactly one creation log entry.
func TestUpsertCreationLogAtMostOnce(t *testing.T) {
	svc, _ := newTestService()
	task := entity.Entity{
		Ref:       entity.Ref{Type: entity.TypeTask, ID: "task-1"},
		Status:    entity.StatusOpen,
		CreatedAt: ms(2025, time.November, 1),
	}

	for i := 0; i < 4; i++ {
		if err := svc.UpsertEntity(task); err != nil {
			t.Fatalf("UpsertEntity failed: %v", err)
		}
	}

	logs, err := svc.Logs(task.Ref)
	if err != nil {
		t.Fatalf("Logs failed: %v", err)
	}
	if len(logs) != 1 {
		t.Errorf("found %d creation logs, want 1", len(logs))
	}
}

func TestUpsertMovesIndexBucket(t *testing.T) {
	svc, s := newTestService()

	task := entity.Entity{
		Ref:         entity.Ref{Type: entity.TypeTask, ID: "task-1"},
		Status:      entity.StatusCollected,
		CreatedAt:   ms(2025, time.October, 1),
		CollectedAt: ms(2025, time.October, 20),
	}
	if err := svc.UpsertEntity(task); err != nil {
		t.Fatalf("UpsertEntity failed: %v", err)
	}

	task.CollectedAt = ms(2025, time.November, 2)
	if err := svc.UpsertEntity(task); err != nil {
		t.Fatalf("UpsertEntity failed: %v", err)
	}

	if members, _, _ := s.SMembers(keys.IndexBucket("task", "collected", "10-25")); len(members) != 0 {
		t.Errorf("old bucket still contains %v", members)
	}
	if members, _, _ := s.SMembers(keys.IndexBucket("task", "collected", "11-25")); len(members) != 1 {
		t.Errorf("new bucket = %v, want [task-1]", members)
	}
}

func TestDeleteEntityCascades(t *testing.T) {
	svc, s := newTestService()

	task := entity.Entity{
		Ref:         entity.Ref{Type: entity.TypeTask, ID: "task-1"},
		Status:      entity.StatusCollected,
		CreatedAt:   ms(2025, time.October, 1),
		CollectedAt: ms(2025, time.November, 10),
	}
	finrec := entity.Entity{
		Ref:       entity.Ref{Type: entity.TypeFinRec, ID: "finrec-1"},
		Status:    entity.StatusOpen,
		CreatedAt: ms(2025, time.November, 10),
	}
	if err := svc.UpsertEntity(task); err != nil {
		t.Fatalf("UpsertEntity failed: %v", err)
	}
	if err := svc.UpsertEntity(finrec); err != nil {
		t.Fatalf("UpsertEntity failed: %v", err)
	}
	if _, _, err := svc.Graph().Create(links.LTTaskFinRec, task.Ref, finrec.Ref, links.Metadata{}); err != nil {
		t.Fatalf("Create link failed: %v", err)
	}

	if err := svc.DeleteEntity(task.Ref); err != nil {
		t.Fatalf("DeleteEntity failed: %v", err)
	}

	if _, loaded, _ := entity.Load(s, task.Ref); loaded {
		t.Errorf("record still present")
	}
	if logs, _ := svc.Logs(task.Ref); len(logs) != 0 {
		t.Errorf("logs still present: %+v", logs)
	}
	if ok, _ := svc.Ledger().Has(task.Ref, effectCreated); ok {
		t.Errorf("effect markers still present")
	}
	if taskLinks, _ := svc.Graph().ForEntity(task.Ref); len(taskLinks) != 0 {
		t.Errorf("links still present: %+v", taskLinks)
	}
	if members, _, _ := s.SMembers(keys.IndexBucket("task", "collected", "11-25")); len(members) != 0 {
		t.Errorf("index entry still present: %v", members)
	}

	// The graph as a whole is intact (no half-removed side entries)
	if report, _ := svc.Graph().Reconcile(); !report.Clean() {
		t.Errorf("graph drifted after cascade: %+v", report)
	}

	// Deleting again is a no-op
	if err := svc.DeleteEntity(task.Ref); err != nil {
		t.Errorf("second DeleteEntity failed: %v", err)
	}
}

func TestFullReset(t *testing.T) {
	svc, s := newTestService()

	for _, e := range []entity.Entity{
		{Ref: entity.Ref{Type: entity.TypeTask, ID: "task-1"}, Status: entity.StatusOpen, CreatedAt: ms(2025, time.November, 1)},
		{Ref: entity.Ref{Type: entity.TypeTask, ID: "task-2"}, Status: entity.StatusOpen, CreatedAt: ms(2025, time.November, 2)},
		{Ref: entity.Ref{Type: entity.TypeItem, ID: "item-1"}, Status: entity.StatusOpen, CreatedAt: ms(2025, time.November, 3)},
	} {
		if err := svc.UpsertEntity(e); err != nil {
			t.Fatalf("UpsertEntity failed: %v", err)
		}
	}

	// Reset only tasks
	if err := svc.FullReset(entity.TypeTask); err != nil {
		t.Fatalf("FullReset failed: %v", err)
	}
	if entityKeys, _ := s.ScanPrefix(keys.EntityPrefix("task")); len(entityKeys) != 0 {
		t.Errorf("task records survived reset: %v", entityKeys)
	}
	if logKeys, _ := s.ScanPrefix(keys.LogTypePrefix("task")); len(logKeys) != 0 {
		t.Errorf("task logs survived reset: %v", logKeys)
	}
	if _, loaded, _ := entity.Load(s, entity.Ref{Type: entity.TypeItem, ID: "item-1"}); !loaded {
		t.Errorf("item deleted although only tasks were reset")
	}
}

func TestClearLogs(t *testing.T) {
	svc, _ := newTestService()

	taskRef := entity.Ref{Type: entity.TypeTask, ID: "task-1"}
	itemRef := entity.Ref{Type: entity.TypeItem, ID: "item-1"}
	if _, err := svc.AppendLog(taskRef, "one"); err != nil {
		t.Fatalf("AppendLog failed: %v", err)
	}
	if _, err := svc.AppendLog(taskRef, "two"); err != nil {
		t.Fatalf("AppendLog failed: %v", err)
	}
	if _, err := svc.AppendLog(itemRef, "keep me"); err != nil {
		t.Fatalf("AppendLog failed: %v", err)
	}

	if err := svc.ClearLogs(entity.TypeTask); err != nil {
		t.Fatalf("ClearLogs failed: %v", err)
	}

	if logs, _ := svc.Logs(taskRef); len(logs) != 0 {
		t.Errorf("task logs survived: %+v", logs)
	}
	if logs, _ := svc.Logs(itemRef); len(logs) != 1 {
		t.Errorf("item logs = %+v, want 1 entry", logs)
	}
}

func TestCollectArchive(t *testing.T) {
	svc, _ := newTestService()
	now := time.Date(2025, time.November, 3, 9, 0, 0, 0, time.UTC)

	done := entity.Entity{
		Ref:       entity.Ref{Type: entity.TypeTask, ID: "task-1"},
		Status:    entity.StatusDone,
		CreatedAt: ms(2025, time.October, 1),
		DoneAt:    ms(2025, time.October, 30),
	}
	open := entity.Entity{
		Ref:       entity.Ref{Type: entity.TypeTask, ID: "task-2"},
		Status:    entity.StatusOpen,
		CreatedAt: ms(2025, time.October, 1),
	}
	if err := svc.UpsertEntity(done); err != nil {
		t.Fatalf("UpsertEntity failed: %v", err)
	}
	if err := svc.UpsertEntity(open); err != nil {
		t.Fatalf("UpsertEntity failed: %v", err)
	}

	collected, err := svc.CollectArchive(now)
	if err != nil {
		t.Fatalf("CollectArchive failed: %v", err)
	}
	if collected != 1 {
		t.Errorf("collected %d tasks, want 1", collected)
	}

	// The task is now collected and indexed under 11-25
	task, _, err := entity.Load(svcStore(svc), done.Ref)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if task.Status != entity.StatusCollected || task.CollectedAt != now.UnixMilli() {
		t.Errorf("task = %+v, want collected at %d", task, now.UnixMilli())
	}

	// Archive finrec exists, is linked, and sits in the archived index
	finrecRef := entity.Ref{Type: entity.TypeFinRec, ID: "archive-task-1"}
	if _, loaded, _ := entity.Load(svcStore(svc), finrecRef); !loaded {
		t.Fatalf("archive finrec missing")
	}
	taskLinks, err := svc.Graph().ForEntity(done.Ref)
	if err != nil {
		t.Fatalf("ForEntity failed: %v", err)
	}
	if len(taskLinks) != 1 || taskLinks[0].Type != links.LTTaskFinRec {
		t.Errorf("task links = %+v, want one task-finrec link", taskLinks)
	}

	// The open task is untouched
	untouched, _, _ := entity.Load(svcStore(svc), open.Ref)
	if untouched.Status != entity.StatusOpen {
		t.Errorf("open task was collected")
	}

	// Everything agrees
	for _, def := range index.Builtin() {
		if report, _ := svc.Index().Reconcile(def); !report.Clean() {
			t.Errorf("index %s/%s drifted: %+v", def.EntityType, def.Name, report)
		}
	}
}

// TestCollectArchiveRedelivery runs the collection twice; the second
// delivery must be a no-op.
func TestCollectArchiveRedelivery(t *testing.T) {
	svc, s := newTestService()
	now := time.Date(2025, time.November, 3, 9, 0, 0, 0, time.UTC)

	done := entity.Entity{
		Ref:       entity.Ref{Type: entity.TypeTask, ID: "task-1"},
		Status:    entity.StatusDone,
		CreatedAt: ms(2025, time.October, 1),
		DoneAt:    ms(2025, time.October, 30),
	}
	if err := svc.UpsertEntity(done); err != nil {
		t.Fatalf("UpsertEntity failed: %v", err)
	}

	if _, err := svc.CollectArchive(now); err != nil {
		t.Fatalf("CollectArchive failed: %v", err)
	}
	collected, err := svc.CollectArchive(now.Add(time.Hour))
	if err != nil {
		t.Fatalf("second CollectArchive failed: %v", err)
	}
	if collected != 0 {
		t.Errorf("second delivery collected %d tasks, want 0", collected)
	}

	// Still exactly one finrec and one link
	finrecs, _ := s.ScanPrefix(keys.EntityPrefix("finrec"))
	if len(finrecs) != 1 {
		t.Errorf("found %d finrecs, want 1", len(finrecs))
	}
	all, _ := svc.Graph().All()
	if len(all) != 1 {
		t.Errorf("found %d links, want 1", len(all))
	}
}

// TestResetWhileActive verifies the concurrency guard of the shared manager.
func TestResetWhileActive(t *testing.T) {
	svc, _ := newTestService()

	inner := error(nil)
	err := svc.txn.Execute(func() error {
		inner = svc.FullReset(entity.TypeTask)
		return nil
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !errors.Is(inner, txn.ErrConcurrentTransaction) {
		t.Errorf("FullReset during active txn returned %v, want ErrConcurrentTransaction", inner)
	}
}

// svcStore extracts the service's store for direct assertions.
func svcStore(s *Service) store.IStore {
	return s.store
}
