package txn

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"
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

var errBoom = errors.New("step 3 failed")

func TestCommitKeepsWrites(t *testing.T) {
	s := newTestStore()
	m := NewManager(s)

	err := m.Execute(func() error {
		return s.Set("e:task:task-1", []byte("v1"))
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if _, loaded, _ := s.Get("e:task:task-1"); !loaded {
		t.Errorf("committed write missing")
	}
	if m.State() != StateIdle {
		t.Errorf("state after commit = %s, want Idle", m.State())
	}
}

// TestRollbackRemovesCreatedEntities covers the canonical multi-upsert case:
// two entities created inside a failing workflow must not exist afterwards.
func TestRollbackRemovesCreatedEntities(t *testing.T) {
	s := newTestStore()
	m := NewManager(s)

	err := m.Execute(func() error {
		if err := entity.Save(s, entity.Entity{Ref: entity.Ref{Type: entity.TypePlayer, ID: "player-1"}}); err != nil {
			return err
		}
		if err := entity.Save(s, entity.Entity{Ref: entity.Ref{Type: entity.TypeCharacter, ID: "character-1"}}); err != nil {
			return err
		}
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("Execute returned %v, want the original error", err)
	}

	for _, ref := range []entity.Ref{
		{Type: entity.TypePlayer, ID: "player-1"},
		{Type: entity.TypeCharacter, ID: "character-1"},
	} {
		if _, loaded, _ := entity.Load(s, ref); loaded {
			t.Errorf("%s still exists after rollback", ref)
		}
	}
	if m.State() != StateIdle {
		t.Errorf("state after rollback = %s, want Idle", m.State())
	}
}

// TestRollbackRestoresExactly modifies values and sets inside a failing
// workflow and verifies the store is byte-equal, key by key, to its state
// before Execute.
func TestRollbackRestoresExactly(t *testing.T) {
	s := newTestStore()

	// Pre-existing state: a value, an empty-value key, and a set
	if err := s.Set("e:task:task-1", []byte("original")); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("e:task:task-2", []byte{}); err != nil {
		t.Fatal(err)
	}
	for _, member := range []string{"a", "b"} {
		if err := s.SAdd("ix:task:collected:11-25", member); err != nil {
			t.Fatal(err)
		}
	}

	m := NewManager(s)
	err := m.Execute(func() error {
		// Overwrite, delete, extend a set, shrink a set, create a key
		if err := s.Set("e:task:task-1", []byte("changed")); err != nil {
			return err
		}
		if err := s.Delete("e:task:task-2"); err != nil {
			return err
		}
		if err := s.SAdd("ix:task:collected:11-25", "c"); err != nil {
			return err
		}
		if err := s.SRem("ix:task:collected:11-25", "a"); err != nil {
			return err
		}
		if err := s.Set("e:task:task-3", []byte("new")); err != nil {
			return err
		}
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("Execute returned %v", err)
	}

	value, loaded, _ := s.Get("e:task:task-1")
	if !loaded || !bytes.Equal(value, []byte("original")) {
		t.Errorf("task-1 = (%q, %v), want original", value, loaded)
	}
	value, loaded, _ = s.Get("e:task:task-2")
	if !loaded || len(value) != 0 {
		t.Errorf("task-2 = (%q, %v), want present empty value", value, loaded)
	}
	if _, loaded, _ := s.Get("e:task:task-3"); loaded {
		t.Errorf("task-3 created during workflow survived rollback")
	}
	members, _, _ := s.SMembers("ix:task:collected:11-25")
	sort.Strings(members)
	if len(members) != 2 || members[0] != "a" || members[1] != "b" {
		t.Errorf("set members = %v, want [a b]", members)
	}
}

func TestConcurrentExecuteRejected(t *testing.T) {
	s := newTestStore()
	m := NewManager(s)

	inner := error(nil)
	err := m.Execute(func() error {
		inner = m.Execute(func() error { return nil })
		return nil
	})
	if err != nil {
		t.Fatalf("outer Execute failed: %v", err)
	}
	if !errors.Is(inner, ErrConcurrentTransaction) {
		t.Errorf("nested Execute returned %v, want ErrConcurrentTransaction", inner)
	}

	// Parallel attempts: exactly the losers see ErrConcurrentTransaction
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = m.Execute(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	if err := m.Execute(func() error { return nil }); !errors.Is(err, ErrConcurrentTransaction) {
		t.Errorf("concurrent Execute returned %v", err)
	}
	close(release)
}

func TestIndependentManagers(t *testing.T) {
	s := newTestStore()
	m1 := NewManager(s)
	m2 := NewManager(s)

	var wg sync.WaitGroup
	for _, m := range []*Manager{m1, m2} {
		wg.Add(1)
		go func(m *Manager) {
			defer wg.Done()
			if err := m.Execute(func() error { return nil }); err != nil {
				t.Errorf("Execute failed: %v", err)
			}
		}(m)
	}
	wg.Wait()
}

// failingStore wraps an IStore and fails writes to selected keys, used to
// force rollback failures.
type failingStore struct {
	store.IStore
	failKeys map[string]bool
}

func (f *failingStore) Set(key string, value []byte) error {
	if f.failKeys[key] {
		return store.NewError(store.RetCInternalError, "injected failure")
	}
	return f.IStore.Set(key, value)
}

func TestRollbackFailureSurfacesBoth(t *testing.T) {
	base := newTestStore()
	if err := base.Set("e:task:task-1", []byte("original")); err != nil {
		t.Fatal(err)
	}

	fs := &failingStore{IStore: base, failKeys: map[string]bool{}}
	m := NewManager(fs)

	err := m.Execute(func() error {
		if err := base.Set("e:task:task-1", []byte("changed")); err != nil {
			return err
		}
		// From now on the restore write of task-1 fails
		fs.failKeys["e:task:task-1"] = true
		return errBoom
	})

	var rbErr *RollbackError
	if !errors.As(err, &rbErr) {
		t.Fatalf("Execute returned %T (%v), want *RollbackError", err, err)
	}
	if len(rbErr.Failed) != 1 || rbErr.Failed[0] != "e:task:task-1" {
		t.Errorf("Failed = %v, want [e:task:task-1]", rbErr.Failed)
	}
	// Both the workflow error and the restore error must be surfaced
	if !errors.Is(err, errBoom) {
		t.Errorf("original error not wrapped: %v", err)
	}
	if rbErr.Dump == "" {
		t.Errorf("expected a snapshot dump path")
	}
}

func TestRun(t *testing.T) {
	s := newTestStore()
	m := NewManager(s)

	n, err := Run(m, func() (int, error) {
		return 42, nil
	})
	if err != nil || n != 42 {
		t.Errorf("Run = (%d, %v), want (42, nil)", n, err)
	}

	_, err = Run(m, func() (int, error) {
		return 0, fmt.Errorf("nope")
	})
	if err == nil {
		t.Errorf("Run should propagate the workflow error")
	}
}

func TestStateString(t *testing.T) {
	states := map[State]string{
		StateIdle:        "Idle",
		StateCapturing:   "Capturing",
		StateExecuting:   "Executing",
		StateCommitted:   "Committed",
		StateRollingBack: "RollingBack",
		StateRolledBack:  "RolledBack",
		State(99):        "Unknown(99)",
	}
	for s, expected := range states {
		if s.String() != expected {
			t.Errorf("State(%d).String() = %q, want %q", s, s.String(), expected)
		}
	}
}
