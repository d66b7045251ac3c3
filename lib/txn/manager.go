package txn

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ValentinKolb/keel/lib/codec"
	"github.com/ValentinKolb/keel/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	log = logger.GetLogger("txn")

	commitsTotal   = metrics.NewCounter("keel_txn_commits_total")
	rollbacksTotal = metrics.NewCounter("keel_txn_rollbacks_total")
)

// --------------------------------------------------------------------------
// State machine
// --------------------------------------------------------------------------

// State is the lifecycle state of a Manager.
type State uint32

const (
	StateIdle State = iota
	StateCapturing
	StateExecuting
	StateCommitted
	StateRollingBack
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateCapturing:
		return "Capturing"
	case StateExecuting:
		return "Executing"
	case StateCommitted:
		return "Committed"
	case StateRollingBack:
		return "RollingBack"
	case StateRolledBack:
		return "RolledBack"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

// ErrConcurrentTransaction is returned when Execute is called while another
// workflow is active on the same manager. Calls are rejected, not queued;
// callers needing sequencing must serialize externally.
var ErrConcurrentTransaction = errors.New("transaction already active on this manager")

// RollbackError is returned when rollback could not restore one or more
// captured keys. This is fatal: the store is now in a state between pre- and
// post-workflow, and the failed keys plus the dumped snapshot are the input
// for manual repair.
type RollbackError struct {
	Failed []string // keys that could not be restored
	Dump   string   // path of the snapshot dump, empty if dumping failed too
	Cause  error    // the original workflow error joined with the restore errors
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("rollback failed for %d key(s) %v: %v", len(e.Failed), e.Failed, e.Cause)
}

func (e *RollbackError) Unwrap() error {
	return e.Cause
}

// --------------------------------------------------------------------------
// Manager
// --------------------------------------------------------------------------

// Manager wraps multi-step workflows with an approximate rollback capability.
// Each instance owns its own state; multiple managers can coexist, but a
// single manager runs at most one workflow at a time.
//
// Thread-safety: the state transitions use atomic operations, so concurrent
// Execute calls race safely (all but one fail with ErrConcurrentTransaction).
// The snapshot itself is only touched by the winning call.
type Manager struct {
	store store.IStore
	scope []string // key prefixes captured and rolled back
	state atomic.Uint32
	snap  *Snapshot
	codec codec.ICodec
}

// DefaultScope covers every store area the workflows touch: entity records,
// logs, effect markers, all three link namespaces, and the index buckets.
var DefaultScope = []string{"e:", "log:", "fx:", "ln:", "lt:", "lr:", "ix:"}

// NewManager creates a transaction manager over the given store. With no
// explicit prefixes the DefaultScope is captured.
func NewManager(store store.IStore, scope ...string) *Manager {
	if len(scope) == 0 {
		scope = DefaultScope
	}
	return &Manager{
		store: store,
		scope: scope,
		codec: codec.NewGOBCodec(),
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// IsActive reports whether a workflow is currently running on this manager.
func (m *Manager) IsActive() bool {
	return m.State() != StateIdle
}

// ActiveSnapshot returns the snapshot of the in-flight workflow, nil when idle.
func (m *Manager) ActiveSnapshot() *Snapshot {
	if !m.IsActive() {
		return nil
	}
	return m.snap
}

// Execute wraps fn with capture and rollback. On success fn's result is
// returned and the snapshot discarded without any store writes. If fn returns
// an error, the snapshot is restored and the original error returned; if the
// restore itself fails, a RollbackError surfaces both.
func (m *Manager) Execute(fn func() error) error {
	if !m.state.CompareAndSwap(uint32(StateIdle), uint32(StateCapturing)) {
		return ErrConcurrentTransaction
	}
	defer func() {
		m.snap = nil
		m.state.Store(uint32(StateIdle))
	}()

	snap, err := m.Capture()
	if err != nil {
		return fmt.Errorf("capture state: %w", err)
	}
	m.snap = snap
	m.state.Store(uint32(StateExecuting))

	if err := fn(); err != nil {
		m.state.Store(uint32(StateRollingBack))
		rollbacksTotal.Inc()

		failed, rbErr := m.Rollback(snap)
		if rbErr != nil {
			dump, dumpErr := snap.Dump(m.codec)
			if dumpErr != nil {
				log.Errorf("snapshot dump failed after rollback failure: %v", dumpErr)
			} else {
				log.Errorf("rollback failed, snapshot dumped to %s", dump)
			}
			return &RollbackError{
				Failed: failed,
				Dump:   dump,
				Cause:  errors.Join(err, rbErr),
			}
		}
		m.state.Store(uint32(StateRolledBack))
		return err
	}

	m.state.Store(uint32(StateCommitted))
	commitsTotal.Inc()
	return nil
}

// Run wraps a workflow returning a value. On any error the zero value is
// returned alongside it.
func Run[T any](m *Manager, fn func() (T, error)) (T, error) {
	var result T
	err := m.Execute(func() error {
		var err error
		result, err = fn()
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// --------------------------------------------------------------------------
// Capture and rollback
// --------------------------------------------------------------------------

// Capture reads every key under the manager's scope. Each key is probed as a
// plain value first and as a set second, mirroring the two entry kinds the
// store distinguishes. Keys vanishing between scan and probe are skipped.
func (m *Manager) Capture() (*Snapshot, error) {
	snap := &Snapshot{Entries: map[string]Entry{}}
	for _, prefix := range m.scope {
		scoped, err := m.store.ScanPrefix(prefix)
		if err != nil {
			return nil, err
		}
		for _, key := range scoped {
			value, loaded, err := m.store.Get(key)
			if err != nil {
				return nil, err
			}
			if loaded {
				snap.Entries[key] = Entry{Present: true, Value: value}
				continue
			}
			members, loaded, err := m.store.SMembers(key)
			if err != nil {
				return nil, err
			}
			if loaded {
				snap.Entries[key] = Entry{Present: true, IsSet: true, Members: members}
			}
		}
	}
	return snap, nil
}

// Rollback restores every captured key verbatim and deletes scoped keys that
// did not exist at capture time. Restore failures do not abort the pass;
// every remaining key is still attempted and the failures reported together.
func (m *Manager) Rollback(snap *Snapshot) ([]string, error) {
	var failed []string
	var errs []error
	fail := func(key string, err error) {
		failed = append(failed, key)
		errs = append(errs, fmt.Errorf("restore %s: %w", key, err))
	}

	// Delete keys created during the workflow.
	for _, prefix := range m.scope {
		scoped, err := m.store.ScanPrefix(prefix)
		if err != nil {
			return failed, err
		}
		for _, key := range scoped {
			if _, captured := snap.Entries[key]; captured {
				continue
			}
			if err := m.store.Delete(key); err != nil {
				fail(key, err)
			}
		}
	}

	// Restore captured keys. Sets are rebuilt from scratch so members added
	// during the workflow disappear as well.
	for key, entry := range snap.Entries {
		if !entry.Present {
			if err := m.store.Delete(key); err != nil {
				fail(key, err)
			}
			continue
		}
		if entry.IsSet {
			if err := m.store.Delete(key); err != nil {
				fail(key, err)
				continue
			}
			restored := true
			for _, member := range entry.Members {
				if err := m.store.SAdd(key, member); err != nil {
					fail(key, err)
					restored = false
					break
				}
			}
			if !restored {
				continue
			}
		} else {
			if err := m.store.Set(key, entry.Value); err != nil {
				fail(key, err)
				continue
			}
		}
	}

	if len(errs) > 0 {
		return failed, errors.Join(errs...)
	}
	return nil, nil
}
