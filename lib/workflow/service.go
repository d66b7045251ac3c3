package workflow

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/keel/lib/codec"
	"github.com/ValentinKolb/keel/lib/effects"
	"github.com/ValentinKolb/keel/lib/entity"
	"github.com/ValentinKolb/keel/lib/index"
	"github.com/ValentinKolb/keel/lib/keys"
	"github.com/ValentinKolb/keel/lib/links"
	"github.com/ValentinKolb/keel/lib/store"
	"github.com/ValentinKolb/keel/lib/txn"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("workflow")

// effectCreated guards the one-time creation log of an entity.
const effectCreated = "created"

// effectArchiveCollected guards the per-task archive collection steps.
const effectArchiveCollected = "archive-collected"

// Service composes the consistency layers into the multi-entity operations
// the admin tool runs. All entity writes must go through UpsertEntity and
// all deletions through DeleteEntity; bypassing the service lets the derived
// state (effects, links, indices) drift.
type Service struct {
	store  store.IStore
	ledger effects.ILedger
	graph  links.IGraph
	index  index.IMaintainer
	txn    *txn.Manager
	codec  codec.ICodec
	now    func() time.Time
}

// NewService wires a service over the given store.
func NewService(s store.IStore) *Service {
	return &Service{
		store:  s,
		ledger: effects.NewLedger(s),
		graph:  links.NewGraph(s),
		index:  index.NewMaintainer(s),
		txn:    txn.NewManager(s),
		codec:  codec.NewJSONCodec(),
		now:    time.Now,
	}
}

// Graph exposes the relationship graph for read access and diagnostics.
func (s *Service) Graph() links.IGraph { return s.graph }

// Index exposes the index maintainer for diagnostics.
func (s *Service) Index() index.IMaintainer { return s.index }

// Ledger exposes the effect ledger for read access.
func (s *Service) Ledger() effects.ILedger { return s.ledger }

// --------------------------------------------------------------------------
// Entity upsert path
// --------------------------------------------------------------------------

// UpsertEntity persists an entity record and runs the consistency hooks:
// the one-time creation log (effect guarded) and the index maintainer. The
// hooks run after the record is persisted but before the call returns.
func (s *Service) UpsertEntity(e entity.Entity) error {
	if e.CreatedAt == 0 {
		e.CreatedAt = s.now().UnixMilli()
	}

	var prevPtr *entity.Entity
	prev, loaded, err := entity.Load(s.store, e.Ref)
	if err != nil {
		return fmt.Errorf("load previous %s: %w", e.Ref, err)
	}
	if loaded {
		prevPtr = &prev
	}

	if err := entity.Save(s.store, e); err != nil {
		return fmt.Errorf("save %s: %w", e.Ref, err)
	}

	// One creation log per entity, across any number of retries. The log
	// append itself may run twice if we crash before Mark; appending is the
	// accepted recoverable failure mode, a lost creation log is not.
	marked, err := s.ledger.Has(e.Ref, effectCreated)
	if err != nil {
		return err
	}
	if !marked {
		if _, err := s.AppendLog(e.Ref, "created"); err != nil {
			return err
		}
		if err := s.ledger.Mark(e.Ref, effectCreated); err != nil {
			return err
		}
	}

	if err := s.index.OnUpserted(e, prevPtr); err != nil {
		return fmt.Errorf("index upkeep for %s: %w", e.Ref, err)
	}
	return nil
}

// LogEntry is one persisted log line of an entity.
type LogEntry struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	At      int64  `json:"at"` // unix ms
}

// AppendLog writes a log entry for an entity and returns its id.
func (s *Service) AppendLog(ref entity.Ref, msg string) (string, error) {
	e := LogEntry{
		ID:      uuid.NewString(),
		Message: msg,
		At:      s.now().UnixMilli(),
	}
	data, err := s.codec.Encode(e)
	if err != nil {
		return "", fmt.Errorf("encode log entry: %w", err)
	}
	if err := s.store.Set(keys.Log(string(ref.Type), ref.ID, e.ID), data); err != nil {
		return "", err
	}
	return e.ID, nil
}

// Logs returns all log entries of an entity.
func (s *Service) Logs(ref entity.Ref) ([]LogEntry, error) {
	logKeys, err := s.store.ScanPrefix(keys.LogPrefix(string(ref.Type), ref.ID))
	if err != nil {
		return nil, err
	}
	entries := make([]LogEntry, 0, len(logKeys))
	for _, key := range logKeys {
		data, loaded, err := s.store.Get(key)
		if err != nil {
			return nil, err
		}
		if !loaded {
			continue
		}
		var e LogEntry
		if err := s.codec.Decode(data, &e); err != nil {
			return nil, fmt.Errorf("decode log entry %s: %w", key, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// --------------------------------------------------------------------------
// Entity deletion
// --------------------------------------------------------------------------

// DeleteEntity is the single cascading deletion capability: it removes the
// entity's links, effect markers, index entries, logs, and finally the
// record itself. Nothing else in the system cascades automatically.
// Deleting a missing entity is a no-op.
func (s *Service) DeleteEntity(ref entity.Ref) error {
	if _, err := s.graph.CascadeDelete(ref); err != nil {
		return fmt.Errorf("link cascade for %s: %w", ref, err)
	}
	if _, err := s.ledger.ClearAll(ref, ""); err != nil {
		return fmt.Errorf("clear effects for %s: %w", ref, err)
	}

	e, loaded, err := entity.Load(s.store, ref)
	if err != nil {
		return err
	}
	if loaded {
		if err := s.index.OnDeleted(e); err != nil {
			return fmt.Errorf("index removal for %s: %w", ref, err)
		}
	}

	logKeys, err := s.store.ScanPrefix(keys.LogPrefix(string(ref.Type), ref.ID))
	if err != nil {
		return err
	}
	for _, key := range logKeys {
		if err := s.store.Delete(key); err != nil {
			return err
		}
	}

	return entity.Remove(s.store, ref)
}
