package workflow

import (
	"fmt"

	"github.com/ValentinKolb/keel/lib/entity"
	"github.com/ValentinKolb/keel/lib/keys"
)

// FullReset deletes every entity of the given types including logs, links,
// effect markers and index entries, wrapped in a transaction: a failure part
// way through restores the pre-reset state. With no types given, all entity
// types are wiped.
func (s *Service) FullReset(types ...entity.Type) error {
	if len(types) == 0 {
		types = entity.Types
	}
	return s.txn.Execute(func() error {
		for _, t := range types {
			refs, err := s.entityRefs(t)
			if err != nil {
				return err
			}
			log.Infof("full reset: deleting %d %s entities", len(refs), t)
			for _, ref := range refs {
				if err := s.DeleteEntity(ref); err != nil {
					return fmt.Errorf("delete %s: %w", ref, err)
				}
			}
		}
		return nil
	})
}

// ClearLogs deletes all log entries of one entity type, wrapped in a
// transaction.
func (s *Service) ClearLogs(t entity.Type) error {
	return s.txn.Execute(func() error {
		logKeys, err := s.store.ScanPrefix(keys.LogTypePrefix(string(t)))
		if err != nil {
			return err
		}
		log.Infof("clearing %d log entries of type %s", len(logKeys), t)
		for _, key := range logKeys {
			if err := s.store.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// entityRefs lists the refs of all stored entities of a type.
func (s *Service) entityRefs(t entity.Type) ([]entity.Ref, error) {
	prefix := keys.EntityPrefix(string(t))
	entityKeys, err := s.store.ScanPrefix(prefix)
	if err != nil {
		return nil, err
	}
	refs := make([]entity.Ref, len(entityKeys))
	for i, key := range entityKeys {
		refs[i] = entity.Ref{Type: t, ID: key[len(prefix):]}
	}
	return refs, nil
}
