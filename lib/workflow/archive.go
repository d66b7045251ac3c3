package workflow

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/keel/lib/entity"
	"github.com/ValentinKolb/keel/lib/links"
)

// CollectArchive turns every done task into a collected one and books an
// archive financial record for it, linked task -> finrec. The operation is
// delivered by a best-effort queue and must stay correct under redelivery:
// each task's collection is guarded by an effect marker, the finrec id is
// derived from the task id, and the link create is idempotent, so a retry
// after a partial run finishes the remaining steps without duplicating any.
//
// The whole pass is transaction wrapped; a store failure part way through
// rolls the already collected tasks back.
func (s *Service) CollectArchive(now time.Time) (collected int, err error) {
	err = s.txn.Execute(func() error {
		refs, err := s.entityRefs(entity.TypeTask)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			task, loaded, err := entity.Load(s.store, ref)
			if err != nil {
				return err
			}
			if !loaded || task.Status != entity.StatusDone {
				continue
			}

			done, err := s.ledger.Has(ref, effectArchiveCollected)
			if err != nil {
				return err
			}
			if done {
				continue
			}

			if err := s.collectTask(task, now); err != nil {
				return fmt.Errorf("collect %s: %w", ref, err)
			}
			// Mark last so a crash in between retries the whole (idempotent)
			// per-task sequence.
			if err := s.ledger.Mark(ref, effectArchiveCollected); err != nil {
				return err
			}
			collected++
		}
		log.Infof("archive collection: %d tasks collected", collected)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return collected, nil
}

// collectTask runs the per-task archive steps: book the finrec, link it,
// flip the task to collected. Every step is individually idempotent.
func (s *Service) collectTask(task entity.Entity, now time.Time) error {
	finrec := entity.Entity{
		Ref:        entity.Ref{Type: entity.TypeFinRec, ID: "archive-" + task.ID},
		Status:     entity.StatusArchived,
		Name:       "archive of " + task.ID,
		CreatedAt:  now.UnixMilli(),
		ArchivedAt: now.UnixMilli(),
	}
	if err := s.UpsertEntity(finrec); err != nil {
		return err
	}

	if _, _, err := s.graph.Create(links.LTTaskFinRec, task.Ref, finrec.Ref, links.Metadata{}); err != nil {
		return err
	}

	task.Status = entity.StatusCollected
	task.CollectedAt = now.UnixMilli()
	return s.UpsertEntity(task)
}
