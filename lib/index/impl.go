package index

import (
	"time"

	"github.com/ValentinKolb/keel/lib/entity"
	"github.com/ValentinKolb/keel/lib/keys"
	"github.com/ValentinKolb/keel/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	log = logger.GetLogger("index")

	reconcileDriftTotal = metrics.NewCounter("keel_index_reconcile_drift_total")
	repairAddedTotal    = metrics.NewCounter("keel_index_repair_added_total")
	repairRemovedTotal  = metrics.NewCounter("keel_index_repair_removed_total")
)

type maintainerImpl struct {
	store store.IStore
	now   func() time.Time
}

func NewMaintainer(store store.IStore) IMaintainer {
	return &maintainerImpl{
		store: store,
		now:   time.Now,
	}
}

func (m *maintainerImpl) OnUpserted(e entity.Entity, prev *entity.Entity) error {
	now := m.now()
	for _, def := range ForType(e.Type) {
		isMember := def.Predicate(e)
		newBucket := def.Bucket(e, now)

		wasMember := prev != nil && def.Predicate(*prev)
		oldBucket := ""
		if wasMember {
			oldBucket = def.Bucket(*prev, now)
		}

		// Remove first on a bucket move so the id never sits in two buckets
		// of the same index.
		if wasMember && (!isMember || oldBucket != newBucket) {
			if err := m.store.SRem(def.BucketKey(oldBucket), e.ID); err != nil {
				return err
			}
		}
		if isMember {
			if err := m.store.SAdd(def.BucketKey(newBucket), e.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *maintainerImpl) OnDeleted(e entity.Entity) error {
	now := m.now()
	for _, def := range ForType(e.Type) {
		if !def.Predicate(e) {
			continue
		}
		if err := m.store.SRem(def.BucketKey(def.Bucket(e, now)), e.ID); err != nil {
			return err
		}
	}
	return nil
}

func (m *maintainerImpl) Reconcile(def Definition) (Report, error) {
	report := Report{Missing: []BucketEntry{}, Phantom: []BucketEntry{}}
	now := m.now()

	// Load all entities of the index's type once; both scans need them.
	entityKeys, err := m.store.ScanPrefix(keys.EntityPrefix(string(def.EntityType)))
	if err != nil {
		return report, err
	}
	entities := make(map[string]entity.Entity, len(entityKeys))
	prefixLen := len(keys.EntityPrefix(string(def.EntityType)))
	for _, key := range entityKeys {
		id := key[prefixLen:]
		e, loaded, err := entity.Load(m.store, entity.Ref{Type: def.EntityType, ID: id})
		if err != nil {
			return report, err
		}
		if loaded {
			entities[id] = e
		}
	}

	// Scan 1: every matching entity must be present in its correct bucket.
	membership := map[string]map[string]struct{}{} // bucket -> ids
	bucketKeys, err := m.store.ScanPrefix(keys.IndexPrefix(string(def.EntityType), def.Name))
	if err != nil {
		return report, err
	}
	for _, bk := range bucketKeys {
		token, ok := keys.IndexBucketToken(bk, string(def.EntityType), def.Name)
		if !ok {
			continue
		}
		members, _, err := m.store.SMembers(bk)
		if err != nil {
			return report, err
		}
		set := make(map[string]struct{}, len(members))
		for _, id := range members {
			set[id] = struct{}{}
		}
		membership[token] = set
	}

	for id, e := range entities {
		if !def.Predicate(e) {
			continue
		}
		bucket := def.Bucket(e, now)
		if _, ok := membership[bucket][id]; !ok {
			report.Missing = append(report.Missing, BucketEntry{Bucket: bucket, ID: id})
		}
	}

	// Scan 2: every bucket entry must belong to an existing, matching entity
	// in exactly that bucket.
	for bucket, ids := range membership {
		for id := range ids {
			e, exists := entities[id]
			if !exists || !def.Predicate(e) || def.Bucket(e, now) != bucket {
				report.Phantom = append(report.Phantom, BucketEntry{Bucket: bucket, ID: id})
			}
		}
	}

	drift := len(report.Missing) + len(report.Phantom)
	reconcileDriftTotal.Add(drift)
	if drift > 0 {
		log.Warningf("index %s/%s reconcile found %d missing, %d phantom",
			def.EntityType, def.Name, len(report.Missing), len(report.Phantom))
	}
	return report, nil
}

func (m *maintainerImpl) Repair(def Definition, apply bool) (RepairCounts, error) {
	report, err := m.Reconcile(def)
	if err != nil {
		return RepairCounts{}, err
	}

	counts := RepairCounts{Added: len(report.Missing), Removed: len(report.Phantom)}
	if !apply {
		return counts, nil
	}

	// Additions and removals are individually idempotent; a failure part-way
	// leaves a partially corrected index that the next run converges further.
	for _, e := range report.Missing {
		if err := m.store.SAdd(def.BucketKey(e.Bucket), e.ID); err != nil {
			return counts, err
		}
	}
	for _, e := range report.Phantom {
		if err := m.store.SRem(def.BucketKey(e.Bucket), e.ID); err != nil {
			return counts, err
		}
	}

	repairAddedTotal.Add(counts.Added)
	repairRemovedTotal.Add(counts.Removed)
	return counts, nil
}
