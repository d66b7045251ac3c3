package index

import (
	"time"

	"github.com/ValentinKolb/keel/lib/entity"
	"github.com/ValentinKolb/keel/lib/keys"
)

// --------------------------------------------------------------------------
// Index definitions
// --------------------------------------------------------------------------

// Field names a timestamp on the entity record usable in a fallback chain.
type Field string

const (
	FieldCollectedAt Field = "collectedAt"
	FieldDoneAt      Field = "doneAt"
	FieldSoldAt      Field = "soldAt"
	FieldArchivedAt  Field = "archivedAt"
	FieldCreatedAt   Field = "createdAt"
	FieldNow         Field = "now" // terminal fallback, always resolves
)

// Chain is an ordered timestamp fallback chain. The first set (non-zero)
// field wins. Changing a chain changes which bucket historical entities land
// in, so chains are declared centrally in policy.go and nowhere else.
type Chain []Field

// Resolve returns the first set timestamp of the chain, in unix ms.
func (c Chain) Resolve(e entity.Entity, now time.Time) int64 {
	for _, f := range c {
		var ts int64
		switch f {
		case FieldCollectedAt:
			ts = e.CollectedAt
		case FieldDoneAt:
			ts = e.DoneAt
		case FieldSoldAt:
			ts = e.SoldAt
		case FieldArchivedAt:
			ts = e.ArchivedAt
		case FieldCreatedAt:
			ts = e.CreatedAt
		case FieldNow:
			ts = now.UnixMilli()
		}
		if ts != 0 {
			return ts
		}
	}
	return now.UnixMilli()
}

// Definition describes one secondary index: which entities belong to it and
// how their bucket is derived.
type Definition struct {
	EntityType entity.Type
	Name       string
	Predicate  func(e entity.Entity) bool
	Chain      Chain
}

// Bucket computes the month bucket token of an entity under this index.
func (d Definition) Bucket(e entity.Entity, now time.Time) string {
	return keys.MonthToken(time.UnixMilli(d.Chain.Resolve(e, now)).UTC())
}

// BucketKey returns the store key of one bucket of this index.
func (d Definition) BucketKey(bucket string) string {
	return keys.IndexBucket(string(d.EntityType), d.Name, bucket)
}

// --------------------------------------------------------------------------
// Maintainer interface
// --------------------------------------------------------------------------

// IMaintainer keeps the secondary index buckets in agreement with the entity
// records. OnUpserted must be called by every entity write path after the
// record itself is persisted; skipping it makes indices silently drift until
// the next Repair.
type IMaintainer interface {
	// OnUpserted updates every index of the entity's type after a write.
	// prev is the record as it was before the write, nil on first insert.
	// Membership changes and bucket moves (a relevant timestamp changed)
	// are both handled; a bucket move removes the old entry first so an id
	// never ends up in two buckets of the same index.
	OnUpserted(e entity.Entity, prev *entity.Entity) error

	// OnDeleted removes the entity from every index of its type.
	OnDeleted(e entity.Entity) error

	// Reconcile compares one index against the entity records without
	// writing anything. Missing lists entities that match the predicate but
	// are absent from their correct bucket; Phantom lists bucket entries
	// whose entity is gone, no longer matches, or sits in the wrong bucket.
	Reconcile(def Definition) (report Report, err error)

	// Repair applies Reconcile's findings. With apply=false it only counts.
	// Re-runnable and safe under concurrent traffic: it only ever adds a
	// correct entry or removes an incorrect one.
	Repair(def Definition, apply bool) (counts RepairCounts, err error)
}

// --------------------------------------------------------------------------
// Reconciliation results
// --------------------------------------------------------------------------

// BucketEntry locates one id inside one bucket of an index.
type BucketEntry struct {
	Bucket string `json:"bucket"`
	ID     string `json:"id"`
}

// Report lists the drift found by Reconcile.
type Report struct {
	Missing []BucketEntry `json:"missing"`
	Phantom []BucketEntry `json:"phantom"`
}

// Clean reports whether no drift was found.
func (r Report) Clean() bool {
	return len(r.Missing) == 0 && len(r.Phantom) == 0
}

// RepairCounts summarizes a Repair run.
type RepairCounts struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
}
