// Package index maintains the derived secondary indices: named, month
// bucketed sets of entity ids (e.g. "all tasks collected in 11-25") stored
// as set keys beside the primary records.
//
// Invariant: an id appears in a bucket iff the entity exists, satisfies the
// index's membership predicate, and the bucket matches the entity's current
// timestamp-derived bucket. Violations are "phantom" entries (id present
// wrongly) or "missing" entries (id absent wrongly); both are detected by
// Reconcile and corrected by Repair.
//
// Bucket derivation follows a per-index timestamp fallback chain declared in
// policy.go. The chain order is a documented policy decision since it decides
// where historical records land.
//
// The maintainer is driven by the entity write path (OnUpserted/OnDeleted)
// for continuous upkeep and by the operator CLI (Reconcile/Repair) for drift
// recovery. There is no locking; agreement under concurrent writes is
// eventual, restored by re-runnable repair.
package index
