// Package workflow composes the consistency layers (effects, links, index,
// txn) into the multi-entity operations of the admin tool: the entity upsert
// and deletion paths, log handling, full data reset, log clearing, and
// archive collection.
//
// The service is the only supported write path. Every upsert runs the index
// maintainer and the effect-guarded creation log after persisting the
// record; every deletion runs the single cascading cleanup (links, effects,
// indices, logs, record). Destructive multi-entity operations are wrapped in
// a transaction so a failure part way through restores the prior state.
//
// Invocations run independently with no locking between them; correctness
// under concurrent or redelivered invocations comes from the idempotency of
// each step (effect markers, idempotent link creation, deterministic derived
// ids), not from mutual exclusion.
package workflow
