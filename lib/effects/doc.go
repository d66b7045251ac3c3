// Package effects implements the idempotency effect ledger on top of the
// store.IStore interface. An effect marker is a durable flag keyed by
// (entityType, entityId, effectName) whose presence means "this logical side
// effect has already been applied".
//
// The ledger exists because upstream delivery is at-least-once: a workflow
// queue may redeliver the same logical operation, and every workflow step
// with an external or compounding side effect (emitting a creation log,
// booking an archive record) must happen at most once. There is no locking
// in the system, so deduplication is the only defense.
//
// Contract:
//
//   - mark-after-do: Mark is called only after the guarded action durably
//     succeeded. The failure mode of a crash between the two is a duplicate
//     retry attempt, which the guarded action must tolerate.
//
//   - Markers are cleared only by explicit entity deletion cleanup (ClearAll)
//     or by transaction rollback restoring pre-workflow state.
//
// The only error condition is store unavailability, which propagates as a
// store-layer failure untouched.
package effects
