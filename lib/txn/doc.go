// Package txn gives multi-step workflows an approximate rollback capability
// on top of a store without multi-key atomicity.
//
// Lifecycle per manager instance:
//
//	Idle -> Capturing -> Executing -> Committed -> Idle
//	                               \> RollingBack -> RolledBack -> Idle
//
// Execute captures a snapshot of every key under the manager's scope, runs
// the workflow, and on failure restores the snapshot: captured keys are
// written back verbatim (values and sets alike, distinguishing absent keys
// from present-but-empty ones) and keys created during the workflow are
// deleted via a scope rescan.
//
// Limitations, by design:
//
//   - The snapshot is best-effort. Keys are read one at a time, so writes by
//     concurrent invocations during the capture window may be partially
//     included. Rollback is only guaranteed to undo the workflow's own
//     writes.
//
//   - One workflow per manager instance at a time. A second Execute fails
//     with ErrConcurrentTransaction instead of queueing. State is per
//     instance, so independent managers can run side by side in tests and
//     sharded deployments.
//
//   - A failed rollback is fatal and loud: RollbackError lists the keys that
//     could not be restored and the snapshot is dumped to a file for manual
//     repair.
package txn
