// Package links implements the relationship graph: typed, directed edges
// between two entities, persisted on top of the store.IStore interface.
//
// Data Layout:
//
//	Every link occupies four store entries:
//
//	- ln:{id}                                          canonical record (JSON)
//	- lt:{type}:{srcType}:{srcId}:{dstType}:{dstId}    uniqueness marker, value = link id
//	- lr:{srcType}:{srcId}                             reverse-lookup set entry
//	- lr:{dstType}:{dstId}                             reverse-lookup set entry
//
//	The reverse sets let either endpoint be queried without a full scan.
//
// Consistency Model:
//
//	The four writes are not atomic as a group since the store offers no
//	multi-key atomicity. The design accepts the resulting small window of
//	inconsistency and self-heals instead of locking:
//
//	- Creation claims the uniqueness marker first via SetIfUnset, the one
//	  atomic check-and-set the store has. Two racing creates of the same
//	  (type, source, target) triple resolve to a single canonical record;
//	  the loser returns the winner's link as a successful no-op.
//
//	- Removal deletes the side entries before the canonical record, so a
//	  partial removal leaves the link discoverable for a retry.
//
//	- Reconcile detects every half-written state (missing or dangling
//	  reverse entries, missing or orphaned markers) and Repair corrects
//	  them with individually idempotent writes, converging under re-runs
//	  and under concurrent traffic.
//
// Link types are a closed enum with a fixed direction per type (see
// linkSchemas); metadata is a typed record rather than a free-form map so
// each link type's payload shape is enforced at compile time.
//
// Cascading: deleting an entity removes every link it participates in via
// CascadeDelete. That call is reserved for the entity deletion workflow;
// nothing else in the system deletes links automatically.
package links
