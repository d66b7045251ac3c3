// Package rowan implements the key-value database (KVDB) backing the keel
// consistency core. It provides a complete implementation of the db.KVDB
// interface with a focus on thread safety and on the query shapes the
// consistency layers need: exact lookups, set membership, and prefix scans.
//
// The package focuses on:
//   - Optimized concurrent access through sharding and lock-free data structures
//   - String-keyed shards: the original keys are retained so ScanPrefix can
//     enumerate keyspaces (reconciliation and transaction snapshots depend on it)
//   - Set entries with copy-on-write member maps for the reverse-lookup and
//     index-bucket sets
//   - Persistent storage with fuzzy snapshots and efficient binary encoding
//
// Key Components:
//
//   - rowanImpl: The central database structure implementing db.KVDB. It manages
//     shards and maintains a monotonically increasing write index for consistent
//     operation ordering. The write index itself is supplied by the caller (the
//     store adapters generate it), which allows flexible integration with
//     external ordering sources such as a raft log.
//
//   - Shard: A partition of the database that manages a subset of the key space.
//     Each shard contains its own concurrent map and operates independently to
//     minimize contention. Keys are distributed across shards by hashing the key
//     string with a database-specific seed.
//
//   - Entry: The core structure for storing either a plain value or a set of
//     members, together with the write index of the last mutation. Entries of
//     the two kinds share one keyspace; the kind of an existing entry never
//     changes implicitly (a mismatched operation is a no-op).
//
// Internal Mechanisms:
//
//   - Stale Write Detection: A write whose index is lower than the index already
//     recorded for the entry is ignored. Together with the monotonic global
//     index this gives last-writer-wins semantics under replays.
//
//   - Copy-on-write Sets: SAdd and SRem never mutate a stored member map in
//     place; they clone it. SMembers can therefore hand out stable results
//     while writers make progress.
//
// The engine deliberately has no TTL or expiration machinery: the consistency
// core cleans up state explicitly (cascading deletes, effect clearing, repair)
// rather than by timeout.
package rowan
