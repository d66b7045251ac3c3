// Package db provides a standardized interface for the key-value database
// backing the keel consistency core. It defines the KVDB interface that allows
// for consistent interaction with various database backends while abstracting
// implementation details.
//
// The package focuses on:
//   - A unified interface for single-key operations (Set, SetIfUnset, Get, MGet, Delete)
//   - Set-membership operations (SAdd, SRem, SMembers) used for reverse-lookup
//     indices and secondary index buckets
//   - Prefix scans (ScanPrefix) used by reconciliation and snapshotting
//   - Feature discovery through capability flags
//   - Standardized persistence operations (Save, Load)
//
// Key Components:
//
//   - KVDB Interface: The core interface that all database implementations must
//     satisfy. Every key holds either a plain value or a set of members; the two
//     kinds share one keyspace, and callers are expected to keep them apart via
//     key namespaces (see the keys package).
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     can advertise through the SupportsFeature method. This allows clients to
//     discover supported operations at runtime.
//
//   - Implementation Identifiers: The Implementation type provides string constants
//     for different database backends (currently "rowan").
//
//   - Database Information: The DatabaseInfo structure provides standardized
//     reporting on database state, including size statistics, implementation type,
//     and implementation-specific metadata. For most implementations all size
//     statistics will be estimated since a precise calculation can be expensive.
//
// Note on Atomicity:
//
// Each KVDB operation is atomic at single-key granularity and nothing more.
// There are no multi-key transactions and no locking primitives. The higher
// layers of keel (effects, links, index, txn) are built precisely around this
// limitation: idempotent writes, reconciliation, and best-effort snapshots
// instead of cross-key atomicity.
//
// Note on the Write Index:
//
// All write operations require a write-index parameter that serves as a logical
// timestamp. Implementations must ignore writes whose index is lower than the
// index already recorded for the entry, and the database-global index must only
// ever increase (use SetWriteIdx to advance it manually). Reads always operate
// against the most recently set write-index.
//
// Related Packages:
//
// The engines/rowan package provides a sharded in-memory implementation of the
// KVDB interface with string-keyed lock-free maps, copy-on-write set entries and
// binary persistence.
//
// The testing package (github.com/ValentinKolb/keel/lib/db/testing) provides
// standardized tests and benchmarks for database implementations:
//   - RunKVDBTests: Runs a standardized test suite to validate implementations
//   - RunKVDBBenchmarks: Provides performance benchmarks for comparing implementations
package db
