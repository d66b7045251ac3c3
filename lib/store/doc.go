// Package store provides a high-level interface for the key-value storage
// operations the keel consistency core is built on: single-key reads and
// writes, set membership, and prefix scans, with unified error handling.
// It serves as an abstraction layer over the lower-level db.KVDB
// implementations, adding write index management and standardized error
// reporting.
//
// The package focuses on:
//   - A unified interface (IStore) for key-value operations across different backends
//   - Pluggable storage backend architecture through the DBFactory pattern
//
// Key Components:
//
//   - IStore Interface: The core abstraction defining operations for interacting
//     with a key-value store. All implementations share this common interface,
//     allowing the consistency layers to switch between different storage
//     backends without code changes. Every operation is atomic only at
//     single-key granularity; there are no multi-key transactions and no locks.
//     The layers above compensate with idempotent writes, reconciliation and
//     best-effort snapshots.
//
//   - Error System: A structured error reporting mechanism using typed error
//     codes and descriptive messages. This system allows applications to make
//     informed decisions based on specific error conditions rather than generic
//     errors.
//
//   - DBFactory: A function type that abstracts the creation of underlying
//     db.KVDB instances, providing dependency injection and flexible
//     configuration of storage backends.
//
// Implementations:
//
//	The package includes two implementations of the IStore interface:
//
//	- Local Store (lstore): A simple, non-distributed implementation that directly
//	  utilizes a db.KVDB instance. It manages write index progression internally
//	  using atomic operations to ensure thread safety. This implementation is
//	  suitable for single-node deployments and for the operator CLI.
//	  Available in the "github.com/ValentinKolb/keel/lib/store/lstore" package.
//
//	- Distributed Store (dstore): An implementation built on the Dragonboat
//	  RAFT consensus library. It distributes storage operations across multiple
//	  nodes with strong consistency guarantees; the raft log index doubles as
//	  the write index. This implementation is appropriate for multi-node
//	  deployments requiring fault tolerance.
//	  Available in the "github.com/ValentinKolb/keel/lib/store/dstore" package.
package store
