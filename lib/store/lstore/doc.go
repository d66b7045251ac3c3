// Package lstore implements a local, in-memory, single-node key-value store based on the
// store.IStore interface. It provides a thin wrapper around any db.KVDB
// implementation with automatic write index management. Data is stored entirely
// in memory and is only persisted when the caller explicitly saves the
// underlying engine (as the operator CLI does).
//
// Key Features:
//   - Pure in-memory storage
//   - Direct integration with db.KVDB implementations
//   - Automatic write index progression using atomic operations
//   - Feature detection to handle unsupported operations gracefully
//   - Thread-safe operations for concurrent access
//
// Implementation Details:
//
//   - Write Index Management: The store maintains an atomic counter that automatically
//     increments with each write operation. This provides a monotonically increasing
//     logical timestamp that ensures consistent ordering of operations.
//
//   - Feature Detection: Before executing operations, the store checks if the underlying
//     db.KVDB implementation supports the requested feature through the SupportsFeature
//     method. Unsupported operations return appropriate error codes rather than failing
//     silently or producing undefined behavior.
//
//   - Composition Architecture: The store follows a composition pattern where the
//     store.DBFactory factory function injects the underlying db.KVDB implementation.
//     This allows the store to work with any db.KVDB-compatible engine without modification.
//
// Usage Example:
//
//	// Create a store with a rowan database backend
//	factory := func() db.KVDB { return rowan.NewRowanDB(nil) }
//	store := lstore.NewLocalStore(factory)
//
//	// Store a value
//	err := store.Set("e:task:task-1", record)
//
//	// Retrieve the value
//	value, exists, err := store.Get("e:task:task-1")
//
// Suitable Use Cases:
//
//	The local store is ideal for:
//	- Single-node deployments where distributed consensus is not required
//	- The operator CLI (load data file, run repair, save data file)
//	- Testing and development environments
//
// For distributed scenarios requiring consensus across multiple nodes, consider
// using the dstore package instead, which provides a RAFT-based implementation
// of the same interface with strong consistency guarantees.
package lstore
