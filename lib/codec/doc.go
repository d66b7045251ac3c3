// Package codec provides value encoding capabilities for the consistency
// layer. It defines a common interface and multiple implementations for
// encoding and decoding the domain records (entities, links, index reports,
// transaction snapshots) that are persisted in the key-value store.
//
// The package focuses on:
//   - Providing a consistent interface for different encoding formats
//   - Offering multiple implementations with different performance characteristics
//   - Keeping the persisted record format an explicit, swappable decision
//
// Key Components:
//
//   - ICodec: Core interface that all codec implementations must satisfy.
//
//   - jsonCodecImpl: Implementation using JSON encoding. This is the default
//     codec for all persisted records since it keeps the store contents
//     human-readable, which matters for the operator CLI and for debugging
//     partially-applied workflows.
//
//   - gobCodecImpl: Implementation using Go's built-in gob encoding, offering
//     a compact binary representation. Used for transaction snapshot dumps
//     where size matters more than readability.
//
// Thread Safety:
//
//	All codec implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	Codecs are typically created once and reused throughout the application:
//
//	  c := codec.NewJSONCodec()
//	  data, err := c.Encode(record)
//	  // ... store data ...
//	  var loaded entity.Entity
//	  err = c.Decode(data, &loaded)
package codec
