// Package util provides utility components for database implementations that
// satisfy the db.KVDB interface.
//
// The package contains:
//   - functions: Hash functions and seed generation for shard selection
//   - statistics: Tools for analyzing database characteristics and a
//     SizeHistogram for tracking data size distribution
//
// Each component is designed to work with any implementation of the db.KVDB
// interface, allowing for consistent measurement across storage backends.
package util
