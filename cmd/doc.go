// Package cmd implements the command-line interface for keel. It provides a
// hierarchical command structure for inspecting and maintaining a data file.
//
// The package is organized into several subpackages:
//
//   - diag: Commands for reconciling and repairing the derived state
//     (secondary indices, relationship graph)
//   - reset: Commands for destructive resets (entity wipe, log clearing)
//   - util: Shared utilities for command-line processing, configuration
//     and data file handling (internal use)
//
// See keel -help for a list of all commands.
package cmd
