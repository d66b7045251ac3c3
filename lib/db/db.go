package db

import "io"

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplRowan Implementation = "rowan"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureSet        Feature = 1 << iota // Support for Set operations
	FeatureSetIfUnset                     // Support for SetIfUnset operations
	FeatureGet                            // Support for Get operations
	FeatureMGet                           // Support for MGet operations
	FeatureDelete                         // Support for Delete operations
	FeatureSAdd                           // Support for SAdd operations
	FeatureSRem                           // Support for SRem operations
	FeatureSMembers                       // Support for SMembers operations
	FeatureScanPrefix                     // Support for ScanPrefix operations
	FeatureSave                           // Support for Save operations
	FeatureLoad                           // Support for Load operations
)

func (f Feature) String() string {
	switch f {
	case FeatureSet:
		return "Set"
	case FeatureSetIfUnset:
		return "SetIfUnset"
	case FeatureGet:
		return "Get"
	case FeatureMGet:
		return "MGet"
	case FeatureDelete:
		return "Delete"
	case FeatureSAdd:
		return "SAdd"
	case FeatureSRem:
		return "SRem"
	case FeatureSMembers:
		return "SMembers"
	case FeatureScanPrefix:
		return "ScanPrefix"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines an interface for key-value database implementations.
// A key holds either a plain value or a set of members, never both; an
// operation of the wrong kind for an existing key is a no-op.
// Implementations can vary in their feature support, which can be queried
// with SupportsFeature.
type KVDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Set inserts or updates a value entry with the given key.
	// If the key already exists, the old value should be overwritten.
	// The writeIndex parameter is used as a logical timestamp for the entry.
	Set(key string, value []byte, writeIndex uint64)

	// SetIfUnset inserts a value entry with the given key.
	// If the key already exists (as value or set), nothing is changed.
	SetIfUnset(key string, value []byte, writeIndex uint64)

	// Delete removes an entry (value or set) with the specified key.
	// The key should be removed from the database and not be findable anymore.
	Delete(key string, writeIndex uint64)

	// SAdd adds a member to the set stored at the given key.
	// If the key does not exist, a new set is created.
	// Adding a member that is already present is a no-op.
	SAdd(key, member string, writeIndex uint64)

	// SRem removes a member from the set stored at the given key.
	// Removing the last member removes the key itself.
	// Removing a member that is not present is a no-op.
	SRem(key, member string, writeIndex uint64)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves the value for an exact key.
	// The boolean return value indicates whether a value entry for the key was found.
	Get(key string) (value []byte, loaded bool)

	// MGet retrieves the values for multiple keys in one call.
	// The result has the same length and order as keys; missing keys
	// (and set-kind keys) yield a nil entry.
	MGet(keys []string) (values [][]byte)

	// SMembers returns all members of the set stored at the given key.
	// The boolean return value indicates whether a set entry for the key was found.
	SMembers(key string) (members []string, loaded bool)

	// ScanPrefix returns all keys (value and set kind) starting with the
	// given prefix, sorted lexicographically.
	ScanPrefix(prefix string) (keys []string)

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save persists the current state of the database to the provided io.Writer.
	Save(w io.Writer) (err error)

	// Load restores the database state data provided by an io.Reader.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Returns true if the feature is supported, false otherwise.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// --------------------------------------------------------------------------
	// Write Index Operations
	// --------------------------------------------------------------------------

	// SetWriteIdx sets the current index of the database only if the provided index is greater than the current index.
	SetWriteIdx(index uint64)

	// WriteIdx returns the current index of the database.
	WriteIdx() (index uint64)

	// Close closes the database.
	Close() (err error)
}
