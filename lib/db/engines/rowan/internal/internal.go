package internal

import (
	"github.com/ValentinKolb/keel/lib/db/util"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Entry Type (value or set entry with metadata)
// --------------------------------------------------------------------------

// Kind discriminates between the two entry kinds sharing one keyspace
type Kind uint8

const (
	KindValue Kind = iota
	KindSet
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "Value"
	case KindSet:
		return "Set"
	default:
		return "Unknown"
	}
}

// Entry stores either a plain value or a set of members, plus metadata.
// For KindValue entries Members is nil; for KindSet entries Value is nil.
// Members maps are treated as immutable once stored: every mutation copies
// the map first, so concurrently returned member slices stay valid.
type Entry struct {
	Kind    Kind
	Value   []byte
	Members map[string]struct{}
	Index   uint64 // Write index when this entry was created/updated
}

// CloneMembers returns a copy of the entry's member map with the given
// capacity hint. Used for copy-on-write set mutations.
func (e Entry) CloneMembers(extra int) map[string]struct{} {
	members := make(map[string]struct{}, len(e.Members)+extra)
	for m := range e.Members {
		members[m] = struct{}{}
	}
	return members
}

// --------------------------------------------------------------------------
// Shard Type (partition of the database)
// --------------------------------------------------------------------------

// Shard represents a partition of the database.
// Each shard has its own independent concurrent map.
type Shard struct {
	Data *xsync.MapOf[string, Entry] // Map of active entries (original string keys, needed for prefix scans)
}

// NewShard creates a new shard
func NewShard() *Shard {
	return &Shard{
		Data: xsync.NewMapOf[string, Entry](),
	}
}

// GetShard selects the shard responsible for the given key
func GetShard(key string, seed uint64, shards []*Shard) *Shard {
	return shards[util.HashString(key, seed)%uint64(len(shards))]
}
