package rowan

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/keel/lib/db"
	"github.com/ValentinKolb/keel/lib/db/engines/rowan/internal"
	"github.com/ValentinKolb/keel/lib/db/util"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// Constants for database behavior and structure
const (
	magicNum     = "ROWANDB\x00" // File format identifier
	rowanVersion = 1             // Database version
)

// --------------------------------------------------------------------------
// Core Rowan database structure
// --------------------------------------------------------------------------

// rowanImpl implements the db.KVDB interface with sharded, string-keyed data.
// Unlike hash-only engines it keeps the original keys, which makes prefix
// scans possible - the reconciliation and snapshot layers depend on that.
type rowanImpl struct {
	numShards int               // Number of shards
	seed      uint64            // Seed for the shard-selection hash
	shards    []*internal.Shard // Array of shards
	currIndex atomic.Uint64     // Current logical write index
}

// DBOptions configures the rowanImpl behavior during initialization
type DBOptions struct {
	NumShards int // Number of shards (0 = auto)
}

// DefaultOptions returns the default rowanImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards: runtime.NumCPU(),
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewRowanDB creates a new RowanDB instance with the specified options (optional)
//
// Thread-safety: This function is not thread-safe and should only be called once
// during initialization.
func NewRowanDB(opts *DBOptions) db.KVDB {

	// Generate default options if not provided
	if opts == nil || opts.NumShards <= 0 {
		opts = DefaultOptions()
	}

	// Generate a seed for this rowanImpl instance
	seed := util.GenerateSeed()

	// Create shards
	shards := make([]*internal.Shard, opts.NumShards)
	for i := 0; i < opts.NumShards; i++ {
		shards[i] = internal.NewShard()
	}

	newDB := &rowanImpl{
		numShards: opts.NumShards,
		seed:      seed,
		shards:    shards,
	}
	newDB.currIndex.Store(0)

	return newDB
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// compute is a helper method for shared implementation between all write
// operations. It handles write index bookkeeping, shard selection and
// ignoring stale writes.
//
// The provided fn receives the old entry (and whether it existed) and returns
// the entry to store. The bool return value indicates whether the entry
// should be deleted instead.
//
// Thread-safety: This function uses the shard map's Compute for atomicity.
func (r *rowanImpl) compute(key string, writeIndex uint64, fn func(old internal.Entry, loaded bool) (entry internal.Entry, delete bool)) {

	// update the current index
	r.SetWriteIdx(writeIndex)

	shard := internal.GetShard(key, r.seed, r.shards)

	shard.Data.Compute(key, func(oldEntry internal.Entry, oldEntryExists bool) (internal.Entry, bool) {
		// Stale writes are ignored
		if oldEntryExists && writeIndex < oldEntry.Index {
			return oldEntry, false
		}

		entry, del := fn(oldEntry, oldEntryExists)
		if del {
			return oldEntry, true
		}
		entry.Index = writeIndex
		return entry, false
	})
}

// Set inserts or updates a value entry with the given key.
// If the key already exists, the old value is overwritten (a set entry is
// replaced by the value entry).
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (r *rowanImpl) Set(key string, value []byte, writeIndex uint64) {
	// Copy value to prevent memory corruption
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	r.compute(key, writeIndex, func(_ internal.Entry, _ bool) (internal.Entry, bool) {
		return internal.Entry{Kind: internal.KindValue, Value: valueCopy}, false
	})
}

// SetIfUnset inserts a value entry with the given key.
// If the key already exists (value or set kind), nothing is changed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (r *rowanImpl) SetIfUnset(key string, value []byte, writeIndex uint64) {
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	r.compute(key, writeIndex, func(old internal.Entry, loaded bool) (internal.Entry, bool) {
		if loaded {
			return old, false
		}
		return internal.Entry{Kind: internal.KindValue, Value: valueCopy}, false
	})
}

// Delete removes an entry (value or set) with the specified key.
// The key is removed from the database and not findable anymore. This change is immediate.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (r *rowanImpl) Delete(key string, writeIndex uint64) {
	r.compute(key, writeIndex, func(old internal.Entry, loaded bool) (internal.Entry, bool) {
		// delete also when the key does not exist, else Compute would create it
		return old, true
	})
}

// SAdd adds a member to the set stored at the given key, creating the set if
// the key does not exist. Adding an existing member is a no-op. SAdd on a
// value-kind key is ignored (kind mismatches are caller bugs, the key
// namespaces in the keys package keep the kinds apart).
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (r *rowanImpl) SAdd(key, member string, writeIndex uint64) {
	r.compute(key, writeIndex, func(old internal.Entry, loaded bool) (internal.Entry, bool) {
		if loaded && old.Kind != internal.KindSet {
			return old, false
		}
		if _, ok := old.Members[member]; ok {
			return old, false
		}
		members := old.CloneMembers(1)
		members[member] = struct{}{}
		return internal.Entry{Kind: internal.KindSet, Members: members}, false
	})
}

// SRem removes a member from the set stored at the given key.
// Removing the last member removes the key itself; removing a missing member
// or operating on a missing / value-kind key is a no-op.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (r *rowanImpl) SRem(key, member string, writeIndex uint64) {
	r.compute(key, writeIndex, func(old internal.Entry, loaded bool) (internal.Entry, bool) {
		if !loaded {
			return old, true // delete, else Compute would create the key
		}
		if old.Kind != internal.KindSet {
			return old, false
		}
		if _, ok := old.Members[member]; !ok {
			return old, false
		}
		if len(old.Members) == 1 {
			return old, true
		}
		members := old.CloneMembers(0)
		delete(members, member)
		return internal.Entry{Kind: internal.KindSet, Members: members}, false
	})
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get retrieves a value for a key.
// The boolean indicates whether a value entry for the key was found.
// The returned value is a copy of the stored data and therefore safe to use and modify.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (r *rowanImpl) Get(key string) ([]byte, bool) {
	shard := internal.GetShard(key, r.seed, r.shards)

	entry, ok := shard.Data.Load(key)
	if !ok || entry.Kind != internal.KindValue {
		return nil, false
	}

	data := make([]byte, len(entry.Value))
	copy(data, entry.Value)
	return data, true
}

// MGet retrieves the values for multiple keys in one call.
// Missing keys and set-kind keys yield a nil entry at the matching position.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (r *rowanImpl) MGet(keys []string) [][]byte {
	values := make([][]byte, len(keys))
	for i, key := range keys {
		if v, ok := r.Get(key); ok {
			values[i] = v
		}
	}
	return values
}

// SMembers returns all members of the set stored at the given key, sorted
// lexicographically. The boolean indicates whether a set entry was found.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
// The member maps are copy-on-write, so the returned slice is stable.
func (r *rowanImpl) SMembers(key string) ([]string, bool) {
	shard := internal.GetShard(key, r.seed, r.shards)

	entry, ok := shard.Data.Load(key)
	if !ok || entry.Kind != internal.KindSet {
		return nil, false
	}

	members := make([]string, 0, len(entry.Members))
	for m := range entry.Members {
		members = append(members, m)
	}
	sort.Strings(members)
	return members, true
}

// ScanPrefix returns all keys starting with the given prefix, sorted
// lexicographically. An empty prefix returns every key.
//
// Thread-safety: This method is thread-safe. The scan is fuzzy with respect
// to concurrent writes: it sees some state of every shard, not a point-in-time
// snapshot of the whole database.
func (r *rowanImpl) ScanPrefix(prefix string) []string {
	var keys []string
	for _, shard := range r.shards {
		shard.Data.Range(func(key string, _ internal.Entry) bool {
			if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
				keys = append(keys, key)
			}
			return true
		})
	}
	sort.Strings(keys)
	return keys
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save persists the database to the writer.
//
// Thread-safety: This function allows concurrent operations with all other
// functions except Load. It takes fuzzy snapshots of the data without
// blocking modifications.
func (r *rowanImpl) Save(w io.Writer) error {
	bw := bufio.NewWriterSize(w, 1024*1024) // 1 MB buffer

	type entryToSave struct {
		key   string
		entry internal.Entry
	}

	var entries []entryToSave
	for _, shard := range r.shards {
		shard.Data.Range(func(key string, entry internal.Entry) bool {
			entries = append(entries, entryToSave{key, entry})
			return true
		})
	}

	// Write file header
	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(rowanVersion)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, r.seed); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(entries))); err != nil {
		return err
	}

	writeString := func(s string) error {
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(s))); err != nil {
			return err
		}
		_, err := bw.WriteString(s)
		return err
	}

	for _, item := range entries {
		if err := binary.Write(bw, binary.LittleEndian, uint8(item.entry.Kind)); err != nil {
			return err
		}
		if err := writeString(item.key); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, item.entry.Index); err != nil {
			return err
		}

		switch item.entry.Kind {
		case internal.KindValue:
			if err := binary.Write(bw, binary.LittleEndian, uint32(len(item.entry.Value))); err != nil {
				return err
			}
			if _, err := bw.Write(item.entry.Value); err != nil {
				return err
			}
		case internal.KindSet:
			if err := binary.Write(bw, binary.LittleEndian, uint32(len(item.entry.Members))); err != nil {
				return err
			}
			// sorted for a deterministic file
			members := make([]string, 0, len(item.entry.Members))
			for m := range item.entry.Members {
				members = append(members, m)
			}
			sort.Strings(members)
			for _, m := range members {
				if err := writeString(m); err != nil {
					return err
				}
			}
		}
	}

	return bw.Flush()
}

// Load restores a database from the reader.
//
// Thread-safety: This function is not thread-safe and should not be called concurrently
func (r *rowanImpl) Load(reader io.Reader) error {
	br := bufio.NewReaderSize(reader, 1024*1024) // 1 MB buffer

	// Read and verify magic number
	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return err
	}
	if string(magicBytes) != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	// Read and verify version
	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if int(version) != rowanVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, rowanVersion)
	}

	// Read seed
	var seed uint64
	if err := binary.Read(br, binary.LittleEndian, &seed); err != nil {
		return err
	}

	// Recreate empty shards
	shards := make([]*internal.Shard, r.numShards)
	for i := 0; i < r.numShards; i++ {
		shards[i] = internal.NewShard()
	}
	r.shards = shards
	r.seed = seed
	r.currIndex.Store(0)

	readString := func() (string, error) {
		var length uint32
		if err := binary.Read(br, binary.LittleEndian, &length); err != nil {
			return "", err
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(br, buf); err != nil {
			return "", err
		}
		return string(buf), nil
	}

	// Read entry count
	var count uint64
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	// Track the highest index seen during load
	var maxIndex uint64

	for i := uint64(0); i < count; i++ {
		var kind uint8
		if err := binary.Read(br, binary.LittleEndian, &kind); err != nil {
			return err
		}

		key, err := readString()
		if err != nil {
			return err
		}

		var index uint64
		if err := binary.Read(br, binary.LittleEndian, &index); err != nil {
			return err
		}
		if index > maxIndex {
			maxIndex = index
		}

		entry := internal.Entry{Kind: internal.Kind(kind), Index: index}
		switch entry.Kind {
		case internal.KindValue:
			var valueLen uint32
			if err := binary.Read(br, binary.LittleEndian, &valueLen); err != nil {
				return err
			}
			entry.Value = make([]byte, valueLen)
			if _, err := io.ReadFull(br, entry.Value); err != nil {
				return err
			}
		case internal.KindSet:
			var memberCount uint32
			if err := binary.Read(br, binary.LittleEndian, &memberCount); err != nil {
				return err
			}
			entry.Members = make(map[string]struct{}, memberCount)
			for j := uint32(0); j < memberCount; j++ {
				member, err := readString()
				if err != nil {
					return err
				}
				entry.Members[member] = struct{}{}
			}
		default:
			return fmt.Errorf("unknown entry kind %d for key %q", kind, key)
		}

		internal.GetShard(key, r.seed, r.shards).Data.Store(key, entry)
	}

	// Update current index to the highest seen during load
	r.SetWriteIdx(maxIndex)

	return nil
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (r *rowanImpl) GetInfo() db.DatabaseInfo {

	// create a size histogram for the info
	histogram := util.NewSizeHistogram()
	samplesPerShard := 100
	wg := sync.WaitGroup{}
	wg.Add(len(r.shards))

	mu := sync.Mutex{}
	valueEntries := 0
	setEntries := 0
	shardSizes := make([]float64, len(r.shards))

	// concurrently collect samples from all shards
	for shardIndex, shard := range r.shards {
		go func(i int, s *internal.Shard) {
			defer wg.Done()
			count := 0
			values := 0
			sets := 0
			s.Data.Range(func(key string, entry internal.Entry) bool {
				switch entry.Kind {
				case internal.KindValue:
					values++
					histogram.AddSample(len(entry.Value))
				case internal.KindSet:
					sets++
					size := 0
					for m := range entry.Members {
						size += len(m)
					}
					histogram.AddSample(size)
				}

				// only sample a few entries per shard
				count++
				return count < samplesPerShard
			})

			mu.Lock()
			defer mu.Unlock()

			valueEntries += values
			setEntries += sets
			shardSizes[i] = float64(s.Data.Size())
		}(shardIndex, shard)
	}
	wg.Wait()

	// weighted size estimate (60% median, 40% average)
	entryOverhead := 24 // key header, kind, index
	medianSize := histogram.MedianEstimate() + entryOverhead
	avgSize := histogram.AverageSize() + entryOverhead
	sizeBytes := (medianSize*60 + avgSize*40) / 100

	// Metadata for this specific database implementation
	meta := &struct {
		CurrentWriteIndex uint64                 `json:"current_write_index"`
		ShardCount        int                    `json:"shard_count"`
		ShardDistribution util.DistributionStats `json:"shard_distribution"`
		SampledValues     int                    `json:"sampled_values"`
		SampledSets       int                    `json:"sampled_sets"`
		Info              string                 `json:"info"`
	}{
		CurrentWriteIndex: r.currIndex.Load(),
		ShardCount:        len(r.shards),
		ShardDistribution: util.NewDistributionStats(shardSizes),
		SampledValues:     valueEntries,
		SampledSets:       setEntries,
		Info:              "All values (including SizeBytes) are estimates and may vary depending on the database state.",
	}

	return db.DatabaseInfo{
		SizeBytes: sizeBytes,
		DbType:    db.ImplRowan,
		SupportedFeatures: []db.Feature{
			db.FeatureSet, db.FeatureSetIfUnset, db.FeatureDelete,
			db.FeatureSAdd, db.FeatureSRem, db.FeatureSMembers,
			db.FeatureGet, db.FeatureMGet, db.FeatureScanPrefix,
			db.FeatureSave, db.FeatureLoad,
		},
		Metadata: meta,
	}
}

// SupportsFeature checks if this implementation supports a specific KVDB feature
func (r *rowanImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeatureSet |
		db.FeatureSetIfUnset |
		db.FeatureDelete |
		db.FeatureSAdd |
		db.FeatureSRem |
		db.FeatureSMembers |
		db.FeatureGet |
		db.FeatureMGet |
		db.FeatureScanPrefix |
		db.FeatureSave |
		db.FeatureLoad
	return supportedFeatures&feature == feature
}

// Close releases the database. Rowan holds no background resources.
func (r *rowanImpl) Close() error {
	return nil
}

// --------------------------------------------------------------------------
// Index and Timestamp Management
// --------------------------------------------------------------------------

// SetWriteIdx safely updates the current index.
// It only updates if the new index is greater than the current one.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
// It uses atomic operations to ensure that the index only increases.
func (r *rowanImpl) SetWriteIdx(newIdx uint64) {
	for {
		currIdx := r.currIndex.Load()
		if newIdx <= currIdx {
			return
		}
		if r.currIndex.CompareAndSwap(currIdx, newIdx) {
			return
		}
	}
}

// WriteIdx returns the current index of the database
func (r *rowanImpl) WriteIdx() uint64 {
	return r.currIndex.Load()
}
