// Package keys provides deterministic store key construction for all
// namespaces used by the consistency layer. Callers outside this module
// must never hand-construct these strings.
//
// Namespaces:
//
//	e:{type}:{id}                                  entity record
//	log:{type}:{id}:{logID}                        log entry
//	fx:{type}:{id}:{name}                          effect marker
//	ln:{id}                                        canonical link record
//	lt:{linkType}:{srcType}:{srcID}:{dstType}:{dstID}  link uniqueness marker
//	lr:{type}:{id}                                 reverse link set per entity
//	ix:{type}:{index}:{bucket}                     secondary index bucket set
//
// All builders are pure functions with no store access. Segment values must
// not contain the ':' separator; Valid reports whether an id is usable.
package keys

import (
	"fmt"
	"strings"
	"time"
)

// Separator joins key segments. Ids containing it would corrupt prefix scans.
const Separator = ":"

// Valid reports whether an id (or any other key segment) is safe to embed in
// a store key.
func Valid(id string) bool {
	return id != "" && !strings.Contains(id, Separator)
}

// MonthToken maps a timestamp to its month bucket token in the form "MM-YY",
// e.g. "11-25" for any time in November 2025.
func MonthToken(t time.Time) string {
	return fmt.Sprintf("%02d-%02d", int(t.Month()), t.Year()%100)
}

// --------------------------------------------------------------------------
// Entity and log keys
// --------------------------------------------------------------------------

// Entity returns the key of an entity record.
func Entity(entityType, id string) string {
	return "e" + Separator + entityType + Separator + id
}

// EntityPrefix returns the prefix covering all entity records of a type.
func EntityPrefix(entityType string) string {
	return "e" + Separator + entityType + Separator
}

// Log returns the key of a single log entry of an entity.
func Log(entityType, id, logID string) string {
	return "log" + Separator + entityType + Separator + id + Separator + logID
}

// LogPrefix returns the prefix covering all log entries of an entity.
func LogPrefix(entityType, id string) string {
	return "log" + Separator + entityType + Separator + id + Separator
}

// LogTypePrefix returns the prefix covering all log entries of an entity type.
func LogTypePrefix(entityType string) string {
	return "log" + Separator + entityType + Separator
}

// --------------------------------------------------------------------------
// Effect marker keys
// --------------------------------------------------------------------------

// Effect returns the key of an effect marker.
func Effect(entityType, id, name string) string {
	return "fx" + Separator + entityType + Separator + id + Separator + name
}

// EffectPrefix returns the prefix covering all effect markers of an entity.
// An optional effect name prefix narrows the scan further.
func EffectPrefix(entityType, id, namePrefix string) string {
	return "fx" + Separator + entityType + Separator + id + Separator + namePrefix
}

// --------------------------------------------------------------------------
// Link keys
// --------------------------------------------------------------------------

// Link returns the key of a canonical link record.
func Link(linkID string) string {
	return "ln" + Separator + linkID
}

// LinkScanPrefix is the prefix covering all canonical link records.
const LinkScanPrefix = "ln" + Separator

// LinkTriple returns the key of the uniqueness marker for a
// (linkType, source, target) triple. The marker's value is the link id.
func LinkTriple(linkType, srcType, srcID, dstType, dstID string) string {
	return "lt" + Separator + linkType +
		Separator + srcType + Separator + srcID +
		Separator + dstType + Separator + dstID
}

// LinkTripleScanPrefix is the prefix covering all link uniqueness markers.
const LinkTripleScanPrefix = "lt" + Separator

// LinkReverse returns the key of the reverse-lookup set that holds the ids of
// all links an entity participates in (as either endpoint).
func LinkReverse(entityType, id string) string {
	return "lr" + Separator + entityType + Separator + id
}

// LinkReverseScanPrefix is the prefix covering all reverse-lookup sets.
const LinkReverseScanPrefix = "lr" + Separator

// --------------------------------------------------------------------------
// Secondary index keys
// --------------------------------------------------------------------------

// IndexBucket returns the key of a secondary index bucket set.
func IndexBucket(entityType, indexName, bucket string) string {
	return "ix" + Separator + entityType + Separator + indexName + Separator + bucket
}

// IndexPrefix returns the prefix covering all buckets of a secondary index.
func IndexPrefix(entityType, indexName string) string {
	return "ix" + Separator + entityType + Separator + indexName + Separator
}

// IndexBucketToken extracts the bucket token from a full index bucket key,
// given the index it belongs to. The boolean is false if the key does not
// belong to that index.
func IndexBucketToken(key, entityType, indexName string) (string, bool) {
	prefix := IndexPrefix(entityType, indexName)
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	return key[len(prefix):], true
}
