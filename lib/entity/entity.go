// Package entity defines the domain record model shared by all consistency
// layers: entity types, lifecycle status values, and the persistence helpers
// for the raw record itself. The consistency hooks around a record write
// (effects, links, indices) live in the workflow package; persisting a record
// through this package alone will let the derived state drift.
package entity

import (
	"fmt"

	"github.com/ValentinKolb/keel/lib/codec"
	"github.com/ValentinKolb/keel/lib/keys"
	"github.com/ValentinKolb/keel/lib/store"
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Type identifies a domain entity kind. The set is closed; the store key
// layout depends on these exact strings.
type Type string

const (
	TypeTask      Type = "task"
	TypeItem      Type = "item"
	TypeSale      Type = "sale"
	TypeFinRec    Type = "finrec"
	TypeSite      Type = "site"
	TypeCharacter Type = "character"
	TypePlayer    Type = "player"
)

// Types lists all entity types in stable order.
var Types = []Type{
	TypeTask, TypeItem, TypeSale, TypeFinRec, TypeSite, TypeCharacter, TypePlayer,
}

// ParseType converts a string to a Type, validating it against the closed set.
func ParseType(s string) (Type, error) {
	for _, t := range Types {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

// Status is the lifecycle state of an entity.
type Status string

const (
	StatusOpen      Status = "open"
	StatusDone      Status = "done"
	StatusCollected Status = "collected"
	StatusSold      Status = "sold"
	StatusArchived  Status = "archived"
)

// Ref identifies an entity without carrying its record.
type Ref struct {
	Type Type   `json:"type"`
	ID   string `json:"id"`
}

func (r Ref) String() string {
	return string(r.Type) + "/" + r.ID
}

// Key returns the store key of the referenced entity record.
func (r Ref) Key() string {
	return keys.Entity(string(r.Type), r.ID)
}

// Entity is the persisted domain record. All timestamps are unix milliseconds;
// zero means unset.
type Entity struct {
	Ref
	Status Status `json:"status"`
	Name   string `json:"name,omitempty"`

	CreatedAt   int64 `json:"createdAt"`
	DoneAt      int64 `json:"doneAt,omitempty"`
	CollectedAt int64 `json:"collectedAt,omitempty"`
	SoldAt      int64 `json:"soldAt,omitempty"`
	ArchivedAt  int64 `json:"archivedAt,omitempty"`
}

// --------------------------------------------------------------------------
// Persistence helpers
// --------------------------------------------------------------------------

var jsonCodec = codec.NewJSONCodec()

// Load reads and decodes an entity record. The boolean is false if no record
// exists for the ref.
func Load(s store.IStore, ref Ref) (Entity, bool, error) {
	data, loaded, err := s.Get(ref.Key())
	if err != nil || !loaded {
		return Entity{}, false, err
	}
	var e Entity
	if err := jsonCodec.Decode(data, &e); err != nil {
		return Entity{}, false, fmt.Errorf("decode entity %s: %w", ref, err)
	}
	return e, true, nil
}

// Save encodes and persists an entity record. It validates the id since a
// malformed id would corrupt the key layout.
func Save(s store.IStore, e Entity) error {
	if !keys.Valid(e.ID) {
		return fmt.Errorf("invalid entity id %q", e.ID)
	}
	data, err := jsonCodec.Encode(e)
	if err != nil {
		return fmt.Errorf("encode entity %s: %w", e.Ref, err)
	}
	return s.Set(e.Key(), data)
}

// Remove deletes an entity record. Removing a missing record is a no-op.
func Remove(s store.IStore, ref Ref) error {
	return s.Delete(ref.Key())
}
