package links

import (
	"fmt"

	"github.com/ValentinKolb/keel/lib/entity"
)

// --------------------------------------------------------------------------
// Link Types
// --------------------------------------------------------------------------

// LinkType is a tag from a closed, enumerated set. Every tag is implicitly
// directional: its schema fixes which entity type is the source and which is
// the target, so a tag like "task-finrec" always points task -> finrec.
type LinkType string

const (
	// task as source
	LTTaskFinRec       LinkType = "task-finrec"        // task -> archive financial record
	LTTaskProducedItem LinkType = "task-produced-item" // task -> item it produced
	LTTaskConsumedItem LinkType = "task-consumed-item" // task -> item it consumed
	LTTaskSite         LinkType = "task-site"          // task -> site it belongs to
	LTTaskCharacter    LinkType = "task-character"     // task -> assigned character
	LTTaskPlayer       LinkType = "task-player"        // task -> responsible player
	LTTaskSale         LinkType = "task-sale"          // task -> sale it fulfilled
	LTTaskParent       LinkType = "task-parent"        // task -> parent task

	// item as source
	LTItemSale      LinkType = "item-sale"      // item -> sale it was sold in
	LTItemSite      LinkType = "item-site"      // item -> site it is stored at
	LTItemPlayer    LinkType = "item-player"    // item -> owning player
	LTItemCharacter LinkType = "item-character" // item -> holding character
	LTItemFinRec    LinkType = "item-finrec"    // item -> financial record
	LTItemParent    LinkType = "item-parent"    // item -> item it is a component of

	// sale as source
	LTSaleFinRec    LinkType = "sale-finrec"    // sale -> financial record
	LTSalePlayer    LinkType = "sale-player"    // sale -> buying player
	LTSaleCharacter LinkType = "sale-character" // sale -> selling character
	LTSaleSite      LinkType = "sale-site"      // sale -> site of sale
	LTSaleTask      LinkType = "sale-task"      // sale -> task it triggered
	LTSaleParent    LinkType = "sale-parent"    // sale -> original sale (refund chain)

	// finrec as source
	LTFinRecSite   LinkType = "finrec-site"   // finrec -> site it is booked against
	LTFinRecPlayer LinkType = "finrec-player" // finrec -> player it is booked against

	// site as source
	LTSiteParent LinkType = "site-parent" // site -> parent site
	LTSitePlayer LinkType = "site-player" // site -> owning player
	LTSiteFinRec LinkType = "site-finrec" // site -> upkeep financial record

	// character as source
	LTCharacterPlayer LinkType = "character-player" // character -> controlling player
	LTCharacterSite   LinkType = "character-site"   // character -> home site
	LTCharacterParent LinkType = "character-parent" // character -> mentor character
	LTCharacterFinRec LinkType = "character-finrec" // character -> wage financial record

	// player as source
	LTPlayerCharacter LinkType = "player-character" // player -> main character
	LTPlayerFinRec    LinkType = "player-finrec"    // player -> balance financial record
)

// schema fixes the endpoint entity types of a LinkType.
type schema struct {
	Source entity.Type
	Target entity.Type
}

// linkSchemas is the single source of truth for link directionality.
var linkSchemas = map[LinkType]schema{
	LTTaskFinRec:       {entity.TypeTask, entity.TypeFinRec},
	LTTaskProducedItem: {entity.TypeTask, entity.TypeItem},
	LTTaskConsumedItem: {entity.TypeTask, entity.TypeItem},
	LTTaskSite:         {entity.TypeTask, entity.TypeSite},
	LTTaskCharacter:    {entity.TypeTask, entity.TypeCharacter},
	LTTaskPlayer:       {entity.TypeTask, entity.TypePlayer},
	LTTaskSale:         {entity.TypeTask, entity.TypeSale},
	LTTaskParent:       {entity.TypeTask, entity.TypeTask},

	LTItemSale:      {entity.TypeItem, entity.TypeSale},
	LTItemSite:      {entity.TypeItem, entity.TypeSite},
	LTItemPlayer:    {entity.TypeItem, entity.TypePlayer},
	LTItemCharacter: {entity.TypeItem, entity.TypeCharacter},
	LTItemFinRec:    {entity.TypeItem, entity.TypeFinRec},
	LTItemParent:    {entity.TypeItem, entity.TypeItem},

	LTSaleFinRec:    {entity.TypeSale, entity.TypeFinRec},
	LTSalePlayer:    {entity.TypeSale, entity.TypePlayer},
	LTSaleCharacter: {entity.TypeSale, entity.TypeCharacter},
	LTSaleSite:      {entity.TypeSale, entity.TypeSite},
	LTSaleTask:      {entity.TypeSale, entity.TypeTask},
	LTSaleParent:    {entity.TypeSale, entity.TypeSale},

	LTFinRecSite:   {entity.TypeFinRec, entity.TypeSite},
	LTFinRecPlayer: {entity.TypeFinRec, entity.TypePlayer},

	LTSiteParent: {entity.TypeSite, entity.TypeSite},
	LTSitePlayer: {entity.TypeSite, entity.TypePlayer},
	LTSiteFinRec: {entity.TypeSite, entity.TypeFinRec},

	LTCharacterPlayer: {entity.TypeCharacter, entity.TypePlayer},
	LTCharacterSite:   {entity.TypeCharacter, entity.TypeSite},
	LTCharacterParent: {entity.TypeCharacter, entity.TypeCharacter},
	LTCharacterFinRec: {entity.TypeCharacter, entity.TypeFinRec},

	LTPlayerCharacter: {entity.TypePlayer, entity.TypeCharacter},
	LTPlayerFinRec:    {entity.TypePlayer, entity.TypeFinRec},
}

// Schema returns the endpoint types of a LinkType and whether the type is known.
func Schema(lt LinkType) (source, target entity.Type, ok bool) {
	s, ok := linkSchemas[lt]
	return s.Source, s.Target, ok
}

// --------------------------------------------------------------------------
// Link record
// --------------------------------------------------------------------------

// Metadata carries the typed per-link payload. Which fields are meaningful
// depends on the LinkType (e.g. Quantity for task-produced-item, Amount for
// sale-finrec); unused fields stay zero and are omitted from the record.
type Metadata struct {
	Quantity int64  `json:"quantity,omitempty"`
	Amount   int64  `json:"amount,omitempty"`
	Role     string `json:"role,omitempty"`
	Note     string `json:"note,omitempty"`
}

// Link is a typed, directed edge between two entities. Links are never
// mutated in place; a metadata change removes and recreates the link.
type Link struct {
	ID        string     `json:"id"`
	Type      LinkType   `json:"type"`
	Source    entity.Ref `json:"source"`
	Target    entity.Ref `json:"target"`
	Metadata  Metadata   `json:"metadata"`
	CreatedAt int64      `json:"createdAt"` // unix ms
}

// Validate checks the link against its type's schema.
func (l *Link) Validate() error {
	s, ok := linkSchemas[l.Type]
	if !ok {
		return fmt.Errorf("unknown link type %q", l.Type)
	}
	if l.Source.Type != s.Source || l.Target.Type != s.Target {
		return fmt.Errorf("link type %s requires %s -> %s, got %s -> %s",
			l.Type, s.Source, s.Target, l.Source.Type, l.Target.Type)
	}
	return nil
}

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IGraph defines the interface for the relationship graph.
//
// Every link is persisted as four store entries: the canonical record, a
// uniqueness marker for its (type, source, target) triple, and one
// reverse-lookup set entry per endpoint. These writes are not atomic as a
// group; the small inconsistency window is accepted and healed by the
// idempotent create/remove semantics plus Reconcile/Repair.
type IGraph interface {
	// Create inserts a link. Creation is idempotent: if a link with the same
	// (type, source, target) triple already exists, no new record is written
	// and the existing link is returned. The returned boolean is true if a
	// new link was created.
	Create(lt LinkType, source, target entity.Ref, meta Metadata) (link Link, created bool, err error)

	// Remove deletes a link and its side entries. Removing an unknown id is
	// a no-op; the boolean reports whether a link was removed.
	Remove(linkID string) (removed bool, err error)

	// Get loads a single link by id.
	Get(linkID string) (link Link, loaded bool, err error)

	// ForEntity returns all links the entity participates in, as either endpoint.
	ForEntity(ref entity.Ref) (links []Link, err error)

	// All returns every link in the store.
	All() (links []Link, err error)

	// CascadeDelete removes every link the entity participates in. It is
	// called exclusively by the entity deletion workflow; nothing else in
	// the system auto-deletes links.
	CascadeDelete(ref entity.Ref) (removed int, err error)

	// Reconcile scans for integrity drift between canonical records and
	// their side entries without writing anything.
	Reconcile() (report Report, err error)

	// Repair applies the corrections found by Reconcile. With apply=false it
	// only counts what would change. Safe to re-run and to run concurrently
	// with normal traffic.
	Repair(apply bool) (counts RepairCounts, err error)
}

// --------------------------------------------------------------------------
// Reconciliation results
// --------------------------------------------------------------------------

// ReverseEntry locates one member of a reverse-lookup set.
type ReverseEntry struct {
	SetKey string `json:"setKey"`
	LinkID string `json:"linkId"`
}

// Report lists the integrity drift found by Reconcile.
type Report struct {
	// MissingReverse are reverse entries a canonical link should have but doesn't.
	MissingReverse []ReverseEntry `json:"missingReverse"`
	// DanglingReverse are reverse entries pointing to a missing canonical link.
	DanglingReverse []ReverseEntry `json:"danglingReverse"`
	// MissingTriples are canonical link ids without a uniqueness marker.
	MissingTriples []string `json:"missingTriples"`
	// OrphanTriples are uniqueness marker keys without a canonical link.
	OrphanTriples []string `json:"orphanTriples"`
}

// Clean reports whether no drift was found.
func (r Report) Clean() bool {
	return len(r.MissingReverse) == 0 && len(r.DanglingReverse) == 0 &&
		len(r.MissingTriples) == 0 && len(r.OrphanTriples) == 0
}

// RepairCounts summarizes a Repair run.
type RepairCounts struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
}
