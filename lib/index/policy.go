package index

import "github.com/ValentinKolb/keel/lib/entity"

// The fallback chains below are policy, not incidental defaults: the order
// decides which bucket historical entities land in. Keep them here and only
// here.

// TasksCollected buckets collected tasks by the month they were collected,
// falling back to completion and creation time for records predating the
// collectedAt field.
var TasksCollected = Definition{
	EntityType: entity.TypeTask,
	Name:       "collected",
	Predicate:  func(e entity.Entity) bool { return e.Status == entity.StatusCollected },
	Chain:      Chain{FieldCollectedAt, FieldDoneAt, FieldCreatedAt, FieldNow},
}

// ItemsSold buckets sold items by sale month.
var ItemsSold = Definition{
	EntityType: entity.TypeItem,
	Name:       "sold",
	Predicate:  func(e entity.Entity) bool { return e.Status == entity.StatusSold },
	Chain:      Chain{FieldSoldAt, FieldCreatedAt, FieldNow},
}

// FinRecsArchived buckets archived financial records by archival month.
var FinRecsArchived = Definition{
	EntityType: entity.TypeFinRec,
	Name:       "archived",
	Predicate:  func(e entity.Entity) bool { return e.Status == entity.StatusArchived },
	Chain:      Chain{FieldArchivedAt, FieldCreatedAt, FieldNow},
}

// Builtin lists every registered index definition.
func Builtin() []Definition {
	return []Definition{TasksCollected, ItemsSold, FinRecsArchived}
}

// ForType returns the definitions applying to one entity type.
func ForType(t entity.Type) []Definition {
	var defs []Definition
	for _, d := range Builtin() {
		if d.EntityType == t {
			defs = append(defs, d)
		}
	}
	return defs
}

// Lookup finds a definition by entity type and index name.
func Lookup(t entity.Type, name string) (Definition, bool) {
	for _, d := range Builtin() {
		if d.EntityType == t && d.Name == name {
			return d, true
		}
	}
	return Definition{}, false
}
