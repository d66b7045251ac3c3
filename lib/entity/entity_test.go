package entity

import (
	"testing"

	"github.com/ValentinKolb/keel/lib/db"
	"github.com/ValentinKolb/keel/lib/db/engines/rowan"
	"github.com/ValentinKolb/keel/lib/store"
	"github.com/ValentinKolb/keel/lib/store/lstore"
)

func newTestStore() store.IStore {
	return lstore.NewLocalStore(func() db.KVDB { return rowan.NewRowanDB(nil) })
}

func TestParseType(t *testing.T) {
	for _, typ := range Types {
		parsed, err := ParseType(string(typ))
		if err != nil {
			t.Errorf("ParseType(%q) returned error: %v", typ, err)
		}
		if parsed != typ {
			t.Errorf("ParseType(%q) = %q", typ, parsed)
		}
	}
	if _, err := ParseType("nope"); err == nil {
		t.Errorf("expected error for unknown type")
	}
}

func TestSaveLoadRemove(t *testing.T) {
	s := newTestStore()

	e := Entity{
		Ref:       Ref{Type: TypeTask, ID: "task-1"},
		Status:    StatusOpen,
		Name:      "inspect the hull",
		CreatedAt: 1762128000000,
	}

	if err := Save(s, e); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, ok, err := Load(s, e.Ref)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected entity to exist")
	}
	if loaded != e {
		t.Errorf("loaded entity differs:\ngot  %+v\nwant %+v", loaded, e)
	}

	if err := Remove(s, e.Ref); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, ok, _ := Load(s, e.Ref); ok {
		t.Errorf("entity still present after Remove")
	}
}

func TestLoadMissing(t *testing.T) {
	s := newTestStore()
	_, ok, err := Load(s, Ref{Type: TypeItem, ID: "missing"})
	if err != nil {
		t.Fatalf("Load of missing entity returned error: %v", err)
	}
	if ok {
		t.Errorf("expected missing entity")
	}
}

func TestSaveInvalidID(t *testing.T) {
	s := newTestStore()
	err := Save(s, Entity{Ref: Ref{Type: TypeTask, ID: "bad:id"}})
	if err == nil {
		t.Errorf("expected error for id containing separator")
	}
}
