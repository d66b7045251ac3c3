package links

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/keel/lib/codec"
	"github.com/ValentinKolb/keel/lib/entity"
	"github.com/ValentinKolb/keel/lib/keys"
	"github.com/ValentinKolb/keel/lib/store"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("links")

type graphImpl struct {
	store store.IStore
	codec codec.ICodec
}

func NewGraph(store store.IStore) IGraph {
	return &graphImpl{
		store: store,
		codec: codec.NewJSONCodec(),
	}
}

// tripleKey builds the uniqueness marker key of a link.
func tripleKey(lt LinkType, source, target entity.Ref) string {
	return keys.LinkTriple(string(lt), string(source.Type), source.ID, string(target.Type), target.ID)
}

func (g *graphImpl) Create(lt LinkType, source, target entity.Ref, meta Metadata) (Link, bool, error) {
	link := Link{
		ID:        uuid.NewString(),
		Type:      lt,
		Source:    source,
		Target:    target,
		Metadata:  meta,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := link.Validate(); err != nil {
		return Link{}, false, err
	}
	if !keys.Valid(source.ID) || !keys.Valid(target.ID) {
		return Link{}, false, fmt.Errorf("invalid endpoint id in %s -> %s", source, target)
	}

	// Claim the triple first. SetIfUnset is the only atomic check-and-set the
	// store offers, so the marker's value (the link id) decides which of two
	// racing creates owns the triple.
	tk := tripleKey(lt, source, target)
	if err := g.store.SetIfUnset(tk, []byte(link.ID)); err != nil {
		return Link{}, false, err
	}
	winner, found, err := g.store.Get(tk)
	if err != nil {
		return Link{}, false, err
	}
	if !found {
		return Link{}, false, fmt.Errorf("triple marker for %s vanished during create", tk)
	}

	created := string(winner) == link.ID
	if !created {
		// The triple already existed. If its canonical record is intact this
		// is the duplicate no-op case; if not, an earlier create crashed
		// half-way and we resume the write path under the winning id.
		existing, loaded, err := g.Get(string(winner))
		if err != nil {
			return Link{}, false, err
		}
		if loaded {
			return existing, false, nil
		}
		link.ID = string(winner)
	}

	data, err := g.codec.Encode(link)
	if err != nil {
		return Link{}, false, fmt.Errorf("encode link: %w", err)
	}
	if err := g.store.Set(keys.Link(link.ID), data); err != nil {
		return Link{}, false, err
	}
	if err := g.store.SAdd(keys.LinkReverse(string(source.Type), source.ID), link.ID); err != nil {
		return Link{}, false, err
	}
	if err := g.store.SAdd(keys.LinkReverse(string(target.Type), target.ID), link.ID); err != nil {
		return Link{}, false, err
	}
	return link, created, nil
}

func (g *graphImpl) Get(linkID string) (Link, bool, error) {
	data, loaded, err := g.store.Get(keys.Link(linkID))
	if err != nil || !loaded {
		return Link{}, false, err
	}
	var link Link
	if err := g.codec.Decode(data, &link); err != nil {
		return Link{}, false, fmt.Errorf("decode link %s: %w", linkID, err)
	}
	return link, true, nil
}

func (g *graphImpl) Remove(linkID string) (bool, error) {
	link, loaded, err := g.Get(linkID)
	if err != nil {
		return false, err
	}
	if !loaded {
		return false, nil
	}

	// Side entries go first so a partial removal leaves the canonical record
	// discoverable for a retry. The leftover states are exactly the ones
	// Reconcile detects.
	if err := g.store.SRem(keys.LinkReverse(string(link.Source.Type), link.Source.ID), linkID); err != nil {
		return false, err
	}
	if err := g.store.SRem(keys.LinkReverse(string(link.Target.Type), link.Target.ID), linkID); err != nil {
		return false, err
	}
	if err := g.store.Delete(tripleKey(link.Type, link.Source, link.Target)); err != nil {
		return false, err
	}
	if err := g.store.Delete(keys.Link(linkID)); err != nil {
		return false, err
	}
	return true, nil
}

func (g *graphImpl) ForEntity(ref entity.Ref) ([]Link, error) {
	ids, _, err := g.store.SMembers(keys.LinkReverse(string(ref.Type), ref.ID))
	if err != nil {
		return nil, err
	}
	return g.loadAll(ids)
}

func (g *graphImpl) All() ([]Link, error) {
	linkKeys, err := g.store.ScanPrefix(keys.LinkScanPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(linkKeys))
	for i, k := range linkKeys {
		ids[i] = k[len(keys.LinkScanPrefix):]
	}
	return g.loadAll(ids)
}

// loadAll fetches and decodes the given link ids via a single MGet.
// Missing records are skipped; that drift is Reconcile's job to surface.
func (g *graphImpl) loadAll(ids []string) ([]Link, error) {
	if len(ids) == 0 {
		return []Link{}, nil
	}
	linkKeys := make([]string, len(ids))
	for i, id := range ids {
		linkKeys[i] = keys.Link(id)
	}
	values, err := g.store.MGet(linkKeys)
	if err != nil {
		return nil, err
	}
	links := make([]Link, 0, len(values))
	for i, data := range values {
		if data == nil {
			log.Warningf("link %s referenced but not stored, skipping", ids[i])
			continue
		}
		var link Link
		if err := g.codec.Decode(data, &link); err != nil {
			return nil, fmt.Errorf("decode link %s: %w", ids[i], err)
		}
		links = append(links, link)
	}
	return links, nil
}

func (g *graphImpl) CascadeDelete(ref entity.Ref) (int, error) {
	links, err := g.ForEntity(ref)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, link := range links {
		ok, err := g.Remove(link.ID)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	// The entity's own reverse set may hold dangling ids of links whose
	// canonical record is already gone; drop the set wholesale.
	if err := g.store.Delete(keys.LinkReverse(string(ref.Type), ref.ID)); err != nil {
		return removed, err
	}
	return removed, nil
}
