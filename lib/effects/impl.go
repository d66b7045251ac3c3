package effects

import (
	"time"

	"github.com/ValentinKolb/keel/lib/entity"
	"github.com/ValentinKolb/keel/lib/keys"
	"github.com/ValentinKolb/keel/lib/store"
)

type ledgerImpl struct {
	store store.IStore
}

func NewLedger(store store.IStore) ILedger {
	return &ledgerImpl{
		store: store,
	}
}

func (l *ledgerImpl) Has(ref entity.Ref, name string) (bool, error) {
	_, ok, err := l.store.Get(keys.Effect(string(ref.Type), ref.ID, name))
	return ok, err
}

func (l *ledgerImpl) Mark(ref entity.Ref, name string) error {
	// The marker value is the mark time. Only presence carries meaning, the
	// timestamp is an aid when inspecting the store by hand.
	return l.store.Set(
		keys.Effect(string(ref.Type), ref.ID, name),
		[]byte(time.Now().UTC().Format(time.RFC3339)),
	)
}

func (l *ledgerImpl) Clear(ref entity.Ref, name string) error {
	return l.store.Delete(keys.Effect(string(ref.Type), ref.ID, name))
}

func (l *ledgerImpl) ClearAll(ref entity.Ref, namePrefix string) (int, error) {
	markers, err := l.store.ScanPrefix(keys.EffectPrefix(string(ref.Type), ref.ID, namePrefix))
	if err != nil {
		return 0, err
	}
	for i, key := range markers {
		if err := l.store.Delete(key); err != nil {
			return i, err
		}
	}
	return len(markers), nil
}
