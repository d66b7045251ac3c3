package lstore

import (
	"sync/atomic"

	"github.com/ValentinKolb/keel/lib/db"
	"github.com/ValentinKolb/keel/lib/store"
)

type storeImpl struct {
	db    db.KVDB
	index atomic.Uint64
}

// NewLocalStore creates a new local store instance.
// This store implementation is not distributed and only works on a single node.
// This works by using an engine from the db package directly (e.g. rowan).
func NewLocalStore(factory store.DBFactory) store.IStore {
	s := &storeImpl{
		db:    factory(),
		index: atomic.Uint64{},
	}
	// Resume above the engine's persisted write index, otherwise writes after
	// a Load would be dropped as stale.
	s.index.Store(s.db.WriteIdx())
	return s
}

// incAndGetIndex increments the index and returns the new value.
// It is used to ensure that each write operation has a unique index.
//
// Thread-safety: This method is thread-safe since it uses atomic operations.
func (s *storeImpl) incAndGetIndex() uint64 {
	return s.index.Add(1)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(key string, value []byte) error {
	if !s.db.SupportsFeature(db.FeatureSet) {
		return store.NewError(store.RetCUnsupportedOperation, "Set operation is not supported")
	}
	s.db.Set(key, value, s.incAndGetIndex())
	return nil
}

func (s *storeImpl) SetIfUnset(key string, value []byte) error {
	if !s.db.SupportsFeature(db.FeatureSetIfUnset) {
		return store.NewError(store.RetCUnsupportedOperation, "SetIfUnset operation is not supported")
	}
	s.db.SetIfUnset(key, value, s.incAndGetIndex())
	return nil
}

func (s *storeImpl) Delete(key string) error {
	if !s.db.SupportsFeature(db.FeatureDelete) {
		return store.NewError(store.RetCUnsupportedOperation, "Delete operation is not supported")
	}
	s.db.Delete(key, s.incAndGetIndex())
	return nil
}

func (s *storeImpl) Get(key string) ([]byte, bool, error) {
	if !s.db.SupportsFeature(db.FeatureGet) {
		return nil, false, store.NewError(store.RetCUnsupportedOperation, "Get operation is not supported")
	}
	val, ok := s.db.Get(key)
	return val, ok, nil
}

func (s *storeImpl) MGet(keys []string) ([][]byte, error) {
	if !s.db.SupportsFeature(db.FeatureMGet) {
		return nil, store.NewError(store.RetCUnsupportedOperation, "MGet operation is not supported")
	}
	return s.db.MGet(keys), nil
}

func (s *storeImpl) SAdd(setKey, member string) error {
	if !s.db.SupportsFeature(db.FeatureSAdd) {
		return store.NewError(store.RetCUnsupportedOperation, "SAdd operation is not supported")
	}
	s.db.SAdd(setKey, member, s.incAndGetIndex())
	return nil
}

func (s *storeImpl) SRem(setKey, member string) error {
	if !s.db.SupportsFeature(db.FeatureSRem) {
		return store.NewError(store.RetCUnsupportedOperation, "SRem operation is not supported")
	}
	s.db.SRem(setKey, member, s.incAndGetIndex())
	return nil
}

func (s *storeImpl) SMembers(setKey string) ([]string, bool, error) {
	if !s.db.SupportsFeature(db.FeatureSMembers) {
		return nil, false, store.NewError(store.RetCUnsupportedOperation, "SMembers operation is not supported")
	}
	members, ok := s.db.SMembers(setKey)
	return members, ok, nil
}

func (s *storeImpl) ScanPrefix(prefix string) ([]string, error) {
	if !s.db.SupportsFeature(db.FeatureScanPrefix) {
		return nil, store.NewError(store.RetCUnsupportedOperation, "ScanPrefix operation is not supported")
	}
	return s.db.ScanPrefix(prefix), nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return s.db.GetInfo(), nil
}
