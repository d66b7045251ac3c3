package testing

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/keel/lib/db"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementation
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Set", func(b *testing.B) {
		benchmarkSet(b, factory())
	})

	b.Run("SetExisting", func(b *testing.B) {
		benchmarkSetExisting(b, factory())
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory())
	})

	b.Run("SAdd", func(b *testing.B) {
		benchmarkSAdd(b, factory())
	})

	b.Run("SMembers", func(b *testing.B) {
		benchmarkSMembers(b, factory())
	})

	b.Run("ScanPrefix", func(b *testing.B) {
		benchmarkScanPrefix(b, factory())
	})

	b.Run("SaveLoad", func(b *testing.B) {
		benchmarkSaveLoad(b, factory)
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func benchmarkSet(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet)

	var idx atomic.Uint64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter)
			value := []byte(fmt.Sprintf("test-value-%d", counter))
			database.Set(key, value, idx.Add(1))
			counter++
		}
	})
}

func benchmarkSetExisting(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet)

	numKeys := 1024
	for i := 0; i < numKeys; i++ {
		database.Set(fmt.Sprintf("test-key-%d", i), []byte("seed"), uint64(i+1))
	}

	var idx atomic.Uint64
	idx.Store(uint64(numKeys))

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter%numKeys)
			database.Set(key, []byte("updated"), idx.Add(1))
			counter++
		}
	})
}

func benchmarkGet(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet)
	requireFeature(b, database, db.FeatureGet)

	numKeys := 1024
	for i := 0; i < numKeys; i++ {
		database.Set(fmt.Sprintf("test-key-%d", i), []byte(fmt.Sprintf("test-value-%d", i)), uint64(i+1))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			database.Get(fmt.Sprintf("test-key-%d", counter%numKeys))
			counter++
		}
	})
}

func benchmarkSAdd(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSAdd)

	var idx atomic.Uint64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			// spread members over many small sets, matching the reverse-index
			// and bucket usage pattern
			setKey := fmt.Sprintf("bench-set-%d", counter%256)
			database.SAdd(setKey, fmt.Sprintf("member-%d", counter), idx.Add(1))
			counter++
		}
	})
}

func benchmarkSMembers(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSAdd)
	requireFeature(b, database, db.FeatureSMembers)

	for i := 0; i < 100; i++ {
		database.SAdd("bench-set", fmt.Sprintf("member-%d", i), uint64(i+1))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			database.SMembers("bench-set")
		}
	})
}

func benchmarkScanPrefix(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet)
	requireFeature(b, database, db.FeatureScanPrefix)

	for i := 0; i < 10000; i++ {
		database.Set(fmt.Sprintf("scan:%d:%d", i%10, i), []byte("x"), uint64(i+1))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		database.ScanPrefix(fmt.Sprintf("scan:%d:", i%10))
	}
}

func benchmarkSaveLoad(b *testing.B, factory DBFactory) {
	source := factory()
	b.Cleanup(func() {
		source.Close()
	})

	requireFeature(b, source, db.FeatureSave)
	requireFeature(b, source, db.FeatureLoad)

	for i := 0; i < 10000; i++ {
		source.Set(fmt.Sprintf("save-key-%d", i), []byte(fmt.Sprintf("save-value-%d", i)), uint64(i+1))
	}

	b.Run("Save", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var buf bytes.Buffer
			if err := source.Save(&buf); err != nil {
				b.Fatalf("Save failed: %v", err)
			}
		}
	})

	b.Run("Load", func(b *testing.B) {
		var buf bytes.Buffer
		if err := source.Save(&buf); err != nil {
			b.Fatalf("Save failed: %v", err)
		}
		data := buf.Bytes()

		for i := 0; i < b.N; i++ {
			target := factory()
			if err := target.Load(bytes.NewReader(data)); err != nil {
				b.Fatalf("Load failed: %v", err)
			}
			target.Close()
		}
	})
}
