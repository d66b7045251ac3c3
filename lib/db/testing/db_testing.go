package testing

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/keel/lib/db"
)

// DBFactory is a function that creates a new instance of a KVDB implementation
type DBFactory func() db.KVDB

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory())
		})

		t.Run("SetIfUnset", func(t *testing.T) {
			testSetIfUnset(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("MGet", func(t *testing.T) {
			testMGet(t, factory())
		})

		t.Run("SetOps", func(t *testing.T) {
			testSetOps(t, factory())
		})

		t.Run("ScanPrefix", func(t *testing.T) {
			testScanPrefix(t, factory())
		})

		t.Run("StaleWrites", func(t *testing.T) {
			testStaleWrites(t, factory())
		})

		t.Run("KindIsolation", func(t *testing.T) {
			testKindIsolation(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("ConcurrentUsage", func(t *testing.T) {
			testConcurrentUsage(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)

	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	database.Set(testKey, testValue1, 1)

	result, exists := database.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	database.Set(testKey, testValue2, 2)

	result, exists = database.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	_, exists = database.Get("nonexistent-key")
	if exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}

	// Get must return a copy, not a reference to the stored value
	retrievedValue, _ := database.Get(testKey)
	retrievedValue[0] = 'X'
	originalValue, _ := database.Get(testKey)
	if bytes.Equal(retrievedValue, originalValue) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}
}

func testSetIfUnset(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSetIfUnset)
	requireFeature(t, database, db.FeatureGet)

	testKey := "test-key"
	testValue1 := []byte("test-value")
	testValue2 := []byte("test-value2")

	database.SetIfUnset(testKey, testValue1, 1)

	result, exists := database.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after SetIfUnset", testKey)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	// second SetIfUnset must not overwrite
	database.SetIfUnset(testKey, testValue2, 2)

	result, _ = database.Get(testKey)
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s after second SetIfUnset, got %s", testValue1, result)
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)
	requireFeature(t, database, db.FeatureDelete)

	testKey := "delete-test-key"
	testValue := []byte("delete-test-value")

	database.Set(testKey, testValue, 1)

	_, exists := database.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}

	database.Delete(testKey, 2)

	_, exists = database.Get(testKey)
	if exists {
		t.Errorf("Expected key %s to not exist after Delete", testKey)
	}

	// deleting a set entry must work as well
	requireFeature(t, database, db.FeatureSAdd)
	database.SAdd("delete-test-set", "m1", 3)
	database.Delete("delete-test-set", 4)
	if _, exists := database.SMembers("delete-test-set"); exists {
		t.Errorf("Expected set key to not exist after Delete")
	}

	database.Delete("nonexistent-key", 5)
}

func testMGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureMGet)

	database.Set("mget-a", []byte("A"), 1)
	database.Set("mget-b", []byte("B"), 2)

	values := database.MGet([]string{"mget-a", "mget-missing", "mget-b"})
	if len(values) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(values))
	}
	if !bytes.Equal(values[0], []byte("A")) {
		t.Errorf("Expected A, got %s", values[0])
	}
	if values[1] != nil {
		t.Errorf("Expected nil for missing key, got %s", values[1])
	}
	if !bytes.Equal(values[2], []byte("B")) {
		t.Errorf("Expected B, got %s", values[2])
	}
}

func testSetOps(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSAdd)
	requireFeature(t, database, db.FeatureSRem)
	requireFeature(t, database, db.FeatureSMembers)

	setKey := "set-test-key"

	if _, exists := database.SMembers(setKey); exists {
		t.Errorf("Expected SMembers to return exists=false for nonexistent key")
	}

	database.SAdd(setKey, "m1", 1)
	database.SAdd(setKey, "m2", 2)
	database.SAdd(setKey, "m1", 3) // duplicate add is a no-op

	members, exists := database.SMembers(setKey)
	if !exists {
		t.Fatalf("Expected set %s to exist after SAdd", setKey)
	}
	if len(members) != 2 || members[0] != "m1" || members[1] != "m2" {
		t.Errorf("Expected sorted members [m1 m2], got %v", members)
	}

	database.SRem(setKey, "m1", 4)
	members, _ = database.SMembers(setKey)
	if len(members) != 1 || members[0] != "m2" {
		t.Errorf("Expected members [m2], got %v", members)
	}

	// removing a missing member is a no-op
	database.SRem(setKey, "m1", 5)
	members, _ = database.SMembers(setKey)
	if len(members) != 1 {
		t.Errorf("Expected members [m2] after no-op SRem, got %v", members)
	}

	// removing the last member removes the key
	database.SRem(setKey, "m2", 6)
	if _, exists := database.SMembers(setKey); exists {
		t.Errorf("Expected set key to vanish after last member removed")
	}

	database.SRem("nonexistent-set", "m", 7)
}

func testScanPrefix(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureSAdd)
	requireFeature(t, database, db.FeatureScanPrefix)

	database.Set("scan:a:1", []byte("1"), 1)
	database.Set("scan:a:2", []byte("2"), 2)
	database.Set("scan:b:1", []byte("3"), 3)
	database.SAdd("scan:a:set", "m", 4)

	keys := database.ScanPrefix("scan:a:")
	expected := []string{"scan:a:1", "scan:a:2", "scan:a:set"}
	if len(keys) != len(expected) {
		t.Fatalf("Expected %d keys, got %v", len(expected), keys)
	}
	for i, k := range expected {
		if keys[i] != k {
			t.Errorf("Expected key %s at position %d, got %s", k, i, keys[i])
		}
	}

	if got := database.ScanPrefix("scan:c:"); len(got) != 0 {
		t.Errorf("Expected no keys for unused prefix, got %v", got)
	}
}

func testStaleWrites(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)

	testKey := "stale-test-key"

	database.Set(testKey, []byte("new"), 100)
	database.Set(testKey, []byte("old"), 50) // stale, must be ignored

	result, _ := database.Get(testKey)
	if !bytes.Equal(result, []byte("new")) {
		t.Errorf("Expected stale write to be ignored, got %s", result)
	}

	if database.WriteIdx() != 100 {
		t.Errorf("Expected write index 100, got %d", database.WriteIdx())
	}
}

func testKindIsolation(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureSAdd)

	// SAdd on a value key is a no-op
	database.Set("kind-value", []byte("v"), 1)
	database.SAdd("kind-value", "m", 2)
	if _, exists := database.SMembers("kind-value"); exists {
		t.Errorf("SAdd on a value key must not create a set")
	}
	if v, _ := database.Get("kind-value"); !bytes.Equal(v, []byte("v")) {
		t.Errorf("SAdd on a value key must not destroy the value")
	}

	// Get on a set key reports not found
	database.SAdd("kind-set", "m", 3)
	if _, exists := database.Get("kind-set"); exists {
		t.Errorf("Get on a set key must report not found")
	}

	// SetIfUnset on a set key is a no-op
	database.SetIfUnset("kind-set", []byte("v"), 4)
	if members, _ := database.SMembers("kind-set"); len(members) != 1 {
		t.Errorf("SetIfUnset on a set key must not change it, got %v", members)
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	source := factory()
	defer source.Close()

	requireFeature(t, source, db.FeatureSave)
	requireFeature(t, source, db.FeatureLoad)

	for i := 0; i < 100; i++ {
		source.Set(fmt.Sprintf("value-%03d", i), []byte(fmt.Sprintf("v%d", i)), uint64(i+1))
	}
	for i := 0; i < 10; i++ {
		source.SAdd("save-set", fmt.Sprintf("member-%d", i), uint64(200+i))
	}

	var buf bytes.Buffer
	if err := source.Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	target := factory()
	defer target.Close()

	if err := target.Load(&buf); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("value-%03d", i)
		value, exists := target.Get(key)
		if !exists {
			t.Fatalf("Expected key %s to exist after Load", key)
		}
		if !bytes.Equal(value, []byte(fmt.Sprintf("v%d", i))) {
			t.Errorf("Wrong value for key %s after Load: %s", key, value)
		}
	}

	members, exists := target.SMembers("save-set")
	if !exists || len(members) != 10 {
		t.Errorf("Expected 10 set members after Load, got %v", members)
	}

	if target.WriteIdx() != source.WriteIdx() {
		t.Errorf("Expected write index %d after Load, got %d", source.WriteIdx(), target.WriteIdx())
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)

	// empty value
	database.Set("empty-value", []byte{}, 1)
	value, exists := database.Get("empty-value")
	if !exists {
		t.Errorf("Expected empty value key to exist")
	}
	if len(value) != 0 {
		t.Errorf("Expected empty value, got %v", value)
	}

	// empty key
	database.Set("", []byte("empty-key"), 2)
	value, exists = database.Get("")
	if !exists || !bytes.Equal(value, []byte("empty-key")) {
		t.Errorf("Expected empty key to round-trip, got %v (%v)", value, exists)
	}

	// large value
	large := make([]byte, 1<<20)
	for i := range large {
		large[i] = byte(i % 251)
	}
	database.Set("large-value", large, 3)
	value, _ = database.Get("large-value")
	if !bytes.Equal(value, large) {
		t.Errorf("Large value did not round-trip")
	}
}

func testConcurrentUsage(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)
	requireFeature(t, database, db.FeatureSAdd)

	const goroutines = 8
	const perGoroutine = 200

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				idx := uint64(g*perGoroutine + i + 1)
				database.Set(fmt.Sprintf("conc-%d-%d", g, i), []byte("x"), idx)
				database.SAdd("conc-set", fmt.Sprintf("%d-%d", g, i), idx)
			}
		}(g)
	}
	wg.Wait()

	for g := 0; g < goroutines; g++ {
		for i := 0; i < perGoroutine; i++ {
			if _, exists := database.Get(fmt.Sprintf("conc-%d-%d", g, i)); !exists {
				t.Fatalf("Missing key conc-%d-%d after concurrent writes", g, i)
			}
		}
	}

	members, _ := database.SMembers("conc-set")
	if len(members) != goroutines*perGoroutine {
		t.Errorf("Expected %d set members, got %d", goroutines*perGoroutine, len(members))
	}
}
