package rowan

import (
	"testing"

	"github.com/ValentinKolb/keel/lib/db"
	dbtesting "github.com/ValentinKolb/keel/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "RowanDB", func() db.KVDB {
		return NewRowanDB(nil)
	})
}

func Benchmark(t *testing.B) {
	dbtesting.RunKVDBBenchmarks(t, "RowanDB", func() db.KVDB {
		return NewRowanDB(nil)
	})
}
