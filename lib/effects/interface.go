package effects

import "github.com/ValentinKolb/keel/lib/entity"

// ILedger defines the interface for the idempotency effect ledger.
//
// Callers guard a side effect by checking Has before performing it and calling
// Mark only after the effect has durably succeeded (mark-after-do). A crash
// between "do" and "mark" therefore causes at most a duplicate retry attempt,
// never a lost effect; the guarded action itself must be safe to repeat.
//
// Effect names must be stable across retries of the same logical operation
// (e.g. "created", not anything time-based).
type ILedger interface {
	// Has reports whether the effect has already been applied for the entity.
	Has(ref entity.Ref, name string) (ok bool, err error)

	// Mark records the effect as applied. Marking an already-marked effect
	// overwrites the marker and is harmless.
	Mark(ref entity.Ref, name string) (err error)

	// Clear removes a single effect marker. Clearing a missing marker is a no-op.
	Clear(ref entity.Ref, name string) (err error)

	// ClearAll removes every effect marker of the entity whose name starts
	// with namePrefix. An empty prefix clears all markers of the entity.
	// This is used by the entity deletion cascade and by rollback cleanup.
	ClearAll(ref entity.Ref, namePrefix string) (cleared int, err error)
}
