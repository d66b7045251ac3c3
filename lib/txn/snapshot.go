package txn

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/keel/lib/codec"
)

// Entry is the captured state of a single store key. Present distinguishes
// "key existed" from "key was absent", and IsSet distinguishes a membership
// set from a plain value; all three shapes must be restorable verbatim.
type Entry struct {
	Present bool
	IsSet   bool
	Value   []byte
	Members []string
}

// Snapshot is a captured copy of every key under the manager's scope at the
// time Capture ran. It is exclusively owned by one workflow invocation:
// discarded on success, consumed destructively on rollback.
//
// This is a best-effort snapshot, not a point-in-time consistent one. The
// store has no multi-key read transaction, so keys are read one after
// another; concurrent external writes during the capture window may be
// partially included. The rollback guarantee therefore covers the workflow's
// own writes, nothing more.
type Snapshot struct {
	Entries map[string]Entry
}

// Dump encodes the snapshot to a temp file for manual repair after a failed
// rollback. It returns the file path.
func (s *Snapshot) Dump(c codec.ICodec) (string, error) {
	data, err := c.Encode(s)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	f, err := os.CreateTemp("", "keel-snapshot-*.gob")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return "", err
	}
	return f.Name(), nil
}
