package internal

// QueryType defines the possible queries for the state machine.
type QueryType uint8

const (
	QueryTGet        QueryType = iota // Retrieve an entry by key.
	QueryTMGet                        // Retrieve multiple entries by keys.
	QueryTSMembers                    // Retrieve all members of a set entry.
	QueryTScanPrefix                  // Retrieve all keys starting with a prefix.
	QueryTGetDBInfo                   // Retrieve metadata about the database underlying the machine.
)

func (q QueryType) String() string {
	switch q {
	case QueryTGet:
		return "Get"
	case QueryTMGet:
		return "MGet"
	case QueryTSMembers:
		return "SMembers"
	case QueryTScanPrefix:
		return "ScanPrefix"
	case QueryTGetDBInfo:
		return "GetDBInfo"
	default:
		return "Unknown"
	}
}

// Query defines the structure for lookup requests (read-only) sent via SyncRead or ReadStale
type Query struct {
	Type QueryType // The type of Query to perform.
	Key  string    // The key (or prefix) for the Query (empty for some queries).
	Keys []string  // The keys for QueryTMGet (nil for all other queries).
}

// QueryResult is the result of a QueryTGet operation.
type QueryResult struct {
	Ok    bool
	Value []byte
}

// MembersResult is the result of a QueryTSMembers operation.
// All other query results are primitive types or predefined structs
// ([][]byte, []string, db.DatabaseInfo).
type MembersResult struct {
	Ok      bool
	Members []string
}
