package store

import (
	"fmt"

	"github.com/ValentinKolb/keel/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() db.KVDB

// IStore is the generic interface for interacting with a key-value store.
// All write operations return only an error (nil on success),
// while read operations return the requested data along with an error (nil on success).
//
// Every operation is atomic at single-key granularity and nothing more; the
// consistency layers above (effects, links, index, txn) are designed around
// that limitation.
type IStore interface {
	// Set inserts or updates a key-value pair.
	Set(key string, value []byte) (err error)
	// SetIfUnset inserts a key-value pair if the key does not exist.
	// If the key already exists, the old value is not updated.
	// No error is returned if the key already exists.
	SetIfUnset(key string, value []byte) (err error)
	// Delete deletes a key (value or set kind). The key is removed from the store.
	Delete(key string) (err error)
	// Get returns the value for a key. The boolean return value indicates whether a value for the key was found.
	Get(key string) (value []byte, loaded bool, err error)
	// MGet returns the values for multiple keys; the result has the same
	// length and order as keys, with nil entries for missing keys.
	MGet(keys []string) (values [][]byte, err error)
	// SAdd adds a member to the set stored at setKey, creating the set if needed.
	SAdd(setKey, member string) (err error)
	// SRem removes a member from the set stored at setKey.
	SRem(setKey, member string) (err error)
	// SMembers returns all members of the set stored at setKey (sorted).
	// A missing set yields an empty slice and loaded=false.
	SMembers(setKey string) (members []string, loaded bool, err error)
	// ScanPrefix returns all keys starting with the given prefix (sorted).
	ScanPrefix(prefix string) (keys []string, err error)
	// GetDBInfo returns metadata about the database underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	errorCode := ""
	switch e.Code {
	case RetCInternalError:
		errorCode = "InternalError"
	case RetCUnsupportedOperation:
		errorCode = "UnsupportedOperation"
	case RetCInvalidOperation:
		errorCode = "InvalidOperation"
	default:
		errorCode = "Unknown"
	}

	return fmt.Sprintf("KVStoreError (code %s): %s", errorCode, e.Msg)
}

// NewError creates a new KVStoreError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
)
