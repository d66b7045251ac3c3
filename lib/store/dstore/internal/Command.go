package internal

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/keel/lib/db"
)

// CommandType defines the possible operations for the state machine.
type CommandType uint8

const (
	CommandTSet        CommandType = iota // Insert or update an entry.
	CommandTSetIfUnset                    // Insert an entry if it does not exist.
	CommandTDelete                        // Delete an entry (value or set kind).
	CommandTSAdd                          // Add a member to a set entry.
	CommandTSRem                          // Remove a member from a set entry.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTSet:
		return "Set"
	case CommandTSetIfUnset:
		return "SetIfUnset"
	case CommandTDelete:
		return "Delete"
	case CommandTSAdd:
		return "SAdd"
	case CommandTSRem:
		return "SRem"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// ToDBFeature converts a CommandType to the corresponding db.Feature.
// This can be used for checking if the database supports a certain operation.
func (ct CommandType) ToDBFeature() (db.Feature, error) {
	switch ct {
	case CommandTSet:
		return db.FeatureSet, nil
	case CommandTSetIfUnset:
		return db.FeatureSetIfUnset, nil
	case CommandTDelete:
		return db.FeatureDelete, nil
	case CommandTSAdd:
		return db.FeatureSAdd, nil
	case CommandTSRem:
		return db.FeatureSRem, nil
	default:
		return 0, fmt.Errorf("unknown command type %d", ct)
	}
}

// Command represents a command to be executed by the state machine (a single entry in the raft log)
type Command struct {
	Type   CommandType
	Key    string
	Member string // set member for SAdd/SRem, empty otherwise
	Value  []byte
}

// SizeBytes returns the exact number of bytes needed to serialize this command
func (command *Command) SizeBytes() int {
	size := 1 + 4 + len(command.Key) + 4 + len(command.Member) // Type + KeyLen + Key + MemberLen + Member
	if command.Value != nil {
		size += len(command.Value)
	}
	return size
}

// Serialize serializes a command into a byte array with the format:
// 1 byte for operation type,
// 4 bytes for key length (big endian),
// N bytes for key data,
// 4 bytes for member length (big endian),
// N bytes for member data,
// N bytes for value data (optional)
func (command *Command) Serialize() []byte {
	// Use SizeBytes to calculate the total size needed
	totalSize := command.SizeBytes()

	result := make([]byte, totalSize)

	// Set operation type
	result[0] = byte(command.Type)

	// Set key length (4 bytes, big endian) and key bytes
	binary.BigEndian.PutUint32(result[1:5], uint32(len(command.Key)))
	offset := 5 + copy(result[5:], command.Key)

	// Set member length (4 bytes, big endian) and member bytes
	binary.BigEndian.PutUint32(result[offset:offset+4], uint32(len(command.Member)))
	offset += 4
	offset += copy(result[offset:], command.Member)

	// Copy value if present
	if command.Value != nil {
		copy(result[offset:], command.Value)
	}

	return result
}

// Deserialize extracts all Command fields from a byte array.
func (command *Command) Deserialize(data []byte) error {
	// Minimum size: 1 (Type) + 4 (KeyLen) + 4 (MemberLen) = 9 bytes
	if len(data) < 9 {
		return fmt.Errorf("data too short for command")
	}

	// Extract operation type
	command.Type = CommandType(data[0])

	// Extract key length and key
	keyLen := binary.BigEndian.Uint32(data[1:5])
	if len(data) < 5+int(keyLen)+4 {
		return fmt.Errorf("data too short for key of length %d", keyLen)
	}
	command.Key = string(data[5 : 5+keyLen])
	offset := 5 + int(keyLen)

	// Extract member length and member
	memberLen := binary.BigEndian.Uint32(data[offset : offset+4])
	offset += 4
	if len(data) < offset+int(memberLen) {
		return fmt.Errorf("data too short for member of length %d", memberLen)
	}
	command.Member = string(data[offset : offset+int(memberLen)])
	offset += int(memberLen)

	// Extract value if present
	if len(data) > offset {
		valueLen := len(data) - offset
		// Reuse existing buffer if possible to reduce allocations
		if command.Value == nil || cap(command.Value) < valueLen {
			command.Value = make([]byte, valueLen)
		} else {
			command.Value = command.Value[:valueLen]
		}
		copy(command.Value, data[offset:])
	} else {
		command.Value = nil
	}

	return nil
}
