package internal

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// TestSizeBytes tests the SizeBytes method
func TestSizeBytes(t *testing.T) {
	tests := []struct {
		name     string
		command  Command
		expected int
	}{
		{
			name: "Command with key and value",
			command: Command{
				Type:  CommandTSet,
				Key:   "testkey",
				Value: []byte("testvalue"),
			},
			expected: 1 + 4 + 7 + 4 + 0 + 9, // Type + KeyLen + Key + MemberLen + Member + Value
		},
		{
			name: "Command with key and member",
			command: Command{
				Type:   CommandTSAdd,
				Key:    "ix:task:collected:11-25",
				Member: "task-1",
			},
			expected: 1 + 4 + 23 + 4 + 6, // Type + KeyLen + Key + MemberLen + Member
		},
		{
			name: "Command with empty key and value",
			command: Command{
				Type:  CommandTSet,
				Key:   "",
				Value: []byte("testvalue"),
			},
			expected: 1 + 4 + 0 + 4 + 0 + 9, // Type + KeyLen + Key + MemberLen + Member + Value
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size := tt.command.SizeBytes()
			if size != tt.expected {
				t.Errorf("SizeBytes() = %v, want %v", size, tt.expected)
			}
		})
	}
}

// TestSerializeDeserialize tests both Serialize and Deserialize methods
func TestSerializeDeserialize(t *testing.T) {
	tests := []struct {
		name    string
		command Command
	}{
		{
			name: "Standard command with value",
			command: Command{
				Type:  CommandTSet,
				Key:   "testkey",
				Value: []byte("testvalue"),
			},
		},
		{
			name: "Command without value",
			command: Command{
				Type:  CommandTDelete,
				Key:   "testkey",
				Value: nil,
			},
		},
		{
			name: "Command with member",
			command: Command{
				Type:   CommandTSAdd,
				Key:    "lr:task:task-1",
				Member: "link-id-42",
			},
		},
		{
			name: "Remove command with member",
			command: Command{
				Type:   CommandTSRem,
				Key:    "lr:task:task-1",
				Member: "link-id-42",
			},
		},
		{
			name: "Command with empty key",
			command: Command{
				Type:  CommandTSet,
				Key:   "",
				Value: []byte("testvalue"),
			},
		},
		{
			name: "Command with empty value",
			command: Command{
				Type:  CommandTSet,
				Key:   "testkey",
				Value: []byte{},
			},
		},
		{
			name: "Command with binary value",
			command: Command{
				Type:  CommandTSetIfUnset,
				Key:   "binary",
				Value: []byte{0, 1, 2, 3, 254, 255},
			},
		},
		{
			name: "Command with Unicode key",
			command: Command{
				Type:  CommandTSet,
				Key:   "你好世界", // Hello World in Chinese
				Value: []byte("unicode test"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Serialize
			data := tt.command.Serialize()

			// Deserialize into a new command
			var newCommand Command
			err := newCommand.Deserialize(data)
			if err != nil {
				t.Fatalf("Deserialize() error = %v", err)
			}

			// Compare original and deserialized command
			if newCommand.Type != tt.command.Type {
				t.Errorf("Type mismatch: got %v, want %v", newCommand.Type, tt.command.Type)
			}
			if newCommand.Key != tt.command.Key {
				t.Errorf("Key mismatch: got %q, want %q", newCommand.Key, tt.command.Key)
			}
			if newCommand.Member != tt.command.Member {
				t.Errorf("Member mismatch: got %q, want %q", newCommand.Member, tt.command.Member)
			}

			// Value comparison handling nil case
			if tt.command.Value == nil {
				if newCommand.Value != nil && len(newCommand.Value) != 0 {
					t.Errorf("Value should be nil or empty, got %v", newCommand.Value)
				}
			} else if !bytes.Equal(newCommand.Value, tt.command.Value) {
				t.Errorf("Value mismatch: got %v, want %v", newCommand.Value, tt.command.Value)
			}

			// Verify that SizeBytes matches the serialized data length
			if tt.command.SizeBytes() != len(data) {
				t.Errorf("SizeBytes() = %d, but serialized data length = %d",
					tt.command.SizeBytes(), len(data))
			}
		})
	}
}

// TestDeserializeErrors tests error cases in Deserialize
func TestDeserializeErrors(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		expectedErr string
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectedErr: "data too short for command",
		},
		{
			name:        "Data too short (less than header)",
			data:        []byte{1, 2, 3, 4, 5},
			expectedErr: "data too short for command",
		},
		{
			name: "Invalid key length",
			data: func() []byte {
				data := make([]byte, 9) // Just the header
				data[0] = byte(CommandTSet)
				// Set key length to a large value that exceeds the data
				binary.BigEndian.PutUint32(data[1:5], 1000)
				return data
			}(),
			expectedErr: "data too short for key of length 1000",
		},
		{
			name: "Invalid member length",
			data: func() []byte {
				data := make([]byte, 12)
				data[0] = byte(CommandTSAdd)
				binary.BigEndian.PutUint32(data[1:5], 3)
				copy(data[5:8], "key")
				// Member length exceeds remaining data
				binary.BigEndian.PutUint32(data[8:12], 500)
				return data
			}(),
			expectedErr: "data too short for member of length 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cmd Command
			err := cmd.Deserialize(tt.data)

			// Check if we got the expected error
			if err == nil {
				t.Fatalf("Expected error but got nil")
			}
			if err.Error() != tt.expectedErr {
				t.Errorf("Expected error %q, got %q", tt.expectedErr, err.Error())
			}
		})
	}
}

// TestBinaryFormat tests the exact binary format of serialized commands
func TestBinaryFormat(t *testing.T) {
	// Create a command
	cmd := Command{
		Type:   CommandTSAdd,
		Key:    "testkey",
		Member: "member1",
	}

	// Manually create the expected byte array
	expected := make([]byte, cmd.SizeBytes())
	// Type
	expected[0] = byte(CommandTSAdd)
	// Key length
	binary.BigEndian.PutUint32(expected[1:5], 7) // "testkey" length
	// Key
	copy(expected[5:12], "testkey")
	// Member length
	binary.BigEndian.PutUint32(expected[12:16], 7) // "member1" length
	// Member
	copy(expected[16:23], "member1")

	// Serialize and compare
	serialized := cmd.Serialize()
	if !bytes.Equal(serialized, expected) {
		t.Errorf("Binary format does not match:\nGot:      %v\nExpected: %v", serialized, expected)
	}
}

// TestBufferReuse tests that the Deserialize method reuses buffers when possible
func TestBufferReuse(t *testing.T) {
	// Create a command with a value
	cmd := Command{
		Type:  CommandTSet,
		Key:   "key",
		Value: []byte("original value"),
	}

	// Get the current value buffer address
	originalBuffer := cmd.Value

	// Create a new serialized command with a different value but same length
	cmd2 := Command{
		Type:  CommandTSet,
		Key:   "key",
		Value: []byte("changed value"),
	}
	serialized2 := cmd2.Serialize()

	// Deserialize the new command into the original
	err := cmd.Deserialize(serialized2)
	if err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}

	// Check if the buffer was reused (same capacity, same address)
	if cap(cmd.Value) != cap(originalBuffer) {
		t.Logf("Buffer capacity changed from %d to %d", cap(originalBuffer), cap(cmd.Value))
	}

	// Ensure the value was correctly deserialized
	if !bytes.Equal(cmd.Value, []byte("changed value")) {
		t.Errorf("Value not correctly deserialized: got %q, want %q",
			string(cmd.Value), "changed value")
	}

	// Now test with a larger value to ensure capacity increases
	cmd3 := Command{
		Type:  CommandTSet,
		Key:   "key",
		Value: []byte("this is a much longer value that won't fit in the original buffer"),
	}
	serialized3 := cmd3.Serialize()

	// Get buffer info before deserialization
	beforeCap := cap(cmd.Value)

	// Deserialize
	err = cmd.Deserialize(serialized3)
	if err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}

	// Check if buffer capacity increased
	if cap(cmd.Value) <= beforeCap {
		t.Errorf("Buffer capacity did not increase for larger value: still %d", cap(cmd.Value))
	}

	// Ensure the value was correctly deserialized
	if !bytes.Equal(cmd.Value, cmd3.Value) {
		t.Errorf("Value not correctly deserialized")
	}
}
