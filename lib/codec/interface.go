package codec

// ICodec is the interface for all value codecs used to encode domain
// records (entities, links, snapshots) into bytes for the key-value store.
type ICodec interface {
	// Encode encodes a value into a byte array
	// It returns the encoded byte array and an error if any
	Encode(v interface{}) ([]byte, error)
	// Decode decodes a byte array into a value
	// It takes a byte array and a pointer to the target value as parameters
	// It returns an error if any
	Decode(b []byte, v interface{}) error
}
