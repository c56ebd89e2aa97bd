// Package codec (de)serializes cached values for the remote tier. The
// local tier stores decoded values, so codecs only run on remote reads and
// writes.
package codec

// Codec encodes/decodes values V to []byte for remote storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
