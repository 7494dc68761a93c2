// Package codec converts structured values to and from the bytes poolcache stores
// for KindEncoded values. Strings and raw bytes never go through a codec.
package codec

// Codec encodes/decodes values V to []byte for storage.
// Name identifies the format; it is recorded next to every encoded value so a
// payload is never decoded with a different codec than the one that wrote it.
type Codec[V any] interface {
	Name() string
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
